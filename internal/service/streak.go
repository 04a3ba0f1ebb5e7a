package service

import (
	"sort"
	"time"

	"github.com/habitflow/internal/db"
)

// StreakResult 汇总一次连胜计算的两个派生值
type StreakResult struct {
	Current int
	Best    int
}

// dateKey 以年月日三元组比较日历日，避免跨夏令时按毫秒差除 24h 产生的偏差
type dateKey struct {
	year  int
	month time.Month
	day   int
}

func keyOf(t time.Time) dateKey {
	y, m, d := t.Date()
	return dateKey{year: y, month: m, day: d}
}

// nextDay 返回日历日意义上的后一天
func (k dateKey) nextDay() dateKey {
	t := time.Date(k.year, k.month, k.day, 12, 0, 0, 0, time.UTC)
	return keyOf(t.AddDate(0, 0, 1))
}

// CalculateStreaks 从习惯的全部打卡记录推导当前连胜与历史最佳连胜。
// 输入无需有序；只有 Completed 的记录参与计算；today 为计算基准日。
// 纯函数：相同输入恒得相同输出，不产生任何副作用，结果由调用方负责落库。
func CalculateStreaks(entries []db.HabitEntry, today time.Time) StreakResult {
	completed := make(map[dateKey]bool, len(entries))
	for _, entry := range entries {
		if entry.Completed {
			completed[keyOf(entry.EntryDate)] = true
		}
	}

	if len(completed) == 0 {
		return StreakResult{}
	}

	// 当前连胜：从基准日逐日回溯，遇到第一个没有完成记录的日子即停
	current := 0
	for offset := 0; ; offset++ {
		expected := keyOf(today.AddDate(0, 0, -offset))
		if !completed[expected] {
			break
		}
		current++
	}

	// 最佳连胜：按日历日从旧到新扫描，连续则累加，出现缺口则归一
	// 单独一天的完成记录计为长度 1 的连胜
	days := make([]dateKey, 0, len(completed))
	for day := range completed {
		days = append(days, day)
	}
	sort.Slice(days, func(i, j int) bool { return lessDateKey(days[i], days[j]) })

	best := 0
	run := 0
	var prev dateKey
	for i, day := range days {
		if i > 0 && prev.nextDay() == day {
			run++
		} else {
			run = 1
		}
		if run > best {
			best = run
		}
		prev = day
	}

	// 进行中的连胜同时也是最长连胜时不得被低估
	if current > best {
		best = current
	}

	return StreakResult{Current: current, Best: best}
}

func lessDateKey(a, b dateKey) bool {
	if a.year != b.year {
		return a.year < b.year
	}
	if a.month != b.month {
		return a.month < b.month
	}
	return a.day < b.day
}
