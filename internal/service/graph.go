package service

import (
	"image"
	"image/color"
	"strconv"
	"time"

	"github.com/habitflow/internal/db"
	xdraw "golang.org/x/image/draw"
)

const (
	graphWeeks = 53
	graphDays  = 7
)

var (
	graphBackground = color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
	graphEmptyCell  = color.RGBA{R: 0xe5, G: 0xe7, B: 0xeb, A: 0xff}
)

// ActivityGraph 将习惯最近一年的打卡渲染为周×日的活动网格位图。
// 布局仿照贡献热力图：列为周、行为周日到周六；完成日用习惯配色填充。
// scale 为放大倍数，小于 1 时按 1 处理。
func ActivityGraph(habit db.Habit, entries []db.HabitEntry, today time.Time, scale int) image.Image {
	if scale < 1 {
		scale = 1
	}

	completed := make(map[dateKey]bool, len(entries))
	for _, entry := range entries {
		if entry.Completed {
			completed[keyOf(entry.EntryDate)] = true
		}
	}

	filled := parseHexColor(habit.Color)

	base := image.NewRGBA(image.Rect(0, 0, graphWeeks, graphDays))
	for x := 0; x < graphWeeks; x++ {
		for y := 0; y < graphDays; y++ {
			base.SetRGBA(x, y, graphBackground)
		}
	}

	// 网格最后一列是本周，起点为一年前那一周的周日
	end := normalizeToDate(today)
	start := end.AddDate(0, 0, -(graphWeeks-1)*7 - int(end.Weekday()))

	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		offset := daysBetween(start, day)
		x := offset / 7
		y := offset % 7
		if x < 0 || x >= graphWeeks {
			continue
		}
		if completed[keyOf(day)] {
			base.SetRGBA(x, y, filled)
		} else {
			base.SetRGBA(x, y, graphEmptyCell)
		}
	}

	if scale == 1 {
		return base
	}

	dst := image.NewRGBA(image.Rect(0, 0, graphWeeks*scale, graphDays*scale))
	xdraw.NearestNeighbor.Scale(dst, dst.Bounds(), base, base.Bounds(), xdraw.Src, nil)
	return dst
}

// daysBetween 返回两个零点时间的日历日差；四舍五入抵消夏令时造成的 ±1h 偏差
func daysBetween(start, end time.Time) int {
	return int(end.Sub(start).Hours()/24 + 0.5)
}

func parseHexColor(raw string) color.RGBA {
	fallback := color.RGBA{R: 0x10, G: 0xb9, B: 0x81, A: 0xff}
	if len(raw) != 7 || raw[0] != '#' {
		return fallback
	}

	value, err := strconv.ParseUint(raw[1:], 16, 32)
	if err != nil {
		return fallback
	}

	return color.RGBA{
		R: uint8(value >> 16),
		G: uint8(value >> 8),
		B: uint8(value),
		A: 0xff,
	}
}
