package db

import (
	"encoding/json"
	"time"

	"gorm.io/gorm"
)

// Habit 定义了习惯模型
// Color 为 #RRGGBB 展示色，ReminderTime 为可选的每日提醒时间（HH:MM，仅存储）
// StreakCurrent/StreakBest 为派生字段，由打卡后的连胜重算写回
// Conditions 按 Position 排序，顺序对 Entry.ConditionsMet 的下标对齐有意义
type Habit struct {
	gorm.Model
	UserID        uint `gorm:"index"`
	User          User `gorm:"constraint:OnDelete:CASCADE"`
	Name          string
	Description   string
	Color         string
	ReminderTime  *string
	StreakCurrent int
	StreakBest    int
	Conditions    []HabitCondition `gorm:"constraint:OnDelete:CASCADE"`
}

// HabitCondition 是习惯的子条件（如“晨跑”下的“拉伸”“5 公里”）
// Position 决定展示顺序，也决定 ConditionsMet 中对应的下标
// NOTE: 历史 Entry 的 ConditionsMet 只按下标对齐，不持久化条件 ID；
// 条件被增删或重排后旧记录的对齐会悄悄漂移，这是已知的数据完整性缺口
type HabitCondition struct {
	gorm.Model
	HabitID  uint `gorm:"index"`
	Name     string
	Position int
}

// HabitEntry 记录某习惯某天的完成情况
// HabitID + EntryDate 采用唯一索引，保证一天至多一条；重复写入即整条替换
// EntryDate 归一化到当天零点，不携带时间成分
// ConditionsMet 以 JSON 存储按下标对齐的布尔序列
type HabitEntry struct {
	gorm.Model
	HabitID       uint      `gorm:"index;index:idx_habit_entry_unique,unique"`
	Habit         Habit     `gorm:"constraint:OnDelete:CASCADE"`
	EntryDate     time.Time `gorm:"index:idx_habit_entry_unique,unique"`
	Completed     bool
	ConditionsMet string
}

// TableName 重写确保唯一索引作用到 habit_id + entry_date
func (HabitEntry) TableName() string {
	return "habit_entries"
}

// OfflineEntry 是断网期间本地记录的待同步打卡
// 与 HabitEntry 同形，附带 DeviceID 标识来源设备、Synced 标记同步状态
// 只追加、整条消费，从不原地部分更新；成功同步后删除
type OfflineEntry struct {
	gorm.Model
	DeviceID      string `gorm:"index"`
	HabitID       uint   `gorm:"index"`
	EntryDate     time.Time
	Completed     bool
	ConditionsMet string
	Synced        bool
}

// EncodeConditions 将布尔序列编码为存储用的 JSON 字符串
func EncodeConditions(met []bool) string {
	if len(met) == 0 {
		return "[]"
	}
	raw, err := json.Marshal(met)
	if err != nil {
		return "[]"
	}
	return string(raw)
}

// DecodeConditions 解析存储的 JSON 布尔序列，坏数据按空序列处理
func DecodeConditions(raw string) []bool {
	if raw == "" {
		return []bool{}
	}
	var met []bool
	if err := json.Unmarshal([]byte(raw), &met); err != nil {
		return []bool{}
	}
	return met
}
