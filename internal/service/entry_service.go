package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/habitflow/internal/db"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrEntryValidation 在打卡输入不合法（日期异常、条件数不匹配）时返回
var ErrEntryValidation = errors.New("invalid entry input")

// EntryService 负责打卡记录的权威写入与连胜重算
// Upsert 以 (habit_id, entry_date) 为幂等键，重复提交整条替换而非字段级合并
type EntryService struct {
	db *gorm.DB
}

// EntryInput 定义一次打卡写入
type EntryInput struct {
	HabitID       uint
	Date          time.Time
	Completed     bool
	ConditionsMet []bool
}

// NewEntryService 构造 EntryService
func NewEntryService(gdb *gorm.DB) *EntryService {
	return &EntryService{db: gdb}
}

// Upsert 幂等写入一条打卡：存在即整条替换，不存在即创建。
// 写入成功后立刻重算该习惯的连胜并落库。
func (s *EntryService) Upsert(input EntryInput) (*db.HabitEntry, error) {
	var habit db.Habit
	if err := s.db.Preload("Conditions").First(&habit, input.HabitID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrHabitNotFound
		}
		return nil, fmt.Errorf("find habit: %w", err)
	}

	if input.Date.IsZero() {
		return nil, fmt.Errorf("%w: date is required", ErrEntryValidation)
	}

	// ConditionsMet 按下标对齐习惯当前的条件列表；允许为空，长度不符即拒绝
	if len(input.ConditionsMet) != 0 && len(input.ConditionsMet) != len(habit.Conditions) {
		return nil, fmt.Errorf("%w: expected %d condition flags, got %d",
			ErrEntryValidation, len(habit.Conditions), len(input.ConditionsMet))
	}

	entryDate := normalizeToDate(input.Date)

	record := db.HabitEntry{
		HabitID:       input.HabitID,
		EntryDate:     entryDate,
		Completed:     input.Completed,
		ConditionsMet: db.EncodeConditions(input.ConditionsMet),
	}

	if err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "habit_id"}, {Name: "entry_date"}},
		DoUpdates: clause.AssignmentColumns([]string{"completed", "conditions_met", "updated_at"}),
	}).Create(&record).Error; err != nil {
		return nil, fmt.Errorf("upsert entry: %w", err)
	}

	if err := s.db.Where("habit_id = ? AND entry_date = ?", input.HabitID, entryDate).First(&record).Error; err != nil {
		return nil, fmt.Errorf("reload entry: %w", err)
	}

	if err := s.Recalculate(input.HabitID); err != nil {
		return nil, err
	}

	return &record, nil
}

// ListAll 返回习惯的全部打卡记录，按日期升序
func (s *EntryService) ListAll(habitID uint) ([]db.HabitEntry, error) {
	var entries []db.HabitEntry
	if err := s.db.Where("habit_id = ?", habitID).
		Order("entry_date ASC").
		Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	return entries, nil
}

// ListBetween 返回指定区间内的打卡记录
func (s *EntryService) ListBetween(habitID uint, start, end time.Time) ([]db.HabitEntry, error) {
	if end.Before(start) {
		return nil, fmt.Errorf("%w: end before start", ErrEntryValidation)
	}

	var entries []db.HabitEntry
	if err := s.db.Where("habit_id = ?", habitID).
		Where("entry_date BETWEEN ? AND ?", normalizeToDate(start), normalizeToDate(end)).
		Order("entry_date ASC").
		Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	return entries, nil
}

// TodayEntry 返回习惯今日的打卡记录，不存在时返回 nil
func (s *EntryService) TodayEntry(habitID uint) (*db.HabitEntry, error) {
	today := normalizeToDate(time.Now())

	var entry db.HabitEntry
	if err := s.db.Where("habit_id = ? AND entry_date = ?", habitID, today).First(&entry).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("find today entry: %w", err)
	}
	return &entry, nil
}

// Recalculate 以今天为基准重算习惯的连胜并写回
func (s *EntryService) Recalculate(habitID uint) error {
	entries, err := s.ListAll(habitID)
	if err != nil {
		return err
	}

	result := CalculateStreaks(entries, time.Now())

	if err := s.db.Model(&db.Habit{}).Where("id = ?", habitID).Updates(map[string]any{
		"streak_current": result.Current,
		"streak_best":    result.Best,
	}).Error; err != nil {
		return fmt.Errorf("persist streak: %w", err)
	}
	return nil
}
