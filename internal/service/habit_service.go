package service

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/habitflow/internal/db"
	"gorm.io/gorm"
)

var (
	// ErrHabitNotFound 在指定习惯不存在或不属于当前用户时返回
	ErrHabitNotFound = errors.New("habit not found")
	// ErrHabitInvalidInput 当习惯字段校验失败时返回
	ErrHabitInvalidInput = errors.New("invalid habit input")
)

var (
	colorPattern    = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)
	reminderPattern = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)
)

// HabitService 负责 Habit 及其子条件的增删改查
// 所有查询都按 userID 限定范围，保证习惯只对归属用户可见
type HabitService struct {
	db *gorm.DB
}

// HabitInput 定义创建/更新习惯时可配置字段
// Conditions 的顺序即 Position 顺序，对打卡记录的下标对齐有意义
type HabitInput struct {
	Name         string
	Description  string
	Color        string
	ReminderTime *string
	Conditions   []string
}

// NewHabitService 构造 HabitService
func NewHabitService(gdb *gorm.DB) *HabitService {
	return &HabitService{db: gdb}
}

// List 返回某用户的全部习惯，子条件按 Position 预加载
func (s *HabitService) List(userID uint) ([]db.Habit, error) {
	var habits []db.Habit

	if err := s.db.Where("user_id = ?", userID).
		Preload("Conditions", func(tx *gorm.DB) *gorm.DB {
			return tx.Order("position ASC")
		}).
		Order("created_at ASC").
		Find(&habits).Error; err != nil {
		return nil, fmt.Errorf("list habits: %w", err)
	}

	return habits, nil
}

// Get 根据 ID 获取某用户的习惯
func (s *HabitService) Get(userID, habitID uint) (*db.Habit, error) {
	var habit db.Habit
	if err := s.db.Where("user_id = ?", userID).
		Preload("Conditions", func(tx *gorm.DB) *gorm.DB {
			return tx.Order("position ASC")
		}).
		First(&habit, habitID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrHabitNotFound
		}
		return nil, fmt.Errorf("get habit: %w", err)
	}
	return &habit, nil
}

// Create 新建习惯及其子条件
func (s *HabitService) Create(userID uint, input HabitInput) (*db.Habit, error) {
	if err := validateHabitInput(input); err != nil {
		return nil, err
	}

	habit := db.Habit{
		UserID:       userID,
		Name:         strings.TrimSpace(input.Name),
		Description:  strings.TrimSpace(input.Description),
		Color:        normalizeColor(input.Color),
		ReminderTime: normalizeReminder(input.ReminderTime),
		Conditions:   buildConditions(input.Conditions),
	}

	if err := s.db.Create(&habit).Error; err != nil {
		return nil, fmt.Errorf("create habit: %w", err)
	}
	return &habit, nil
}

// Update 更新习惯；子条件整组替换，Position 按新顺序重排
func (s *HabitService) Update(userID, habitID uint, input HabitInput) (*db.Habit, error) {
	if err := validateHabitInput(input); err != nil {
		return nil, err
	}

	existing, err := s.Get(userID, habitID)
	if err != nil {
		return nil, err
	}

	existing.Name = strings.TrimSpace(input.Name)
	existing.Description = strings.TrimSpace(input.Description)
	existing.Color = normalizeColor(input.Color)
	existing.ReminderTime = normalizeReminder(input.ReminderTime)

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("habit_id = ?", existing.ID).Delete(&db.HabitCondition{}).Error; err != nil {
			return fmt.Errorf("replace conditions: %w", err)
		}
		existing.Conditions = buildConditions(input.Conditions)
		for i := range existing.Conditions {
			existing.Conditions[i].HabitID = existing.ID
		}
		if len(existing.Conditions) > 0 {
			if err := tx.Create(&existing.Conditions).Error; err != nil {
				return fmt.Errorf("create conditions: %w", err)
			}
		}
		if err := tx.Model(&db.Habit{}).Where("id = ?", existing.ID).Updates(map[string]any{
			"name":          existing.Name,
			"description":   existing.Description,
			"color":         existing.Color,
			"reminder_time": existing.ReminderTime,
		}).Error; err != nil {
			return fmt.Errorf("update habit: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return existing, nil
}

// Delete 删除习惯，并级联清理子条件、打卡记录与离线缓冲里的残留
func (s *HabitService) Delete(userID, habitID uint) error {
	habit, err := s.Get(userID, habitID)
	if err != nil {
		return err
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("habit_id = ?", habit.ID).Delete(&db.HabitCondition{}).Error; err != nil {
			return fmt.Errorf("delete conditions: %w", err)
		}
		if err := tx.Where("habit_id = ?", habit.ID).Delete(&db.HabitEntry{}).Error; err != nil {
			return fmt.Errorf("delete entries: %w", err)
		}
		if err := tx.Delete(&db.Habit{}, habit.ID).Error; err != nil {
			return fmt.Errorf("delete habit: %w", err)
		}
		return nil
	})
}

func validateHabitInput(input HabitInput) error {
	if strings.TrimSpace(input.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrHabitInvalidInput)
	}

	color := strings.TrimSpace(input.Color)
	if color != "" && !colorPattern.MatchString(color) {
		return fmt.Errorf("%w: color must look like #aabbcc", ErrHabitInvalidInput)
	}

	if input.ReminderTime != nil {
		reminder := strings.TrimSpace(*input.ReminderTime)
		if reminder != "" && !reminderPattern.MatchString(reminder) {
			return fmt.Errorf("%w: reminder time must look like 08:30", ErrHabitInvalidInput)
		}
	}

	for _, name := range input.Conditions {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("%w: condition name is required", ErrHabitInvalidInput)
		}
	}

	return nil
}

func normalizeColor(color string) string {
	color = strings.ToLower(strings.TrimSpace(color))
	if color == "" {
		return "#10b981"
	}
	return color
}

func normalizeReminder(reminder *string) *string {
	if reminder == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*reminder)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func buildConditions(names []string) []db.HabitCondition {
	conditions := make([]db.HabitCondition, 0, len(names))
	for i, name := range names {
		conditions = append(conditions, db.HabitCondition{
			Name:     strings.TrimSpace(name),
			Position: i,
		})
	}
	return conditions
}

// normalizeToDate 将时间归一化到当天零点
func normalizeToDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
