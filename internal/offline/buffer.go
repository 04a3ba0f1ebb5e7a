package offline

import (
	"fmt"
	"time"

	"github.com/habitflow/internal/db"
	"gorm.io/gorm"
)

// Buffer 是断网期间打卡的持久化缓冲：只追加、按写入顺序消费。
// 记录落在 offline_entries 表中，进程重启后依然存在；按 DeviceID 限定范围。
// 追加时不做去重，同一 (habit, day) 的多条记录由对账阶段按后写覆盖处理。
type Buffer struct {
	db       *gorm.DB
	deviceID string
}

// PendingInput 定义一条待同步打卡
type PendingInput struct {
	HabitID       uint
	Date          time.Time
	Completed     bool
	ConditionsMet []bool
}

// NewBuffer 构造 Buffer
func NewBuffer(gdb *gorm.DB, deviceID string) *Buffer {
	return &Buffer{db: gdb, deviceID: deviceID}
}

// Append 追加一条待同步打卡
func (b *Buffer) Append(input PendingInput) (*db.OfflineEntry, error) {
	record := db.OfflineEntry{
		DeviceID:      b.deviceID,
		HabitID:       input.HabitID,
		EntryDate:     time.Date(input.Date.Year(), input.Date.Month(), input.Date.Day(), 0, 0, 0, 0, input.Date.Location()),
		Completed:     input.Completed,
		ConditionsMet: db.EncodeConditions(input.ConditionsMet),
	}

	if err := b.db.Create(&record).Error; err != nil {
		return nil, fmt.Errorf("append offline entry: %w", err)
	}
	return &record, nil
}

// Pending 按追加顺序（旧到新）返回全部待同步记录
func (b *Buffer) Pending() ([]db.OfflineEntry, error) {
	var records []db.OfflineEntry
	if err := b.db.Where("device_id = ?", b.deviceID).
		Order("id ASC").
		Find(&records).Error; err != nil {
		return nil, fmt.Errorf("list offline entries: %w", err)
	}
	return records, nil
}

// Drain 移除并返回匹配谓词的记录，用于只清掉同步已确认的那部分
func (b *Buffer) Drain(match func(db.OfflineEntry) bool) ([]db.OfflineEntry, error) {
	records, err := b.Pending()
	if err != nil {
		return nil, err
	}

	drained := make([]db.OfflineEntry, 0, len(records))
	for _, record := range records {
		if !match(record) {
			continue
		}
		if err := b.db.Unscoped().Delete(&db.OfflineEntry{}, record.ID).Error; err != nil {
			return drained, fmt.Errorf("drain offline entry %d: %w", record.ID, err)
		}
		drained = append(drained, record)
	}

	return drained, nil
}

// Clear 清空当前设备的缓冲（管理/测试用途）
func (b *Buffer) Clear() error {
	if err := b.db.Unscoped().Where("device_id = ?", b.deviceID).Delete(&db.OfflineEntry{}).Error; err != nil {
		return fmt.Errorf("clear offline entries: %w", err)
	}
	return nil
}

// Count 返回待同步记录数
func (b *Buffer) Count() (int64, error) {
	var count int64
	if err := b.db.Model(&db.OfflineEntry{}).Where("device_id = ?", b.deviceID).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count offline entries: %w", err)
	}
	return count, nil
}
