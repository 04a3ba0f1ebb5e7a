package offline

import (
	"log"
	"time"

	"github.com/habitflow/internal/db"
	"github.com/habitflow/internal/service"
)

// EntryUpserter 是对账需要的权威写入接口，由 service.EntryService 实现
type EntryUpserter interface {
	Upsert(input service.EntryInput) (*db.HabitEntry, error)
}

// RecordFailure 描述一条未被服务端接受的缓冲记录
type RecordFailure struct {
	OfflineID uint      `json:"offline_id"`
	HabitID   uint      `json:"habit_id"`
	Date      time.Time `json:"date"`
	Reason    string    `json:"reason"`
}

// Report 汇总一次对账的结果
type Report struct {
	Submitted int             `json:"submitted"`
	Accepted  int             `json:"accepted"`
	Failures  []RecordFailure `json:"failures"`
}

// Reconciler 在恢复联网后把离线缓冲合并进权威存储。
// 记录严格按追加顺序提交，同一 (habit, day) 后写覆盖先写；
// 单条失败不阻断后续记录，失败记录留在缓冲中等待下一轮重试。
type Reconciler struct {
	buffer  *Buffer
	entries EntryUpserter
}

// NewReconciler 构造 Reconciler
func NewReconciler(buffer *Buffer, entries EntryUpserter) *Reconciler {
	return &Reconciler{buffer: buffer, entries: entries}
}

// Reconcile 按旧到新逐条提交缓冲记录：被接受的移出缓冲（权威写入内部
// 已触发连胜重算），被拒绝的原样保留并记入报告。幂等：空缓冲或重复执行
// 不会产生重复或损坏的状态。
func (r *Reconciler) Reconcile() (*Report, error) {
	pending, err := r.buffer.Pending()
	if err != nil {
		return nil, err
	}

	report := &Report{Submitted: len(pending)}
	if len(pending) == 0 {
		return report, nil
	}

	accepted := make(map[uint]bool, len(pending))
	for _, record := range pending {
		_, err := r.entries.Upsert(service.EntryInput{
			HabitID:       record.HabitID,
			Date:          record.EntryDate,
			Completed:     record.Completed,
			ConditionsMet: db.DecodeConditions(record.ConditionsMet),
		})
		if err != nil {
			log.Printf("[sync] entry %d (habit %d, %s) rejected: %v",
				record.ID, record.HabitID, record.EntryDate.Format("2006-01-02"), err)
			report.Failures = append(report.Failures, RecordFailure{
				OfflineID: record.ID,
				HabitID:   record.HabitID,
				Date:      record.EntryDate,
				Reason:    err.Error(),
			})
			continue
		}
		accepted[record.ID] = true
	}

	drained, err := r.buffer.Drain(func(record db.OfflineEntry) bool {
		return accepted[record.ID]
	})
	if err != nil {
		return report, err
	}
	report.Accepted = len(drained)

	if len(report.Failures) > 0 {
		log.Printf("[sync] reconcile finished: %d accepted, %d retained for retry",
			report.Accepted, len(report.Failures))
	}

	return report, nil
}
