package offline

import (
	"testing"
	"time"

	"github.com/habitflow/internal/db"
	"github.com/habitflow/internal/service"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testDeviceID = "device-test"

func setupSyncTestDB(t *testing.T) func() {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	if err := gdb.AutoMigrate(&db.User{}, &db.Habit{}, &db.HabitCondition{}, &db.HabitEntry{}, &db.OfflineEntry{}); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	db.DB = gdb

	return func() {
		sqlDB, err := db.DB.DB()
		if err == nil {
			sqlDB.Close()
		}
	}
}

func seedSyncHabit(t *testing.T, name string) db.Habit {
	t.Helper()

	user := db.User{Username: "tester-" + name, Password: "hashed"}
	if err := db.DB.Create(&user).Error; err != nil {
		t.Fatalf("failed to seed user: %v", err)
	}

	habit := db.Habit{UserID: user.ID, Name: name, Color: "#10b981"}
	if err := db.DB.Create(&habit).Error; err != nil {
		t.Fatalf("failed to seed habit: %v", err)
	}
	return habit
}

func TestBufferAppendPreservesOrder(t *testing.T) {
	cleanup := setupSyncTestDB(t)
	defer cleanup()

	buffer := NewBuffer(db.DB, testDeviceID)
	now := time.Now()

	for i := 0; i < 3; i++ {
		if _, err := buffer.Append(PendingInput{HabitID: uint(i + 1), Date: now, Completed: true}); err != nil {
			t.Fatalf("Append returned error: %v", err)
		}
	}

	pending, err := buffer.Pending()
	if err != nil {
		t.Fatalf("Pending returned error: %v", err)
	}
	if len(pending) != 3 {
		t.Fatalf("expected 3 pending records, got %d", len(pending))
	}
	for i, record := range pending {
		if record.HabitID != uint(i+1) {
			t.Fatalf("expected append order preserved, got habit %d at index %d", record.HabitID, i)
		}
	}
}

func TestBufferScopedByDevice(t *testing.T) {
	cleanup := setupSyncTestDB(t)
	defer cleanup()

	mine := NewBuffer(db.DB, testDeviceID)
	other := NewBuffer(db.DB, "device-other")

	if _, err := mine.Append(PendingInput{HabitID: 1, Date: time.Now(), Completed: true}); err != nil {
		t.Fatalf("Append returned error: %v", err)
	}

	pending, err := other.Pending()
	if err != nil {
		t.Fatalf("Pending returned error: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("expected other device to see 0 records, got %d", len(pending))
	}

	if err := other.Clear(); err != nil {
		t.Fatalf("Clear returned error: %v", err)
	}

	count, err := mine.Count()
	if err != nil {
		t.Fatalf("Count returned error: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected clear to be device-scoped, got %d records left", count)
	}
}

func TestBufferDrainRemovesOnlyMatching(t *testing.T) {
	cleanup := setupSyncTestDB(t)
	defer cleanup()

	buffer := NewBuffer(db.DB, testDeviceID)
	now := time.Now()

	first, _ := buffer.Append(PendingInput{HabitID: 1, Date: now, Completed: true})
	buffer.Append(PendingInput{HabitID: 2, Date: now, Completed: true})

	drained, err := buffer.Drain(func(record db.OfflineEntry) bool {
		return record.ID == first.ID
	})
	if err != nil {
		t.Fatalf("Drain returned error: %v", err)
	}
	if len(drained) != 1 || drained[0].ID != first.ID {
		t.Fatalf("expected only first record drained, got %+v", drained)
	}

	count, _ := buffer.Count()
	if count != 1 {
		t.Fatalf("expected 1 record left, got %d", count)
	}
}

func TestReconcileRoundTrip(t *testing.T) {
	cleanup := setupSyncTestDB(t)
	defer cleanup()

	habit := seedSyncHabit(t, "晨跑")
	entries := service.NewEntryService(db.DB)
	buffer := NewBuffer(db.DB, testDeviceID)
	reconciler := NewReconciler(buffer, entries)

	today := time.Now()
	if _, err := buffer.Append(PendingInput{HabitID: habit.ID, Date: today, Completed: true}); err != nil {
		t.Fatalf("Append returned error: %v", err)
	}

	report, err := reconciler.Reconcile()
	if err != nil {
		t.Fatalf("Reconcile returned error: %v", err)
	}
	if report.Submitted != 1 || report.Accepted != 1 || len(report.Failures) != 0 {
		t.Fatalf("unexpected report: %+v", report)
	}

	// 服务端出现与本地缓冲一致的记录
	var entry db.HabitEntry
	if err := db.DB.Where("habit_id = ?", habit.ID).First(&entry).Error; err != nil {
		t.Fatalf("expected server entry: %v", err)
	}
	if !entry.Completed {
		t.Fatal("expected completed entry on server")
	}

	// 缓冲被清空
	count, _ := buffer.Count()
	if count != 0 {
		t.Fatalf("expected empty buffer, got %d records", count)
	}

	// 连胜已重算
	var refreshed db.Habit
	db.DB.First(&refreshed, habit.ID)
	if refreshed.StreakCurrent != 1 {
		t.Fatalf("expected streak recomputed to 1, got %d", refreshed.StreakCurrent)
	}
}

func TestReconcileIsIdempotent(t *testing.T) {
	cleanup := setupSyncTestDB(t)
	defer cleanup()

	habit := seedSyncHabit(t, "阅读")
	entries := service.NewEntryService(db.DB)
	buffer := NewBuffer(db.DB, testDeviceID)
	reconciler := NewReconciler(buffer, entries)

	buffer.Append(PendingInput{HabitID: habit.ID, Date: time.Now(), Completed: true})

	if _, err := reconciler.Reconcile(); err != nil {
		t.Fatalf("first Reconcile returned error: %v", err)
	}

	// 空缓冲上的重复执行不产生重复或损坏的状态
	report, err := reconciler.Reconcile()
	if err != nil {
		t.Fatalf("second Reconcile returned error: %v", err)
	}
	if report.Submitted != 0 || report.Accepted != 0 {
		t.Fatalf("expected no-op report, got %+v", report)
	}

	var entryCount int64
	db.DB.Model(&db.HabitEntry{}).Where("habit_id = ?", habit.ID).Count(&entryCount)
	if entryCount != 1 {
		t.Fatalf("expected 1 server entry, got %d", entryCount)
	}
}

func TestReconcileLastWriteWins(t *testing.T) {
	cleanup := setupSyncTestDB(t)
	defer cleanup()

	habit := seedSyncHabit(t, "喝水")
	entries := service.NewEntryService(db.DB)
	buffer := NewBuffer(db.DB, testDeviceID)
	reconciler := NewReconciler(buffer, entries)

	today := time.Now()
	// 同一天先记 false 再记 true，后写覆盖先写
	buffer.Append(PendingInput{HabitID: habit.ID, Date: today, Completed: false})
	buffer.Append(PendingInput{HabitID: habit.ID, Date: today, Completed: true})

	report, err := reconciler.Reconcile()
	if err != nil {
		t.Fatalf("Reconcile returned error: %v", err)
	}
	if report.Accepted != 2 {
		t.Fatalf("expected both records accepted, got %+v", report)
	}

	var serverEntries []db.HabitEntry
	db.DB.Where("habit_id = ?", habit.ID).Find(&serverEntries)
	if len(serverEntries) != 1 {
		t.Fatalf("expected single server entry, got %d", len(serverEntries))
	}
	if !serverEntries[0].Completed {
		t.Fatal("expected last write (completed=true) to win")
	}

	count, _ := buffer.Count()
	if count != 0 {
		t.Fatalf("expected empty buffer, got %d", count)
	}
}

func TestReconcileIsolatesFailures(t *testing.T) {
	cleanup := setupSyncTestDB(t)
	defer cleanup()

	habitA := seedSyncHabit(t, "晨跑")
	habitB := seedSyncHabit(t, "冥想")
	entries := service.NewEntryService(db.DB)
	buffer := NewBuffer(db.DB, testDeviceID)
	reconciler := NewReconciler(buffer, entries)

	today := time.Now()
	buffer.Append(PendingInput{HabitID: habitA.ID, Date: today, Completed: true})
	// 不存在的习惯：该条被拒绝但不阻断其余记录
	buffer.Append(PendingInput{HabitID: 9999, Date: today, Completed: true})
	buffer.Append(PendingInput{HabitID: habitB.ID, Date: today, Completed: true})

	report, err := reconciler.Reconcile()
	if err != nil {
		t.Fatalf("Reconcile returned error: %v", err)
	}

	if report.Submitted != 3 || report.Accepted != 2 {
		t.Fatalf("unexpected report: %+v", report)
	}
	if len(report.Failures) != 1 || report.Failures[0].HabitID != 9999 {
		t.Fatalf("expected single failure for habit 9999, got %+v", report.Failures)
	}

	// 失败记录留在缓冲中等待重试
	pending, _ := buffer.Pending()
	if len(pending) != 1 || pending[0].HabitID != 9999 {
		t.Fatalf("expected rejected record retained, got %+v", pending)
	}
}
