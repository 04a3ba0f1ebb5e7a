package handler

import (
	"github.com/habitflow/internal/offline"
	"github.com/habitflow/internal/service"
	"gorm.io/gorm"
)

// API bundles shared dependencies for HTTP handlers.
type API struct {
	db         *gorm.DB
	habits     *service.HabitService
	entries    *service.EntryService
	buffer     *offline.Buffer
	reconciler *offline.Reconciler
	monitor    *offline.Monitor
	deviceID   string
}

// NewAPI constructs a handler set with shared services.
func NewAPI(gdb *gorm.DB, deviceID string) *API {
	entryService := service.NewEntryService(gdb)
	buffer := offline.NewBuffer(gdb, deviceID)
	reconciler := offline.NewReconciler(buffer, entryService)

	return &API{
		db:         gdb,
		habits:     service.NewHabitService(gdb),
		entries:    entryService,
		buffer:     buffer,
		reconciler: reconciler,
		monitor:    offline.NewMonitor(reconciler),
		deviceID:   deviceID,
	}
}

// DB exposes the underlying gorm instance for legacy paths.
func (a *API) DB() *gorm.DB {
	return a.db
}

// Monitor exposes the connectivity monitor for host environment hooks.
func (a *API) Monitor() *offline.Monitor {
	return a.monitor
}
