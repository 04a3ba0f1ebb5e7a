package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/habitflow/internal/db"
	"github.com/habitflow/internal/handler"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupRouterTest(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	gdb, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := gdb.AutoMigrate(&db.User{}, &db.Habit{}, &db.HabitCondition{}, &db.HabitEntry{}, &db.OfflineEntry{}); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	db.DB = gdb

	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			sqlDB.Close()
		}
	})

	return Setup(handler.NewAPI(db.DB, "device-test"), "test-secret")
}

func TestPingRoute(t *testing.T) {
	r := setupRouterTest(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestProtectedRoutesRequireSession(t *testing.T) {
	r := setupRouterTest(t)

	protected := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/habits"},
		{http.MethodPost, "/api/habits"},
		{http.MethodPost, "/api/habits/entries"},
		{http.MethodGet, "/api/sync/status"},
		{http.MethodPost, "/api/sync/reconcile"},
	}

	for _, route := range protected {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(route.method, route.path, nil))
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("%s %s: expected 401, got %d", route.method, route.path, w.Code)
		}
	}
}

func TestAuthRoutesAreOpen(t *testing.T) {
	r := setupRouterTest(t)

	// 空请求体会被拒绝，但不应是 401
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/auth/login", nil))
	if w.Code == http.StatusUnauthorized && w.Body.String() == `{"error":"请先登录"}` {
		t.Fatal("login route must not be behind the auth guard")
	}
}
