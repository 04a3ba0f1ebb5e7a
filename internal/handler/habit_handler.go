package handler

import (
	"bytes"
	"errors"
	"image/png"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/habitflow/internal/db"
	"github.com/habitflow/internal/service"
	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

const dateFormat = "2006-01-02"

var (
	markdownEngine = goldmark.New(
		goldmark.WithExtensions(extension.GFM, extension.Linkify),
		goldmark.WithRendererOptions(html.WithHardWraps(), html.WithXHTML()),
	)
	sanitizer = bluemonday.UGCPolicy()
)

type habitPayload struct {
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	Color        string   `json:"color"`
	ReminderTime *string  `json:"reminder_time"`
	Conditions   []string `json:"conditions"`
}

type conditionView struct {
	ID       uint   `json:"id"`
	Name     string `json:"name"`
	Position int    `json:"position"`
}

// ListHabits 返回当前用户的习惯列表，附带今日打卡状态
func (a *API) ListHabits(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, "请先登录")
		return
	}

	habits, err := a.habits.List(userID)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "获取习惯列表失败")
		return
	}

	items := make([]gin.H, 0, len(habits))
	for _, habit := range habits {
		item := habitToView(habit)

		today, err := a.entries.TodayEntry(habit.ID)
		if err == nil && today != nil {
			item["today"] = entryToView(*today)
		}

		// 待同步的离线打卡对用户与已确认的不作区分，仅内部打上 pending 标记
		var pendingCount int64
		a.db.Model(&db.OfflineEntry{}).
			Where("habit_id = ? AND device_id = ?", habit.ID, a.deviceID).
			Count(&pendingCount)
		item["pending_sync"] = pendingCount > 0

		items = append(items, item)
	}

	c.JSON(http.StatusOK, gin.H{"habits": items})
}

// CreateHabit 创建习惯
func (a *API) CreateHabit(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, "请先登录")
		return
	}

	var payload habitPayload
	if !bindJSON(c, &payload, "请求格式错误") {
		return
	}

	habit, err := a.habits.Create(userID, habitInputFromPayload(payload))
	if err != nil {
		if errors.Is(err, service.ErrHabitInvalidInput) {
			respondError(c, http.StatusBadRequest, err.Error())
			return
		}
		respondError(c, http.StatusInternalServerError, "创建习惯失败")
		return
	}

	c.JSON(http.StatusCreated, gin.H{"habit": habitToView(*habit)})
}

// GetHabit 返回习惯详情，描述以安全的 HTML 形式一并返回
func (a *API) GetHabit(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, "请先登录")
		return
	}

	habitID, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的习惯 ID")
		return
	}

	habit, err := a.habits.Get(userID, habitID)
	if err != nil {
		if errors.Is(err, service.ErrHabitNotFound) {
			respondError(c, http.StatusNotFound, "习惯不存在")
			return
		}
		respondError(c, http.StatusInternalServerError, "获取习惯失败")
		return
	}

	view := habitToView(*habit)
	view["description_html"] = renderDescription(habit.Description)

	c.JSON(http.StatusOK, gin.H{"habit": view})
}

// UpdateHabit 更新习惯
func (a *API) UpdateHabit(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, "请先登录")
		return
	}

	habitID, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的习惯 ID")
		return
	}

	var payload habitPayload
	if !bindJSON(c, &payload, "请求格式错误") {
		return
	}

	habit, err := a.habits.Update(userID, habitID, habitInputFromPayload(payload))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrHabitNotFound):
			respondError(c, http.StatusNotFound, "习惯不存在")
		case errors.Is(err, service.ErrHabitInvalidInput):
			respondError(c, http.StatusBadRequest, err.Error())
		default:
			respondError(c, http.StatusInternalServerError, "更新习惯失败")
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"habit": habitToView(*habit)})
}

// DeleteHabit 删除习惯
func (a *API) DeleteHabit(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, "请先登录")
		return
	}

	habitID, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的习惯 ID")
		return
	}

	if err := a.habits.Delete(userID, habitID); err != nil {
		if errors.Is(err, service.ErrHabitNotFound) {
			respondError(c, http.StatusNotFound, "习惯不存在")
			return
		}
		respondError(c, http.StatusInternalServerError, "删除习惯失败")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "习惯已删除"})
}

// HabitGraph 输出习惯最近一年的活动网格 PNG
func (a *API) HabitGraph(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, "请先登录")
		return
	}

	habitID, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的习惯 ID")
		return
	}

	habit, err := a.habits.Get(userID, habitID)
	if err != nil {
		if errors.Is(err, service.ErrHabitNotFound) {
			respondError(c, http.StatusNotFound, "习惯不存在")
			return
		}
		respondError(c, http.StatusInternalServerError, "获取习惯失败")
		return
	}

	entries, err := a.entries.ListAll(habit.ID)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "获取打卡记录失败")
		return
	}

	scale := 8
	if raw := c.Query("scale"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed <= 32 {
			scale = parsed
		}
	}

	img := service.ActivityGraph(*habit, entries, time.Now(), scale)

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		respondError(c, http.StatusInternalServerError, "生成活动图失败")
		return
	}

	c.Data(http.StatusOK, "image/png", buf.Bytes())
}

func habitInputFromPayload(payload habitPayload) service.HabitInput {
	return service.HabitInput{
		Name:         payload.Name,
		Description:  payload.Description,
		Color:        payload.Color,
		ReminderTime: payload.ReminderTime,
		Conditions:   payload.Conditions,
	}
}

func habitToView(habit db.Habit) gin.H {
	conditions := make([]conditionView, 0, len(habit.Conditions))
	for _, condition := range habit.Conditions {
		conditions = append(conditions, conditionView{
			ID:       condition.ID,
			Name:     condition.Name,
			Position: condition.Position,
		})
	}

	return gin.H{
		"id":             habit.ID,
		"name":           habit.Name,
		"description":    habit.Description,
		"color":          habit.Color,
		"reminder_time":  habit.ReminderTime,
		"streak_current": habit.StreakCurrent,
		"streak_best":    habit.StreakBest,
		"conditions":     conditions,
		"created_at":     habit.CreatedAt.Format(time.RFC3339),
	}
}

func entryToView(entry db.HabitEntry) gin.H {
	return gin.H{
		"id":             entry.ID,
		"habit_id":       entry.HabitID,
		"date":           entry.EntryDate.Format(dateFormat),
		"completed":      entry.Completed,
		"conditions_met": db.DecodeConditions(entry.ConditionsMet),
	}
}

func renderDescription(markdown string) string {
	if markdown == "" {
		return ""
	}
	var buf bytes.Buffer
	if err := markdownEngine.Convert([]byte(markdown), &buf); err != nil {
		return ""
	}
	return sanitizer.Sanitize(buf.String())
}
