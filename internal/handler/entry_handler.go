package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/habitflow/internal/offline"
	"github.com/habitflow/internal/service"
)

type entryPayload struct {
	HabitID       uint   `json:"habit_id"`
	Date          string `json:"date"`
	Completed     bool   `json:"completed"`
	ConditionsMet []bool `json:"conditions_met"`
}

// ToggleCompletion 是打卡入口：在线时直接走权威写入并重算连胜，
// 离线时追加到本地缓冲等待恢复联网后对账。任何一条打卡都有用户可见的结果，
// 不会被悄悄丢弃。
func (a *API) ToggleCompletion(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, "请先登录")
		return
	}

	var payload entryPayload
	if !bindJSON(c, &payload, "请求格式错误") {
		return
	}

	entryDate, err := time.ParseInLocation(dateFormat, payload.Date, time.Local)
	if err != nil {
		respondError(c, http.StatusBadRequest, "日期格式应为 2006-01-02")
		return
	}

	// 归属校验先行：不属于当前用户的习惯一律按不存在处理
	habit, err := a.habits.Get(userID, payload.HabitID)
	if err != nil {
		if errors.Is(err, service.ErrHabitNotFound) {
			respondError(c, http.StatusNotFound, "习惯不存在")
			return
		}
		respondError(c, http.StatusInternalServerError, "打卡失败")
		return
	}

	// 校验失败立即拒绝，不进缓冲
	if len(payload.ConditionsMet) != 0 && len(payload.ConditionsMet) != len(habit.Conditions) {
		respondError(c, http.StatusBadRequest, "条件打勾数量与习惯条件不一致")
		return
	}

	if !a.monitor.IsOnline() {
		record, err := a.buffer.Append(offline.PendingInput{
			HabitID:       habit.ID,
			Date:          entryDate,
			Completed:     payload.Completed,
			ConditionsMet: payload.ConditionsMet,
		})
		if err != nil {
			respondError(c, http.StatusInternalServerError, "离线打卡暂存失败")
			return
		}

		c.JSON(http.StatusAccepted, gin.H{
			"pending": true,
			"entry": gin.H{
				"habit_id":       record.HabitID,
				"date":           record.EntryDate.Format(dateFormat),
				"completed":      record.Completed,
				"conditions_met": payload.ConditionsMet,
			},
		})
		return
	}

	entry, err := a.entries.Upsert(service.EntryInput{
		HabitID:       habit.ID,
		Date:          entryDate,
		Completed:     payload.Completed,
		ConditionsMet: payload.ConditionsMet,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrHabitNotFound):
			respondError(c, http.StatusNotFound, "习惯不存在")
		case errors.Is(err, service.ErrEntryValidation):
			respondError(c, http.StatusBadRequest, err.Error())
		default:
			respondError(c, http.StatusInternalServerError, "打卡失败")
		}
		return
	}

	// 返回重算后的连胜，便于客户端即时刷新
	refreshed, err := a.habits.Get(userID, habit.ID)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "打卡失败")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"pending": false,
		"entry":   entryToView(*entry),
		"streaks": gin.H{
			"current": refreshed.StreakCurrent,
			"best":    refreshed.StreakBest,
		},
	})
}

// ListEntries 返回习惯指定区间的打卡记录，默认最近 30 天
func (a *API) ListEntries(c *gin.Context) {
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

	if _, err := a.habits.Get(userID, habitID); err != nil {
		if errors.Is(err, service.ErrHabitNotFound) {
			respondError(c, http.StatusNotFound, "习惯不存在")
			return
		}
		respondError(c, http.StatusInternalServerError, "获取打卡记录失败")
		return
	}

	end := time.Now()
	start := end.AddDate(0, 0, -29)

	if raw := c.Query("start"); raw != "" {
		if parsed, err := time.ParseInLocation(dateFormat, raw, time.Local); err == nil {
			start = parsed
		}
	}
	if raw := c.Query("end"); raw != "" {
		if parsed, err := time.ParseInLocation(dateFormat, raw, time.Local); err == nil {
			end = parsed
		}
	}

	entries, err := a.entries.ListBetween(habitID, start, end)
	if err != nil {
		if errors.Is(err, service.ErrEntryValidation) {
			respondError(c, http.StatusBadRequest, err.Error())
			return
		}
		respondError(c, http.StatusInternalServerError, "获取打卡记录失败")
		return
	}

	items := make([]gin.H, 0, len(entries))
	for _, entry := range entries {
		items = append(items, entryToView(entry))
	}

	c.JSON(http.StatusOK, gin.H{"entries": items})
}
