package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type connectivityPayload struct {
	Online bool `json:"online"`
}

// SyncStatus 返回联网状态、设备标识与待同步数量
func (a *API) SyncStatus(c *gin.Context) {
	pending, err := a.buffer.Count()
	if err != nil {
		respondError(c, http.StatusInternalServerError, "获取同步状态失败")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"online":    a.monitor.IsOnline(),
		"device_id": a.deviceID,
		"pending":   pending,
	})
}

// SetConnectivity 接收宿主环境上报的网络可达性信号。
// 离线→在线 的跃迁会自动触发一次对账并把报告带回。
func (a *API) SetConnectivity(c *gin.Context) {
	var payload connectivityPayload
	if !bindJSON(c, &payload, "请求格式错误") {
		return
	}

	report, err := a.monitor.SetOnline(payload.Online)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "同步失败，稍后将自动重试")
		return
	}

	response := gin.H{"online": payload.Online}
	if report != nil {
		response["report"] = report
	}
	c.JSON(http.StatusOK, response)
}

// Reconcile 手动触发一次对账
func (a *API) Reconcile(c *gin.Context) {
	if !a.monitor.IsOnline() {
		respondError(c, http.StatusConflict, "当前处于离线状态，无法同步")
		return
	}

	report, err := a.reconciler.Reconcile()
	if err != nil {
		respondError(c, http.StatusInternalServerError, "同步失败，稍后将自动重试")
		return
	}

	c.JSON(http.StatusOK, gin.H{"report": report})
}
