package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/waterracebox/StockSprintBackend/internal/service"
)

// MonitorHandler serves the admin broadcast monitor: recent bus traffic and
// the live connection count.
type MonitorHandler struct {
	monitor *service.BroadcastMonitor
}

// NewMonitorHandler creates a MonitorHandler.
func NewMonitorHandler(monitor *service.BroadcastMonitor) *MonitorHandler {
	return &MonitorHandler{monitor: monitor}
}

// History godoc
// GET /api/admin/monitor — recent non-tick broadcasts, oldest first.
func (h *MonitorHandler) History(c *gin.Context) {
	respondSuccess(c, http.StatusOK, gin.H{
		"connected": len(h.monitor.ConnectedUserIDs()),
		"events":    h.monitor.History(),
	})
}
