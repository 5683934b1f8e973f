package handler

import (
	"Magpie/internal/chat"
	"Magpie/internal/pkg/response"
	"time"

	"github.com/gin-gonic/gin"
)

type StatusHandler struct {
	hub       *chat.Hub
	startTime time.Time
}

func NewStatusHandler(hub *chat.Hub) *StatusHandler {
	return &StatusHandler{
		hub:       hub,
		startTime: time.Now(),
	}
}

func (s *StatusHandler) GetStatus(c *gin.Context) {
	response.Success(c, map[string]any{
		"uptime_seconds": int64(time.Since(s.startTime).Seconds()),
		"online_users":   s.hub.Registry().OnlineCount(),
	})
}
