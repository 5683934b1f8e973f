package chat

import (
	"Magpie/internal/api/config"
	"Magpie/internal/pkg/bus"
	"Magpie/internal/repository"
	"Magpie/internal/service"
	"context"
	log "log/slog"
	"time"

	"github.com/gorilla/websocket"
)

// Hub 长连接侧的装配中心
type Hub struct {
	registry   *Registry
	typing     *TypingTracker
	router     *Router
	imService  service.IMService
	sendBuffer int
}

// NewHub 组装在线注册表、输入状态表与事件路由器
func NewHub(imService service.IMService, userRepo repository.UserRepo, eventBus bus.Bus, cfg *config.ChatConfig) (*Hub, error) {
	registry := NewRegistry(time.Duration(cfg.PresenceGraceSeconds)*time.Second, userRepo, eventBus)
	typing := NewTypingTracker(time.Duration(cfg.TypingTTLSeconds)*time.Second, eventBus)
	router := NewRouter(registry, eventBus)

	if err := router.Start(context.Background()); err != nil {
		return nil, err
	}

	return &Hub{
		registry:   registry,
		typing:     typing,
		router:     router,
		imService:  imService,
		sendBuffer: cfg.SendBufferSize,
	}, nil
}

// ServeConn 接管一条升级完成的 WebSocket 连接
func (s *Hub) ServeConn(conn *websocket.Conn) {
	client := newClient(s, conn, s.sendBuffer)
	go client.writePump()
	go client.readPump()
}

// Registry 暴露给状态接口统计在线人数
func (s *Hub) Registry() *Registry {
	return s.registry
}

// Close 停止路由与输入状态表
func (s *Hub) Close() {
	s.router.Close()
	s.typing.Close()
	log.Info("Chat hub shut down gracefully")
}
