package chat

import (
	"Magpie/internal/api/dto"
	"Magpie/internal/pkg/bus"
	"Magpie/internal/pkg/consts"
	"context"
	log "log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/goccy/go-json"
)

// Router 事件路由器
// 整个进程只持有一条用户频道模式订阅，将总线事件分发给本地连接
type Router struct {
	registry *Registry
	eventBus bus.Bus

	userSub     bus.Subscription
	presenceSub bus.Subscription
	wg          sync.WaitGroup
}

func NewRouter(registry *Registry, eventBus bus.Bus) *Router {
	return &Router{
		registry: registry,
		eventBus: eventBus,
	}
}

// Start 建立订阅并启动分发循环
func (s *Router) Start(ctx context.Context) error {
	userSub, err := s.eventBus.PSubscribe(ctx, consts.IMUserPattern)
	if err != nil {
		return err
	}
	presenceSub, err := s.eventBus.PSubscribe(ctx, consts.PresenceChannel)
	if err != nil {
		_ = userSub.Close()
		return err
	}
	s.userSub = userSub
	s.presenceSub = presenceSub

	s.wg.Add(2)
	go s.dispatchUserEvents()
	go s.dispatchPresenceEvents()
	return nil
}

// dispatchUserEvents 单协程消费，保证同一连接收到的事件顺序与发布顺序一致
func (s *Router) dispatchUserEvents() {
	defer s.wg.Done()
	for evt := range s.userSub.Events() {
		userID, ok := parseUserChannel(evt.Channel)
		if !ok {
			continue
		}

		clients := s.registry.ConnectionsFor(userID)
		if len(clients) == 0 {
			// 用户不在本进程在线，事件自然丢弃
			continue
		}

		eventType, typerID := peekEvent(evt.Payload)
		for _, c := range clients {
			// 输入状态只推给正处于该会话中的连接
			if eventType == consts.EventUserTyping && !c.ChattingWith(typerID) {
				continue
			}
			c.enqueue(evt.Payload)
		}
	}
}

// dispatchPresenceEvents 在线状态推给所有与该用户处于会话中的连接
func (s *Router) dispatchPresenceEvents() {
	defer s.wg.Done()
	for evt := range s.presenceSub.Events() {
		var envelope struct {
			Type string           `json:"type"`
			Data *dto.PresenceDTO `json:"data"`
		}
		if err := json.Unmarshal(evt.Payload, &envelope); err != nil || envelope.Data == nil {
			log.Warn("无法解析的在线状态事件", "err", err)
			continue
		}

		for _, c := range s.registry.Snapshot() {
			if c.ChattingWith(envelope.Data.UserID) {
				c.enqueue(evt.Payload)
			}
		}
	}
}

// Close 关闭订阅并等待分发循环退出
func (s *Router) Close() {
	if s.userSub != nil {
		_ = s.userSub.Close()
	}
	if s.presenceSub != nil {
		_ = s.presenceSub.Close()
	}
	s.wg.Wait()
}

func parseUserChannel(channel string) (uint64, bool) {
	if !strings.HasPrefix(channel, consts.IMUserKey) {
		return 0, false
	}
	userID, err := strconv.ParseUint(channel[len(consts.IMUserKey):], 10, 64)
	if err != nil {
		return 0, false
	}
	return userID, true
}

// peekEvent 轻量解析事件类型，输入状态事件额外取出发起者
func peekEvent(payload []byte) (string, uint64) {
	var envelope struct {
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return "", 0
	}
	if envelope.Type != consts.EventUserTyping {
		return envelope.Type, 0
	}
	var typing dto.TypingDTO
	if err := json.Unmarshal(envelope.Data, &typing); err != nil {
		return envelope.Type, 0
	}
	return envelope.Type, typing.PeerID
}
