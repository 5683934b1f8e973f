package chat

import (
	"Magpie/internal/api/dto"
	"Magpie/internal/pkg/bus"
	"Magpie/internal/pkg/consts"
	"context"
	log "log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/goccy/go-json"
)

type typingKey struct {
	typerID uint64
	peerID  uint64
}

// TypingTracker 输入状态表
// typing_start 带 TTL，客户端断线或忘记发 stop 时自动熄灭
type TypingTracker struct {
	mu       sync.Mutex
	timers   map[typingKey]*time.Timer
	ttl      time.Duration
	eventBus bus.Bus
}

func NewTypingTracker(ttl time.Duration, eventBus bus.Bus) *TypingTracker {
	return &TypingTracker{
		timers:   make(map[typingKey]*time.Timer),
		ttl:      ttl,
		eventBus: eventBus,
	}
}

// Start 点亮输入状态，重复调用刷新 TTL
func (s *TypingTracker) Start(typerID, peerID uint64) {
	key := typingKey{typerID: typerID, peerID: peerID}

	s.mu.Lock()
	if timer, ok := s.timers[key]; ok {
		timer.Stop()
	}
	s.timers[key] = time.AfterFunc(s.ttl, func() {
		s.expire(key)
	})
	s.mu.Unlock()

	s.publish(typerID, peerID, true)
}

// Stop 主动熄灭输入状态
func (s *TypingTracker) Stop(typerID, peerID uint64) {
	key := typingKey{typerID: typerID, peerID: peerID}

	s.mu.Lock()
	timer, ok := s.timers[key]
	if ok {
		timer.Stop()
		delete(s.timers, key)
	}
	s.mu.Unlock()

	if ok {
		s.publish(typerID, peerID, false)
	}
}

func (s *TypingTracker) expire(key typingKey) {
	s.mu.Lock()
	_, ok := s.timers[key]
	if ok {
		delete(s.timers, key)
	}
	s.mu.Unlock()

	if ok {
		s.publish(key.typerID, key.peerID, false)
	}
}

// IsTyping 查询输入状态，测试用
func (s *TypingTracker) IsTyping(typerID, peerID uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.timers[typingKey{typerID: typerID, peerID: peerID}]
	return ok
}

// publish 推送到对端的个人频道，data 中的 peer_id 是正在输入的一方
func (s *TypingTracker) publish(typerID, peerID uint64, isTyping bool) {
	payload, err := json.Marshal(&dto.EventDTO{
		Type: consts.EventUserTyping,
		Data: &dto.TypingDTO{PeerID: typerID, IsTyping: isTyping},
	})
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	channel := consts.IMUserKey + strconv.FormatUint(peerID, 10)
	if err = s.eventBus.Publish(ctx, channel, payload); err != nil {
		log.Warn("输入状态推送失败", "channel", channel, "err", err)
	}
}

// Close 停掉所有计时器
func (s *TypingTracker) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, timer := range s.timers {
		timer.Stop()
		delete(s.timers, key)
	}
}
