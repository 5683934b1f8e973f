package chat

import (
	"Magpie/internal/api/dto"
	"Magpie/internal/pkg/bus"
	"Magpie/internal/pkg/consts"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
)

type fakeSub struct {
	ch   chan bus.Event
	once sync.Once
}

func (s *fakeSub) Events() <-chan bus.Event { return s.ch }

func (s *fakeSub) Close() error {
	s.once.Do(func() { close(s.ch) })
	return nil
}

// patternBus 进程内总线假件，Publish 按模式投递给订阅者
type patternBus struct {
	mu   sync.Mutex
	subs map[string]*fakeSub
}

func newPatternBus() *patternBus {
	return &patternBus{subs: make(map[string]*fakeSub)}
}

func (f *patternBus) Publish(_ context.Context, channel string, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for pattern, sub := range f.subs {
		if matchPattern(pattern, channel) {
			sub.ch <- bus.Event{Channel: channel, Payload: payload}
		}
	}
	return nil
}

func (f *patternBus) PSubscribe(_ context.Context, pattern string) (bus.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sub := &fakeSub{ch: make(chan bus.Event, 64)}
	f.subs[pattern] = sub
	return sub, nil
}

func matchPattern(pattern, channel string) bool {
	if strings.HasSuffix(pattern, "*") {
		return strings.HasPrefix(channel, strings.TrimSuffix(pattern, "*"))
	}
	return pattern == channel
}

func drain(t *testing.T, c *Client, timeout time.Duration) []*dto.EventDTO {
	t.Helper()
	res := make([]*dto.EventDTO, 0)
	for {
		select {
		case payload := <-c.send:
			var envelope dto.EventDTO
			if err := json.Unmarshal(payload, &envelope); err != nil {
				t.Fatalf("事件无法解析: %v", err)
			}
			res = append(res, &envelope)
		case <-time.After(timeout):
			return res
		}
	}
}

func newRouterFixture(t *testing.T) (*patternBus, *Registry, *Router) {
	t.Helper()
	eventBus := newPatternBus()
	registry := NewRegistry(10*time.Millisecond, &recordUserRepo{}, eventBus)
	router := NewRouter(registry, eventBus)
	if err := router.Start(context.Background()); err != nil {
		t.Fatalf("Router.Start: %v", err)
	}
	t.Cleanup(router.Close)
	return eventBus, registry, router
}

func TestRouterDeliversToAllUserConnections(t *testing.T) {
	eventBus, registry, _ := newRouterFixture(t)

	c1 := &Client{userID: 5, state: StateInChat, peerID: 6, send: make(chan []byte, 8)}
	c2 := &Client{userID: 5, state: StateAuthenticated, send: make(chan []byte, 8)}
	registry.Register(c1)
	registry.Register(c2)

	payload, _ := json.Marshal(&dto.EventDTO{Type: consts.EventMessageReceived, Data: map[string]string{"id": "m1"}})
	if err := eventBus.Publish(context.Background(), consts.IMUserKey+"5", payload); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	// 消息事件推给该用户的所有连接，不要求处于会话中
	for _, c := range []*Client{c1, c2} {
		events := drain(t, c, 200*time.Millisecond)
		if len(events) != 1 || events[0].Type != consts.EventMessageReceived {
			t.Errorf("连接收到的事件不正确: %+v", events)
		}
	}
}

func TestRouterFiltersTypingByChat(t *testing.T) {
	eventBus, registry, _ := newRouterFixture(t)

	inChat := &Client{userID: 5, state: StateInChat, peerID: 6, send: make(chan []byte, 8)}
	elsewhere := &Client{userID: 5, state: StateInChat, peerID: 9, send: make(chan []byte, 8)}
	registry.Register(inChat)
	registry.Register(elsewhere)

	// 用户 6 正在输入，载荷中 peer_id 是输入方
	payload, _ := json.Marshal(&dto.EventDTO{
		Type: consts.EventUserTyping,
		Data: &dto.TypingDTO{PeerID: 6, IsTyping: true},
	})
	if err := eventBus.Publish(context.Background(), consts.IMUserKey+"5", payload); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	if events := drain(t, inChat, 200*time.Millisecond); len(events) != 1 {
		t.Errorf("处于该会话的连接应收到输入状态: %+v", events)
	}
	if events := drain(t, elsewhere, 100*time.Millisecond); len(events) != 0 {
		t.Errorf("其他会话的连接不应收到输入状态: %+v", events)
	}
}

func TestRouterDeliversPresenceToChattingClients(t *testing.T) {
	eventBus, registry, _ := newRouterFixture(t)

	watching := &Client{userID: 5, state: StateInChat, peerID: 7, send: make(chan []byte, 8)}
	unrelated := &Client{userID: 8, state: StateInChat, peerID: 9, send: make(chan []byte, 8)}
	registry.Register(watching)
	registry.Register(unrelated)

	payload, _ := json.Marshal(&dto.EventDTO{
		Type: consts.EventPresenceChanged,
		Data: &dto.PresenceDTO{UserID: 7, Online: true},
	})
	if err := eventBus.Publish(context.Background(), consts.PresenceChannel, payload); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	if events := drain(t, watching, 200*time.Millisecond); len(events) != 1 || events[0].Type != consts.EventPresenceChanged {
		t.Errorf("会话对端状态变更应推送: %+v", events)
	}
	if events := drain(t, unrelated, 100*time.Millisecond); len(events) != 0 {
		t.Errorf("无关连接不应收到状态变更: %+v", events)
	}
}

func TestRouterIgnoresUnknownChannels(t *testing.T) {
	eventBus, registry, _ := newRouterFixture(t)

	c := &Client{userID: 5, state: StateAuthenticated, send: make(chan []byte, 8)}
	registry.Register(c)

	// 非法频道与非法用户段都被丢弃，不影响后续分发
	_ = eventBus.Publish(context.Background(), consts.IMUserKey+"not-a-number", []byte("{}"))

	payload, _ := json.Marshal(&dto.EventDTO{Type: consts.EventMessageReceived})
	_ = eventBus.Publish(context.Background(), consts.IMUserKey+"5", payload)

	events := drain(t, c, 200*time.Millisecond)
	if len(events) != 1 || events[0].Type != consts.EventMessageReceived {
		t.Errorf("正常事件应继续分发: %+v", events)
	}
}
