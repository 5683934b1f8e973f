package chat

import (
	"Magpie/internal/api/dto"
	"Magpie/internal/model"
	"Magpie/internal/pkg/bus"
	"Magpie/internal/pkg/consts"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
)

// recordBus 只记录发布的总线假件
type recordBus struct {
	mu     sync.Mutex
	events []bus.Event
}

func (f *recordBus) Publish(_ context.Context, channel string, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, bus.Event{Channel: channel, Payload: payload})
	return nil
}

func (f *recordBus) PSubscribe(_ context.Context, _ string) (bus.Subscription, error) {
	return nil, errors.New("not implemented")
}

func (f *recordBus) published() []bus.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	res := make([]bus.Event, len(f.events))
	copy(res, f.events)
	return res
}

// presenceEvents 过滤出在线状态变更，按发布顺序返回
func (f *recordBus) presenceEvents(t *testing.T) []*dto.PresenceDTO {
	t.Helper()
	res := make([]*dto.PresenceDTO, 0)
	for _, evt := range f.published() {
		if evt.Channel != consts.PresenceChannel {
			continue
		}
		var envelope struct {
			Type string           `json:"type"`
			Data *dto.PresenceDTO `json:"data"`
		}
		if err := json.Unmarshal(evt.Payload, &envelope); err != nil {
			t.Fatalf("在线状态事件无法解析: %v", err)
		}
		res = append(res, envelope.Data)
	}
	return res
}

// recordUserRepo 记录在线状态落库调用
type recordUserRepo struct {
	mu       sync.Mutex
	presence []bool
}

func (f *recordUserRepo) GetUserById(_ context.Context, _ uint64) (*model.User, error) {
	return nil, nil
}
func (f *recordUserRepo) GetUserByIds(_ context.Context, _ []uint64) ([]*model.User, error) {
	return nil, nil
}
func (f *recordUserRepo) GetUserByPhone(_ context.Context, _ string) (*model.User, error) {
	return nil, nil
}
func (f *recordUserRepo) GetUserByPhoneSuffix(_ context.Context, _ string) (*model.User, error) {
	return nil, nil
}
func (f *recordUserRepo) CreateUser(_ context.Context, _ *model.User) error { return nil }
func (f *recordUserRepo) UpdateUser(_ context.Context, _ *model.User) error { return nil }
func (f *recordUserRepo) UpdatePresence(_ context.Context, _ uint64, online bool, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.presence = append(f.presence, online)
	return nil
}
func (f *recordUserRepo) DeleteUser(_ context.Context, _ uint64) error { return nil }

func TestRegistryOnlineOffline(t *testing.T) {
	eventBus := &recordBus{}
	userRepo := &recordUserRepo{}
	registry := NewRegistry(20*time.Millisecond, userRepo, eventBus)

	c := &Client{userID: 1, send: make(chan []byte, 8)}
	registry.Register(c)

	if !registry.IsOnline(1) {
		t.Fatal("注册后用户应在线")
	}
	events := eventBus.presenceEvents(t)
	if len(events) != 1 || !events[0].Online || events[0].UserID != 1 {
		t.Fatalf("上线事件不正确: %+v", events)
	}

	registry.Unregister(c)
	// 宽限期内状态仍为在线视角之外，但不应有下线广播
	if got := eventBus.presenceEvents(t); len(got) != 1 {
		t.Fatalf("宽限期内不应广播下线: %+v", got)
	}

	// 宽限期过后才广播下线
	deadline := time.Now().Add(time.Second)
	for {
		events = eventBus.presenceEvents(t)
		if len(events) == 2 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("下线事件超时未发布")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if events[1].Online || events[1].UserID != 1 {
		t.Fatalf("下线事件不正确: %+v", events[1])
	}
}

func TestRegistryGraceSuppressesFlap(t *testing.T) {
	eventBus := &recordBus{}
	registry := NewRegistry(50*time.Millisecond, &recordUserRepo{}, eventBus)

	c1 := &Client{userID: 1, send: make(chan []byte, 8)}
	registry.Register(c1)
	registry.Unregister(c1)

	// 宽限期内重连，下线不应对外可见
	c2 := &Client{userID: 1, send: make(chan []byte, 8)}
	registry.Register(c2)

	time.Sleep(150 * time.Millisecond)
	events := eventBus.presenceEvents(t)
	if len(events) != 1 {
		t.Fatalf("断线重连只应有一条上线事件: %+v", events)
	}
	if !registry.IsOnline(1) {
		t.Error("重连后用户应在线")
	}
}

func TestRegistryMultipleConnections(t *testing.T) {
	eventBus := &recordBus{}
	registry := NewRegistry(20*time.Millisecond, &recordUserRepo{}, eventBus)

	c1 := &Client{userID: 1, send: make(chan []byte, 8)}
	c2 := &Client{userID: 1, send: make(chan []byte, 8)}
	registry.Register(c1)
	registry.Register(c2)

	if len(eventBus.presenceEvents(t)) != 1 {
		t.Fatal("同一用户的第二条连接不应重复广播上线")
	}
	if got := len(registry.ConnectionsFor(1)); got != 2 {
		t.Fatalf("连接数 = %d, want 2", got)
	}

	// 还有一条连接存活，不进入宽限期
	registry.Unregister(c1)
	time.Sleep(80 * time.Millisecond)
	if !registry.IsOnline(1) {
		t.Error("仍有连接时用户应保持在线")
	}
	if len(eventBus.presenceEvents(t)) != 1 {
		t.Error("仍有连接时不应广播下线")
	}
}
