package chat

import (
	"Magpie/internal/api/dto"
	"Magpie/internal/pkg/consts"
	magpieredis "Magpie/internal/pkg/redis"
	"Magpie/internal/pkg/security"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	goredis "github.com/redis/go-redis/v9"
)

// fakeIMService 记录调用的消息服务假件
type fakeIMService struct {
	mu            sync.Mutex
	sendCalls     []*dto.SendMessageReq
	markReadCalls [][2]uint64
	sendErr       error
}

func (f *fakeIMService) SendMessage(_ context.Context, _ uint64, req *dto.SendMessageReq) (*dto.MessageDTO, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	f.sendCalls = append(f.sendCalls, req)
	return &dto.MessageDTO{ID: "m1", Seq: uint64(len(f.sendCalls))}, nil
}

func (f *fakeIMService) GetChatHistory(_ context.Context, _, _ uint64, _ int, _, _ *time.Time) (*dto.HistoryDTO, error) {
	return &dto.HistoryDTO{}, nil
}

func (f *fakeIMService) EditMessage(_ context.Context, _ uint64, _ string, _ string) (*dto.MessageDTO, error) {
	return nil, nil
}

func (f *fakeIMService) DeleteMessage(_ context.Context, _ uint64, _ string) error { return nil }

func (f *fakeIMService) MarkAsRead(_ context.Context, userID, peerID uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.markReadCalls = append(f.markReadCalls, [2]uint64{userID, peerID})
	return nil
}

func (f *fakeIMService) GetChatList(_ context.Context, _ uint64) ([]*dto.ChatSummaryDTO, error) {
	return nil, nil
}

func (f *fakeIMService) ArchiveChat(_ context.Context, _, _ uint64, _ bool) error { return nil }
func (f *fakeIMService) GetTotalUnread(_ context.Context, _ uint64) (int64, error) {
	return 0, nil
}
func (f *fakeIMService) Close() {}

func newTestHub(imService *fakeIMService) *Hub {
	eventBus := &recordBus{}
	return &Hub{
		registry:   NewRegistry(20*time.Millisecond, &recordUserRepo{}, eventBus),
		typing:     NewTypingTracker(time.Second, eventBus),
		imService:  imService,
		sendBuffer: 16,
	}
}

// readEvent 从下行队列取一条事件并解信封
func readEvent(t *testing.T, c *Client) *dto.EventDTO {
	t.Helper()
	select {
	case payload := <-c.send:
		var envelope dto.EventDTO
		if err := json.Unmarshal(payload, &envelope); err != nil {
			t.Fatalf("下行事件无法解析: %v", err)
		}
		return &envelope
	case <-time.After(time.Second):
		t.Fatal("等待下行事件超时")
		return nil
	}
}

func inbound(t *testing.T, eventType string, data any) []byte {
	t.Helper()
	var raw json.RawMessage
	if data != nil {
		b, err := json.Marshal(data)
		if err != nil {
			t.Fatalf("构造事件失败: %v", err)
		}
		raw = b
	}
	payload, err := json.Marshal(&InboundEvent{Type: eventType, Data: raw})
	if err != nil {
		t.Fatalf("构造事件失败: %v", err)
	}
	return payload
}

// 黑名单查询在测试中打不通 Redis，查询失败按未注销放行
func stubRedis(t *testing.T) {
	t.Helper()
	old := magpieredis.Rdb
	magpieredis.Rdb = goredis.NewClient(&goredis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() {
		magpieredis.Rdb = old
	})
}

func TestMalformedEventKeepsState(t *testing.T) {
	hub := newTestHub(&fakeIMService{})
	c := newClient(hub, nil, hub.sendBuffer)

	c.handleEvent([]byte("{not json"))

	evt := readEvent(t, c)
	if evt.Type != EventError {
		t.Errorf("事件类型 = %q, want %q", evt.Type, EventError)
	}
	if c.State() != StateConnected {
		t.Error("非法载荷不应改变会话状态")
	}
}

func TestUnknownEventType(t *testing.T) {
	hub := newTestHub(&fakeIMService{})
	c := newClient(hub, nil, hub.sendBuffer)

	c.handleEvent(inbound(t, "teleport", nil))

	if evt := readEvent(t, c); evt.Type != EventError {
		t.Errorf("事件类型 = %q, want %q", evt.Type, EventError)
	}
	if c.State() != StateConnected {
		t.Error("未知事件不应改变会话状态")
	}
}

func TestAuthFailureKeepsConnection(t *testing.T) {
	hub := newTestHub(&fakeIMService{})
	c := newClient(hub, nil, hub.sendBuffer)

	c.handleEvent(inbound(t, EventAuthenticate, &AuthPayload{Token: "bogus.token.value"}))

	if evt := readEvent(t, c); evt.Type != EventAuthFailed {
		t.Errorf("事件类型 = %q, want %q", evt.Type, EventAuthFailed)
	}
	if c.State() != StateConnected {
		t.Error("认证失败应保持连接并允许重试")
	}

	// 缺失凭据同样只回失败事件
	c.handleEvent(inbound(t, EventAuthenticate, &AuthPayload{}))
	if evt := readEvent(t, c); evt.Type != EventAuthFailed {
		t.Errorf("事件类型 = %q, want %q", evt.Type, EventAuthFailed)
	}
}

func TestAuthenticateThenJoinChat(t *testing.T) {
	stubRedis(t)
	imService := &fakeIMService{}
	hub := newTestHub(imService)
	c := newClient(hub, nil, hub.sendBuffer)

	token, err := security.GenerateToken(7)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	c.handleEvent(inbound(t, EventAuthenticate, &AuthPayload{Token: token}))

	if evt := readEvent(t, c); evt.Type != EventAuthenticated {
		t.Fatalf("事件类型 = %q, want %q", evt.Type, EventAuthenticated)
	}
	if c.State() != StateAuthenticated || c.UserID() != 7 {
		t.Fatalf("认证后状态不正确: state=%d uid=%d", c.State(), c.UserID())
	}
	if !hub.registry.IsOnline(7) {
		t.Error("认证后应登记到在线注册表")
	}

	c.handleEvent(inbound(t, EventJoinChat, &JoinChatPayload{PeerID: 8}))

	// 进入会话即回推对端在线状态快照
	if evt := readEvent(t, c); evt.Type != consts.EventPresenceChanged {
		t.Errorf("事件类型 = %q, want %q", evt.Type, consts.EventPresenceChanged)
	}
	if c.State() != StateInChat || !c.ChattingWith(8) {
		t.Error("join_chat 后应进入会话状态")
	}

	// 进入会话自动清零未读
	imService.mu.Lock()
	defer imService.mu.Unlock()
	if len(imService.markReadCalls) != 1 || imService.markReadCalls[0] != [2]uint64{7, 8} {
		t.Errorf("MarkAsRead 调用记录不正确: %v", imService.markReadCalls)
	}
}

func TestJoinChatRequiresAuth(t *testing.T) {
	hub := newTestHub(&fakeIMService{})
	c := newClient(hub, nil, hub.sendBuffer)

	c.handleEvent(inbound(t, EventJoinChat, &JoinChatPayload{PeerID: 8}))

	if evt := readEvent(t, c); evt.Type != EventError {
		t.Errorf("事件类型 = %q, want %q", evt.Type, EventError)
	}
	if c.State() != StateConnected {
		t.Error("未认证的 join_chat 不应改变状态")
	}
}

func TestSendMessageRequiresJoin(t *testing.T) {
	stubRedis(t)
	imService := &fakeIMService{}
	hub := newTestHub(imService)
	c := newClient(hub, nil, hub.sendBuffer)

	token, err := security.GenerateToken(7)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	c.handleEvent(inbound(t, EventAuthenticate, &AuthPayload{Token: token}))
	readEvent(t, c) // authenticated

	c.handleEvent(inbound(t, EventSendMessage, &dto.SendMessageReq{
		PeerID: 8, MsgType: consts.MsgTypeText, Content: "hi",
	}))

	if evt := readEvent(t, c); evt.Type != EventError {
		t.Errorf("事件类型 = %q, want %q", evt.Type, EventError)
	}
	imService.mu.Lock()
	defer imService.mu.Unlock()
	if len(imService.sendCalls) != 0 {
		t.Error("未进入会话不应触达消息服务")
	}
}

func TestSendMessageTargetMustMatchChat(t *testing.T) {
	stubRedis(t)
	imService := &fakeIMService{}
	hub := newTestHub(imService)
	c := newClient(hub, nil, hub.sendBuffer)

	token, err := security.GenerateToken(7)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	c.handleEvent(inbound(t, EventAuthenticate, &AuthPayload{Token: token}))
	readEvent(t, c) // authenticated
	c.handleEvent(inbound(t, EventJoinChat, &JoinChatPayload{PeerID: 8}))
	readEvent(t, c) // presence snapshot

	// 目标与当前会话不符
	c.handleEvent(inbound(t, EventSendMessage, &dto.SendMessageReq{
		PeerID: 9, MsgType: consts.MsgTypeText, Content: "错发",
	}))
	if evt := readEvent(t, c); evt.Type != EventError {
		t.Errorf("事件类型 = %q, want %q", evt.Type, EventError)
	}

	// 省略 peer_id 时默认当前会话对端
	c.handleEvent(inbound(t, EventSendMessage, &dto.SendMessageReq{
		MsgType: consts.MsgTypeText, Content: "正常消息",
	}))

	imService.mu.Lock()
	defer imService.mu.Unlock()
	if len(imService.sendCalls) != 1 || imService.sendCalls[0].PeerID != 8 {
		t.Fatalf("消息服务调用记录不正确: %+v", imService.sendCalls)
	}
}

func TestEnqueueAfterShutdownDropped(t *testing.T) {
	hub := newTestHub(&fakeIMService{})
	c := newClient(hub, nil, hub.sendBuffer)
	c.mu.Lock()
	c.userID = 7
	c.state = StateAuthenticated
	c.mu.Unlock()
	hub.registry.Register(c)

	// 分发方先取连接快照，连接随后收尾
	conns := hub.registry.ConnectionsFor(7)
	if len(conns) != 1 {
		t.Fatalf("连接快照数 = %d, want 1", len(conns))
	}
	c.shutdown()

	// 快照里的连接已收尾，入队只能丢弃，不得写已关闭的通道
	if conns[0].enqueue([]byte(`{"type":"message_received"}`)) {
		t.Error("收尾后的连接入队应返回失败")
	}
	if c.State() != StateDisconnected {
		t.Error("收尾后应处于断开状态")
	}
	// 重复收尾幂等
	c.shutdown()
}

func TestTypingStopsAfterSend(t *testing.T) {
	stubRedis(t)
	imService := &fakeIMService{}
	hub := newTestHub(imService)
	c := newClient(hub, nil, hub.sendBuffer)

	token, err := security.GenerateToken(7)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	c.handleEvent(inbound(t, EventAuthenticate, &AuthPayload{Token: token}))
	readEvent(t, c)
	c.handleEvent(inbound(t, EventJoinChat, &JoinChatPayload{PeerID: 8}))
	readEvent(t, c)

	c.handleEvent(inbound(t, EventTypingStart, nil))
	if !hub.typing.IsTyping(7, 8) {
		t.Fatal("typing_start 后应处于输入状态")
	}

	c.handleEvent(inbound(t, EventSendMessage, &dto.SendMessageReq{
		MsgType: consts.MsgTypeText, Content: "发出去了",
	}))
	if hub.typing.IsTyping(7, 8) {
		t.Error("发送成功应熄灭输入状态")
	}
}
