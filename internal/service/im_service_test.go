package service

import (
	"Magpie/internal/api/dto"
	"Magpie/internal/model"
	"Magpie/internal/pkg/bus"
	"Magpie/internal/pkg/consts"
	"Magpie/internal/pkg/mongo"
	"Magpie/internal/repository"
	"context"
	"errors"
	"sort"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
)

// ---- 内存假件 ----

type fakeChatRepo struct {
	mu     sync.Mutex
	pairs  map[string]*model.ChatPair
	nextID uint64

	markReadCalls [][2]uint64
	refreshCalls  []string
	unreadTotal   int64
}

func newFakeChatRepo() *fakeChatRepo {
	return &fakeChatRepo{pairs: make(map[string]*model.ChatPair)}
}

func (f *fakeChatRepo) AppendToPair(_ context.Context, senderID, recipientID uint64, preview string, msgType int8, at time.Time) (uint64, uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := repository.PairKeyOf(senderID, recipientID)
	pair, ok := f.pairs[key]
	if !ok {
		f.nextID++
		pair = &model.ChatPair{ID: f.nextID, PairKey: key}
		f.pairs[key] = pair
	}
	pair.MaxMsgSeq++
	pair.LastMsgContent = preview
	pair.LastMsgType = msgType
	pair.LastSenderID = senderID
	pair.LastMessageAt = at
	return pair.ID, pair.MaxMsgSeq, nil
}

func (f *fakeChatRepo) GetPair(_ context.Context, pairID uint64) (*model.ChatPair, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.pairs {
		if p.ID == pairID {
			return p, nil
		}
	}
	return nil, nil
}

func (f *fakeChatRepo) GetPairByUsers(_ context.Context, userA, userB uint64) (*model.ChatPair, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pairs[repository.PairKeyOf(userA, userB)], nil
}

func (f *fakeChatRepo) RefreshPreview(_ context.Context, _ uint64, content string, _ int8, _ uint64, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshCalls = append(f.refreshCalls, content)
	return nil
}

func (f *fakeChatRepo) MarkRead(_ context.Context, ownerID, peerID uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.markReadCalls = append(f.markReadCalls, [2]uint64{ownerID, peerID})
	return nil
}

func (f *fakeChatRepo) SetArchived(_ context.Context, _, _ uint64, _ bool) error { return nil }

func (f *fakeChatRepo) ListSummaries(_ context.Context, _ uint64) ([]*model.ChatSummary, error) {
	return nil, nil
}

func (f *fakeChatRepo) GetTotalUnreadCount(_ context.Context, _ uint64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.unreadTotal, nil
}

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[uint64]*model.User
}

func newFakeUserRepo(users ...*model.User) *fakeUserRepo {
	f := &fakeUserRepo{users: make(map[uint64]*model.User)}
	for _, u := range users {
		f.users[u.ID] = u
	}
	return f
}

func (f *fakeUserRepo) GetUserById(_ context.Context, id uint64) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.users[id], nil
}

func (f *fakeUserRepo) GetUserByIds(_ context.Context, ids []uint64) ([]*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	res := make([]*model.User, 0)
	for _, id := range ids {
		if u, ok := f.users[id]; ok {
			res = append(res, u)
		}
	}
	return res, nil
}

func (f *fakeUserRepo) GetUserByPhone(_ context.Context, _ string) (*model.User, error) {
	return nil, nil
}

func (f *fakeUserRepo) GetUserByPhoneSuffix(_ context.Context, _ string) (*model.User, error) {
	return nil, nil
}

func (f *fakeUserRepo) CreateUser(_ context.Context, _ *model.User) error { return nil }
func (f *fakeUserRepo) UpdateUser(_ context.Context, _ *model.User) error { return nil }
func (f *fakeUserRepo) UpdatePresence(_ context.Context, _ uint64, _ bool, _ time.Time) error {
	return nil
}
func (f *fakeUserRepo) DeleteUser(_ context.Context, _ uint64) error { return nil }

type fakeMessageRepo struct {
	mu        sync.Mutex
	msgs      map[string]*mongo.Message
	failSaves int
}

func newFakeMessageRepo() *fakeMessageRepo {
	return &fakeMessageRepo{msgs: make(map[string]*mongo.Message)}
}

func (f *fakeMessageRepo) SaveMessage(_ context.Context, msg *mongo.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSaves > 0 {
		f.failSaves--
		return errors.New("mongo unavailable")
	}
	clone := *msg
	f.msgs[msg.ID] = &clone
	return nil
}

func (f *fakeMessageRepo) GetMessage(_ context.Context, id string) (*mongo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	msg, ok := f.msgs[id]
	if !ok {
		return nil, mongo.ErrMessageNotFound
	}
	clone := *msg
	return &clone, nil
}

func (f *fakeMessageRepo) GetMessagesByIds(_ context.Context, ids []string) ([]*mongo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	res := make([]*mongo.Message, 0)
	for _, id := range ids {
		if msg, ok := f.msgs[id]; ok {
			clone := *msg
			res = append(res, &clone)
		}
	}
	return res, nil
}

func (f *fakeMessageRepo) ListMessages(_ context.Context, pairID uint64, limit int, before, after *time.Time) ([]*mongo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	res := make([]*mongo.Message, 0)
	for _, msg := range f.msgs {
		if msg.PairID != pairID || msg.IsDeleted {
			continue
		}
		if before != nil && !msg.CreatedAt.Before(*before) {
			continue
		}
		if after != nil && !msg.CreatedAt.After(*after) {
			continue
		}
		clone := *msg
		res = append(res, &clone)
	}
	sort.Slice(res, func(i, j int) bool {
		return res[i].Seq > res[j].Seq
	})
	if len(res) > limit {
		res = res[:limit]
	}
	return res, nil
}

func (f *fakeMessageRepo) GetMessageBySeq(_ context.Context, pairID uint64, seq uint64) (*mongo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, msg := range f.msgs {
		if msg.PairID == pairID && msg.Seq == seq {
			clone := *msg
			return &clone, nil
		}
	}
	return nil, mongo.ErrMessageNotFound
}

func (f *fakeMessageRepo) UpdateContent(_ context.Context, id string, content string) (*mongo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	msg, ok := f.msgs[id]
	if !ok {
		return nil, mongo.ErrMessageNotFound
	}
	msg.Content = content
	msg.IsEdited = true
	msg.UpdatedAt = time.Now()
	clone := *msg
	return &clone, nil
}

func (f *fakeMessageRepo) SoftDelete(_ context.Context, id string) (*mongo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	msg, ok := f.msgs[id]
	if !ok {
		return nil, mongo.ErrMessageNotFound
	}
	msg.IsDeleted = true
	msg.UpdatedAt = time.Now()
	clone := *msg
	return &clone, nil
}

func (f *fakeMessageRepo) PurgeDeletedBefore(_ context.Context, _ time.Time) (int64, error) {
	return 0, nil
}

func (f *fakeMessageRepo) HasMediaReference(_ context.Context, _ string) (bool, error) {
	return false, nil
}

func (f *fakeMessageRepo) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.msgs)
}

type fakeBus struct {
	mu     sync.Mutex
	events []bus.Event
}

func (f *fakeBus) Publish(_ context.Context, channel string, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, bus.Event{Channel: channel, Payload: payload})
	return nil
}

func (f *fakeBus) PSubscribe(_ context.Context, _ string) (bus.Subscription, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeBus) published() []bus.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	res := make([]bus.Event, len(f.events))
	copy(res, f.events)
	return res
}

// ---- 测试 ----

func newTestIMService(t *testing.T) (IMService, *fakeChatRepo, *fakeMessageRepo, *fakeBus) {
	t.Helper()
	chatRepo := newFakeChatRepo()
	userRepo := newFakeUserRepo(
		&model.User{ID: 1, Nickname: "阿贵"},
		&model.User{ID: 2, Nickname: "小芳"},
		&model.User{ID: 3, Nickname: "已注销", IsDelete: true},
	)
	messageRepo := newFakeMessageRepo()
	eventBus := &fakeBus{}
	svc := NewIMService(chatRepo, userRepo, messageRepo, eventBus)
	t.Cleanup(svc.Close)
	return svc, chatRepo, messageRepo, eventBus
}

func TestSendMessageValidation(t *testing.T) {
	svc, _, _, _ := newTestIMService(t)
	ctx := context.Background()

	cases := []struct {
		name string
		req  *dto.SendMessageReq
		want error
	}{
		{"给自己发消息", &dto.SendMessageReq{PeerID: 1, MsgType: consts.MsgTypeText, Content: "hi"}, ErrSelfMessage},
		{"空文本", &dto.SendMessageReq{PeerID: 2, MsgType: consts.MsgTypeText}, ErrEmptyContent},
		{"文件消息缺附件", &dto.SendMessageReq{PeerID: 2, MsgType: consts.MsgTypeFile}, ErrFilePayloadMissing},
		{"非法消息类型", &dto.SendMessageReq{PeerID: 2, MsgType: 99, Content: "hi"}, ErrParamInvalid},
		{"接收方不存在", &dto.SendMessageReq{PeerID: 404, MsgType: consts.MsgTypeText, Content: "hi"}, ErrUserNotFound},
		{"接收方已注销", &dto.SendMessageReq{PeerID: 3, MsgType: consts.MsgTypeText, Content: "hi"}, ErrUserNotFound},
	}
	for _, c := range cases {
		if _, err := svc.SendMessage(ctx, 1, c.req); !errors.Is(err, c.want) {
			t.Errorf("%s: err = %v, want %v", c.name, err, c.want)
		}
	}
}

func TestSendMessageAssignsIncreasingSeq(t *testing.T) {
	svc, _, messageRepo, _ := newTestIMService(t)
	ctx := context.Background()

	var lastSeq uint64
	for i := 0; i < 3; i++ {
		res, err := svc.SendMessage(ctx, 1, &dto.SendMessageReq{
			PeerID: 2, MsgType: consts.MsgTypeText, Content: "msg " + strconv.Itoa(i),
		})
		if err != nil {
			t.Fatalf("SendMessage: %v", err)
		}
		if res.Seq <= lastSeq {
			t.Fatalf("序号必须严格递增: got %d after %d", res.Seq, lastSeq)
		}
		lastSeq = res.Seq
	}

	// 反向发送仍在同一会话中定序
	res, err := svc.SendMessage(ctx, 2, &dto.SendMessageReq{
		PeerID: 1, MsgType: consts.MsgTypeText, Content: "回复",
	})
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if res.Seq != lastSeq+1 {
		t.Errorf("双向消息共用序号空间: got %d, want %d", res.Seq, lastSeq+1)
	}
	if messageRepo.count() != 4 {
		t.Errorf("消息明细落库数 = %d, want 4", messageRepo.count())
	}
}

func TestSendMessagePublishesToBothUsers(t *testing.T) {
	svc, _, _, eventBus := newTestIMService(t)

	if _, err := svc.SendMessage(context.Background(), 1, &dto.SendMessageReq{
		PeerID: 2, MsgType: consts.MsgTypeText, Content: "你好",
	}); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}

	events := eventBus.published()
	if len(events) != 2 {
		t.Fatalf("事件数 = %d, want 2", len(events))
	}
	channels := map[string]bool{}
	for _, evt := range events {
		channels[evt.Channel] = true
		var envelope dto.EventDTO
		if err := json.Unmarshal(evt.Payload, &envelope); err != nil {
			t.Fatalf("事件载荷无法解析: %v", err)
		}
		if envelope.Type != consts.EventMessageReceived {
			t.Errorf("事件类型 = %q, want %q", envelope.Type, consts.EventMessageReceived)
		}
	}
	// 双方个人频道各一条，发送方其他端依赖该事件同步
	if !channels[consts.IMUserKey+"1"] || !channels[consts.IMUserKey+"2"] {
		t.Errorf("事件频道不完整: %v", channels)
	}
}

func TestSendMessageRetriesMongoWrite(t *testing.T) {
	chatRepo := newFakeChatRepo()
	userRepo := newFakeUserRepo(&model.User{ID: 1}, &model.User{ID: 2})
	messageRepo := newFakeMessageRepo()
	messageRepo.failSaves = 1
	svc := NewIMService(chatRepo, userRepo, messageRepo, &fakeBus{})
	defer svc.Close()

	res, err := svc.SendMessage(context.Background(), 1, &dto.SendMessageReq{
		PeerID: 2, MsgType: consts.MsgTypeText, Content: "第一次写失败",
	})
	if err != nil {
		t.Fatalf("明细写入失败不应阻断发送: %v", err)
	}
	if res.Seq != 1 {
		t.Fatalf("seq = %d, want 1", res.Seq)
	}

	// 校准工作池应补齐这条消息
	deadline := time.Now().Add(3 * time.Second)
	for messageRepo.count() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("校准重试超时，消息未补齐")
		}
		time.Sleep(20 * time.Millisecond)
	}
	if _, err = messageRepo.GetMessage(context.Background(), res.ID); err != nil {
		t.Fatalf("补齐后的消息应能按预生成 ID 查到: %v", err)
	}
}

func TestGetChatHistoryAscendingWithHasMore(t *testing.T) {
	svc, _, _, _ := newTestIMService(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, err := svc.SendMessage(ctx, 1, &dto.SendMessageReq{
			PeerID: 2, MsgType: consts.MsgTypeText, Content: "m" + strconv.Itoa(i),
		}); err != nil {
			t.Fatalf("SendMessage: %v", err)
		}
	}

	history, err := svc.GetChatHistory(ctx, 2, 1, 3, nil, nil)
	if err != nil {
		t.Fatalf("GetChatHistory: %v", err)
	}
	if !history.HasMore {
		t.Error("还有更旧的消息时 has_more 应为 true")
	}
	if len(history.Messages) != 3 {
		t.Fatalf("消息数 = %d, want 3", len(history.Messages))
	}
	for i := 1; i < len(history.Messages); i++ {
		if history.Messages[i].Seq <= history.Messages[i-1].Seq {
			t.Fatal("历史消息必须升序返回")
		}
	}
	// 最新一页从末尾取
	if history.Messages[2].Seq != 5 {
		t.Errorf("最后一条 seq = %d, want 5", history.Messages[2].Seq)
	}
}

func TestGetChatHistoryExactPageNoMore(t *testing.T) {
	svc, _, _, _ := newTestIMService(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := svc.SendMessage(ctx, 1, &dto.SendMessageReq{
			PeerID: 2, MsgType: consts.MsgTypeText, Content: "m" + strconv.Itoa(i),
		}); err != nil {
			t.Fatalf("SendMessage: %v", err)
		}
	}

	// 恰好取满整页且没有更旧的消息
	history, err := svc.GetChatHistory(ctx, 2, 1, 3, nil, nil)
	if err != nil {
		t.Fatalf("GetChatHistory: %v", err)
	}
	if len(history.Messages) != 3 {
		t.Fatalf("消息数 = %d, want 3", len(history.Messages))
	}
	if history.HasMore {
		t.Error("页取满但已无后续时 has_more 应为 false")
	}
}

func TestGetChatHistoryHealsPendingNewest(t *testing.T) {
	svc, _, messageRepo, _ := newTestIMService(t)
	ctx := context.Background()

	if _, err := svc.SendMessage(ctx, 1, &dto.SendMessageReq{
		PeerID: 2, MsgType: consts.MsgTypeText, Content: "已落库",
	}); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}

	// 最新一条明细写不进去，停留在校准队列
	messageRepo.mu.Lock()
	messageRepo.failSaves = 10
	messageRepo.mu.Unlock()

	sent, err := svc.SendMessage(ctx, 1, &dto.SendMessageReq{
		PeerID: 2, MsgType: consts.MsgTypeText, Content: "明细未落库",
	})
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}

	history, err := svc.GetChatHistory(ctx, 2, 1, 50, nil, nil)
	if err != nil {
		t.Fatalf("GetChatHistory: %v", err)
	}
	if len(history.Messages) != 2 {
		t.Fatalf("消息数 = %d, want 2", len(history.Messages))
	}
	// 缺失的最新一条由定序行的预览列兜底
	healed := history.Messages[1]
	if healed.Seq != sent.Seq || healed.SenderID != 1 || healed.RecipientID != 2 {
		t.Errorf("兜底消息定位不正确: %+v", healed)
	}
	if healed.Content != "明细未落库" {
		t.Errorf("兜底消息内容 = %q, want %q", healed.Content, "明细未落库")
	}
}

func TestGetChatHistoryNoPair(t *testing.T) {
	svc, _, _, _ := newTestIMService(t)
	history, err := svc.GetChatHistory(context.Background(), 1, 2, 50, nil, nil)
	if err != nil {
		t.Fatalf("GetChatHistory: %v", err)
	}
	if len(history.Messages) != 0 || history.HasMore {
		t.Error("从未聊过的两人应返回空历史")
	}
}

func TestReplyResolution(t *testing.T) {
	svc, _, _, _ := newTestIMService(t)
	ctx := context.Background()

	first, err := svc.SendMessage(ctx, 1, &dto.SendMessageReq{
		PeerID: 2, MsgType: consts.MsgTypeText, Content: "原始消息",
	})
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}

	reply, err := svc.SendMessage(ctx, 2, &dto.SendMessageReq{
		PeerID: 1, MsgType: consts.MsgTypeText, Content: "这是回复", ReplyTo: first.ID,
	})
	if err != nil {
		t.Fatalf("回复发送失败: %v", err)
	}
	if reply.ReplyPreview == nil || reply.ReplyPreview.ID != first.ID {
		t.Error("回复消息应携带被回复摘要")
	}

	// 引用不存在的消息
	if _, err = svc.SendMessage(ctx, 1, &dto.SendMessageReq{
		PeerID: 2, MsgType: consts.MsgTypeText, Content: "x", ReplyTo: "missing",
	}); !errors.Is(err, ErrMessageNotFound) {
		t.Errorf("引用缺失消息 err = %v, want %v", err, ErrMessageNotFound)
	}
}

func TestEditMessageOwnership(t *testing.T) {
	svc, _, _, _ := newTestIMService(t)
	ctx := context.Background()

	msg, err := svc.SendMessage(ctx, 1, &dto.SendMessageReq{
		PeerID: 2, MsgType: consts.MsgTypeText, Content: "打错字了",
	})
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}

	// 非发送者不能编辑
	if _, err = svc.EditMessage(ctx, 2, msg.ID, "篡改"); !errors.Is(err, ErrMessageForbidden) {
		t.Errorf("err = %v, want %v", err, ErrMessageForbidden)
	}

	updated, err := svc.EditMessage(ctx, 1, msg.ID, "改好了")
	if err != nil {
		t.Fatalf("EditMessage: %v", err)
	}
	if updated.Content != "改好了" || !updated.IsEdited {
		t.Errorf("编辑结果不正确: %+v", updated)
	}
}

func TestDeleteMessageClearsContent(t *testing.T) {
	svc, chatRepo, messageRepo, eventBus := newTestIMService(t)
	ctx := context.Background()

	msg, err := svc.SendMessage(ctx, 1, &dto.SendMessageReq{
		PeerID: 2, MsgType: consts.MsgTypeText, Content: "发错人了",
	})
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}

	if err = svc.DeleteMessage(ctx, 1, msg.ID); err != nil {
		t.Fatalf("DeleteMessage: %v", err)
	}

	stored, err := messageRepo.GetMessage(ctx, msg.ID)
	if err != nil {
		t.Fatalf("GetMessage: %v", err)
	}
	if !stored.IsDeleted {
		t.Error("消息应被打上删除标记")
	}

	// 撤回后重复操作视为消息不存在
	if err = svc.DeleteMessage(ctx, 1, msg.ID); !errors.Is(err, ErrMessageNotFound) {
		t.Errorf("err = %v, want %v", err, ErrMessageNotFound)
	}

	// 撤回的是最新一条，会话预览应回填占位文案
	chatRepo.mu.Lock()
	refreshed := append([]string(nil), chatRepo.refreshCalls...)
	chatRepo.mu.Unlock()
	if len(refreshed) == 0 || refreshed[len(refreshed)-1] != consts.DeletedMsgPlaceholder {
		t.Errorf("预览回填 = %v, want %q", refreshed, consts.DeletedMsgPlaceholder)
	}

	// 下行事件不携带原文
	events := eventBus.published()
	last := events[len(events)-1]
	var envelope struct {
		Type string          `json:"type"`
		Data *dto.MessageDTO `json:"data"`
	}
	if err = json.Unmarshal(last.Payload, &envelope); err != nil {
		t.Fatalf("事件载荷无法解析: %v", err)
	}
	if envelope.Type != consts.EventMessageUpdated || envelope.Data.Content != "" {
		t.Errorf("撤回事件泄露了原文: %+v", envelope)
	}

	// 历史查询不再返回已删除消息
	history, err := svc.GetChatHistory(ctx, 2, 1, 50, nil, nil)
	if err != nil {
		t.Fatalf("GetChatHistory: %v", err)
	}
	for _, m := range history.Messages {
		if m.ID == msg.ID {
			t.Error("已删除的消息不应出现在历史中")
		}
	}
}

func TestMarkAsReadDelegates(t *testing.T) {
	svc, chatRepo, _, _ := newTestIMService(t)

	if err := svc.MarkAsRead(context.Background(), 2, 1); err != nil {
		t.Fatalf("MarkAsRead: %v", err)
	}
	// 幂等，重复调用不报错
	if err := svc.MarkAsRead(context.Background(), 2, 1); err != nil {
		t.Fatalf("MarkAsRead twice: %v", err)
	}

	chatRepo.mu.Lock()
	defer chatRepo.mu.Unlock()
	if len(chatRepo.markReadCalls) != 2 || chatRepo.markReadCalls[0] != [2]uint64{2, 1} {
		t.Errorf("MarkRead 调用记录不正确: %v", chatRepo.markReadCalls)
	}
}

func TestPreviewTruncation(t *testing.T) {
	long := make([]rune, 0, consts.PreviewMaxLen+10)
	for i := 0; i < consts.PreviewMaxLen+10; i++ {
		long = append(long, '字')
	}
	got := truncatePreview(string(long))
	if len([]rune(got)) != consts.PreviewMaxLen+3 {
		t.Errorf("截断后长度 = %d", len([]rune(got)))
	}

	short := "短消息"
	if truncatePreview(short) != short {
		t.Error("短内容不应被截断")
	}
}
