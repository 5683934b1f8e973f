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
	"fmt"
	log "log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/goccy/go-json"
)

// IMService 即时通讯服务接口定义
type IMService interface {
	SendMessage(ctx context.Context, senderID uint64, req *dto.SendMessageReq) (*dto.MessageDTO, error)
	GetChatHistory(ctx context.Context, userID, peerID uint64, limit int, before, after *time.Time) (*dto.HistoryDTO, error)
	EditMessage(ctx context.Context, userID uint64, messageID string, content string) (*dto.MessageDTO, error)
	DeleteMessage(ctx context.Context, userID uint64, messageID string) error
	MarkAsRead(ctx context.Context, userID, peerID uint64) error
	GetChatList(ctx context.Context, userID uint64) ([]*dto.ChatSummaryDTO, error)
	ArchiveChat(ctx context.Context, userID, peerID uint64, archived bool) error
	GetTotalUnread(ctx context.Context, userID uint64) (int64, error)
	Close()
}

type imServiceImpl struct {
	chatRepo    repository.ChatRepo
	userRepo    repository.UserRepo
	messageRepo mongo.MessageRepo
	eventBus    bus.Bus
	pairLocks   sync.Map
	retryChan   chan *mongo.Message
	wg          sync.WaitGroup
	stopChan    chan struct{}
}

// NewIMService 构造函数：初始化服务并启动异步校准工作池
func NewIMService(chatRepo repository.ChatRepo, userRepo repository.UserRepo, messageRepo mongo.MessageRepo, eventBus bus.Bus) IMService {
	s := &imServiceImpl{
		chatRepo:    chatRepo,
		userRepo:    userRepo,
		messageRepo: messageRepo,
		eventBus:    eventBus,
		retryChan:   make(chan *mongo.Message, 2048),
		stopChan:    make(chan struct{}),
	}

	workerCount := 5
	s.wg.Add(workerCount)
	for i := 0; i < workerCount; i++ {
		go s.calibrationWorker()
	}

	return s
}

// SendMessage 发送消息
// 同一会话持锁执行定序与发布，保证推送顺序与落库顺序一致
func (s *imServiceImpl) SendMessage(ctx context.Context, senderID uint64, req *dto.SendMessageReq) (*dto.MessageDTO, error) {
	if req.PeerID == senderID {
		return nil, ErrSelfMessage
	}
	if err := s.validateContent(req); err != nil {
		return nil, err
	}

	peer, err := s.userRepo.GetUserById(ctx, req.PeerID)
	if err != nil {
		return nil, err
	}
	if peer == nil || peer.IsDelete {
		return nil, ErrUserNotFound
	}

	var replyPreview *dto.ReplyPreview
	if req.ReplyTo != "" {
		replyPreview, err = s.resolveReply(ctx, senderID, req.PeerID, req.ReplyTo)
		if err != nil {
			return nil, err
		}
	}

	now := time.Now()
	preview := s.previewOf(req)

	lock := s.lockOfPair(repository.PairKeyOf(senderID, req.PeerID))
	lock.Lock()
	defer lock.Unlock()

	// MySQL 原子定序 + 双摘要
	pairID, newSeq, err := s.chatRepo.AppendToPair(ctx, senderID, req.PeerID, preview, int8(req.MsgType), now)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicatePair) {
			return nil, ErrWriteConflict
		}
		return nil, err
	}

	msgModel := &mongo.Message{
		ID:          mongo.NewMessageID(),
		PairID:      pairID,
		SenderID:    senderID,
		RecipientID: req.PeerID,
		MsgType:     req.MsgType,
		Content:     req.Content,
		Payload:     toMongoPayload(req.Payload),
		Seq:         newSeq,
		ReplyTo:     req.ReplyTo,
		CreatedAt:   now,
	}

	writeCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := s.messageRepo.SaveMessage(writeCtx, msgModel); err != nil {
		select {
		case s.retryChan <- msgModel:
		default:
			log.Error("消息校准队列已满，丢弃重试", "message_id", msgModel.ID)
		}
	}

	res := s.toMessageDTO(msgModel)
	res.ReplyPreview = replyPreview

	// 推送到双方的【用户个人频道】，发送方其他端同步
	s.publishEvent(consts.EventMessageReceived, res, req.PeerID, senderID)

	return res, nil
}

func (s *imServiceImpl) validateContent(req *dto.SendMessageReq) error {
	switch req.MsgType {
	case consts.MsgTypeText:
		if req.Content == "" {
			return ErrEmptyContent
		}
	case consts.MsgTypeFile:
		if req.Payload == nil || req.Payload.MediaURL == "" {
			return ErrFilePayloadMissing
		}
	default:
		return ErrParamInvalid
	}
	return nil
}

// resolveReply 校验被回复消息存在且属于当前会话双方
func (s *imServiceImpl) resolveReply(ctx context.Context, senderID, peerID uint64, replyTo string) (*dto.ReplyPreview, error) {
	msg, err := s.messageRepo.GetMessage(ctx, replyTo)
	if errors.Is(err, mongo.ErrMessageNotFound) {
		return nil, ErrMessageNotFound
	}
	if err != nil {
		return nil, err
	}
	sameChat := (msg.SenderID == senderID && msg.RecipientID == peerID) ||
		(msg.SenderID == peerID && msg.RecipientID == senderID)
	if !sameChat || msg.IsDeleted {
		return nil, ErrMessageNotFound
	}
	return &dto.ReplyPreview{
		ID:       msg.ID,
		SenderID: msg.SenderID,
		Content:  msg.Content,
		MsgType:  msg.MsgType,
	}, nil
}

// GetChatHistory 按时间游标拉取历史，结果升序返回
func (s *imServiceImpl) GetChatHistory(ctx context.Context, userID, peerID uint64, limit int, before, after *time.Time) (*dto.HistoryDTO, error) {
	pair, err := s.chatRepo.GetPairByUsers(ctx, userID, peerID)
	if err != nil {
		return nil, err
	}
	if pair == nil {
		return &dto.HistoryDTO{Messages: []*dto.MessageDTO{}}, nil
	}

	// 多取一条判断是否还有更多，取满整页且无后续时 has_more 为 false
	models, err := s.messageRepo.ListMessages(ctx, pair.ID, limit+1, before, after)
	if err != nil {
		return nil, err
	}

	hasMore := false
	if len(models) > limit {
		hasMore = true
		models = models[:limit]
	}

	// 翻转为时间升序
	res := make([]*dto.MessageDTO, 0, len(models))
	for i := len(models) - 1; i >= 0; i-- {
		res = append(res, s.toMessageDTO(models[i]))
	}

	// 最新一条明细可能仍在校准途中，从会话预览兜底补齐
	// 仅当请求的是触及最新位置的页，中段分页不做拼接
	if before == nil && !(after != nil && hasMore) && pair.MaxMsgSeq > 0 {
		var newestSeq uint64
		if len(res) > 0 {
			newestSeq = res[len(res)-1].Seq
		}
		if newestSeq < pair.MaxMsgSeq {
			if healed := s.healNewestMessage(ctx, pair, userID, peerID); healed != nil {
				res = append(res, healed)
				if len(res) > limit {
					res = res[1:]
					hasMore = true
				}
			}
		}
	}

	if err = s.attachReplyPreviews(ctx, res); err != nil {
		log.Warn("回复摘要装配失败", "err", err)
	}

	return &dto.HistoryDTO{Messages: res, HasMore: hasMore}, nil
}

// healNewestMessage 按会话最大序号精确查明细
// 明细已落库则直接采用，未落库时用定序行的预览列构造占位消息
func (s *imServiceImpl) healNewestMessage(ctx context.Context, pair *model.ChatPair, userID, peerID uint64) *dto.MessageDTO {
	msg, err := s.messageRepo.GetMessageBySeq(ctx, pair.ID, pair.MaxMsgSeq)
	if err == nil {
		if msg.IsDeleted {
			return nil
		}
		return s.toMessageDTO(msg)
	}
	if !errors.Is(err, mongo.ErrMessageNotFound) {
		log.Warn("历史兜底查询失败", "pair_id", pair.ID, "seq", pair.MaxMsgSeq, "err", err)
		return nil
	}

	recipientID := userID
	if pair.LastSenderID == userID {
		recipientID = peerID
	}
	return &dto.MessageDTO{
		PairID:      pair.ID,
		SenderID:    pair.LastSenderID,
		RecipientID: recipientID,
		MsgType:     int(pair.LastMsgType),
		Content:     pair.LastMsgContent,
		Seq:         pair.MaxMsgSeq,
		CreatedAt:   pair.LastMessageAt,
	}
}

// attachReplyPreviews 批量装配被回复消息的摘要
func (s *imServiceImpl) attachReplyPreviews(ctx context.Context, messages []*dto.MessageDTO) error {
	ids := make([]string, 0)
	for _, m := range messages {
		if m.ReplyTo != "" {
			ids = append(ids, m.ReplyTo)
		}
	}
	if len(ids) == 0 {
		return nil
	}

	replies, err := s.messageRepo.GetMessagesByIds(ctx, ids)
	if err != nil {
		return err
	}
	replyMap := make(map[string]*mongo.Message, len(replies))
	for _, r := range replies {
		replyMap[r.ID] = r
	}

	for _, m := range messages {
		if m.ReplyTo == "" {
			continue
		}
		r, ok := replyMap[m.ReplyTo]
		if !ok || r.IsDeleted {
			continue
		}
		m.ReplyPreview = &dto.ReplyPreview{
			ID:       r.ID,
			SenderID: r.SenderID,
			Content:  r.Content,
			MsgType:  r.MsgType,
		}
	}
	return nil
}

// EditMessage 编辑消息正文，仅发送者可操作
func (s *imServiceImpl) EditMessage(ctx context.Context, userID uint64, messageID string, content string) (*dto.MessageDTO, error) {
	if content == "" {
		return nil, ErrEmptyContent
	}

	msg, err := s.getOwnMessage(ctx, userID, messageID)
	if err != nil {
		return nil, err
	}
	if msg.MsgType != consts.MsgTypeText {
		return nil, ErrParamInvalid
	}

	updated, err := s.messageRepo.UpdateContent(ctx, messageID, content)
	if errors.Is(err, mongo.ErrMessageNotFound) {
		return nil, ErrMessageNotFound
	}
	if err != nil {
		return nil, err
	}

	s.refreshPreviewIfLatest(ctx, updated, content)

	res := s.toMessageDTO(updated)
	s.publishEvent(consts.EventMessageUpdated, res, updated.RecipientID, updated.SenderID)
	return res, nil
}

// DeleteMessage 撤回消息，软删除
func (s *imServiceImpl) DeleteMessage(ctx context.Context, userID uint64, messageID string) error {
	msg, err := s.getOwnMessage(ctx, userID, messageID)
	if err != nil {
		return err
	}

	deleted, err := s.messageRepo.SoftDelete(ctx, msg.ID)
	if errors.Is(err, mongo.ErrMessageNotFound) {
		return ErrMessageNotFound
	}
	if err != nil {
		return err
	}

	s.refreshPreviewIfLatest(ctx, deleted, consts.DeletedMsgPlaceholder)

	res := s.toMessageDTO(deleted)
	res.Content = ""
	res.Payload = nil
	s.publishEvent(consts.EventMessageUpdated, res, deleted.RecipientID, deleted.SenderID)
	return nil
}

func (s *imServiceImpl) getOwnMessage(ctx context.Context, userID uint64, messageID string) (*mongo.Message, error) {
	msg, err := s.messageRepo.GetMessage(ctx, messageID)
	if errors.Is(err, mongo.ErrMessageNotFound) {
		return nil, ErrMessageNotFound
	}
	if err != nil {
		return nil, err
	}
	if msg.IsDeleted {
		return nil, ErrMessageNotFound
	}
	if msg.SenderID != userID {
		return nil, ErrMessageForbidden
	}
	return msg, nil
}

// refreshPreviewIfLatest 操作的是最新一条消息时回填会话预览
func (s *imServiceImpl) refreshPreviewIfLatest(ctx context.Context, msg *mongo.Message, preview string) {
	pair, err := s.chatRepo.GetPair(ctx, msg.PairID)
	if err != nil || pair == nil || pair.MaxMsgSeq != msg.Seq {
		return
	}
	if err = s.chatRepo.RefreshPreview(ctx, pair.ID, preview, int8(msg.MsgType), msg.SenderID, pair.LastMessageAt); err != nil {
		log.Error("会话预览回填失败", "pair_id", pair.ID, "err", err)
	}
}

// MarkAsRead 标记已读，归零未读数，幂等
func (s *imServiceImpl) MarkAsRead(ctx context.Context, userID, peerID uint64) error {
	return s.chatRepo.MarkRead(ctx, userID, peerID)
}

// GetChatList 获取会话列表，按最近消息时间倒序
func (s *imServiceImpl) GetChatList(ctx context.Context, userID uint64) ([]*dto.ChatSummaryDTO, error) {
	summaries, err := s.chatRepo.ListSummaries(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(summaries) == 0 {
		return []*dto.ChatSummaryDTO{}, nil
	}

	peerIDs := make([]uint64, 0, len(summaries))
	for _, m := range summaries {
		peerIDs = append(peerIDs, m.PeerID)
	}
	peers, err := s.userRepo.GetUserByIds(ctx, peerIDs)
	if err != nil {
		return nil, err
	}
	peerMap := make(map[uint64]*model.User, len(peers))
	for _, p := range peers {
		peerMap[p.ID] = p
	}

	res := make([]*dto.ChatSummaryDTO, 0, len(summaries))
	for _, m := range summaries {
		d := &dto.ChatSummaryDTO{
			PeerID:         m.PeerID,
			LastMsgContent: m.LastMsgContent,
			LastMsgType:    m.LastMsgType,
			LastSenderID:   m.LastSenderID,
			LastMessageAt:  m.LastMessageAt,
			UnreadCount:    m.UnreadCount,
		}
		if p, ok := peerMap[m.PeerID]; ok {
			d.PeerNickname = p.Nickname
			d.PeerAvatarURL = p.AvatarURL
			d.PeerOnline = p.IsOnline
		}
		res = append(res, d)
	}
	return res, nil
}

// ArchiveChat 归档或恢复会话
func (s *imServiceImpl) ArchiveChat(ctx context.Context, userID, peerID uint64, archived bool) error {
	return s.chatRepo.SetArchived(ctx, userID, peerID, archived)
}

func (s *imServiceImpl) GetTotalUnread(ctx context.Context, userID uint64) (int64, error) {
	return s.chatRepo.GetTotalUnreadCount(ctx, userID)
}

// publishEvent 发布事件到指定用户的个人频道
func (s *imServiceImpl) publishEvent(eventType string, data any, userIDs ...uint64) {
	payload, err := json.Marshal(&dto.EventDTO{Type: eventType, Data: data})
	if err != nil {
		log.Error("事件序列化失败", "type", eventType, "err", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	for _, uid := range userIDs {
		channel := consts.IMUserKey + strconv.FormatUint(uid, 10)
		if err = s.eventBus.Publish(ctx, channel, payload); err != nil {
			log.Error("事件发布失败", "channel", channel, "err", err)
		}
	}
}

func (s *imServiceImpl) previewOf(req *dto.SendMessageReq) string {
	if req.MsgType == consts.MsgTypeFile {
		return fmt.Sprintf("[文件] %s", req.Payload.FileName)
	}
	return truncatePreview(req.Content)
}

func truncatePreview(content string) string {
	runes := []rune(content)
	if len(runes) <= consts.PreviewMaxLen {
		return content
	}
	return string(runes[:consts.PreviewMaxLen]) + "..."
}

func (s *imServiceImpl) lockOfPair(pairKey string) *sync.Mutex {
	v, _ := s.pairLocks.LoadOrStore(pairKey, &sync.Mutex{})
	return v.(*sync.Mutex)
}

func (s *imServiceImpl) toMessageDTO(m *mongo.Message) *dto.MessageDTO {
	return &dto.MessageDTO{
		ID:          m.ID,
		PairID:      m.PairID,
		SenderID:    m.SenderID,
		RecipientID: m.RecipientID,
		MsgType:     m.MsgType,
		Content:     m.Content,
		Payload:     fromMongoPayload(m.Payload),
		Seq:         m.Seq,
		ReplyTo:     m.ReplyTo,
		IsEdited:    m.IsEdited,
		IsDeleted:   m.IsDeleted,
		CreatedAt:   m.CreatedAt,
	}
}

func toMongoPayload(p *dto.FilePayload) *mongo.Payload {
	if p == nil {
		return nil
	}
	return &mongo.Payload{
		FileName: p.FileName,
		MimeType: p.MimeType,
		MediaURL: p.MediaURL,
		Size:     p.Size,
		Width:    p.Width,
		Height:   p.Height,
		ThumbURL: p.ThumbURL,
	}
}

func fromMongoPayload(p *mongo.Payload) *dto.FilePayload {
	if p == nil {
		return nil
	}
	return &dto.FilePayload{
		FileName: p.FileName,
		MimeType: p.MimeType,
		MediaURL: p.MediaURL,
		Size:     p.Size,
		Width:    p.Width,
		Height:   p.Height,
		ThumbURL: p.ThumbURL,
	}
}

func (s *imServiceImpl) Close() {
	close(s.stopChan)
	s.wg.Wait()
	log.Info("IMService shut down gracefully")
}

func (s *imServiceImpl) calibrationWorker() {
	defer s.wg.Done()
	for {
		select {
		case msg := <-s.retryChan:
			backoff := time.Second
			for i := 0; i < 3; i++ {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				err := s.messageRepo.SaveMessage(ctx, msg)
				cancel()
				if err == nil {
					break
				}
				time.Sleep(backoff)
				backoff *= 2
			}
		case <-s.stopChan:
			return
		}
	}
}
