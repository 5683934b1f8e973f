package dto

import "time"

// SendMessageReq 发送消息请求体
type SendMessageReq struct {
	PeerID  uint64       `json:"peer_id" binding:"required"`
	MsgType int          `json:"msg_type" binding:"required"` // 1-文本, 2-文件
	Content string       `json:"content"`
	ReplyTo string       `json:"reply_to"` // 被回复消息 ID
	Payload *FilePayload `json:"payload"`
}

// FilePayload 文件消息附件
type FilePayload struct {
	FileName string `json:"file_name"`
	MimeType string `json:"mime_type"`
	MediaURL string `json:"url"`
	Size     int64  `json:"size"`
	Width    int    `json:"width,omitempty"`
	Height   int    `json:"height,omitempty"`
	ThumbURL string `json:"thumb_url,omitempty"`
}

// MessageDTO 消息明细响应
type MessageDTO struct {
	ID           string        `json:"id"`
	PairID       uint64        `json:"pair_id"`
	SenderID     uint64        `json:"sender_id"`
	RecipientID  uint64        `json:"recipient_id"`
	MsgType      int           `json:"msg_type"`
	Content      string        `json:"content"`
	Payload      *FilePayload  `json:"payload,omitempty"`
	Seq          uint64        `json:"seq"`
	ReplyTo      string        `json:"reply_to,omitempty"`
	ReplyPreview *ReplyPreview `json:"reply_preview,omitempty"`
	IsEdited     bool          `json:"is_edited"`
	IsDeleted    bool          `json:"is_deleted"`
	CreatedAt    time.Time     `json:"createdAt"`
}

// ReplyPreview 被回复消息的摘要投影
type ReplyPreview struct {
	ID       string `json:"id"`
	SenderID uint64 `json:"sender_id"`
	Content  string `json:"content"`
	MsgType  int    `json:"msg_type"`
}

// HistoryDTO 历史消息分页响应，消息按时间升序
type HistoryDTO struct {
	Messages []*MessageDTO `json:"messages"`
	HasMore  bool          `json:"has_more"`
}

// ChatSummaryDTO 会话列表项响应
type ChatSummaryDTO struct {
	PeerID         uint64    `json:"peer_id"`
	PeerNickname   string    `json:"peer_nickname"`
	PeerAvatarURL  string    `json:"peer_avatar_url"`
	PeerOnline     bool      `json:"peer_online"`
	LastMsgContent string    `json:"last_msg_content"`
	LastMsgType    int8      `json:"last_msg_type"`
	LastSenderID   uint64    `json:"last_sender_id"`
	LastMessageAt  time.Time `json:"lastMessageAt"`
	UnreadCount    uint64    `json:"unreadCount"`
}

// EditMessageReq 编辑消息请求
type EditMessageReq struct {
	Content string `json:"content" binding:"required"`
}

// MarkAsReadReq 标记为已读请求
type MarkAsReadReq struct {
	PeerID uint64 `json:"peer_id" binding:"required"`
}

// ArchiveChatReq 归档/取消归档会话请求
type ArchiveChatReq struct {
	PeerID   uint64 `json:"peer_id" binding:"required"`
	Archived bool   `json:"archived"`
}

// PresenceDTO 在线状态变更推送
type PresenceDTO struct {
	UserID uint64 `json:"user_id"`
	Online bool   `json:"online"`
}

// TypingDTO 输入状态推送
type TypingDTO struct {
	PeerID   uint64 `json:"peer_id"`
	IsTyping bool   `json:"is_typing"`
}

// EventDTO 下行事件信封，WebSocket 与 Redis 频道共用
type EventDTO struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}
