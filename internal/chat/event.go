package chat

import (
	"github.com/goccy/go-json"
)

// 上行事件类型
const (
	EventAuthenticate = "authenticate"
	EventJoinChat     = "join_chat"
	EventSendMessage  = "send_message"
	EventTypingStart  = "typing_start"
	EventTypingStop   = "typing_stop"
)

// 下行事件类型，消息类事件见 consts 包
const (
	EventAuthenticated = "authenticated"
	EventAuthFailed    = "auth_failed"
	EventError         = "error"
)

// InboundEvent 上行事件信封，data 延迟解析
type InboundEvent struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// AuthPayload authenticate 事件载荷
type AuthPayload struct {
	Token string `json:"token"`
}

// JoinChatPayload join_chat 事件载荷
type JoinChatPayload struct {
	PeerID uint64 `json:"peer_id"`
}

// TypingPayload typing_start / typing_stop 事件载荷
type TypingPayload struct {
	PeerID uint64 `json:"peer_id"`
}

// ErrorPayload error 事件载荷
type ErrorPayload struct {
	Message string `json:"message"`
}
