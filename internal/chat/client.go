package chat

import (
	"Magpie/internal/api/dto"
	"Magpie/internal/pkg/consts"
	"Magpie/internal/pkg/redis"
	"Magpie/internal/pkg/security"
	"context"
	"errors"
	log "log/slog"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
)

// 会话状态机
const (
	StateConnected = iota // 已连接未认证
	StateAuthenticated
	StateInChat
	StateDisconnected
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 8192
)

// Client 一条 WebSocket 连接的服务端会话
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	mu     sync.Mutex
	state  int
	userID uint64
	peerID uint64 // 当前所在会话的对端，InChat 状态有效
	closed bool   // send 已关闭，之后的入队直接丢弃

	closeOnce sync.Once
}

func newClient(hub *Hub, conn *websocket.Conn, sendBuffer int) *Client {
	return &Client{
		hub:   hub,
		conn:  conn,
		send:  make(chan []byte, sendBuffer),
		state: StateConnected,
	}
}

func (c *Client) UserID() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.userID
}

func (c *Client) State() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// ChattingWith 判断该连接是否正与指定用户处于会话中
func (c *Client) ChattingWith(userID uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == StateInChat && c.peerID == userID
}

// handleEvent 会话状态机入口，决定事件是否被接受
// 非法载荷只回错误事件，不改变状态
func (c *Client) handleEvent(raw []byte) {
	var evt InboundEvent
	if err := json.Unmarshal(raw, &evt); err != nil {
		c.sendError("无法解析的事件")
		return
	}

	switch evt.Type {
	case EventAuthenticate:
		c.onAuthenticate(evt.Data)
	case EventJoinChat:
		c.onJoinChat(evt.Data)
	case EventSendMessage:
		c.onSendMessage(evt.Data)
	case EventTypingStart:
		c.onTyping(evt.Data, true)
	case EventTypingStop:
		c.onTyping(evt.Data, false)
	default:
		c.sendError("未知的事件类型: " + evt.Type)
	}
}

// onAuthenticate 认证失败保持连接，允许客户端重试
func (c *Client) onAuthenticate(data []byte) {
	if c.State() != StateConnected {
		c.sendError("重复认证")
		return
	}

	var payload AuthPayload
	if err := json.Unmarshal(data, &payload); err != nil || payload.Token == "" {
		c.sendEvent(EventAuthFailed, &ErrorPayload{Message: "缺少认证凭据"})
		return
	}

	claims, err := security.ValidateToken(payload.Token)
	if err != nil {
		c.sendEvent(EventAuthFailed, &ErrorPayload{Message: "凭据无效或已过期"})
		return
	}

	// 已注销的 token 不允许建立会话
	signature, err := security.ExtractSignature(payload.Token)
	if err == nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		value, _ := redis.GetValue(ctx, signature)
		cancel()
		if value != "" {
			c.sendEvent(EventAuthFailed, &ErrorPayload{Message: "凭据已注销"})
			return
		}
	}

	c.mu.Lock()
	c.userID = claims.UserID
	c.state = StateAuthenticated
	c.mu.Unlock()

	c.hub.registry.Register(c)
	c.sendEvent(EventAuthenticated, map[string]uint64{"user_id": claims.UserID})
}

// onJoinChat 进入与指定用户的会话，自动清零未读
func (c *Client) onJoinChat(data []byte) {
	if c.State() < StateAuthenticated {
		c.sendError("请先认证")
		return
	}

	var payload JoinChatPayload
	if err := json.Unmarshal(data, &payload); err != nil || payload.PeerID == 0 {
		c.sendError("缺少会话对象")
		return
	}
	if payload.PeerID == c.UserID() {
		c.sendError("不能与自己建立会话")
		return
	}

	c.mu.Lock()
	c.peerID = payload.PeerID
	c.state = StateInChat
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := c.hub.imService.MarkAsRead(ctx, c.UserID(), payload.PeerID); err != nil {
		log.Warn("进入会话清零未读失败", "user_id", c.UserID(), "peer_id", payload.PeerID, "err", err)
	}

	// 回推对端当前在线状态，作为会话的初始快照
	c.sendEvent(consts.EventPresenceChanged, &dto.PresenceDTO{
		UserID: payload.PeerID,
		Online: c.hub.registry.IsOnline(payload.PeerID),
	})
}

// onSendMessage 只允许发给当前会话对端
func (c *Client) onSendMessage(data []byte) {
	c.mu.Lock()
	state, userID, peerID := c.state, c.userID, c.peerID
	c.mu.Unlock()

	if state != StateInChat {
		c.sendError("请先进入会话")
		return
	}

	var req dto.SendMessageReq
	if err := json.Unmarshal(data, &req); err != nil {
		c.sendError("无法解析的消息体")
		return
	}
	if req.PeerID == 0 {
		req.PeerID = peerID
	}
	if req.PeerID != peerID {
		c.sendError("消息目标与当前会话不符")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := c.hub.imService.SendMessage(ctx, userID, &req); err != nil {
		c.sendError(err.Error())
		return
	}

	// 发送成功即熄灭输入状态
	c.hub.typing.Stop(userID, peerID)
}

func (c *Client) onTyping(data []byte, start bool) {
	c.mu.Lock()
	state, userID, peerID := c.state, c.userID, c.peerID
	c.mu.Unlock()

	if state != StateInChat {
		c.sendError("请先进入会话")
		return
	}

	var payload TypingPayload
	if len(data) > 0 {
		if err := json.Unmarshal(data, &payload); err != nil {
			c.sendError("无法解析的事件")
			return
		}
	}
	if payload.PeerID != 0 && payload.PeerID != peerID {
		c.sendError("目标与当前会话不符")
		return
	}

	if start {
		c.hub.typing.Start(userID, peerID)
	} else {
		c.hub.typing.Stop(userID, peerID)
	}
}

// sendEvent 序列化并入队一条下行事件
func (c *Client) sendEvent(eventType string, data any) {
	payload, err := json.Marshal(&dto.EventDTO{Type: eventType, Data: data})
	if err != nil {
		return
	}
	c.enqueue(payload)
}

func (c *Client) sendError(message string) {
	c.sendEvent(EventError, &ErrorPayload{Message: message})
}

// enqueue 非阻塞入队，慢消费者丢事件不拖垮广播
// 持锁写入，与 shutdown 关闭 send 互斥，收尾后的入队直接丢弃
func (c *Client) enqueue(payload []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- payload:
		return true
	default:
		log.Warn("下行队列已满，事件被丢弃", "user_id", c.userID)
		return false
	}
}

// shutdown 连接收尾，幂等
// closed 标记与 send 关闭在同一临界区内完成，路由分发不会写到已关闭的通道
func (c *Client) shutdown() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		state, userID, peerID := c.state, c.userID, c.peerID
		c.state = StateDisconnected
		c.closed = true
		close(c.send)
		c.mu.Unlock()

		if state == StateInChat {
			c.hub.typing.Stop(userID, peerID)
		}
		if state >= StateAuthenticated {
			c.hub.registry.Unregister(c)
		}
	})
}

// readPump 读循环，连接生命周期的所有者
func (c *Client) readPump() {
	defer func() {
		c.shutdown()
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			var closeErr *websocket.CloseError
			if !errors.As(err, &closeErr) {
				log.Debug("连接读取中断", "user_id", c.UserID(), "err", err)
			}
			return
		}
		c.handleEvent(raw)
	}
}

// writePump 写循环，send 通道关闭后向客户端发送关闭帧
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
