package handler

import (
	"Magpie/internal/api/dto"
	"Magpie/internal/pkg/response"
	"Magpie/internal/service"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

type IMHandler struct {
	imSvc service.IMService
}

func NewIMHandler(imSvc service.IMService) *IMHandler {
	return &IMHandler{
		imSvc: imSvc,
	}
}

// SendMessage HTTP 兜底发消息入口，与 WebSocket 的 send_message 等价
func (s *IMHandler) SendMessage(c *gin.Context) {
	userID := c.GetUint64("user_id")
	var req dto.SendMessageReq
	if err := c.ShouldBind(&req); err != nil {
		response.Error(c, err)
		return
	}
	msg, err := s.imSvc.SendMessage(c.Request.Context(), userID, &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, msg)
}

func (s *IMHandler) GetChatHistory(c *gin.Context) {
	userID := c.GetUint64("user_id")

	peerID, err := strconv.ParseUint(c.Query("peer_id"), 10, 64)
	if err != nil || peerID == 0 {
		response.Fail(c, response.BadRequest, service.ErrParamInvalid.Error())
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if limit <= 0 {
		limit = 50
	}
	if limit > 100 {
		limit = 100
	}

	before, err := parseTimeParam(c.Query("before"))
	if err != nil {
		response.Fail(c, response.BadRequest, service.ErrParamInvalid.Error())
		return
	}
	after, err := parseTimeParam(c.Query("after"))
	if err != nil {
		response.Fail(c, response.BadRequest, service.ErrParamInvalid.Error())
		return
	}

	history, err := s.imSvc.GetChatHistory(c.Request.Context(), userID, peerID, limit, before, after)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, history)
}

func (s *IMHandler) GetChatList(c *gin.Context) {
	userID := c.GetUint64("user_id")
	list, err := s.imSvc.GetChatList(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, list)
}

func (s *IMHandler) MarkAsRead(c *gin.Context) {
	userID := c.GetUint64("user_id")
	var req dto.MarkAsReadReq
	if err := c.ShouldBind(&req); err != nil {
		response.Error(c, err)
		return
	}
	if err := s.imSvc.MarkAsRead(c.Request.Context(), userID, req.PeerID); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}

func (s *IMHandler) EditMessage(c *gin.Context) {
	userID := c.GetUint64("user_id")
	messageID := c.Param("message_id")
	var req dto.EditMessageReq
	if err := c.ShouldBind(&req); err != nil {
		response.Error(c, err)
		return
	}
	msg, err := s.imSvc.EditMessage(c.Request.Context(), userID, messageID, req.Content)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, msg)
}

func (s *IMHandler) DeleteMessage(c *gin.Context) {
	userID := c.GetUint64("user_id")
	messageID := c.Param("message_id")
	if err := s.imSvc.DeleteMessage(c.Request.Context(), userID, messageID); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}

func (s *IMHandler) ArchiveChat(c *gin.Context) {
	userID := c.GetUint64("user_id")
	var req dto.ArchiveChatReq
	if err := c.ShouldBind(&req); err != nil {
		response.Error(c, err)
		return
	}
	if err := s.imSvc.ArchiveChat(c.Request.Context(), userID, req.PeerID, req.Archived); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}

func (s *IMHandler) GetTotalUnread(c *gin.Context) {
	userID := c.GetUint64("user_id")
	total, err := s.imSvc.GetTotalUnread(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, map[string]int64{
		"total_unread": total,
	})
}

func parseTimeParam(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
