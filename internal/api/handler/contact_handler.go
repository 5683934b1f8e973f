package handler

import (
	"Magpie/internal/api/dto"
	"Magpie/internal/pkg/response"
	"Magpie/internal/service"
	"strconv"

	"github.com/gin-gonic/gin"
)

type ContactHandler struct {
	contactSvc service.ContactService
}

func NewContactHandler(contactSvc service.ContactService) *ContactHandler {
	return &ContactHandler{
		contactSvc: contactSvc,
	}
}

func (s *ContactHandler) AddContact(c *gin.Context) {
	userID := c.GetUint64("user_id")
	var req dto.AddContactReq
	if err := c.ShouldBind(&req); err != nil {
		response.Error(c, err)
		return
	}
	if err := s.contactSvc.AddContact(c.Request.Context(), userID, &req); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}

func (s *ContactHandler) RemoveContact(c *gin.Context) {
	userID := c.GetUint64("user_id")
	contactID, err := strconv.ParseUint(c.Param("contact_id"), 10, 64)
	if err != nil || contactID == 0 {
		response.Fail(c, response.BadRequest, service.ErrParamInvalid.Error())
		return
	}
	if err := s.contactSvc.RemoveContact(c.Request.Context(), userID, contactID); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}

func (s *ContactHandler) ListContacts(c *gin.Context) {
	userID := c.GetUint64("user_id")
	contacts, err := s.contactSvc.ListContacts(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, contacts)
}

func (s *ContactHandler) UpdateRemark(c *gin.Context) {
	userID := c.GetUint64("user_id")
	contactID, err := strconv.ParseUint(c.Param("contact_id"), 10, 64)
	if err != nil || contactID == 0 {
		response.Fail(c, response.BadRequest, service.ErrParamInvalid.Error())
		return
	}

	var req struct {
		Remark string `json:"remark"`
	}
	if err := c.ShouldBind(&req); err != nil {
		response.Error(c, err)
		return
	}

	if err := s.contactSvc.UpdateRemark(c.Request.Context(), userID, contactID, req.Remark); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}
