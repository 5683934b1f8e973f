package handler

import (
	"Magpie/internal/api/dto"
	"Magpie/internal/pkg/response"
	"Magpie/internal/pkg/util"
	"Magpie/internal/service"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

type UserHandler struct {
	userSvc service.UserService
	smsSvc  service.SmsService
}

func NewUserHandler(userSvc service.UserService, smsSvc service.SmsService) *UserHandler {
	return &UserHandler{
		userSvc: userSvc,
		smsSvc:  smsSvc,
	}
}

func (s *UserHandler) Register(c *gin.Context) {
	var registerDTO dto.RegisterDTO
	if err := c.ShouldBind(&registerDTO); err != nil {
		response.Error(c, err)
		return
	}
	if err := s.userSvc.Register(c.Request.Context(), &registerDTO); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}

func (s *UserHandler) SendSmsCode(c *gin.Context) {
	var req dto.SendSmsDTO
	if err := c.ShouldBind(&req); err != nil {
		response.Error(c, err)
		return
	}
	if util.NormalizePhone(req.Phone) == "" {
		response.Fail(c, response.BadRequest, service.ErrParamInvalid.Error())
		return
	}
	if err := s.smsSvc.SendSms(c.Request.Context(), req.Phone); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}

func (s *UserHandler) CheckSmsCode(c *gin.Context) {
	var req dto.CheckSmsDTO
	if err := c.ShouldBind(&req); err != nil {
		response.Error(c, err)
		return
	}
	token, err := s.smsSvc.CheckCode(c.Request.Context(), req.Phone, req.Code)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, map[string]string{
		"phone_token": token,
	})
}

func (s *UserHandler) Login(c *gin.Context) {
	var loginDTO dto.CredentialDTO
	if err := c.ShouldBind(&loginDTO); err != nil {
		response.Error(c, err)
		return
	}
	result, err := s.userSvc.Login(c.Request.Context(), &loginDTO)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

func (s *UserHandler) Logout(c *gin.Context) {
	token := c.GetString("token")
	if err := s.userSvc.Logout(c.Request.Context(), token); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}

func (s *UserHandler) GetUserInfo(c *gin.Context) {
	userID := c.GetUint64("user_id")
	userDTO, err := s.userSvc.GetUserInfo(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, userDTO)
}

func (s *UserHandler) GetUserSimpleInfoByIds(c *gin.Context) {
	idsParam := c.Query("ids")
	if idsParam == "" {
		response.Fail(c, response.BadRequest, service.ErrParamInvalid.Error())
		return
	}

	ids := make([]uint64, 0)
	for _, part := range strings.Split(idsParam, ",") {
		id, err := strconv.ParseUint(strings.TrimSpace(part), 10, 64)
		if err != nil {
			response.Fail(c, response.BadRequest, service.ErrParamInvalid.Error())
			return
		}
		ids = append(ids, id)
	}

	users, err := s.userSvc.GetUserSimpleInfoByIds(c.Request.Context(), ids)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, users)
}

func (s *UserHandler) UpdateUserInfo(c *gin.Context) {
	userID := c.GetUint64("user_id")
	var updateDTO dto.UpdateUserDTO
	if err := c.ShouldBind(&updateDTO); err != nil {
		response.Error(c, err)
		return
	}
	if err := s.userSvc.UpdateUserInfo(c.Request.Context(), userID, &updateDTO); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}

// SearchUser 按手机号精确查找用户
func (s *UserHandler) SearchUser(c *gin.Context) {
	phone := c.Query("phone")
	if phone == "" {
		response.Fail(c, response.BadRequest, service.ErrParamInvalid.Error())
		return
	}
	result, err := s.userSvc.SearchByPhone(c.Request.Context(), c.GetUint64("user_id"), phone)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

// SearchUserByName 按昵称模糊检索用户
func (s *UserHandler) SearchUserByName(c *gin.Context) {
	keyword := c.Query("keyword")
	if keyword == "" {
		response.Fail(c, response.BadRequest, service.ErrParamInvalid.Error())
		return
	}

	from, _ := strconv.Atoi(c.DefaultQuery("from", "0"))
	size, _ := strconv.Atoi(c.DefaultQuery("size", "20"))
	if size <= 0 || size > 50 {
		size = 20
	}
	if from < 0 {
		from = 0
	}

	results, err := s.userSvc.SearchByNickname(c.Request.Context(), keyword, from, size)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, results)
}

func (s *UserHandler) CancelUser(c *gin.Context) {
	userID := c.GetUint64("user_id")
	if err := s.userSvc.CancelUser(c.Request.Context(), userID); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}
