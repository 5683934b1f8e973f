package service

import (
	"Magpie/internal/api/dto"
	"Magpie/internal/model"
	"Magpie/internal/pkg/consts"
	"Magpie/internal/pkg/es"
	"Magpie/internal/pkg/redis"
	"Magpie/internal/pkg/security"
	"Magpie/internal/pkg/util"
	"Magpie/internal/repository"
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/jinzhu/copier"
)

type UserService interface {
	Register(ctx context.Context, dto *dto.RegisterDTO) error
	Login(ctx context.Context, dto *dto.CredentialDTO) (*dto.LoginResultDTO, error)
	Logout(ctx context.Context, token string) error
	GetUserInfo(ctx context.Context, id uint64) (*dto.UserDTO, error)
	GetUserSimpleInfoByIds(ctx context.Context, ids []uint64) ([]*dto.UserDTO, error)
	UpdateUserInfo(ctx context.Context, id uint64, dto *dto.UpdateUserDTO) error
	SearchByPhone(ctx context.Context, callerID uint64, phone string) (*dto.SearchUserDTO, error)
	SearchByNickname(ctx context.Context, keyword string, from, size int) ([]*dto.SearchUserDTO, error)
	CancelUser(ctx context.Context, id uint64) error
}

type UserServiceImpl struct {
	userRepo    repository.UserRepo
	contactRepo repository.ContactRepo
	esUserRepo  es.UserRepo
}

func NewUserService(userRepo repository.UserRepo, contactRepo repository.ContactRepo, esUserRepo es.UserRepo) UserService {
	return &UserServiceImpl{
		userRepo:    userRepo,
		contactRepo: contactRepo,
		esUserRepo:  esUserRepo,
	}
}

// Register 手机号注册，凭据来自短信校验
func (s *UserServiceImpl) Register(ctx context.Context, regDTO *dto.RegisterDTO) error {
	phone := util.NormalizePhone(regDTO.Phone)
	if phone == "" {
		return ErrParamInvalid
	}

	key := consts.SmsCheckTokenKey + phone
	value, err := redis.GetValue(ctx, key)
	if err != nil {
		return err
	}
	if value == "" || value != regDTO.PhoneToken {
		return ErrSmsRegTokenIncorrect
	}

	findUser, err := s.userRepo.GetUserByPhone(ctx, phone)
	if err != nil {
		return err
	}
	if findUser != nil {
		return ErrUserPhoneExist
	}

	user := s.newUserFromPhone(phone)
	if regDTO.Nickname != "" {
		user.Nickname = regDTO.Nickname
	}
	if regDTO.Password != "" {
		passwordHash, err := security.HashPassword(regDTO.Password)
		if err != nil {
			return err
		}
		user.Password = &passwordHash
	}

	if err = s.userRepo.CreateUser(ctx, user); err != nil {
		return err
	}
	_ = redis.DeleteKey(ctx, key)
	return nil
}

// Login 登录，支持验证码与密码两种方式
// 验证码登录时手机号未注册则静默建号
func (s *UserServiceImpl) Login(ctx context.Context, credDTO *dto.CredentialDTO) (*dto.LoginResultDTO, error) {
	phone := util.NormalizePhone(credDTO.Phone)
	if phone == "" {
		return nil, ErrParamInvalid
	}

	var user *model.User
	var err error
	switch {
	case credDTO.Code != nil && *credDTO.Code != "":
		if err = s.checkSmsCode(ctx, phone, *credDTO.Code); err != nil {
			return nil, err
		}
		user, err = s.findOrCreateUserByPhone(ctx, phone)
		if err != nil {
			return nil, err
		}
	case credDTO.Password != nil && *credDTO.Password != "":
		user, err = s.userRepo.GetUserByPhone(ctx, phone)
		if err != nil {
			return nil, err
		}
		if user == nil {
			return nil, ErrUserPhoneNotFound
		}
		if user.Password == nil {
			return nil, ErrPasswordIncorrect
		}
		if err = security.CheckPasswordHash(*credDTO.Password, *user.Password); err != nil {
			return nil, ErrPasswordIncorrect
		}
	default:
		return nil, ErrParamInvalid
	}

	token, err := security.GenerateToken(user.ID)
	if err != nil {
		return nil, err
	}

	userDTO := &dto.UserDTO{}
	if err = copier.Copy(userDTO, user); err != nil {
		return nil, err
	}
	if user.Phone != nil {
		userDTO.Phone = *user.Phone
	}
	return &dto.LoginResultDTO{Token: token, User: userDTO}, nil
}

// findOrCreateUserByPhone 只在确认不存在时建号，瞬时错误原样上抛
func (s *UserServiceImpl) findOrCreateUserByPhone(ctx context.Context, phone string) (*model.User, error) {
	user, err := s.userRepo.GetUserByPhone(ctx, phone)
	if err != nil {
		return nil, err
	}
	if user != nil {
		return user, nil
	}

	user = s.newUserFromPhone(phone)
	if err = s.userRepo.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *UserServiceImpl) newUserFromPhone(phone string) *model.User {
	suffix := util.PhoneSuffix(phone)
	nickname := "用户" + phone
	if len(phone) >= 4 {
		nickname = "用户" + phone[len(phone)-4:]
	}
	return &model.User{
		Phone:       &phone,
		PhoneSuffix: suffix,
		Nickname:    nickname,
		AvatarURL:   consts.DefaultAvatarURL,
	}
}

func (s *UserServiceImpl) checkSmsCode(ctx context.Context, phone string, code string) error {
	key := consts.SmsKey + phone
	value, err := redis.GetValue(ctx, key)
	if err != nil {
		return err
	}
	if value == "" || value != code {
		return ErrCodeIncorrect
	}
	_ = redis.DeleteKey(ctx, key)
	return nil
}

// Logout 将 token 签名加入黑名单
func (s *UserServiceImpl) Logout(ctx context.Context, token string) error {
	signature, err := security.ExtractSignature(token)
	if err != nil {
		return err
	}
	return redis.SetWithExpiration(ctx, signature, true, security.JWTExpirationTime)
}

func (s *UserServiceImpl) GetUserInfo(ctx context.Context, id uint64) (*dto.UserDTO, error) {
	user, err := s.userRepo.GetUserById(ctx, id)
	if err != nil {
		return nil, err
	}
	if user == nil || user.IsDelete {
		return nil, ErrUserNotFound
	}
	userDTO := &dto.UserDTO{}
	if err = copier.Copy(userDTO, user); err != nil {
		return nil, err
	}
	if user.Phone != nil {
		userDTO.Phone = *user.Phone
	}
	return userDTO, nil
}

// GetUserSimpleInfoByIds 批量获取用户摘要，带 Redis 旁路缓存
func (s *UserServiceImpl) GetUserSimpleInfoByIds(ctx context.Context, ids []uint64) ([]*dto.UserDTO, error) {
	newIds := make([]uint64, 0, len(ids))
	mp := make(map[uint64]*dto.UserDTO)
	for _, id := range ids {
		value, err := redis.GetValue(ctx, consts.UserSimpleKey+strconv.FormatUint(id, 10))
		if err != nil {
			return nil, err
		}
		if value != "" {
			var userDTO *dto.UserDTO
			if err = json.Unmarshal([]byte(value), &userDTO); err == nil {
				mp[id] = userDTO
				continue
			}
		}
		newIds = append(newIds, id)
	}

	if len(newIds) > 0 {
		users, err := s.userRepo.GetUserByIds(ctx, newIds)
		if err != nil {
			return nil, err
		}
		for _, user := range users {
			userDTO := &dto.UserDTO{}
			if err = copier.Copy(userDTO, user); err != nil {
				return nil, err
			}
			userDTO.Phone = ""
			mp[user.ID] = userDTO
			jsonStr, err := json.Marshal(userDTO)
			if err != nil {
				continue
			}
			_ = redis.SetWithExpiration(ctx, consts.UserSimpleKey+strconv.FormatUint(user.ID, 10), string(jsonStr), time.Hour*1)
		}
	}

	res := make([]*dto.UserDTO, 0, len(ids))
	for _, id := range ids {
		if mp[id] == nil {
			continue
		}
		res = append(res, mp[id])
	}
	return res, nil
}

func (s *UserServiceImpl) UpdateUserInfo(ctx context.Context, id uint64, updateDTO *dto.UpdateUserDTO) error {
	user, err := s.userRepo.GetUserById(ctx, id)
	if err != nil {
		return err
	}
	if user == nil || user.IsDelete {
		return ErrUserNotFound
	}
	if err = copier.CopyWithOption(user, updateDTO, copier.Option{IgnoreEmpty: true}); err != nil {
		return err
	}
	if err = s.userRepo.UpdateUser(ctx, user); err != nil {
		return err
	}
	_ = redis.DeleteKey(ctx, consts.UserSimpleKey+strconv.FormatUint(id, 10))
	return nil
}

// SearchByPhone 按手机号精确查找
// 归一化后不足后缀位数按未命中处理，不暴露存在性差异
func (s *UserServiceImpl) SearchByPhone(ctx context.Context, callerID uint64, phone string) (*dto.SearchUserDTO, error) {
	suffix := util.PhoneSuffix(phone)
	if suffix == "" {
		return nil, ErrUserNotFound
	}

	user, err := s.userRepo.GetUserByPhoneSuffix(ctx, suffix)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	isContact := false
	if callerID != 0 && callerID != user.ID {
		isContact, _ = s.contactRepo.IsContact(ctx, callerID, user.ID)
	}

	return &dto.SearchUserDTO{
		ID:        user.ID,
		Nickname:  user.Nickname,
		AvatarURL: user.AvatarURL,
		IsOnline:  user.IsOnline,
		IsContact: isContact,
	}, nil
}

// SearchByNickname 昵称模糊检索，走 ES
func (s *UserServiceImpl) SearchByNickname(ctx context.Context, keyword string, from, size int) ([]*dto.SearchUserDTO, error) {
	if keyword == "" {
		return []*dto.SearchUserDTO{}, nil
	}
	docs, err := s.esUserRepo.SearchByNickname(ctx, keyword, from, size)
	if err != nil {
		return nil, fmt.Errorf("昵称检索失败: %w", err)
	}

	res := make([]*dto.SearchUserDTO, 0, len(docs))
	for _, doc := range docs {
		res = append(res, &dto.SearchUserDTO{
			ID:        doc.ID,
			Nickname:  doc.Nickname,
			AvatarURL: doc.AvatarURL,
			IsOnline:  doc.IsOnline,
		})
	}
	return res, nil
}

func (s *UserServiceImpl) CancelUser(ctx context.Context, id uint64) error {
	user, err := s.userRepo.GetUserById(ctx, id)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrUserNotFound
	}
	if err = s.userRepo.DeleteUser(ctx, id); err != nil {
		return err
	}
	_ = redis.DeleteKey(ctx, consts.UserSimpleKey+strconv.FormatUint(id, 10))
	return nil
}
