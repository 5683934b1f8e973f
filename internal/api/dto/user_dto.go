package dto

import "time"

// RegisterDTO 手机号注册请求
type RegisterDTO struct {
	Phone      string `json:"phone" binding:"required"`
	PhoneToken string `json:"phone_token" binding:"required"` // 短信校验换取的临时凭据
	Nickname   string `json:"nickname"`
	Password   string `json:"password"`
}

// CredentialDTO 登录凭据
type CredentialDTO struct {
	Phone    string  `json:"phone" binding:"required"`
	Code     *string `json:"code"`     // 验证码登录
	Password *string `json:"password"` // 密码登录
}

// SendSmsDTO 发送验证码请求
type SendSmsDTO struct {
	Phone string `json:"phone" binding:"required"`
}

// CheckSmsDTO 校验验证码请求，换取注册凭据
type CheckSmsDTO struct {
	Phone string `json:"phone" binding:"required"`
	Code  string `json:"code" binding:"required"`
}

// UserDTO 用户公开信息
type UserDTO struct {
	ID         uint64     `json:"id"`
	Phone      string     `json:"phone,omitempty"`
	Nickname   string     `json:"nickname"`
	AvatarURL  string     `json:"avatar_url"`
	IsOnline   bool       `json:"is_online"`
	LastSeenAt *time.Time `json:"last_seen_at,omitempty"`
}

// LoginResultDTO 登录响应
type LoginResultDTO struct {
	Token string   `json:"token"`
	User  *UserDTO `json:"user"`
}

// UpdateUserDTO 更新个人资料请求
type UpdateUserDTO struct {
	Nickname  *string `json:"nickname"`
	AvatarURL *string `json:"avatar_url"`
}
