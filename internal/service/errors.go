package service

import (
	"errors"
)

const (
	BadRequest          = 400
	Unauthorized        = 401
	Forbidden           = 403
	NotFound            = 404
	Conflict            = 409
	TooManyRequests     = 429
	InternalServerError = 500
)

var (
	ErrParamInvalid         = errors.New("参数错误")
	ErrUserNotFound         = errors.New("用户不存在")
	ErrUserPhoneExist       = errors.New("手机号已注册")
	ErrUserPhoneNotFound    = errors.New("手机号未注册")
	ErrPasswordIncorrect    = errors.New("密码错误")
	ErrCodeIncorrect        = errors.New("验证码错误")
	ErrSmsRegTokenIncorrect = errors.New("短信注册token错误")
	ErrSelfMessage          = errors.New("不能给自己发消息")
	ErrEmptyContent         = errors.New("消息内容不能为空")
	ErrFilePayloadMissing   = errors.New("文件消息缺少附件信息")
	ErrMessageNotFound      = errors.New("消息不存在")
	ErrMessageForbidden     = errors.New("只能操作自己发送的消息")
	ErrWriteConflict        = errors.New("写入冲突，请重试")
	ErrContactSelf          = errors.New("不能添加自己为联系人")
	ErrFileNotSupported     = errors.New("不支持的文件类型")
	ErrRateLimited          = errors.New("操作过于频繁，请稍后重试")
	UnauthorizedError       = errors.New("权限不足")
	UnExpectedError         = errors.New("系统异常，请稍后重试")
)

var ErrorMap = map[error]int{
	ErrParamInvalid:         BadRequest,
	ErrUserNotFound:         NotFound,
	ErrUserPhoneExist:       BadRequest,
	ErrUserPhoneNotFound:    NotFound,
	ErrPasswordIncorrect:    Unauthorized,
	ErrCodeIncorrect:        Unauthorized,
	ErrSmsRegTokenIncorrect: Unauthorized,
	ErrSelfMessage:          BadRequest,
	ErrEmptyContent:         BadRequest,
	ErrFilePayloadMissing:   BadRequest,
	ErrMessageNotFound:      NotFound,
	ErrMessageForbidden:     Forbidden,
	ErrWriteConflict:        Conflict,
	ErrContactSelf:          BadRequest,
	ErrFileNotSupported:     BadRequest,
	ErrRateLimited:          TooManyRequests,
	UnauthorizedError:       Unauthorized,
	UnExpectedError:         InternalServerError,
}
