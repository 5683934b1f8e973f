package consts

const (
	SmsKey           = "sms:validate:code:"
	SmsCheckTokenKey = "sms:check:token:"
	UserSimpleKey    = "user:simple:info:"
	MediaTempKey     = "media:temp:meta"
	RateLimitKey     = "ratelimit:send:"

	// IMUserKey 用户个人事件频道前缀，路由器对其做模式订阅
	IMUserKey = "im:user:"
	// IMUserPattern 路由器的长连接订阅模式
	IMUserPattern = "im:user:*"
	// PresenceChannel 在线状态变更广播频道
	PresenceChannel = "im:presence"
)
