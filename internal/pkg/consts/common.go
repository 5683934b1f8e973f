package consts

const (
	MimePrefixImage = "image"
	MimePrefixAudio = "audio"
	MimePrefixVideo = "video"
)

// 消息类型
const (
	MsgTypeText = 1
	MsgTypeFile = 2
)

const (
	DefaultAvatarURL = "default_avatar.png"
)

// PhoneSuffixLen 手机号后缀匹配位数
const PhoneSuffixLen = 10

// 用户频道下行事件类型
const (
	EventMessageReceived = "message_received"
	EventMessageUpdated  = "message_updated"
	EventUserTyping      = "user_typing"
	EventPresenceChanged = "presence_changed"
)

// DeletedMsgPlaceholder 撤回消息后的预览占位
const DeletedMsgPlaceholder = "[该消息已删除]"

// PreviewMaxLen 会话预览最大长度
const PreviewMaxLen = 50
