package mongo

import (
	"time"
)

// Message MongoDB 消息明细模型
type Message struct {
	ID          string    `bson:"_id,omitempty" json:"id"`             // ObjectID 十六进制串
	PairID      uint64    `bson:"pair_id" json:"pairId"`               // 关联 MySQL 的会话对 ID
	SenderID    uint64    `bson:"sender_id" json:"senderId"`           // 发送者 UID
	RecipientID uint64    `bson:"recipient_id" json:"recipientId"`     // 接收者 UID
	MsgType     int       `bson:"msg_type" json:"msgType"`             // 1-文本, 2-文件
	Content     string    `bson:"content" json:"content"`              // 文本内容或文件名预览
	Payload     *Payload  `bson:"payload,omitempty" json:"payload"`    // 文件消息附件元数据
	Seq         uint64    `bson:"seq" json:"seq"`                      // 该消息在会话中的唯一绝对序号 (来自 MySQL)
	ReplyTo     string    `bson:"reply_to,omitempty" json:"replyTo"`   // 被回复消息的 ID，弱引用
	IsEdited    bool      `bson:"is_edited" json:"isEdited"`           // 编辑标记
	IsDeleted   bool      `bson:"is_deleted" json:"isDeleted"`         // 软删除标记，读路径排除
	CreatedAt   time.Time `bson:"created_at" json:"createdAt"`         // 消息发送时间
	UpdatedAt   time.Time `bson:"updated_at,omitempty" json:"updatedAt"`
}

// Payload 文件附件元数据
type Payload struct {
	FileName string `bson:"file_name" json:"file_name"`
	MimeType string `bson:"mime_type" json:"mime_type"`
	MediaURL string `bson:"url" json:"url"`
	Size     int64  `bson:"size" json:"size"`
	Width    int    `bson:"width,omitempty" json:"width,omitempty"`
	Height   int    `bson:"height,omitempty" json:"height,omitempty"`
	ThumbURL string `bson:"thumb_url,omitempty" json:"thumb_url,omitempty"`
}
