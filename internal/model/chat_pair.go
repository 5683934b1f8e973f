package model

import "time"

// ChatPair 单聊会话对主表，每对用户一行，承担定序职责
type ChatPair struct {
	ID             uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	PairKey        string    `gorm:"uniqueIndex;type:varchar(64)" json:"pairKey"` // uid小_uid大
	MaxMsgSeq      uint64    `gorm:"not null;default:0" json:"maxMsgSeq"`         // 会话内绝对序号
	LastMsgContent string    `gorm:"type:varchar(255)" json:"lastMsgContent"`
	LastMsgType    int8      `gorm:"not null;default:1" json:"lastMsgType"`
	LastSenderID   uint64    `gorm:"not null;default:0" json:"lastSenderId"`
	LastMessageAt  time.Time `gorm:"index" json:"lastMessageAt"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

func (ChatPair) TableName() string { return "chat_pairs" }
