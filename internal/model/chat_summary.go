package model

import "time"

// ChatSummary 会话摘要表，每个 (owner, peer) 有序对一行
// 未读数只做相对自增 (+1) 与归零，不允许读改写回
type ChatSummary struct {
	ID             uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	OwnerID        uint64    `gorm:"uniqueIndex:idx_owner_peer;index" json:"ownerId"`
	PeerID         uint64    `gorm:"uniqueIndex:idx_owner_peer" json:"peerId"`
	PairID         uint64    `gorm:"index" json:"pairId"`
	UnreadCount    uint64    `gorm:"not null;default:0" json:"unreadCount"`
	IsArchived     int8      `gorm:"not null;default:0;index" json:"isArchived"`
	LastMsgContent string    `gorm:"type:varchar(255)" json:"lastMsgContent"`
	LastMsgType    int8      `gorm:"not null;default:1" json:"lastMsgType"`
	LastSenderID   uint64    `gorm:"not null;default:0" json:"lastSenderId"`
	LastMessageAt  time.Time `gorm:"index" json:"lastMessageAt"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

func (ChatSummary) TableName() string { return "chat_summaries" }
