package model

import "time"

// Contact 通讯录条目
type Contact struct {
	ID        uint64 `gorm:"primaryKey;autoIncrement" json:"id"`
	OwnerID   uint64 `gorm:"uniqueIndex:idx_owner_contact;index" json:"ownerId"`
	ContactID uint64 `gorm:"uniqueIndex:idx_owner_contact" json:"contactId"`
	Remark    string `gorm:"type:varchar(50)" json:"remark"` // 备注名
	CreatedAt time.Time

	Contact User `gorm:"foreignKey:ContactID;references:ID" json:"contact"`
}

func (Contact) TableName() string { return "contacts" }
