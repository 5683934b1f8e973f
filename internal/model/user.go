package model

import (
	"time"
)

type User struct {
	ID          uint64  `gorm:"primaryKey"`
	Phone       *string `gorm:"type:varchar(30);uniqueIndex:idx_phone"` // 归一化后的纯数字号码
	PhoneSuffix string  `gorm:"type:varchar(10);index:idx_phone_suffix"`
	Password    *string `gorm:"type:varchar(255)"`
	Nickname    string  `gorm:"type:varchar(50)"`
	AvatarURL   string  `gorm:"type:varchar(255);default:'default_avatar.png'"`
	IsOnline    bool    `gorm:"type:tinyint(1);default:0"`
	LastSeenAt  *time.Time
	IsDelete    bool `gorm:"type:tinyint(1);default:0"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (User) TableName() string {
	return "users"
}
