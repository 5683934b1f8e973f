package model

import "time"

// MessageDailyMetric 每日消息量统计，由 CDC 消费者累加
type MessageDailyMetric struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement"`
	StatDate  time.Time `gorm:"type:date;uniqueIndex:idx_stat_date"`
	SendCount uint64    `gorm:"not null;default:0"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (MessageDailyMetric) TableName() string { return "message_daily_metrics" }
