package repository

import (
	"Magpie/internal/model"
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type MetricRepo interface {
	IncrDailySendCount(ctx context.Context, day time.Time, delta uint64) error
	GetDailyMetrics(ctx context.Context, since time.Time) ([]*model.MessageDailyMetric, error)
}

type metricRepoImpl struct {
	db *gorm.DB
}

func NewMetricRepo(db *gorm.DB) MetricRepo {
	return &metricRepoImpl{db: db}
}

// IncrDailySendCount 按天累加消息量，CDC 消费侧调用
func (s *metricRepoImpl) IncrDailySendCount(ctx context.Context, day time.Time, delta uint64) error {
	row := &model.MessageDailyMetric{
		StatDate:  day.Truncate(24 * time.Hour),
		SendCount: delta,
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "stat_date"}},
		DoUpdates: clause.Assignments(map[string]interface{}{"send_count": gorm.Expr("send_count + ?", delta)}),
	}).Create(row).Error
}

func (s *metricRepoImpl) GetDailyMetrics(ctx context.Context, since time.Time) ([]*model.MessageDailyMetric, error) {
	var rows []*model.MessageDailyMetric
	err := s.db.WithContext(ctx).
		Where("stat_date >= ?", since).
		Order("stat_date ASC").
		Find(&rows).Error
	return rows, err
}
