package job

import (
	"Magpie/internal/pkg/mongo"
	"context"
	log "log/slog"
	"time"
)

const purgeRetention = 30 * 24 * time.Hour

// MessagePurgeJob 物理清理超过保留期的软删除消息
type MessagePurgeJob struct {
	messageRepo mongo.MessageRepo
}

func NewMessagePurgeJob(messageRepo mongo.MessageRepo) *MessagePurgeJob {
	return &MessagePurgeJob{messageRepo: messageRepo}
}

func (s *MessagePurgeJob) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	cutoff := time.Now().Add(-purgeRetention)
	purged, err := s.messageRepo.PurgeDeletedBefore(ctx, cutoff)
	if err != nil {
		log.Error("message purge job failed", "err", err)
		return
	}
	if purged > 0 {
		log.Info("message purge job finished", "purged_count", purged)
	}
}
