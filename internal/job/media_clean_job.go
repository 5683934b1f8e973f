package job

import (
	"Magpie/internal/api/dto"
	"Magpie/internal/pkg/consts"
	"Magpie/internal/pkg/minio"
	"Magpie/internal/pkg/mongo"
	"Magpie/internal/pkg/redis"
	"context"
	log "log/slog"
	"time"

	"github.com/goccy/go-json"
)

// MediaCleanupJob 清理上传后始终未被消息引用的媒体文件
type MediaCleanupJob struct {
	messageRepo mongo.MessageRepo
}

func NewMediaCleanupJob(messageRepo mongo.MessageRepo) *MediaCleanupJob {
	return &MediaCleanupJob{messageRepo: messageRepo}
}

func (s *MediaCleanupJob) Run() {
	ctx := context.Background()
	log.Info("start media cleanup job")

	allMedia, err := redis.HGetAll(ctx, consts.MediaTempKey)
	if err != nil {
		log.Error("failed to get media temp hash", "err", err)
		return
	}

	now := time.Now().Unix()
	expiration := int64(24 * 60 * 60)
	count := 0

	for fileKey, val := range allMedia {
		var meta dto.MediaTempMetadata
		if err := json.Unmarshal([]byte(val), &meta); err != nil {
			log.Warn("invalid media meta format", "fileKey", fileKey)
			continue
		}

		if now-meta.CreatedAt <= expiration {
			continue
		}

		// 被消息引用的媒体转正，移出待清理表
		url := minio.GetPublicURL(minio.MainBucket, fileKey)
		referenced, err := s.messageRepo.HasMediaReference(ctx, url)
		if err != nil {
			log.Error("failed to check media reference", "fileKey", fileKey, "err", err)
			continue
		}

		if !referenced {
			if err = minio.DeleteFile(ctx, minio.MainBucket, fileKey); err != nil {
				log.Error("failed to delete expired file from minio", "fileKey", fileKey, "err", err)
				continue
			}
			count++
			log.Info("cleanup expired media resource", "fileKey", fileKey, "mime", meta.MimeType)
		}

		if err = redis.HDel(ctx, consts.MediaTempKey, fileKey); err != nil {
			log.Error("failed to remove media token from redis", "fileKey", fileKey, "err", err)
		}
	}

	if count > 0 {
		log.Info("media cleanup job finished", "cleaned_count", count)
	}
}
