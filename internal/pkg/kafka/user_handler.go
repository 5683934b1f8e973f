package kafka

import (
	"Magpie/internal/pkg/es"
	"context"
	log "log/slog"
	"time"

	"github.com/IBM/sarama"
	"github.com/pkg/errors"
)

// UserHandler 消费 users 表的 CDC 变更，增量维护用户搜索索引
type UserHandler struct {
	userESRepo es.UserRepo
}

func NewUserHandler(userESRepo es.UserRepo) *UserHandler {
	return &UserHandler{
		userESRepo: userESRepo,
	}
}

func (s *UserHandler) Setup(sarama.ConsumerGroupSession) error {
	log.Info("user consumer setup")
	return nil
}

func (s *UserHandler) Cleanup(sarama.ConsumerGroupSession) error {
	log.Info("user consumer cleanup")
	return nil
}

func (s *UserHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	log.Info("topic-user consume claim")
	err := pullMessageBatch(session, claim, s.logic)
	if err != nil {
		log.Error("topic-user process batch error", "err", err)
		return err
	}
	log.Info("topic-user consume claim end")
	return nil
}

func (s *UserHandler) logic(ctx context.Context, msg *sarama.ConsumerMessage) error {
	canalMsg, err := ToCanalMessage(msg, "users")
	if err != nil {
		return err
	}

	row := canalMsg.Data[0]
	userID := StrToUint64(row["id"])

	if canalMsg.Type == DELETE || row["is_delete"] == "1" {
		if err = s.userESRepo.DeleteUser(ctx, userID); err != nil {
			return errors.Wrapf(err, "delete user %d from index", userID)
		}
		return nil
	}

	doc := s.toESModel(row)
	if err = s.userESRepo.IndexUser(ctx, doc, canalMsg.TS); err != nil {
		return errors.Wrapf(err, "index user %d", userID)
	}
	return nil
}

func (s *UserHandler) toESModel(row map[string]interface{}) *es.UserES {
	doc := &es.UserES{
		ID:       StrToUint64(row["id"]),
		IsOnline: row["is_online"] == "1",
	}
	if v, ok := row["nickname"].(string); ok {
		doc.Nickname = v
	}
	if v, ok := row["avatar_url"].(string); ok {
		doc.AvatarURL = v
	}
	if v, ok := row["created_at"].(string); ok {
		if t, err := time.Parse("2006-01-02 15:04:05", v); err == nil {
			doc.CreatedAt = t
		}
	}
	if v, ok := row["last_seen_at"].(string); ok && v != "" {
		if t, err := time.Parse("2006-01-02 15:04:05", v); err == nil {
			doc.LastSeenAt = &t
		}
	}
	return doc
}
