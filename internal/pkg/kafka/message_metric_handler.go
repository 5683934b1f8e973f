package kafka

import (
	"Magpie/internal/repository"
	"context"
	log "log/slog"
	"time"

	"github.com/IBM/sarama"
	"github.com/pkg/errors"
)

// MessageMetricHandler 消费 chat_pairs 表的 CDC 变更，按天统计消息量
// max_msg_seq 的增量即该会话新增的消息条数
type MessageMetricHandler struct {
	metricRepo repository.MetricRepo
}

func NewMessageMetricHandler(metricRepo repository.MetricRepo) *MessageMetricHandler {
	return &MessageMetricHandler{
		metricRepo: metricRepo,
	}
}

func (s *MessageMetricHandler) Setup(sarama.ConsumerGroupSession) error {
	log.Info("message metric consumer setup")
	return nil
}

func (s *MessageMetricHandler) Cleanup(sarama.ConsumerGroupSession) error {
	log.Info("message metric consumer cleanup")
	return nil
}

func (s *MessageMetricHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	log.Info("topic-chat-pairs consume claim")
	err := pullMessageBatch(session, claim, s.logic)
	if err != nil {
		log.Error("topic-chat-pairs process batch error", "err", err)
		return err
	}
	return nil
}

func (s *MessageMetricHandler) logic(ctx context.Context, msg *sarama.ConsumerMessage) error {
	canalMsg, err := ToCanalMessage(msg, "chat_pairs")
	if err != nil {
		return err
	}

	var delta uint64
	row := canalMsg.Data[0]
	newSeq := StrToUint64(row["max_msg_seq"])

	switch canalMsg.Type {
	case INSERT:
		delta = newSeq
	case UPDATE:
		if !canalMsg.ColumnChanged("max_msg_seq") {
			return nil
		}
		oldSeq := StrToUint64(canalMsg.Old[0]["max_msg_seq"])
		if newSeq <= oldSeq {
			return nil
		}
		delta = newSeq - oldSeq
	default:
		return nil
	}

	if delta == 0 {
		return nil
	}

	day := time.UnixMilli(canalMsg.ES)
	if err = s.metricRepo.IncrDailySendCount(ctx, day, delta); err != nil {
		return errors.Wrap(err, "incr daily send count")
	}
	return nil
}
