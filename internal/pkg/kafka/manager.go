package kafka

import (
	"Magpie/internal/api/config"
	"Magpie/internal/pkg/es"
	"Magpie/internal/repository"
	"context"
	log "log/slog"

	"github.com/IBM/sarama"
)

// ConsumerManager 管理所有 Kafka 消费者
type ConsumerManager struct {
	usersConsumer sarama.ConsumerGroup
	usersHandler  sarama.ConsumerGroupHandler

	metricConsumer sarama.ConsumerGroup
	metricHandler  sarama.ConsumerGroupHandler
}

// NewConsumerManager 构造函数
func NewConsumerManager(
	cfg *config.Config,
	userESRepo es.UserRepo,
	metricRepo repository.MetricRepo,
) (*ConsumerManager, error) {
	saramaCfg := newSaramaConfig(cfg.Kafka)

	usersConsumer, err := sarama.NewConsumerGroup(cfg.Kafka.Brokers, cfg.KafkaUserConsumer.GroupID, saramaCfg)
	if err != nil {
		return nil, err
	}
	usersHandler := NewUserHandler(userESRepo)

	metricConsumer, err := sarama.NewConsumerGroup(cfg.Kafka.Brokers, cfg.KafkaMessageConsumer.GroupID, saramaCfg)
	if err != nil {
		return nil, err
	}
	metricHandler := NewMessageMetricHandler(metricRepo)

	return &ConsumerManager{
		usersConsumer:  usersConsumer,
		usersHandler:   usersHandler,
		metricConsumer: metricConsumer,
		metricHandler:  metricHandler,
	}, nil
}

// Start 启动所有消费者，阻塞到 ctx 取消
func (m *ConsumerManager) Start(ctx context.Context, cfg *config.Config) error {
	go func() {
		topic := cfg.KafkaUserConsumer.Topic
		log.Info("User consumer started", "topic", topic)
		for {
			if err := m.usersConsumer.Consume(ctx, []string{topic}, m.usersHandler); err != nil {
				log.Error("Error from consumer", "err", err)
			}
			if ctx.Err() != nil {
				return
			}
		}
	}()

	go func() {
		topic := cfg.KafkaMessageConsumer.Topic
		log.Info("Message metric consumer started", "topic", topic)
		for {
			if err := m.metricConsumer.Consume(ctx, []string{topic}, m.metricHandler); err != nil {
				log.Error("Error from consumer", "err", err)
			}
			if ctx.Err() != nil {
				return
			}
		}
	}()

	<-ctx.Done()
	log.Info("Kafka Manager shutting down...")

	if err := m.usersConsumer.Close(); err != nil {
		log.Error("Failed to close users consumer", "err", err)
	}
	if err := m.metricConsumer.Close(); err != nil {
		log.Error("Failed to close metric consumer", "err", err)
	}

	return nil
}
