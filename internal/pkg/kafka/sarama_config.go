package kafka

import (
	"Magpie/internal/api/config"
	"time"

	"github.com/IBM/sarama"
)

// newSaramaConfig 构造消费组共用的 sarama 配置
// 关闭自动提交，偏移量在批处理成功后手动标记
func newSaramaConfig(kafkaCfg config.KafkaConfig) *sarama.Config {
	c := sarama.NewConfig()

	c.Consumer.Return.Errors = true
	c.Consumer.Offsets.Initial = sarama.OffsetNewest
	c.Consumer.Offsets.AutoCommit.Enable = false

	consumerCfg := kafkaCfg.Consumer
	c.Consumer.Group.Session.Timeout = time.Duration(consumerCfg.SessionTimeout) * time.Second
	c.Consumer.Group.Heartbeat.Interval = time.Duration(consumerCfg.HeartbeatInterval) * time.Second
	c.Consumer.Group.Rebalance.Timeout = time.Duration(consumerCfg.RebalanceTimeout) * time.Second
	c.Consumer.MaxProcessingTime = time.Duration(consumerCfg.MaxProcessingTime) * time.Second

	if kafkaCfg.Sasl.Enable {
		c.Net.SASL.Enable = true
		c.Net.SASL.Mechanism = sarama.SASLTypePlaintext
		c.Net.SASL.User = kafkaCfg.Sasl.Username
		c.Net.SASL.Password = kafkaCfg.Sasl.Password
	}

	return c
}
