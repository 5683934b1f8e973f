package bus

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// redisBus 基于 Redis Pub/Sub 的总线实现
type redisBus struct {
	client *redis.Client
}

func NewRedisBus(client *redis.Client) Bus {
	return &redisBus{client: client}
}

func (s *redisBus) Publish(ctx context.Context, channel string, payload []byte) error {
	return s.client.Publish(ctx, channel, payload).Err()
}

func (s *redisBus) PSubscribe(ctx context.Context, pattern string) (Subscription, error) {
	pubsub := s.client.PSubscribe(ctx, pattern)
	// 确认订阅生效后再返回，避免丢掉紧随其后的事件
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, err
	}

	sub := &redisSubscription{
		pubsub: pubsub,
		events: make(chan Event, 256),
	}
	go sub.pump()
	return sub, nil
}

type redisSubscription struct {
	pubsub *redis.PubSub
	events chan Event
}

func (s *redisSubscription) pump() {
	defer close(s.events)
	for msg := range s.pubsub.Channel() {
		s.events <- Event{Channel: msg.Channel, Payload: []byte(msg.Payload)}
	}
}

func (s *redisSubscription) Events() <-chan Event {
	return s.events
}

func (s *redisSubscription) Close() error {
	return s.pubsub.Close()
}
