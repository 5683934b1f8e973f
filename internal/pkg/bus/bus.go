package bus

import "context"

// Event 总线上的一条原始事件
type Event struct {
	Channel string
	Payload []byte
}

// Subscription 一次订阅的句柄，Close 后 Events 通道关闭
type Subscription interface {
	Events() <-chan Event
	Close() error
}

// Bus 进程内组件与变更总线之间的边界
// 存储层在持久化成功后 Publish，路由器以单条长订阅消费
type Bus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	PSubscribe(ctx context.Context, pattern string) (Subscription, error)
}
