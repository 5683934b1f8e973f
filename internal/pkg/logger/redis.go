package logger

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"net"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisSlowThreshold = 100 * time.Millisecond

// RedisLoggerHook 以 go-redis Hook 形式记录命令错误与慢命令
// 事件总线的 Publish 也走这里，分发链路的延迟异常能第一时间暴露
type RedisLoggerHook struct{}

func NewRedisLogger() *RedisLoggerHook {
	return &RedisLoggerHook{}
}

func (s *RedisLoggerHook) DialHook(next redis.DialHook) redis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		start := time.Now()
		conn, err := next(ctx, network, addr)
		if err != nil {
			log.ErrorContext(ctx, "Redis Dial Error",
				log.String("addr", addr),
				log.Duration("latency", time.Since(start)),
				log.Any("err", err),
			)
		}
		return conn, err
	}
}

func (s *RedisLoggerHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		start := time.Now()
		err := next(ctx, cmd)
		elapsed := time.Since(start)

		if err == nil {
			if elapsed > redisSlowThreshold {
				log.WarnContext(ctx, "Redis Slow",
					log.String("command", cmd.Name()),
					log.Duration("latency", elapsed),
				)
			}
			return nil
		}

		if ignorableRedisErr(cmd.Name(), err) {
			return err
		}
		log.ErrorContext(ctx, "Redis Error",
			log.String("command", cmd.Name()),
			log.String("args", redactArgs(cmd)),
			log.Duration("latency", elapsed),
			log.Any("err", err),
		)
		return err
	}
}

func (s *RedisLoggerHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		start := time.Now()
		err := next(ctx, cmds)
		elapsed := time.Since(start)

		if err != nil {
			log.ErrorContext(ctx, "Redis Pipeline Error",
				log.Int("cmd_count", len(cmds)),
				log.Duration("latency", elapsed),
				log.Any("err", err),
			)
		} else if elapsed > redisSlowThreshold {
			log.WarnContext(ctx, "Redis Pipeline Slow",
				log.Int("cmd_count", len(cmds)),
				log.Duration("latency", elapsed),
			)
		}
		return err
	}
}

// ignorableRedisErr 未命中与客户端握手噪音不值得告警
func ignorableRedisErr(cmdName string, err error) bool {
	if errors.Is(err, redis.Nil) {
		return true
	}
	if cmdName == "client" && strings.Contains(err.Error(), "setinfo") {
		return true
	}
	return false
}

// redactArgs 鉴权类命令不落参数
func redactArgs(cmd redis.Cmder) string {
	if cmd.Name() == "auth" || cmd.Name() == "hello" {
		return "[PROTECTED]"
	}
	return fmt.Sprint(cmd.Args())
}
