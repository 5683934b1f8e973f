package logger

import (
	"context"
	log "log/slog"
)

// TraceIDKey 贯穿一次请求的追踪标识在 Context 中的键
const TraceIDKey = "trace_id"

// WithTraceID 把追踪标识写入 Context
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, TraceIDKey, traceID) //nolint:staticcheck
}

// ContextHandler 从 ctx 提取 trace_id 附加到每条日志
type ContextHandler struct {
	log.Handler
}

func (h *ContextHandler) Handle(ctx context.Context, r log.Record) error {
	if ctx != nil {
		if traceID, ok := ctx.Value(TraceIDKey).(string); ok && traceID != "" {
			r.AddAttrs(log.String("trace_id", traceID))
		}
	}
	return h.Handler.Handle(ctx, r)
}
