package middleware

import (
	"Magpie/internal/api/config"
	"Magpie/internal/pkg/consts"
	"Magpie/internal/pkg/redis"
	"Magpie/internal/pkg/response"
	"Magpie/internal/service"
	"fmt"
	log "log/slog"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

// RateLimitMiddleware 基于 Redis ZSet 的滑动窗口限流，按用户计数
// Redis 不可用时放行，限流不应成为单点
func RateLimitMiddleware(cfg *config.RateLimitConfig) gin.HandlerFunc {
	window := time.Duration(cfg.WindowSeconds) * time.Second
	return func(c *gin.Context) {
		userID := c.GetUint64("user_id")
		if userID == 0 {
			c.Next()
			return
		}

		key := consts.RateLimitKey + strconv.FormatUint(userID, 10)
		now := time.Now()
		windowStart := now.Add(-window)

		rdb := redis.GetRdbClient()
		pipe := rdb.TxPipeline()
		pipe.ZRemRangeByScore(c.Request.Context(), key, "0", strconv.FormatInt(windowStart.UnixNano(), 10))
		countCmd := pipe.ZCard(c.Request.Context(), key)
		pipe.ZAdd(c.Request.Context(), key, goredis.Z{
			Score:  float64(now.UnixNano()),
			Member: fmt.Sprintf("%d-%s", now.UnixNano(), uuid.NewString()),
		})
		pipe.Expire(c.Request.Context(), key, window)

		if _, err := pipe.Exec(c.Request.Context()); err != nil {
			log.Warn("限流计数失败，请求放行", "err", err)
			c.Next()
			return
		}

		if countCmd.Val() >= int64(cfg.MaxRequests) {
			response.Error(c, service.ErrRateLimited)
			c.Abort()
			return
		}

		c.Next()
	}
}
