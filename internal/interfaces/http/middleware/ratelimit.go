package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"rexi-api/internal/config"
	"rexi-api/internal/interfaces/http/dto"
	"rexi-api/pkg/logger"
	"rexi-api/pkg/metrics"
)

// RateLimiter 限流器接口
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// KeyFunc 由客户端标识与路由生成限流键
type KeyFunc func(clientID, route string) string

// RateLimit 限流中间件，按浏览会话（缺失时按客户端 IP）与路由计数
func RateLimit(cfg config.RateLimitConfig, limiter RateLimiter, keyFn KeyFunc) gin.HandlerFunc {
	if !cfg.Enabled || limiter == nil {
		return func(c *gin.Context) {
			c.Next()
		}
	}
	if cfg.Limit <= 0 {
		cfg.Limit = 30
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	if keyFn == nil {
		keyFn = func(clientID, route string) string { return "ratelimit:" + clientID + ":" + route }
	}

	return func(c *gin.Context) {
		client := ScopeID(c)
		if client == "" {
			client = c.ClientIP()
		}
		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}

		allowed, err := limiter.Allow(c.Request.Context(), keyFn(client, route), cfg.Limit, cfg.Window)
		if err != nil {
			// 限流器故障时放行
			logger.Warn(c.Request.Context(), "rate limiter unavailable", "error", err.Error())
			c.Next()
			return
		}
		if !allowed {
			metrics.HTTPRejectedTotal.WithLabelValues("rate_limit").Inc()
			c.Abort()
			dto.Error(c, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}

		c.Next()
	}
}
