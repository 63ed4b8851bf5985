package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mx-space/contentgen/internal/config"
	pkgredis "github.com/mx-space/contentgen/internal/pkg/redis"
)

// RateLimit returns a fixed-window limiter keyed by client IP. A Max of 0
// disables it; a redis failure lets the request through.
func RateLimit(rc *pkgredis.Client, cfg config.RateLimitConfig, log *zap.Logger) gin.HandlerFunc {
	window := cfg.Window
	if window <= 0 {
		window = time.Second
	}
	retryAfter := strconv.Itoa(max(1, int(window/time.Second)))

	return func(c *gin.Context) {
		if cfg.Max <= 0 || rc == nil {
			c.Next()
			return
		}

		ip := c.ClientIP()
		if ip == "" {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		slot := time.Now().UnixNano() / int64(window)
		key := fmt.Sprintf("cg:rate_limit:%s:%d", ip, slot)

		count, err := rc.IncrWindow(ctx, key, window+time.Second)
		if err != nil {
			log.Debug("rate limit unavailable", zap.Error(err))
			c.Next()
			return
		}

		if count > int64(cfg.Max) {
			c.Header("Retry-After", retryAfter)
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"ok":      0,
				"code":    http.StatusTooManyRequests,
				"message": "Too many requests, slow down",
			})
			return
		}

		c.Next()
	}
}
