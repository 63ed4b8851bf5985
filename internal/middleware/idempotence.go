package middleware

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	pkgredis "github.com/mx-space/contentgen/internal/pkg/redis"
)

const (
	IdempotenceHeader = "x-idempotence"
	idempotenceTTL    = 60 * time.Second
	idempotenceKey    = "cg:idempotence:"
)

// Idempotence rejects a repeated POST carrying the same x-idempotence header
// while the first one is in flight, or within 60s after it succeeded.
// Requests without the header pass through.
func Idempotence(rc *pkgredis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodPost || rc == nil {
			c.Next()
			return
		}
		hdr := strings.TrimSpace(c.GetHeader(IdempotenceHeader))
		if hdr == "" {
			c.Next()
			return
		}

		sum := sha256.Sum256([]byte(c.Request.URL.Path + "|" + hdr))
		redisKey := idempotenceKey + hex.EncodeToString(sum[:])
		ctx := c.Request.Context()

		claimed, err := rc.Raw().SetNX(ctx, redisKey, "0", idempotenceTTL).Result()
		if err != nil {
			c.Next()
			return
		}
		if !claimed {
			msg := "The same request can only be sent once within 60 seconds"
			if val, _ := rc.Get(ctx, redisKey); val == "0" {
				msg = "The same request is still being processed"
			}
			c.AbortWithStatusJSON(http.StatusConflict, gin.H{
				"ok":      0,
				"code":    http.StatusConflict,
				"message": msg,
			})
			return
		}

		c.Next()

		status := c.Writer.Status()
		if status >= 200 && status < 300 {
			rc.Raw().Set(ctx, redisKey, "1", redis.KeepTTL)
		} else {
			_ = rc.Del(ctx, redisKey)
		}
	}
}
