package middleware

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"seminarbuchung/internal/cache"
	"seminarbuchung/internal/config"
	"seminarbuchung/internal/logger"

	"github.com/gin-gonic/gin"
)

// TokenTaker is the shared token bucket store
type TokenTaker interface {
	TakeToken(ctx context.Context, key string, b cache.Bucket, now time.Time) (cache.RateDecision, error)
}

// RateLimit ограничивает запросы по ip и маршруту. Ошибки хранилища пропускают запрос.
func RateLimit(cfg config.RateLimitConfig, store TokenTaker) gin.HandlerFunc {
	if !cfg.Enabled || store == nil {
		return func(c *gin.Context) { c.Next() }
	}

	bucket := cache.Bucket{
		Capacity:       cfg.Capacity,
		RefillTokens:   cfg.RefillTokens,
		RefillInterval: cfg.RefillInterval,
		TTL:            cfg.TTL,
	}

	return func(c *gin.Context) {
		key := rateKey(cfg.Prefix, c)

		decision, err := store.TakeToken(c.Request.Context(), key, bucket, time.Now())
		if err != nil {
			logger.WithContext(c.Request.Context()).Warn("Rate limiter unavailable", "key", key, "error", err)
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(cfg.Capacity))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(decision.Remaining, 10))

		if !decision.Allowed {
			secs := int(math.Ceil(decision.RetryAfter.Seconds()))
			c.Header("Retry-After", strconv.Itoa(secs))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "rate limit exceeded",
				"retry_after": secs,
			})
			return
		}

		c.Next()
	}
}

func rateKey(prefix string, c *gin.Context) string {
	ip := c.ClientIP()
	if ip == "" {
		ip = "unknown"
	}
	route := c.FullPath()
	if route == "" {
		route = c.Request.URL.Path
	}
	return strings.Join([]string{prefix, "ip", ip, "route", c.Request.Method + " " + route}, ":")
}
