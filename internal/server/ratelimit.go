package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/mahmut0ff/Modern-HandShakeMeApp-sub006/internal/api"
	"github.com/mahmut0ff/Modern-HandShakeMeApp-sub006/internal/auth"
	"github.com/mahmut0ff/Modern-HandShakeMeApp-sub006/internal/logger"
	"github.com/mahmut0ff/Modern-HandShakeMeApp-sub006/internal/metrics"
)

// RateLimiter counts requests per caller in fixed Redis windows, so every
// instance behind a load balancer shares one budget.
type RateLimiter struct {
	rdb    *redis.Client
	limit  int
	window time.Duration
	now    func() time.Time
}

func NewRateLimiter(rdb *redis.Client, limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{rdb: rdb, limit: limit, window: window, now: time.Now}
}

func (rl *RateLimiter) key(caller string) string {
	bucket := rl.now().UnixNano() / int64(rl.window)
	return fmt.Sprintf("ratelimit:%s:%d", caller, bucket)
}

// Middleware must run after authentication to key by user; anonymous callers
// are keyed by IP.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		caller := "ip:" + c.ClientIP()
		if userID, ok := auth.GetUserID(c); ok {
			caller = "user:" + userID
		}
		key := rl.key(caller)

		pipe := rl.rdb.TxPipeline()
		incr := pipe.Incr(c.Request.Context(), key)
		pipe.Expire(c.Request.Context(), key, rl.window)
		if _, err := pipe.Exec(c.Request.Context()); err != nil {
			// Fail open: losing Redis must not take bookings down.
			logger.Warn("rate limiter unavailable", "error", err)
			c.Next()
			return
		}

		if incr.Val() > int64(rl.limit) {
			metrics.RecordRateLimited()
			c.AbortWithStatusJSON(http.StatusTooManyRequests, api.ErrorResponse{
				Error: "rate limit exceeded",
				Code:  "RATE_LIMITED",
			})
			return
		}
		c.Next()
	}
}
