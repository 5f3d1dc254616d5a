package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
	"github.com/redis/go-redis/v9"
)

type RateLimiter struct {
	redis  *redis.Client
	limit  int64
	window time.Duration
}

func NewRateLimiter(redisClient *redis.Client, limit int64, window time.Duration) *RateLimiter {
	return &RateLimiter{redis: redisClient, limit: limit, window: window}
}

// PaymentRateLimit is a fixed-window limiter for the payment endpoints,
// keyed by the authenticated user, falling back to the caller IP. Redis
// being down fails open: rate limiting is protection, not a dependency.
func (r *RateLimiter) PaymentRateLimit() func(e *core.RequestEvent) error {
	return func(e *core.RequestEvent) error {
		if r.redis == nil {
			return e.Next()
		}

		id := e.RealIP()
		if e.Auth != nil {
			id = "user:" + e.Auth.Id
		}
		key := fmt.Sprintf("ratelimit:payments:%s", id)

		ctx := e.Request.Context()
		count, err := r.redis.Incr(ctx, key).Result()
		if err != nil {
			return e.Next()
		}
		if count == 1 {
			r.redis.Expire(ctx, key, r.window)
		}
		if count > r.limit {
			return apis.NewApiError(http.StatusTooManyRequests,
				"Rate limit exceeded. Please try again later.", nil)
		}

		return e.Next()
	}
}
