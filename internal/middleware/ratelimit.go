package middleware

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	apperrors "fintrack/internal/errors"
	"fintrack/internal/logger"
	"fintrack/internal/metrics"
)

// RateLimiter is a fixed-window limiter keyed by user (or client IP for
// anonymous requests). With a Redis client the window is shared across
// instances; without one an in-process map is used.
type RateLimiter struct {
	redis       *redis.Client
	maxRequests int
	window      time.Duration

	mu      sync.Mutex
	clients map[string]*windowCount
	now     func() time.Time
}

type windowCount struct {
	start time.Time
	count int
}

// NewRateLimiter creates a limiter. rdb may be nil.
func NewRateLimiter(rdb *redis.Client, maxRequests int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		redis:       rdb,
		maxRequests: maxRequests,
		window:      window,
		clients:     make(map[string]*windowCount),
		now:         time.Now,
	}
}

// Middleware returns the gin handler. A non-positive limit disables it.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if rl.maxRequests <= 0 {
			c.Next()
			return
		}

		endpoint := c.FullPath()
		metrics.RLRequests.WithLabelValues(endpoint).Inc()

		allowed, retryAfter := rl.allow(c.Request.Context(), identity(c))
		if !allowed {
			metrics.RLBlocked.WithLabelValues(endpoint).Inc()
			c.Header("Retry-After", strconv.Itoa(retryAfterSeconds(retryAfter)))
			abortWithError(c, apperrors.ErrRateLimited)
			return
		}
		c.Next()
	}
}

func (rl *RateLimiter) allow(ctx context.Context, ident string) (bool, time.Duration) {
	if rl.redis != nil {
		allowed, retryAfter, err := rl.allowRedis(ctx, ident)
		if err == nil {
			return allowed, retryAfter
		}
		// Fail open: a Redis outage must not take the API down.
		logger.Get().Warnw("rate limiter redis error", "error", err)
		return true, 0
	}
	return rl.allowMemory(ident)
}

// allowRedis implements INCR/EXPIRE on rl:<window_seconds>:<identity>.
func (rl *RateLimiter) allowRedis(ctx context.Context, ident string) (bool, time.Duration, error) {
	key := "rl:" + strconv.FormatInt(int64(rl.window.Seconds()), 10) + ":" + ident

	val, err := rl.redis.Incr(ctx, key).Result()
	if err != nil {
		return false, 0, err
	}
	if val == 1 {
		if err := rl.redis.Expire(ctx, key, rl.window).Err(); err != nil {
			return false, 0, err
		}
	}
	if val <= int64(rl.maxRequests) {
		return true, 0, nil
	}

	ttl, err := rl.redis.PTTL(ctx, key).Result()
	if err != nil || ttl < 0 {
		ttl = rl.window
	}
	return false, ttl, nil
}

func (rl *RateLimiter) allowMemory(ident string) (bool, time.Duration) {
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	wc, ok := rl.clients[ident]
	if !ok || now.Sub(wc.start) >= rl.window {
		rl.clients[ident] = &windowCount{start: now, count: 1}
		return true, 0
	}

	wc.count++
	if wc.count > rl.maxRequests {
		return false, wc.start.Add(rl.window).Sub(now)
	}
	return true, 0
}

// Sweep drops expired in-process windows.
func (rl *RateLimiter) Sweep() {
	now := rl.now()
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for k, wc := range rl.clients {
		if now.Sub(wc.start) >= rl.window {
			delete(rl.clients, k)
		}
	}
}

// StartSweeper runs Sweep every window until ctx is done.
func (rl *RateLimiter) StartSweeper(ctx context.Context) {
	if rl.redis != nil || rl.window <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(rl.window)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				rl.Sweep()
			}
		}
	}()
}

func identity(c *gin.Context) string {
	if userID, ok := c.Get("userID"); ok {
		if id, ok := userID.(string); ok && id != "" {
			return "user:" + id
		}
	}
	return "ip:" + c.ClientIP()
}

func retryAfterSeconds(d time.Duration) int {
	secs := int((d + time.Second - 1) / time.Second)
	if secs < 1 {
		return 1
	}
	return secs
}
