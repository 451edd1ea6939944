package services

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"golang.org/x/sync/singleflight"

	"fintrack/internal/cache"
	"fintrack/internal/events"
	"fintrack/internal/logger"
	"fintrack/internal/metrics"
	"fintrack/internal/models"
)

const analyticsCacheName = "analytics"

// DefaultAnalyticsTTL bounds how stale a cached figure can be when an
// invalidation was missed.
const DefaultAnalyticsTTL = 10 * time.Minute

// versionTTL outlives any cached result so old versions never come back.
const versionTTL = 30 * 24 * time.Hour

// cachedAnalytics memoizes an AnalyticsServicer per user. Keys embed a
// per-user version that AnalyticsInvalidator replaces on every write, so a
// stale entry is never read again and simply expires.
type cachedAnalytics struct {
	next  AnalyticsServicer
	cache cache.Cache
	ttl   time.Duration
	group singleflight.Group
}

// NewCachedAnalyticsService wraps next with c. Concurrent identical requests
// share one computation.
func NewCachedAnalyticsService(next AnalyticsServicer, c cache.Cache, ttl time.Duration) AnalyticsServicer {
	if ttl <= 0 {
		ttl = DefaultAnalyticsTTL
	}
	return &cachedAnalytics{next: next, cache: c, ttl: ttl}
}

func versionKey(userID string) string {
	return "analytics:ver:" + userID
}

func (c *cachedAnalytics) version(ctx context.Context, userID string) string {
	v, ok, err := c.cache.Get(ctx, versionKey(userID))
	if err != nil || !ok {
		return "0"
	}
	return string(v)
}

func (c *cachedAnalytics) Summary(ctx context.Context, userID string, from, to time.Time) (*Summary, error) {
	key := fmt.Sprintf("summary:%d:%d", from.UTC().Unix(), to.UTC().Unix())
	return cachedCall(ctx, c, userID, key, func() (*Summary, error) {
		return c.next.Summary(ctx, userID, from, to)
	})
}

func (c *cachedAnalytics) CategoryBreakdown(ctx context.Context, userID string, txType models.TransactionType, from, to time.Time) ([]CategoryTotal, error) {
	key := fmt.Sprintf("categories:%s:%d:%d", txType, from.UTC().Unix(), to.UTC().Unix())
	return cachedCall(ctx, c, userID, key, func() ([]CategoryTotal, error) {
		return c.next.CategoryBreakdown(ctx, userID, txType, from, to)
	})
}

func (c *cachedAnalytics) Trends(ctx context.Context, userID string, interval TrendInterval, from, to time.Time) ([]TrendPoint, error) {
	key := fmt.Sprintf("trends:%s:%d:%d", interval, from.UTC().Unix(), to.UTC().Unix())
	return cachedCall(ctx, c, userID, key, func() ([]TrendPoint, error) {
		return c.next.Trends(ctx, userID, interval, from, to)
	})
}

// cachedCall reads key from the cache or computes it once across concurrent
// callers. Cache failures fall through to compute.
func cachedCall[T any](ctx context.Context, c *cachedAnalytics, userID, key string, compute func() (T, error)) (T, error) {
	full := "analytics:" + userID + ":v" + c.version(ctx, userID) + ":" + key

	var cached T
	ok, err := cache.GetJSON(ctx, c.cache, full, &cached)
	switch {
	case err != nil:
		metrics.CacheLookups.WithLabelValues(analyticsCacheName, "error").Inc()
		logger.Get().Warnw("analytics cache read failed", "key", full, "error", err)
	case ok:
		metrics.CacheLookups.WithLabelValues(analyticsCacheName, "hit").Inc()
		return cached, nil
	default:
		metrics.CacheLookups.WithLabelValues(analyticsCacheName, "miss").Inc()
	}

	v, err, _ := c.group.Do(full, func() (interface{}, error) {
		result, err := compute()
		if err != nil {
			return nil, err
		}
		if err := cache.SetJSON(ctx, c.cache, full, result, c.ttl); err != nil {
			logger.Get().Warnw("analytics cache write failed", "key", full, "error", err)
		}
		return result, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}

// AnalyticsInvalidator bumps a user's analytics version whenever an event
// reports a change to their transactions.
type AnalyticsInvalidator struct {
	cache cache.Cache
	now   func() time.Time
}

// NewAnalyticsInvalidator creates an events.Publisher that invalidates c.
func NewAnalyticsInvalidator(c cache.Cache) *AnalyticsInvalidator {
	return &AnalyticsInvalidator{cache: c, now: time.Now}
}

// Publish implements events.Publisher.
func (a *AnalyticsInvalidator) Publish(ctx context.Context, e events.Event) {
	if !e.Type.ChangesTransactions() || e.UserID == "" {
		return
	}
	if err := a.Invalidate(ctx, e.UserID); err != nil {
		logger.Get().Warnw("analytics cache invalidation failed", "user_id", e.UserID, "error", err)
	}
}

// Invalidate makes every cached figure of the user unreachable.
func (a *AnalyticsInvalidator) Invalidate(ctx context.Context, userID string) error {
	version := strconv.FormatInt(a.now().UnixNano(), 36)
	return a.cache.Set(ctx, versionKey(userID), []byte(version), versionTTL)
}
