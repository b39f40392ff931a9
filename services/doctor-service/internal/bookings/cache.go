package bookings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/md-rashed-zaman/doctorsched/services/doctor-service/internal/availability"
	"github.com/redis/go-redis/v9"
)

type redisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// CachedSource is a read-through Redis cache in front of another Source. Redis failures are
// logged and the request falls through to next.
type CachedSource struct {
	rdb    redisClient
	next   Source
	ttl    time.Duration
	logger *slog.Logger
}

func NewCachedSource(rdb redisClient, next Source, ttl time.Duration, logger *slog.Logger) *CachedSource {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &CachedSource{rdb: rdb, next: next, ttl: ttl, logger: logger}
}

type cachedInterval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

func cacheKey(doctorID int64, date time.Time) string {
	return fmt.Sprintf("booked:%d:%s", doctorID, date.Format(time.DateOnly))
}

func (c *CachedSource) BookedIntervals(ctx context.Context, doctorID int64, date time.Time) ([]availability.Interval, error) {
	key := cacheKey(doctorID, date)

	raw, err := c.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var cached []cachedInterval
		if err := json.Unmarshal(raw, &cached); err == nil {
			out := make([]availability.Interval, 0, len(cached))
			for _, ci := range cached {
				out = append(out, availability.Interval{Start: ci.Start, End: ci.End})
			}
			return out, nil
		}
		c.logger.Warn("discarding corrupt cache entry", "key", key)
	case !errors.Is(err, redis.Nil):
		c.logger.Warn("booking cache read failed", "key", key, "err", err)
	}

	intervals, err := c.next.BookedIntervals(ctx, doctorID, date)
	if err != nil {
		return nil, err
	}

	cached := make([]cachedInterval, 0, len(intervals))
	for _, iv := range intervals {
		cached = append(cached, cachedInterval{Start: iv.Start, End: iv.End})
	}
	if payload, err := json.Marshal(cached); err == nil {
		if err := c.rdb.Set(ctx, key, payload, c.ttl).Err(); err != nil {
			c.logger.Warn("booking cache write failed", "key", key, "err", err)
		}
	}
	return intervals, nil
}

// Invalidate drops the cached entries of the doctor for the given clinic dates.
func (c *CachedSource) Invalidate(ctx context.Context, doctorID int64, dates ...time.Time) error {
	if len(dates) == 0 {
		return nil
	}
	keys := make([]string, 0, len(dates))
	for _, d := range dates {
		keys = append(keys, cacheKey(doctorID, d))
	}
	return c.rdb.Del(ctx, keys...).Err()
}
