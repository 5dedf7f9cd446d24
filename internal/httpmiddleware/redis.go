package httpmiddleware

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisWindow is a fixed-window limiter shared through Redis: at most limit
// requests per key per window.
type RedisWindow struct {
	client *redis.Client
	prefix string
	limit  int64
	window time.Duration
	now    func() time.Time
}

func NewRedisWindow(client *redis.Client, perMinute int) *RedisWindow {
	return &RedisWindow{
		client: client,
		prefix: "attendance:ratelimit:",
		limit:  int64(perMinute),
		window: time.Minute,
		now:    time.Now,
	}
}

func (w *RedisWindow) Allow(ctx context.Context, key string) (bool, error) {
	slot := w.now().UnixNano() / int64(w.window)
	k := w.prefix + key + ":" + strconv.FormatInt(slot, 10)

	pipe := w.client.TxPipeline()
	incr := pipe.Incr(ctx, k)
	pipe.Expire(ctx, k, w.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("rate limit %s: %w", key, err)
	}
	return incr.Val() <= w.limit, nil
}
