package redisstore

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateGate keeps lookup-throttle counters in Redis so every instance of the
// service enforces the same budget. The window TTL doubles as the reset
// lifecycle: when the key expires the budget starts over.
type RateGate struct {
	rdb *redis.Client
}

func NewRateGate(rdb *redis.Client) *RateGate {
	return &RateGate{rdb: rdb}
}

func (g *RateGate) Incr(ctx context.Context, key string, window time.Duration) (int64, time.Time, error) {
	pipe := g.rdb.TxPipeline()
	incr := pipe.Incr(ctx, key)
	// ExpireNX arms the window only on the first increment.
	pipe.ExpireNX(ctx, key, window)
	ttl := pipe.TTL(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, time.Time{}, err
	}

	remaining := ttl.Val()
	if remaining < 0 {
		remaining = window
	}
	return incr.Val(), time.Now().Add(remaining), nil
}

func (g *RateGate) Clear(ctx context.Context, key string) error {
	return g.rdb.Del(ctx, key).Err()
}
