package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"circle-go/internal/config"
)

// incrWithExpire bumps the window counter and starts its TTL on first hit,
// in one round trip so concurrent callers never see a counter without expiry.
var incrWithExpire = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
	redis.call("EXPIRE", KEYS[1], ARGV[1])
end
return current
`)

const rateLimitKeyPrefix = "rl:"

// NewClient connects to Redis and pings it once.
func NewClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", cfg.Addr, err)
	}
	return client, nil
}

// FixedWindowLimiter allows limit hits per key in each window.
type FixedWindowLimiter struct {
	client redis.Scripter
	limit  int64
	window time.Duration
}

// NewFixedWindowLimiter returns a limiter backed by client. Windows shorter
// than a second are rounded up to one second.
func NewFixedWindowLimiter(client redis.Scripter, limit int64, window time.Duration) *FixedWindowLimiter {
	return &FixedWindowLimiter{client: client, limit: limit, window: window}
}

// Allow records a hit for key and reports whether it is within the limit.
func (l *FixedWindowLimiter) Allow(ctx context.Context, key string) (bool, error) {
	count, err := incrWithExpire.Run(ctx, l.client, []string{rateLimitKeyPrefix + key}, windowSeconds(l.window)).Result()
	if err != nil {
		return false, fmt.Errorf("rate limit script for %s: %w", key, err)
	}
	n, err := toCount(count)
	if err != nil {
		return false, err
	}
	return n <= l.limit, nil
}

func windowSeconds(window time.Duration) int64 {
	secs := int64(window / time.Second)
	if window%time.Second != 0 {
		secs++
	}
	if secs < 1 {
		secs = 1
	}
	return secs
}

// toCount normalizes the script result; Lua numbers come back as int64.
func toCount(v interface{}) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case float64:
		return int64(n), nil
	default:
		return 0, fmt.Errorf("rate limit script returned unexpected type %T", v)
	}
}
