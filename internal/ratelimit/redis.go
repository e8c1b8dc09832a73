package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"gastobot/internal/domain"
)

// RedisWindow shares the per-sender counters across gateway instances.
// The key TTL anchors the window at the sender's first message and resets
// it on expiry. Increment and expiry run in one script so no crash can
// leave a counter without a TTL, which would throttle the sender forever.
type RedisWindow struct {
	rdb    *redis.Client
	limit  int
	period time.Duration
}

// windowScript increments the counter and guarantees a TTL: set on the
// first increment, and repaired if a previous writer died before EXPIRE.
var windowScript = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
if count == 1 or redis.call("PTTL", KEYS[1]) < 0 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return count
`)

func NewRedisWindow(rdb *redis.Client, limit int, period time.Duration) *RedisWindow {
	if limit <= 0 {
		limit = defaultLimit
	}
	if period <= 0 {
		period = defaultWindow
	}
	return &RedisWindow{rdb: rdb, limit: limit, period: period}
}

func (r *RedisWindow) Allow(ctx context.Context, senderID string) (bool, error) {
	key := "ratelimit:" + senderID

	count, err := windowScript.Run(ctx, r.rdb, []string{key}, r.period.Milliseconds()).Int64()
	if err != nil {
		return false, fmt.Errorf("rate limit %s: %w", senderID, domain.ErrStoreUnavailable)
	}
	return count <= int64(r.limit), nil
}
