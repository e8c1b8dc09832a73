package idempotency

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"gastobot/internal/domain"
)

// RedisGuard backs the ledger with Redis so multiple gateway instances share
// one dedup horizon. SET NX is the atomic check-and-set; the key TTL is the
// retention horizon.
type RedisGuard struct {
	rdb       *redis.Client
	retention time.Duration
}

func NewRedisGuard(rdb *redis.Client, retention time.Duration) *RedisGuard {
	if retention <= 0 {
		retention = 6 * time.Hour
	}
	return &RedisGuard{rdb: rdb, retention: retention}
}

func (g *RedisGuard) Check(ctx context.Context, messageID string) (domain.CheckOutcome, error) {
	key := "msgid:" + messageID

	set, err := g.rdb.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339Nano), g.retention).Result()
	if err != nil {
		return "", fmt.Errorf("idempotency check %s: %w", messageID, domain.ErrStoreUnavailable)
	}
	if set {
		return domain.OutcomeAccepted, nil
	}
	return domain.OutcomeDuplicate, nil
}
