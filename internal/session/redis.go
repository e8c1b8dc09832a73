package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"gastobot/internal/domain"
)

// RedisStore keeps sessions in Redis so a restart or a second gateway
// instance sees the same conversational state. The key TTL doubles as the
// inactivity timeout: Put refreshes it, an idle session simply disappears.
type RedisStore struct {
	rdb     *redis.Client
	timeout time.Duration

	now func() time.Time
}

func NewRedisStore(rdb *redis.Client, timeout time.Duration) *RedisStore {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &RedisStore{rdb: rdb, timeout: timeout, now: time.Now}
}

func key(senderID string) string {
	return "session:" + senderID
}

func (r *RedisStore) Get(ctx context.Context, senderID string) (domain.SessionState, error) {
	raw, err := r.rdb.Get(ctx, key(senderID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.NewSession(senderID, r.now()), nil
	}
	if err != nil {
		return domain.SessionState{}, fmt.Errorf("session get %s: %w", senderID, domain.ErrStoreUnavailable)
	}

	var state domain.SessionState
	if err := json.Unmarshal(raw, &state); err != nil {
		// A corrupt record is unrecoverable; start the sender fresh.
		return domain.NewSession(senderID, r.now()), nil
	}
	if state.PendingData == nil {
		state.PendingData = map[string]string{}
	}
	return state, nil
}

func (r *RedisStore) Put(ctx context.Context, state domain.SessionState) error {
	state.LastActivity = r.now()

	raw, err := json.Marshal(state)
	if err != nil {
		return err
	}
	if err := r.rdb.Set(ctx, key(state.SenderID), raw, r.timeout).Err(); err != nil {
		return fmt.Errorf("session put %s: %w", state.SenderID, domain.ErrStoreUnavailable)
	}
	return nil
}

func (r *RedisStore) ClearIfExpired(ctx context.Context, senderID string, now time.Time) (bool, error) {
	raw, err := r.rdb.Get(ctx, key(senderID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("session clear %s: %w", senderID, domain.ErrStoreUnavailable)
	}

	var state domain.SessionState
	if err := json.Unmarshal(raw, &state); err != nil {
		_ = r.rdb.Del(ctx, key(senderID)).Err()
		return true, nil
	}
	if !state.Expired(now, r.timeout) {
		return false, nil
	}
	if err := r.rdb.Del(ctx, key(senderID)).Err(); err != nil {
		return false, fmt.Errorf("session clear %s: %w", senderID, domain.ErrStoreUnavailable)
	}
	return true, nil
}
