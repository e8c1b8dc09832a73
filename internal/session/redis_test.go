package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"gastobot/internal/domain"
)

func TestRedisStore_RoundTrip(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	s := NewRedisStore(rdb, time.Hour)
	ctx := context.Background()

	state := domain.NewSession("+5690000001", time.Now())
	state.Flow = domain.FlowAwaitingConfirmation
	state.Set(domain.PendingAmountMinor, "1250")
	state.Set(domain.PendingCategory, "food")

	if err := s.Put(ctx, state); err != nil {
		t.Fatalf("Put() error: %v", err)
	}

	got, err := s.Get(ctx, "+5690000001")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if got.Flow != domain.FlowAwaitingConfirmation {
		t.Fatalf("expected AwaitingConfirmation, got %v", got.Flow)
	}
	if got.PendingData[domain.PendingCategory] != "food" {
		t.Fatalf("unexpected pendingData %v", got.PendingData)
	}

	if mr.TTL("session:+5690000001") <= 0 {
		t.Fatal("expected inactivity TTL on session key")
	}
}

func TestRedisStore_AbsentSenderGetsFreshSession(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	s := NewRedisStore(rdb, time.Hour)

	got, err := s.Get(context.Background(), "+5690000009")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if got.Flow != domain.FlowNone {
		t.Fatalf("expected FlowNone, got %v", got.Flow)
	}
}

func TestRedisStore_TTLExpiryResetsSession(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	s := NewRedisStore(rdb, time.Minute)
	ctx := context.Background()

	state := domain.NewSession("+5690000001", time.Now())
	state.Flow = domain.FlowAwaitingAmount
	if err := s.Put(ctx, state); err != nil {
		t.Fatal(err)
	}

	mr.FastForward(2 * time.Minute)

	got, err := s.Get(ctx, "+5690000001")
	if err != nil {
		t.Fatal(err)
	}
	if got.Flow != domain.FlowNone {
		t.Fatalf("expected fresh session after TTL, got %v", got.Flow)
	}
}

func TestRedisStore_ClearIfExpired(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	s := NewRedisStore(rdb, time.Minute)
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return base }

	ctx := context.Background()
	state := domain.NewSession("+5690000001", base)
	state.Flow = domain.FlowAwaitingCategory
	if err := s.Put(ctx, state); err != nil {
		t.Fatal(err)
	}

	cleared, err := s.ClearIfExpired(ctx, "+5690000001", base.Add(30*time.Second))
	if err != nil {
		t.Fatal(err)
	}
	if cleared {
		t.Fatal("cleared before inactivity timeout")
	}

	cleared, err = s.ClearIfExpired(ctx, "+5690000001", base.Add(2*time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	if !cleared {
		t.Fatal("expected expired session to be cleared")
	}
	if mr.Exists("session:+5690000001") {
		t.Fatal("expected session key deleted")
	}
}
