package session

import (
	"context"
	"testing"
	"time"

	"gastobot/internal/domain"
)

func TestMemoryStore_GetReturnsFreshSession(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore(time.Hour)
	ctx := context.Background()

	state, err := s.Get(ctx, "+5690000001")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if state.Flow != domain.FlowNone {
		t.Fatalf("expected FlowNone for absent sender, got %v", state.Flow)
	}
	if state.SenderID != "+5690000001" {
		t.Fatalf("unexpected sender %q", state.SenderID)
	}
	if len(state.PendingData) != 0 {
		t.Fatalf("expected empty pendingData, got %v", state.PendingData)
	}
}

func TestMemoryStore_PutThenGetRoundTrip(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore(time.Hour)
	ctx := context.Background()

	state := domain.NewSession("+5690000001", time.Now())
	state.Flow = domain.FlowAwaitingCategory
	state.Set(domain.PendingAmountMinor, "1250")

	if err := s.Put(ctx, state); err != nil {
		t.Fatalf("Put() error: %v", err)
	}

	got, err := s.Get(ctx, "+5690000001")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if got.Flow != domain.FlowAwaitingCategory {
		t.Fatalf("expected AwaitingCategory, got %v", got.Flow)
	}
	if got.PendingData[domain.PendingAmountMinor] != "1250" {
		t.Fatalf("expected pending amount, got %v", got.PendingData)
	}
}

func TestMemoryStore_CallerMutationDoesNotLeak(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore(time.Hour)
	ctx := context.Background()

	state := domain.NewSession("+5690000001", time.Now())
	state.Set(domain.PendingCategory, "food")
	if err := s.Put(ctx, state); err != nil {
		t.Fatal(err)
	}

	got, _ := s.Get(ctx, "+5690000001")
	got.PendingData[domain.PendingCategory] = "mutated"

	again, _ := s.Get(ctx, "+5690000001")
	if again.PendingData[domain.PendingCategory] != "food" {
		t.Fatal("stored pendingData leaked through a returned copy")
	}
}

func TestMemoryStore_ExpiryObservable(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore(time.Minute)
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return base }

	ctx := context.Background()
	state := domain.NewSession("+5690000001", base)
	state.Flow = domain.FlowAwaitingAmount
	if err := s.Put(ctx, state); err != nil {
		t.Fatal(err)
	}

	// Not expired yet.
	cleared, err := s.ClearIfExpired(ctx, "+5690000001", base.Add(30*time.Second))
	if err != nil {
		t.Fatal(err)
	}
	if cleared {
		t.Fatal("session cleared before the inactivity timeout")
	}

	cleared, err = s.ClearIfExpired(ctx, "+5690000001", base.Add(2*time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	if !cleared {
		t.Fatal("expected expired session to be cleared")
	}

	got, _ := s.Get(ctx, "+5690000001")
	if got.Flow != domain.FlowNone {
		t.Fatalf("expected fresh session after expiry, got flow %v", got.Flow)
	}
}

func TestMemoryStore_ExpiredSessionResetOnGet(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore(time.Minute)
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return base }

	ctx := context.Background()
	state := domain.NewSession("+5690000001", base)
	state.Flow = domain.FlowAwaitingConfirmation
	state.Set(domain.PendingAmountMinor, "990")
	if err := s.Put(ctx, state); err != nil {
		t.Fatal(err)
	}

	s.now = func() time.Time { return base.Add(time.Hour) }

	got, err := s.Get(ctx, "+5690000001")
	if err != nil {
		t.Fatal(err)
	}
	if got.Flow != domain.FlowNone || len(got.PendingData) != 0 {
		t.Fatalf("expected reset session after inactivity, got %+v", got)
	}
}
