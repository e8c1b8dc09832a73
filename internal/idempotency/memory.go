// Package idempotency implements the first-seen/duplicate guard for
// provider message identifiers. The guard is the first stage of the
// pipeline: no side-effecting stage runs until it has answered.
package idempotency

import (
	"context"
	"sync"
	"time"

	"gastobot/internal/domain"
)

// MemoryGuard is the single-process implementation. LoadOrStore gives the
// atomic check-and-set: under a redelivery race exactly one caller stores
// the record and observes Accepted.
type MemoryGuard struct {
	retention time.Duration
	records   sync.Map // messageID -> time.Time (processedAt)

	mu        sync.Mutex
	lastSweep time.Time

	now func() time.Time
}

func NewMemoryGuard(retention time.Duration) *MemoryGuard {
	if retention <= 0 {
		retention = 6 * time.Hour
	}
	return &MemoryGuard{
		retention: retention,
		now:       time.Now,
	}
}

func (g *MemoryGuard) Check(_ context.Context, messageID string) (domain.CheckOutcome, error) {
	now := g.now()
	g.sweep(now)

	prev, loaded := g.records.LoadOrStore(messageID, now)
	if !loaded {
		return domain.OutcomeAccepted, nil
	}

	// A record past the retention horizon no longer suppresses processing.
	if now.Sub(prev.(time.Time)) >= g.retention {
		g.records.Store(messageID, now)
		return domain.OutcomeAccepted, nil
	}
	return domain.OutcomeDuplicate, nil
}

// sweep evicts expired records at most once per retention interval.
func (g *MemoryGuard) sweep(now time.Time) {
	g.mu.Lock()
	if now.Sub(g.lastSweep) < g.retention {
		g.mu.Unlock()
		return
	}
	g.lastSweep = now
	g.mu.Unlock()

	g.records.Range(func(key, value any) bool {
		if now.Sub(value.(time.Time)) >= g.retention {
			g.records.Delete(key)
		}
		return true
	})
}
