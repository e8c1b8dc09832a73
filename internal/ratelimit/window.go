// Package ratelimit caps per-sender message volume with a fixed window.
// One sender hitting the cap never blocks another sender's processing.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

const (
	defaultLimit  = 30
	defaultWindow = 5 * time.Minute
)

type window struct {
	start time.Time
	count int
}

// FixedWindow is the single-process limiter: one counter per sender,
// reset when the window expires. The count never decreases within a window.
type FixedWindow struct {
	limit  int
	period time.Duration

	mu      sync.Mutex
	windows map[string]*window

	now func() time.Time
}

func NewFixedWindow(limit int, period time.Duration) *FixedWindow {
	if limit <= 0 {
		limit = defaultLimit
	}
	if period <= 0 {
		period = defaultWindow
	}
	return &FixedWindow{
		limit:   limit,
		period:  period,
		windows: make(map[string]*window),
		now:     time.Now,
	}
}

func (f *FixedWindow) Allow(_ context.Context, senderID string) (bool, error) {
	now := f.now()

	f.mu.Lock()
	defer f.mu.Unlock()

	w, ok := f.windows[senderID]
	if !ok || now.Sub(w.start) >= f.period {
		f.windows[senderID] = &window{start: now, count: 1}
		return true, nil
	}

	if w.count >= f.limit {
		return false, nil
	}
	w.count++
	return true, nil
}
