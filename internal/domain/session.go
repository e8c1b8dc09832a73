package domain

import (
	"context"
	"time"
)

// Flow names the multi-turn conversation a sender is currently in.
type Flow string

const (
	FlowNone                 Flow = "NONE"
	FlowAwaitingAmount       Flow = "AWAITING_AMOUNT"
	FlowAwaitingCategory     Flow = "AWAITING_CATEGORY"
	FlowAwaitingConfirmation Flow = "AWAITING_CONFIRMATION"
)

// Pending-data keys used by the command router while a flow is in progress.
const (
	PendingAmountMinor     = "amountMinor"
	PendingCurrency        = "currency"
	PendingCategory        = "category"
	PendingNote            = "note"
	PendingConsentPrompted = "consentPrompted"
)

// SessionState is the conversational context for one sender. There is at
// most one session per sender; the command router is the only component
// that advances Flow or touches PendingData.
type SessionState struct {
	SenderID     string            `json:"senderId"`
	Flow         Flow              `json:"flow"`
	PendingData  map[string]string `json:"pendingData,omitempty"`
	LastActivity time.Time         `json:"lastActivity"`
}

// NewSession returns a fresh resting-state session for a sender.
func NewSession(senderID string, now time.Time) SessionState {
	return SessionState{
		SenderID:     senderID,
		Flow:         FlowNone,
		PendingData:  map[string]string{},
		LastActivity: now,
	}
}

// Reset returns the session to the resting state and discards pending data.
func (s *SessionState) Reset() {
	s.Flow = FlowNone
	s.PendingData = map[string]string{}
}

// Set records a pending-data field, allocating the map lazily.
func (s *SessionState) Set(key, value string) {
	if s.PendingData == nil {
		s.PendingData = map[string]string{}
	}
	s.PendingData[key] = value
}

// Expired reports whether the session has been inactive longer than ttl.
func (s *SessionState) Expired(now time.Time, ttl time.Duration) bool {
	return ttl > 0 && now.Sub(s.LastActivity) >= ttl
}

// SessionStore holds per-sender conversational state. Get returns a fresh
// FlowNone session when the sender has none. Implementations expire sessions
// after an inactivity timeout; ClearIfExpired makes the expiry observable and
// reports whether a reset happened.
type SessionStore interface {
	Get(ctx context.Context, senderID string) (SessionState, error)
	Put(ctx context.Context, state SessionState) error
	ClearIfExpired(ctx context.Context, senderID string, now time.Time) (bool, error)
}
