package domain

import (
	"context"
	"time"
)

// ConsentRecord is the durable privacy state for a sender. A sender with no
// record has never been asked; Granted=false after a record exists means the
// sender declined; OptedOut means the sender sent "stop".
type ConsentRecord struct {
	SenderID  string
	Granted   bool
	OptedOut  bool
	UpdatedAt time.Time
}

// ConsentStore persists consent records.
type ConsentStore interface {
	GetConsent(ctx context.Context, senderID string) (*ConsentRecord, error)
	SetConsent(ctx context.Context, senderID string, granted bool) error
	SetOptOut(ctx context.Context, senderID string, optedOut bool) error
}

// GateDecision is the privacy gate's verdict for a sender.
type GateDecision string

const (
	GateProceed      GateDecision = "proceed"
	GateNeedsConsent GateDecision = "needs_consent"
	GateOptedOut     GateDecision = "opted_out"
)
