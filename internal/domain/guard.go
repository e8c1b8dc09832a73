package domain

import "context"

// CheckOutcome is the idempotency guard's verdict for a message identifier.
type CheckOutcome string

const (
	OutcomeAccepted  CheckOutcome = "accepted"
	OutcomeDuplicate CheckOutcome = "duplicate"
)

// IdempotencyGuard decides first-seen vs. duplicate for provider message IDs.
// The first call for a given ID records it and returns OutcomeAccepted; every
// later call within the retention horizon returns OutcomeDuplicate. The
// check-and-set is atomic: under a redelivery race exactly one caller
// observes OutcomeAccepted.
type IdempotencyGuard interface {
	Check(ctx context.Context, messageID string) (CheckOutcome, error)
}

// RateLimiter caps how many messages a single sender may submit per window.
// Windows are independent across senders.
type RateLimiter interface {
	Allow(ctx context.Context, senderID string) (bool, error)
}

// Sender delivers reply text to a sender through the messaging provider.
// A send failure is non-fatal to pipeline state: by the time Send runs the
// session and idempotency ledger have already committed.
type Sender interface {
	Send(ctx context.Context, senderID, text string) error
}
