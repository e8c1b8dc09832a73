package domain

import "errors"

// Infrastructure failures that cross the pipeline boundary. Stage-local
// outcomes (duplicate, consent, rate limit, malformed input) are handled
// inside the pipeline and never surface as errors.
var (
	// ErrStoreUnavailable marks a transient backing-store failure. The
	// pipeline aborts the current message instead of guessing: duplicate
	// side effects downstream are worse than one dropped message.
	ErrStoreUnavailable = errors.New("backing store unavailable")

	// ErrPersistenceFailure marks a failed expense-creation call. The
	// session must not advance past AwaitingConfirmation so the sender can
	// retry without re-entering the flow.
	ErrPersistenceFailure = errors.New("expense persistence failed")
)
