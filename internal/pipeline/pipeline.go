// Package pipeline runs each inbound message through the processing stages:
// idempotency guard, rate limiter, privacy gate, session load, command
// dispatch, session save. Stage outcomes (duplicate, throttled, no consent)
// end processing without being errors.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"gastobot/internal/domain"
	"gastobot/internal/metrics"
	"gastobot/internal/privacy"
	"gastobot/internal/router"
)

const (
	defaultStoreTimeout = 5 * time.Second

	replyThrottled     = "Demasiados mensajes. Espera un momento."
	replyInternalError = "Ocurrió un error procesando tu mensaje. Intenta nuevamente."
)

// Config tunes pipeline behavior.
type Config struct {
	// StoreTimeout bounds each backing-store call.
	StoreTimeout time.Duration
	// NotifyOnThrottle sends a slow-down reply on the first denied message
	// instead of dropping silently.
	NotifyOnThrottle bool
}

// Pipeline coordinates the stages for one message at a time per sender.
// Messages from different senders process concurrently; a per-sender lock
// serializes the session read-modify-write.
type Pipeline struct {
	guard    domain.IdempotencyGuard
	limiter  domain.RateLimiter
	gate     *privacy.Gate
	sessions domain.SessionStore
	router   *router.Router
	cfg      Config
	logger   *slog.Logger

	mu    sync.Mutex
	locks map[string]*senderLock
}

// senderLock is refcounted so the lock map shrinks back to zero once a
// sender has no in-flight messages.
type senderLock struct {
	mu   sync.Mutex
	refs int
}

func New(guard domain.IdempotencyGuard, limiter domain.RateLimiter, gate *privacy.Gate, sessions domain.SessionStore, r *router.Router, cfg Config, logger *slog.Logger) *Pipeline {
	if cfg.StoreTimeout <= 0 {
		cfg.StoreTimeout = defaultStoreTimeout
	}
	return &Pipeline{
		guard:    guard,
		limiter:  limiter,
		gate:     gate,
		sessions: sessions,
		router:   r,
		cfg:      cfg,
		logger:   logger,
		locks:    map[string]*senderLock{},
	}
}

// Admit runs the idempotency stage only. The webhook calls it synchronously
// before acknowledging the provider, so a guard-store outage turns into a
// retryable HTTP failure instead of a swallowed message.
func (p *Pipeline) Admit(ctx context.Context, msg domain.InboundMessage) (domain.CheckOutcome, error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.StoreTimeout)
	defer cancel()

	outcome, err := p.guard.Check(ctx, msg.MessageID)
	if err != nil {
		return "", fmt.Errorf("idempotency check %s: %w", msg.MessageID, err)
	}
	if outcome == domain.OutcomeDuplicate {
		metrics.DuplicatesTotal.Inc()
		p.logger.Info("duplicate delivery dropped", "message_id", msg.MessageID, "sender", msg.SenderID)
	}
	return outcome, nil
}

// ProcessAdmitted runs the remaining stages for a message that already
// passed Admit. The returned reply may be empty (nothing to send). An
// internal failure always pairs the error with a generic reply so the
// sender never gets silence for a message that should have worked.
func (p *Pipeline) ProcessAdmitted(ctx context.Context, msg domain.InboundMessage) (string, error) {
	start := time.Now()
	defer func() {
		metrics.PipelineLatency.Observe(time.Since(start).Seconds())
	}()
	metrics.MessagesTotal.Inc()

	reply, err := p.runStages(ctx, msg)
	if err != nil && reply == "" {
		reply = replyInternalError
	}
	return reply, err
}

// runStages is the stage order: privacy gate, then rate limit, then the
// locked session dispatch. The gate runs first so an opted-out sender is a
// silent no-op even over the rate cap.
func (p *Pipeline) runStages(ctx context.Context, msg domain.InboundMessage) (string, error) {
	decision, err := p.checkGate(ctx, msg.SenderID)
	if err != nil {
		return "", err
	}
	if decision == domain.GateOptedOut {
		return p.router.HandleOptedOut(ctx, msg)
	}

	allowed, err := p.allow(ctx, msg.SenderID)
	if err != nil {
		return "", err
	}
	if !allowed {
		metrics.RateLimitedTotal.Inc()
		p.logger.Info("sender throttled", "sender", msg.SenderID)
		if p.cfg.NotifyOnThrottle {
			return replyThrottled, nil
		}
		return "", nil
	}

	if decision == domain.GateNeedsConsent {
		return p.withSession(ctx, msg, p.router.HandleConsentReply)
	}
	return p.withSession(ctx, msg, p.router.Dispatch)
}

// Process is Admit plus ProcessAdmitted. Duplicates resolve to an empty
// reply.
func (p *Pipeline) Process(ctx context.Context, msg domain.InboundMessage) (string, error) {
	outcome, err := p.Admit(ctx, msg)
	if err != nil {
		return "", err
	}
	if outcome == domain.OutcomeDuplicate {
		return "", nil
	}
	return p.ProcessAdmitted(ctx, msg)
}

func (p *Pipeline) allow(ctx context.Context, senderID string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.StoreTimeout)
	defer cancel()

	allowed, err := p.limiter.Allow(ctx, senderID)
	if err != nil {
		return false, fmt.Errorf("rate limit %s: %w", senderID, err)
	}
	return allowed, nil
}

func (p *Pipeline) checkGate(ctx context.Context, senderID string) (domain.GateDecision, error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.StoreTimeout)
	defer cancel()
	return p.gate.Check(ctx, senderID)
}

// withSession serializes per-sender state: load the session, run fn against
// it, persist the result. The lock covers the whole read-modify-write so two
// in-flight messages from one sender cannot interleave transitions.
func (p *Pipeline) withSession(ctx context.Context, msg domain.InboundMessage, fn func(context.Context, domain.InboundMessage, *domain.SessionState) (string, error)) (string, error) {
	lock := p.lockSender(msg.SenderID)
	defer p.unlockSender(msg.SenderID, lock)

	ctx, cancel := context.WithTimeout(ctx, p.cfg.StoreTimeout)
	defer cancel()

	state, err := p.sessions.Get(ctx, msg.SenderID)
	if err != nil {
		return "", fmt.Errorf("session load %s: %w", msg.SenderID, err)
	}

	reply, dispatchErr := fn(ctx, msg, &state)

	state.LastActivity = time.Now()
	if err := p.sessions.Put(ctx, state); err != nil {
		return "", fmt.Errorf("session save %s: %w", msg.SenderID, err)
	}
	return reply, dispatchErr
}

func (p *Pipeline) lockSender(senderID string) *senderLock {
	p.mu.Lock()
	lock, ok := p.locks[senderID]
	if !ok {
		lock = &senderLock{}
		p.locks[senderID] = lock
	}
	lock.refs++
	p.mu.Unlock()

	lock.mu.Lock()
	return lock
}

func (p *Pipeline) unlockSender(senderID string, lock *senderLock) {
	lock.mu.Unlock()

	p.mu.Lock()
	lock.refs--
	if lock.refs == 0 {
		delete(p.locks, senderID)
	}
	p.mu.Unlock()
}
