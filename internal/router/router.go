package router

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"gastobot/internal/domain"
	"gastobot/internal/metrics"
	"gastobot/internal/report"
)

// Router advances one sender's conversation. It owns every Flow transition;
// callers hold the per-sender lock around Dispatch so state reads and writes
// never interleave for the same sender.
type Router struct {
	expenses domain.ExpenseStore
	consents domain.ConsentStore
	reporter domain.Reporter
	exporter domain.Exporter
	catalog  *report.Catalog
	logger   *slog.Logger
	now      func() time.Time
}

func New(expenses domain.ExpenseStore, consents domain.ConsentStore, reporter domain.Reporter, exporter domain.Exporter, catalog *report.Catalog, logger *slog.Logger) *Router {
	return &Router{
		expenses: expenses,
		consents: consents,
		reporter: reporter,
		exporter: exporter,
		catalog:  catalog,
		logger:   logger,
		now:      time.Now,
	}
}

// Dispatch interprets msg against the current session state and mutates state
// in place. The returned reply may be empty (nothing to send). A non-nil
// error marks a transient collaborator failure; state is left unchanged so a
// retried message replays the same step.
func (r *Router) Dispatch(ctx context.Context, msg domain.InboundMessage, state *domain.SessionState) (string, error) {
	body := strings.TrimSpace(msg.Body)

	// Cancel and stop cut through any flow in progress.
	switch cmd, _ := Classify(body); cmd {
	case CmdCancel:
		return r.cancel(state), nil
	case CmdStop:
		return r.stop(ctx, msg.SenderID, state)
	}

	switch state.Flow {
	case domain.FlowAwaitingAmount:
		return r.continueAmount(body, state), nil
	case domain.FlowAwaitingCategory:
		return r.continueCategory(body, state), nil
	case domain.FlowAwaitingConfirmation:
		return r.continueConfirmation(ctx, msg, body, state)
	default:
		return r.dispatchResting(ctx, msg, body, state)
	}
}

func (r *Router) dispatchResting(ctx context.Context, msg domain.InboundMessage, body string, state *domain.SessionState) (string, error) {
	cmd, rest := Classify(body)
	switch cmd {
	case CmdAdd:
		return r.startAdd(rest, state), nil
	case CmdReport:
		text, err := r.reporter.MonthlyReport(ctx, msg.SenderID, r.now())
		if err != nil {
			return "", fmt.Errorf("monthly report: %w", err)
		}
		return text, nil
	case CmdExport:
		ref, err := r.exporter.Export(ctx, msg.SenderID, r.now())
		if err != nil {
			return "", fmt.Errorf("export: %w", err)
		}
		return fmt.Sprintf(replyExportReady, ref), nil
	case CmdHelp:
		return fmt.Sprintf(replyHelp, strings.Join(r.catalog.Shorts(), ", ")), nil
	case CmdStart:
		return replyAlreadyActive, nil
	default:
		// Bare amounts outside a flow start an add, matching the original's
		// shorthand of texting just "3500".
		if _, _, err := parseAmount(body); err == nil {
			return r.startAdd(body, state), nil
		}
		return replyFallback, nil
	}
}

// startAdd begins the expense flow. Inline arguments skip the matching
// prompts: "add 12.50 food lunch" goes straight to confirmation.
func (r *Router) startAdd(rest string, state *domain.SessionState) string {
	state.Reset()
	if rest == "" {
		state.Flow = domain.FlowAwaitingAmount
		return replyPromptAmount
	}

	minor, currency, err := parseAmount(rest)
	if err != nil {
		state.Flow = domain.FlowAwaitingAmount
		return replyMalformedAmount
	}
	state.Flow = domain.FlowAwaitingCategory
	state.Set(domain.PendingAmountMinor, strconv.FormatInt(minor, 10))
	state.Set(domain.PendingCurrency, currency)

	fields := strings.Fields(rest)
	if len(fields) < 2 {
		return fmt.Sprintf(replyPromptCategory, strings.Join(r.catalog.Shorts(), ", "))
	}
	return r.acceptCategory(fields[1], strings.Join(fields[2:], " "), state)
}

func (r *Router) continueAmount(body string, state *domain.SessionState) string {
	minor, currency, err := parseAmount(body)
	if err != nil {
		// Unchanged state: the sender stays at the amount prompt.
		return replyMalformedAmount
	}
	state.Flow = domain.FlowAwaitingCategory
	state.Set(domain.PendingAmountMinor, strconv.FormatInt(minor, 10))
	state.Set(domain.PendingCurrency, currency)
	return fmt.Sprintf(replyPromptCategory, strings.Join(r.catalog.Shorts(), ", "))
}

func (r *Router) continueCategory(body string, state *domain.SessionState) string {
	fields := strings.Fields(body)
	if len(fields) == 0 {
		return replyEmptyCategory
	}
	return r.acceptCategory(fields[0], strings.Join(fields[1:], " "), state)
}

// acceptCategory records category (normalized through the catalog when known)
// plus an optional note, then asks for confirmation.
func (r *Router) acceptCategory(category, note string, state *domain.SessionState) string {
	category = strings.ToLower(strings.TrimSpace(category))
	if cat, ok := r.catalog.Lookup(category); ok {
		category = cat.Short
	}
	state.Flow = domain.FlowAwaitingConfirmation
	state.Set(domain.PendingCategory, category)
	if note != "" {
		state.Set(domain.PendingNote, note)
	}

	minor, _ := strconv.ParseInt(state.PendingData[domain.PendingAmountMinor], 10, 64)
	amount := report.FormatAmount(minor, state.PendingData[domain.PendingCurrency])
	return fmt.Sprintf(replyPromptConfirm, amount, r.catalog.DisplayName(category))
}

func (r *Router) continueConfirmation(ctx context.Context, msg domain.InboundMessage, body string, state *domain.SessionState) (string, error) {
	switch {
	case isAffirmative(body):
		return r.commit(ctx, msg, state)
	case isNegative(body):
		state.Reset()
		return replyDiscarded, nil
	default:
		minor, _ := strconv.ParseInt(state.PendingData[domain.PendingAmountMinor], 10, 64)
		amount := report.FormatAmount(minor, state.PendingData[domain.PendingCurrency])
		return fmt.Sprintf(replyPromptConfirm, amount, r.catalog.DisplayName(state.PendingData[domain.PendingCategory])), nil
	}
}

// commit writes the pending expense. On storage failure the session stays in
// the confirmation step so the sender (or a provider retry) can confirm
// again without re-entering the data.
func (r *Router) commit(ctx context.Context, msg domain.InboundMessage, state *domain.SessionState) (string, error) {
	minor, err := strconv.ParseInt(state.PendingData[domain.PendingAmountMinor], 10, 64)
	if err != nil {
		r.logger.Error("corrupt pending amount, discarding flow", "sender", msg.SenderID, "err", err)
		state.Reset()
		return replyDiscarded, nil
	}

	req := domain.CreateExpenseRequest{
		SenderID:    msg.SenderID,
		AmountMinor: minor,
		Currency:    state.PendingData[domain.PendingCurrency],
		Category:    state.PendingData[domain.PendingCategory],
		Note:        state.PendingData[domain.PendingNote],
		CreatedAt:   r.now(),
	}
	id, err := r.expenses.CreateExpense(ctx, req)
	if err != nil {
		return replyCommitFailed, fmt.Errorf("create expense for %s: %w", msg.SenderID, domain.ErrPersistenceFailure)
	}

	metrics.ExpensesTotal.Inc()
	r.logger.Info("expense committed", "sender", msg.SenderID, "expense", id, "category", req.Category)
	state.Reset()
	amount := report.FormatAmount(req.AmountMinor, req.Currency)
	return fmt.Sprintf(replyCommitted, amount, r.catalog.DisplayName(req.Category)), nil
}

func (r *Router) cancel(state *domain.SessionState) string {
	if state.Flow == domain.FlowNone {
		return replyNothingToCancel
	}
	state.Reset()
	return replyCancelled
}

func (r *Router) stop(ctx context.Context, senderID string, state *domain.SessionState) (string, error) {
	if err := r.consents.SetOptOut(ctx, senderID, true); err != nil {
		return "", fmt.Errorf("set opt-out: %w", err)
	}
	state.Reset()
	return replyStopped, nil
}

// HandleConsentReply runs instead of Dispatch while the sender has not
// granted consent. The request text is sent once per session, and only an
// affirmative that answers it grants consent; an affirmative before the
// request was ever shown cannot be an answer to it.
func (r *Router) HandleConsentReply(ctx context.Context, msg domain.InboundMessage, state *domain.SessionState) (string, error) {
	if state.PendingData[domain.PendingConsentPrompted] != "1" {
		state.Set(domain.PendingConsentPrompted, "1")
		return replyConsentRequest, nil
	}

	if isAffirmative(msg.Body) {
		if err := r.consents.SetConsent(ctx, msg.SenderID, true); err != nil {
			return "", fmt.Errorf("grant consent: %w", err)
		}
		state.Reset()
		return replyConsentWelcome, nil
	}
	return replyConsentDecline, nil
}

// HandleOptedOut runs instead of Dispatch for an opted-out sender. Everything
// is dropped silently except the reactivation command.
func (r *Router) HandleOptedOut(ctx context.Context, msg domain.InboundMessage) (string, error) {
	if cmd, _ := Classify(msg.Body); cmd != CmdStart {
		return "", nil
	}
	if err := r.consents.SetOptOut(ctx, msg.SenderID, false); err != nil {
		return "", fmt.Errorf("clear opt-out: %w", err)
	}
	return replyReactivated, nil
}
