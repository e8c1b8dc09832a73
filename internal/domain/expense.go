package domain

import (
	"context"
	"time"
)

// Expense is one committed expense row.
type Expense struct {
	ID          string
	SenderID    string
	AmountMinor int64 // amount in the currency's minor unit (CLP pesos, USD cents)
	Currency    string
	Category    string
	Note        string
	CreatedAt   time.Time
}

// CreateExpenseRequest is the completed pendingData of an expense flow.
type CreateExpenseRequest struct {
	SenderID    string
	AmountMinor int64
	Currency    string
	Category    string
	Note        string
	CreatedAt   time.Time
}

// CategoryTotal is one row of a per-category summary.
type CategoryTotal struct {
	Category    string
	Currency    string
	AmountMinor int64
	Count       int
}

// ExpenseStore is the external persistence collaborator. CreateExpense is
// NOT idempotent: a duplicate call creates a duplicate row, which is why
// the pipeline runs the idempotency guard before anything else.
type ExpenseStore interface {
	CreateExpense(ctx context.Context, req CreateExpenseRequest) (string, error)
	ListExpenses(ctx context.Context, senderID string, from, to time.Time) ([]Expense, error)
	SummaryByCategory(ctx context.Context, senderID string, from, to time.Time) ([]CategoryTotal, error)
}

// Reporter renders a summary of a sender's recent expenses.
type Reporter interface {
	MonthlyReport(ctx context.Context, senderID string, now time.Time) (string, error)
}

// Exporter writes a sender's expenses to a data blob and returns a reference
// to it (a file path or download ID, depending on the implementation).
type Exporter interface {
	Export(ctx context.Context, senderID string, now time.Time) (string, error)
}
