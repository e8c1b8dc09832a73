package report

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gastobot/internal/domain"
)

// Reporter renders the current month's per-category totals as reply text.
type Reporter struct {
	expenses domain.ExpenseStore
	catalog  *Catalog
}

func NewReporter(expenses domain.ExpenseStore, catalog *Catalog) *Reporter {
	return &Reporter{expenses: expenses, catalog: catalog}
}

func (r *Reporter) MonthlyReport(ctx context.Context, senderID string, now time.Time) (string, error) {
	from, to := monthBounds(now)

	totals, err := r.expenses.SummaryByCategory(ctx, senderID, from, to)
	if err != nil {
		return "", fmt.Errorf("monthly summary: %w", err)
	}
	if len(totals) == 0 {
		return "No tienes gastos registrados este mes.", nil
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Resumen %s:\n", now.Format("January 2006")))

	grand := map[string]int64{}
	for _, t := range totals {
		sb.WriteString(fmt.Sprintf("• %s: %s (%d)\n",
			r.catalog.DisplayName(t.Category),
			FormatAmount(t.AmountMinor, t.Currency),
			t.Count,
		))
		grand[t.Currency] += t.AmountMinor
	}

	sb.WriteString("Total:")
	for currency, total := range grand {
		sb.WriteString(" " + FormatAmount(total, currency))
	}
	return sb.String(), nil
}

// FormatAmount renders a minor-unit amount for its currency. CLP has no
// minor unit; everything else is treated as two-decimal.
func FormatAmount(minor int64, currency string) string {
	if currency == "CLP" {
		return fmt.Sprintf("CLP %d", minor)
	}
	return fmt.Sprintf("%s %d.%02d", currency, minor/100, minor%100)
}

func monthBounds(now time.Time) (time.Time, time.Time) {
	from := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	return from, from.AddDate(0, 1, 0)
}
