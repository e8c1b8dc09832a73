package report

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gastobot/internal/domain"
)

// CSVExporter writes a sender's expenses for the current month to a CSV
// file and returns its path. Delivery of the blob (signed URL, upload) is a
// transport concern outside this core.
type CSVExporter struct {
	expenses domain.ExpenseStore
	dir      string
}

func NewCSVExporter(expenses domain.ExpenseStore, dir string) *CSVExporter {
	return &CSVExporter{expenses: expenses, dir: dir}
}

func (e *CSVExporter) Export(ctx context.Context, senderID string, now time.Time) (string, error) {
	from, to := monthBounds(now)

	expenses, err := e.expenses.ListExpenses(ctx, senderID, from, to)
	if err != nil {
		return "", fmt.Errorf("export list: %w", err)
	}

	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return "", fmt.Errorf("export dir: %w", err)
	}

	name := fmt.Sprintf("expenses-%s-%s.csv", sanitize(senderID), now.Format("2006-01"))
	path := filepath.Join(e.dir, name)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("export create: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"id", "created_at", "amount", "currency", "category", "note"}); err != nil {
		return "", err
	}
	for _, ex := range expenses {
		record := []string{
			ex.ID,
			ex.CreatedAt.UTC().Format(time.RFC3339),
			FormatAmount(ex.AmountMinor, ex.Currency),
			ex.Currency,
			ex.Category,
			ex.Note,
		}
		if err := w.Write(record); err != nil {
			return "", err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("export write: %w", err)
	}

	return path, nil
}

// sanitize keeps phone-number identifiers filesystem-safe.
func sanitize(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
			out = append(out, r)
		}
	}
	return string(out)
}
