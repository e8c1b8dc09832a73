// Package store implements expense and consent persistence on SQLite.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"gastobot/internal/domain"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements domain.ExpenseStore and domain.ConsentStore.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewSQLiteStore(dbPath string, logger *slog.Logger) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create database directory %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("cannot open database: %w", err)
	}

	// Single connection for SQLite
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &SQLiteStore{db: db, logger: logger}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("database migration failed: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS expenses (
		id           TEXT PRIMARY KEY,
		sender_id    TEXT NOT NULL,
		amount_minor INTEGER NOT NULL,
		currency     TEXT NOT NULL,
		category     TEXT NOT NULL,
		note         TEXT,
		created_at   DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_expenses_sender ON expenses(sender_id, created_at);

	CREATE TABLE IF NOT EXISTS consents (
		sender_id  TEXT PRIMARY KEY,
		granted    INTEGER NOT NULL DEFAULT 0,
		opted_out  INTEGER NOT NULL DEFAULT 0,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// --- domain.ExpenseStore ---

func (s *SQLiteStore) CreateExpense(ctx context.Context, req domain.CreateExpenseRequest) (string, error) {
	id := uuid.NewString()
	createdAt := req.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO expenses (id, sender_id, amount_minor, currency, category, note, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, req.SenderID, req.AmountMinor, req.Currency, req.Category, req.Note, createdAt,
	)
	if err != nil {
		return "", fmt.Errorf("insert expense: %w", err)
	}
	return id, nil
}

func (s *SQLiteStore) ListExpenses(ctx context.Context, senderID string, from, to time.Time) ([]domain.Expense, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, sender_id, amount_minor, currency, category, note, created_at
		 FROM expenses
		 WHERE sender_id = ? AND created_at >= ? AND created_at < ?
		 ORDER BY created_at ASC`,
		senderID, from, to,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Expense
	for rows.Next() {
		var e domain.Expense
		var note sql.NullString
		if err := rows.Scan(&e.ID, &e.SenderID, &e.AmountMinor, &e.Currency, &e.Category, &note, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Note = note.String
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) SummaryByCategory(ctx context.Context, senderID string, from, to time.Time) ([]domain.CategoryTotal, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT category, currency, SUM(amount_minor), COUNT(*)
		 FROM expenses
		 WHERE sender_id = ? AND created_at >= ? AND created_at < ?
		 GROUP BY category, currency
		 ORDER BY SUM(amount_minor) DESC`,
		senderID, from, to,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.CategoryTotal
	for rows.Next() {
		var t domain.CategoryTotal
		if err := rows.Scan(&t.Category, &t.Currency, &t.AmountMinor, &t.Count); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// --- domain.ConsentStore ---

func (s *SQLiteStore) GetConsent(ctx context.Context, senderID string) (*domain.ConsentRecord, error) {
	var rec domain.ConsentRecord
	var granted, optedOut int
	err := s.db.QueryRowContext(ctx,
		`SELECT sender_id, granted, opted_out, updated_at FROM consents WHERE sender_id = ?`,
		senderID,
	).Scan(&rec.SenderID, &granted, &optedOut, &rec.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	rec.Granted = granted != 0
	rec.OptedOut = optedOut != 0
	return &rec, nil
}

func (s *SQLiteStore) SetConsent(ctx context.Context, senderID string, granted bool) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO consents (sender_id, granted, opted_out, updated_at)
		 VALUES (?, ?, 0, ?)
		 ON CONFLICT(sender_id) DO UPDATE SET granted = excluded.granted, updated_at = excluded.updated_at`,
		senderID, boolToInt(granted), time.Now().UTC(),
	)
	return err
}

func (s *SQLiteStore) SetOptOut(ctx context.Context, senderID string, optedOut bool) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO consents (sender_id, granted, opted_out, updated_at)
		 VALUES (?, 0, ?, ?)
		 ON CONFLICT(sender_id) DO UPDATE SET opted_out = excluded.opted_out, updated_at = excluded.updated_at`,
		senderID, boolToInt(optedOut), time.Now().UTC(),
	)
	return err
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
