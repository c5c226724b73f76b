package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"emicalc/internal/core"

	_ "modernc.org/sqlite"
)

// ErrQuoteNotFound is returned when a quote id is not in the journal.
var ErrQuoteNotFound = errors.New("quote not found")

const timeLayout = time.RFC3339Nano

// claimLayout is fixed width so claim times compare as strings.
const claimLayout = "2006-01-02T15:04:05.000000000Z"

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	// sqlite allows a single writer
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db, queries: New(db)}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Record stores the quote and returns it with its assigned id.
func (r *SQLiteRepository) Record(ctx context.Context, q core.Quote) (core.Quote, error) {
	if err := q.Validate(); err != nil {
		return core.Quote{}, fmt.Errorf("validation failed: %w", err)
	}
	if q.CreatedAt.IsZero() {
		q.CreatedAt = time.Now().UTC()
	}

	row, err := r.queries.CreateQuote(ctx, CreateQuoteParams{
		SessionID:      q.SessionID,
		Principal:      q.Inputs.Principal,
		DownPayment:    q.Inputs.DownPayment,
		LoanAmount:     q.Inputs.LoanAmount,
		InterestRate:   q.Inputs.InterestRate,
		TenureYears:    int64(q.Inputs.TenureYears),
		MonthlyPayment: q.Results.MonthlyPayment,
		TotalPayment:   q.Results.TotalPayment,
		TotalInterest:  q.Results.TotalInterest,
		CreatedAt:      q.CreatedAt.UTC().Format(timeLayout),
	})
	if err != nil {
		return core.Quote{}, fmt.Errorf("create quote: %w", err)
	}

	slog.DebugContext(ctx, "Quote saved to SQLite",
		"id", row.ID,
		"session_id", row.SessionID,
		"loan_amount", row.LoanAmount,
		"monthly_payment", row.MonthlyPayment)

	return toQuote(row)
}

func (r *SQLiteRepository) GetQuote(ctx context.Context, id int64) (core.Quote, error) {
	row, err := r.queries.GetQuote(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Quote{}, fmt.Errorf("quote %d: %w", id, ErrQuoteNotFound)
	}
	if err != nil {
		return core.Quote{}, fmt.Errorf("get quote %d: %w", id, err)
	}
	return toQuote(row)
}

// PendingExport returns up to limit quotes not yet exported, oldest first.
func (r *SQLiteRepository) PendingExport(ctx context.Context, limit int) ([]core.Quote, error) {
	rows, err := r.queries.GetPendingExport(ctx, int64(limit))
	if err != nil {
		return nil, fmt.Errorf("get pending export: %w", err)
	}
	out := make([]core.Quote, 0, len(rows))
	for _, row := range rows {
		q, err := toQuote(row)
		if err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, nil
}

// MarkExported stamps the quote as exported. Marking twice is a no-op.
func (r *SQLiteRepository) MarkExported(ctx context.Context, id int64, at time.Time) error {
	n, err := r.queries.MarkQuoteExported(ctx, id, at.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("mark quote %d exported: %w", id, err)
	}
	if n == 0 {
		if _, err := r.GetQuote(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// ClaimExport reserves an unexported quote for one exporter until
// now+lease. It reports false when the quote is exported or another claim
// is still live.
func (r *SQLiteRepository) ClaimExport(ctx context.Context, id int64, now time.Time, lease time.Duration) (bool, error) {
	n, err := r.queries.ClaimQuoteExport(ctx, ClaimQuoteExportParams{
		ID:           id,
		ClaimedUntil: now.Add(lease).UTC().Format(claimLayout),
		Now:          now.UTC().Format(claimLayout),
	})
	if err != nil {
		return false, fmt.Errorf("claim quote %d: %w", id, err)
	}
	if n == 0 {
		if _, err := r.GetQuote(ctx, id); err != nil {
			return false, err
		}
	}
	return n == 1, nil
}

// ReleaseExport drops the claim on a quote whose export failed.
func (r *SQLiteRepository) ReleaseExport(ctx context.Context, id int64) error {
	if err := r.queries.ReleaseQuoteExport(ctx, id); err != nil {
		return fmt.Errorf("release quote %d: %w", id, err)
	}
	return nil
}

func (r *SQLiteRepository) Summary(ctx context.Context) (core.QuoteSummary, error) {
	s, err := r.queries.GetQuoteSummary(ctx)
	if err != nil {
		return core.QuoteSummary{}, fmt.Errorf("get quote summary: %w", err)
	}
	return core.QuoteSummary{
		Count:               s.Count,
		AvgLoanAmount:       s.AvgLoanAmount,
		AvgInterestRate:     s.AvgInterestRate,
		AvgMonthlyPayment:   s.AvgMonthlyPayment,
		TotalInterestQuoted: s.SumTotalInterest,
	}.Rounded(), nil
}

func toQuote(row QuoteRow) (core.Quote, error) {
	created, err := time.Parse(timeLayout, row.CreatedAt)
	if err != nil {
		return core.Quote{}, fmt.Errorf("parse created_at of quote %d: %w", row.ID, err)
	}
	q := core.Quote{
		ID:        row.ID,
		SessionID: row.SessionID,
		Inputs: core.Inputs{
			Principal:    row.Principal,
			DownPayment:  row.DownPayment,
			LoanAmount:   row.LoanAmount,
			InterestRate: row.InterestRate,
			TenureYears:  int(row.TenureYears),
		},
		Results: core.Results{
			MonthlyPayment: row.MonthlyPayment,
			TotalPayment:   row.TotalPayment,
			TotalInterest:  row.TotalInterest,
		},
		CreatedAt: created,
	}
	if row.ExportedAt.Valid {
		exported, err := time.Parse(timeLayout, row.ExportedAt.String)
		if err != nil {
			return core.Quote{}, fmt.Errorf("parse exported_at of quote %d: %w", row.ID, err)
		}
		q.ExportedAt = exported
	}
	return q, nil
}
