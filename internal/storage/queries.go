package storage

import (
	"context"
	"database/sql"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

// QuoteRow mirrors the quotes table.
type QuoteRow struct {
	ID             int64
	SessionID      string
	Principal      float64
	DownPayment    float64
	LoanAmount     float64
	InterestRate   float64
	TenureYears    int64
	MonthlyPayment float64
	TotalPayment   float64
	TotalInterest  float64
	CreatedAt      string
	ExportedAt     sql.NullString
}

const quoteColumns = `id, session_id, principal, down_payment, loan_amount, interest_rate,
	tenure_years, monthly_payment, total_payment, total_interest, created_at, exported_at`

type CreateQuoteParams struct {
	SessionID      string
	Principal      float64
	DownPayment    float64
	LoanAmount     float64
	InterestRate   float64
	TenureYears    int64
	MonthlyPayment float64
	TotalPayment   float64
	TotalInterest  float64
	CreatedAt      string
}

const createQuote = `INSERT INTO quotes (
	session_id, principal, down_payment, loan_amount, interest_rate,
	tenure_years, monthly_payment, total_payment, total_interest, created_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
RETURNING ` + quoteColumns

func (q *Queries) CreateQuote(ctx context.Context, arg CreateQuoteParams) (QuoteRow, error) {
	row := q.db.QueryRowContext(ctx, createQuote,
		arg.SessionID,
		arg.Principal,
		arg.DownPayment,
		arg.LoanAmount,
		arg.InterestRate,
		arg.TenureYears,
		arg.MonthlyPayment,
		arg.TotalPayment,
		arg.TotalInterest,
		arg.CreatedAt,
	)
	return scanQuote(row)
}

const getQuote = `SELECT ` + quoteColumns + ` FROM quotes WHERE id = ?`

func (q *Queries) GetQuote(ctx context.Context, id int64) (QuoteRow, error) {
	return scanQuote(q.db.QueryRowContext(ctx, getQuote, id))
}

const getPendingExport = `SELECT ` + quoteColumns + ` FROM quotes
WHERE exported_at IS NULL
ORDER BY id
LIMIT ?`

func (q *Queries) GetPendingExport(ctx context.Context, limit int64) ([]QuoteRow, error) {
	rows, err := q.db.QueryContext(ctx, getPendingExport, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []QuoteRow
	for rows.Next() {
		i, err := scanQuote(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const markQuoteExported = `UPDATE quotes SET exported_at = ? WHERE id = ? AND exported_at IS NULL`

// MarkQuoteExported returns the number of rows that changed.
func (q *Queries) MarkQuoteExported(ctx context.Context, id int64, at string) (int64, error) {
	res, err := q.db.ExecContext(ctx, markQuoteExported, at, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// The claim is a lease: an expired claim can be taken again.
const claimQuoteExport = `UPDATE quotes SET export_claimed_until = ?
WHERE id = ? AND exported_at IS NULL
	AND (export_claimed_until IS NULL OR export_claimed_until <= ?)`

type ClaimQuoteExportParams struct {
	ID           int64
	ClaimedUntil string
	Now          string
}

// ClaimQuoteExport returns the number of rows that changed.
func (q *Queries) ClaimQuoteExport(ctx context.Context, arg ClaimQuoteExportParams) (int64, error) {
	res, err := q.db.ExecContext(ctx, claimQuoteExport, arg.ClaimedUntil, arg.ID, arg.Now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const releaseQuoteExport = `UPDATE quotes SET export_claimed_until = NULL WHERE id = ? AND exported_at IS NULL`

func (q *Queries) ReleaseQuoteExport(ctx context.Context, id int64) error {
	_, err := q.db.ExecContext(ctx, releaseQuoteExport, id)
	return err
}

const getQuoteSummary = `SELECT
	COUNT(*),
	COALESCE(AVG(loan_amount), 0),
	COALESCE(AVG(interest_rate), 0),
	COALESCE(AVG(monthly_payment), 0),
	COALESCE(SUM(total_interest), 0)
FROM quotes`

type QuoteSummaryRow struct {
	Count             int64
	AvgLoanAmount     float64
	AvgInterestRate   float64
	AvgMonthlyPayment float64
	SumTotalInterest  float64
}

func (q *Queries) GetQuoteSummary(ctx context.Context) (QuoteSummaryRow, error) {
	var s QuoteSummaryRow
	err := q.db.QueryRowContext(ctx, getQuoteSummary).Scan(
		&s.Count,
		&s.AvgLoanAmount,
		&s.AvgInterestRate,
		&s.AvgMonthlyPayment,
		&s.SumTotalInterest,
	)
	return s, err
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanQuote(s scanner) (QuoteRow, error) {
	var i QuoteRow
	err := s.Scan(
		&i.ID,
		&i.SessionID,
		&i.Principal,
		&i.DownPayment,
		&i.LoanAmount,
		&i.InterestRate,
		&i.TenureYears,
		&i.MonthlyPayment,
		&i.TotalPayment,
		&i.TotalInterest,
		&i.CreatedAt,
		&i.ExportedAt,
	)
	return i, err
}
