package core

import (
	"errors"
	"strings"
	"time"
)

// Quote is a computed result recorded in the quote journal.
type Quote struct {
	ID         int64
	SessionID  string
	Inputs     Inputs
	Results    Results
	CreatedAt  time.Time
	ExportedAt time.Time
}

// NewQuote captures a recomputed snapshot for a session.
func NewQuote(sessionID string, s Snapshot) Quote {
	return Quote{
		SessionID: sessionID,
		Inputs:    s.Inputs,
		Results:   s.Results,
		CreatedAt: time.Now().UTC(),
	}
}

// Exported reports whether the quote was already sent to the export sink.
func (q Quote) Exported() bool {
	return !q.ExportedAt.IsZero()
}

func (q Quote) Validate() error {
	if strings.TrimSpace(q.SessionID) == "" {
		return errors.New("empty session id")
	}
	if q.Inputs.LoanAmount <= 0 {
		return errors.New("quote without loan amount")
	}
	if q.Results.MonthlyPayment <= 0 {
		return errors.New("quote without monthly payment")
	}
	return nil
}

// QuoteSummary aggregates the journal.
type QuoteSummary struct {
	Count               int64   `json:"count"`
	AvgLoanAmount       float64 `json:"avg_loan_amount"`
	AvgInterestRate     float64 `json:"avg_interest_rate"`
	AvgMonthlyPayment   float64 `json:"avg_monthly_payment"`
	TotalInterestQuoted float64 `json:"total_interest_quoted"`
}

// Rounded returns the summary with monetary averages rounded to cents.
func (s QuoteSummary) Rounded() QuoteSummary {
	s.AvgLoanAmount = round2(s.AvgLoanAmount)
	s.AvgInterestRate = round2(s.AvgInterestRate)
	s.AvgMonthlyPayment = round2(s.AvgMonthlyPayment)
	s.TotalInterestQuoted = round2(s.TotalInterestQuoted)
	return s
}
