package sheets

import (
	"context"

	"emicalc/internal/core"
)

// Ports for outbound adapters.
type (
	// QuoteExporter appends a recorded quote to an external spreadsheet.
	QuoteExporter interface {
		ExportQuote(ctx context.Context, q core.Quote) (rowRef string, err error)
	}

	// ReadinessChecker verifies the export target before the worker starts.
	ReadinessChecker interface {
		Ready(ctx context.Context) error
	}
)

// Header is the first row of the export sheet.
var Header = []any{
	"Quote ID", "Created At", "Session", "Principal", "Down Payment", "Loan Amount",
	"Interest Rate", "Tenure (years)", "Monthly Payment", "Total Payment", "Total Interest",
}

// QuoteRow is the exported row for q, in Header order.
func QuoteRow(q core.Quote) []any {
	return []any{
		q.ID,
		q.CreatedAt.UTC().Format("2006-01-02 15:04:05"),
		q.SessionID,
		q.Inputs.Principal,
		q.Inputs.DownPayment,
		q.Inputs.LoanAmount,
		q.Inputs.InterestRate,
		q.Inputs.TenureYears,
		q.Results.MonthlyPayment,
		q.Results.TotalPayment,
		q.Results.TotalInterest,
	}
}
