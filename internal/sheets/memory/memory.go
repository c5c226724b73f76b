package memory

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"emicalc/internal/core"
	ports "emicalc/internal/sheets"
)

// Store is the in-process exporter used when no spreadsheet is configured.
// Rows are kept in memory and logged.
type Store struct {
	mu   sync.Mutex
	rows [][]any
}

var (
	_ ports.QuoteExporter    = (*Store)(nil)
	_ ports.ReadinessChecker = (*Store)(nil)
)

func New() *Store {
	return &Store{}
}

// ExportQuote stores the row and returns a synthetic row reference.
func (s *Store) ExportQuote(ctx context.Context, q core.Quote) (string, error) {
	if err := q.Validate(); err != nil {
		return "", err
	}
	s.mu.Lock()
	s.rows = append(s.rows, ports.QuoteRow(q))
	ref := fmt.Sprintf("mem:%d", len(s.rows))
	s.mu.Unlock()

	slog.InfoContext(ctx, "Quote exported to memory", "id", q.ID, "ref", ref, "monthly_payment", q.Results.MonthlyPayment)
	return ref, nil
}

func (s *Store) Ready(context.Context) error { return nil }

// Rows returns a copy of the exported rows.
func (s *Store) Rows() [][]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]any(nil), s.rows...)
}
