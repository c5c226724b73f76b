package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"emicalc/internal/core"
)

// MemoryJournal keeps quotes in process. Used when JOURNAL_BACKEND=memory
// and in tests.
type MemoryJournal struct {
	mu     sync.RWMutex
	nextID int64
	quotes []core.Quote
	claims map[int64]time.Time
}

func NewMemoryJournal() *MemoryJournal {
	return &MemoryJournal{nextID: 1, claims: make(map[int64]time.Time)}
}

func (m *MemoryJournal) Record(_ context.Context, q core.Quote) (core.Quote, error) {
	if err := q.Validate(); err != nil {
		return core.Quote{}, fmt.Errorf("validation failed: %w", err)
	}
	if q.CreatedAt.IsZero() {
		q.CreatedAt = time.Now().UTC()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	q.ID = m.nextID
	m.nextID++
	m.quotes = append(m.quotes, q)
	return q, nil
}

func (m *MemoryJournal) GetQuote(_ context.Context, id int64) (core.Quote, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if i := m.index(id); i >= 0 {
		return m.quotes[i], nil
	}
	return core.Quote{}, fmt.Errorf("quote %d: %w", id, ErrQuoteNotFound)
}

func (m *MemoryJournal) PendingExport(_ context.Context, limit int) ([]core.Quote, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []core.Quote
	for _, q := range m.quotes {
		if len(out) >= limit {
			break
		}
		if !q.Exported() {
			out = append(out, q)
		}
	}
	return out, nil
}

func (m *MemoryJournal) MarkExported(_ context.Context, id int64, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.index(id)
	if i < 0 {
		return fmt.Errorf("quote %d: %w", id, ErrQuoteNotFound)
	}
	if !m.quotes[i].Exported() {
		m.quotes[i].ExportedAt = at.UTC()
	}
	delete(m.claims, id)
	return nil
}

func (m *MemoryJournal) ClaimExport(_ context.Context, id int64, now time.Time, lease time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.index(id)
	if i < 0 {
		return false, fmt.Errorf("quote %d: %w", id, ErrQuoteNotFound)
	}
	if m.quotes[i].Exported() {
		return false, nil
	}
	if until, ok := m.claims[id]; ok && now.Before(until) {
		return false, nil
	}
	m.claims[id] = now.Add(lease)
	return true, nil
}

func (m *MemoryJournal) ReleaseExport(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.claims, id)
	return nil
}

func (m *MemoryJournal) Summary(_ context.Context) (core.QuoteSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var s core.QuoteSummary
	if len(m.quotes) == 0 {
		return s, nil
	}
	for _, q := range m.quotes {
		s.AvgLoanAmount += q.Inputs.LoanAmount
		s.AvgInterestRate += q.Inputs.InterestRate
		s.AvgMonthlyPayment += q.Results.MonthlyPayment
		s.TotalInterestQuoted += q.Results.TotalInterest
	}
	n := float64(len(m.quotes))
	s.Count = int64(len(m.quotes))
	s.AvgLoanAmount /= n
	s.AvgInterestRate /= n
	s.AvgMonthlyPayment /= n
	return s.Rounded(), nil
}

func (m *MemoryJournal) Close() error { return nil }

func (m *MemoryJournal) Ping(context.Context) error { return nil }

// ids are assigned sequentially so the slice is sorted by id
func (m *MemoryJournal) index(id int64) int {
	i := int(id - 1)
	if i < 0 || i >= len(m.quotes) {
		return -1
	}
	return i
}
