package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"emicalc/internal/core"
	applog "emicalc/internal/log"
)

// ErrJournalDisabled is returned by Summary when no journal is configured.
var ErrJournalDisabled = errors.New("quote journal disabled")

const publishTimeout = 2 * time.Second

type (
	// QuoteRecorder persists recomputed quotes.
	QuoteRecorder interface {
		Record(ctx context.Context, q core.Quote) (core.Quote, error)
		Summary(ctx context.Context) (core.QuoteSummary, error)
		Close() error
	}

	// EventPublisher announces recorded quotes to the export worker.
	EventPublisher interface {
		PublishQuoteRecorded(ctx context.Context, id int64, sessionID string) error
		Close() error
	}
)

// QuoteService journals every recomputation and publishes an event for it.
// Both steps are best effort: failures are logged and never reach the user.
type QuoteService struct {
	journal   QuoteRecorder
	publisher EventPublisher
}

// NewQuoteService accepts nil for either dependency.
func NewQuoteService(journal QuoteRecorder, publisher EventPublisher) *QuoteService {
	return &QuoteService{journal: journal, publisher: publisher}
}

// Enabled reports whether quotes are journaled.
func (s *QuoteService) Enabled() bool {
	return s.journal != nil
}

// OnChange records the snapshot of a recomputing change. Its signature
// matches session.Hook.
func (s *QuoteService) OnChange(ctx context.Context, sessionID string, ch core.Change) {
	if !ch.Recomputed {
		return
	}
	if _, err := s.Record(ctx, sessionID, ch.Snapshot); err != nil {
		applog.FromContext(ctx).WithComponent(applog.ComponentJournal).WarnContext(ctx, "Failed to record quote",
			applog.FieldSessionID, sessionID, applog.FieldError, err)
	}
}

// Record saves the quote and publishes a QuoteRecorded event. The returned
// error only reports journal failures; publish failures are logged.
func (s *QuoteService) Record(ctx context.Context, sessionID string, snap core.Snapshot) (core.Quote, error) {
	if s.journal == nil {
		return core.Quote{}, nil
	}

	q, err := s.journal.Record(ctx, core.NewQuote(sessionID, snap))
	if err != nil {
		return core.Quote{}, fmt.Errorf("record quote: %w", err)
	}

	if err := s.publish(ctx, q); err != nil {
		applog.FromContext(ctx).WithComponent(applog.ComponentAMQP).ErrorContext(ctx, "Failed to publish quote recorded message",
			applog.FieldQuoteID, q.ID, applog.FieldSessionID, sessionID, applog.FieldError, err)
	}
	return q, nil
}

func (s *QuoteService) publish(ctx context.Context, q core.Quote) error {
	if s.publisher == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	return s.publisher.PublishQuoteRecorded(ctx, q.ID, q.SessionID)
}

func (s *QuoteService) Summary(ctx context.Context) (core.QuoteSummary, error) {
	if s.journal == nil {
		return core.QuoteSummary{}, ErrJournalDisabled
	}
	return s.journal.Summary(ctx)
}

// Close closes both journal and AMQP connections
func (s *QuoteService) Close() error {
	var errs []error
	if s.journal != nil {
		if err := s.journal.Close(); err != nil {
			errs = append(errs, fmt.Errorf("journal: %w", err))
		}
	}
	if s.publisher != nil {
		if err := s.publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}
	return errors.Join(errs...)
}
