package worker

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"emicalc/internal/amqp"
	"emicalc/internal/core"
	applog "emicalc/internal/log"
	"emicalc/internal/sheets"
)

// QuoteJournal is the part of the journal the worker needs.
type QuoteJournal interface {
	GetQuote(ctx context.Context, id int64) (core.Quote, error)
	PendingExport(ctx context.Context, limit int) ([]core.Quote, error)
	MarkExported(ctx context.Context, id int64, at time.Time) error
	ClaimExport(ctx context.Context, id int64, now time.Time, lease time.Duration) (bool, error)
	ReleaseExport(ctx context.Context, id int64) error
}

// DefaultClaimLease bounds how long a crashed exporter keeps a quote from
// being retried.
const DefaultClaimLease = 2 * time.Minute

// ExportWorker copies recorded quotes from the journal to the export sheet.
// The AMQP handler and the sweep may see the same quote; each export claims
// the quote first so only one of them writes the row.
type ExportWorker struct {
	journal     QuoteJournal
	exporter    sheets.QuoteExporter
	batchSize   int
	concurrency int
	claimLease  time.Duration
	now         func() time.Time
}

func NewExportWorker(journal QuoteJournal, exporter sheets.QuoteExporter, batchSize, concurrency int) *ExportWorker {
	if batchSize < 1 {
		batchSize = 10
	}
	if concurrency < 1 {
		concurrency = 1
	}
	return &ExportWorker{
		journal:     journal,
		exporter:    exporter,
		batchSize:   batchSize,
		concurrency: concurrency,
		claimLease:  DefaultClaimLease,
		now:         time.Now,
	}
}

// HandleQuoteRecorded exports the quote named by an AMQP message. A quote
// that is already exported is acknowledged without writing a second row.
func (w *ExportWorker) HandleQuoteRecorded(ctx context.Context, msg *amqp.QuoteRecordedMessage) error {
	q, err := w.journal.GetQuote(ctx, msg.ID)
	if err != nil {
		return fmt.Errorf("get quote from journal: %w", err)
	}
	if q.Exported() {
		logger(ctx).DebugContext(ctx, "Quote already exported, skipping", applog.FieldQuoteID, q.ID)
		return nil
	}
	_, err = w.export(ctx, q)
	return err
}

// ProcessPending exports one batch of unexported quotes, running up to
// concurrency exports at a time. It returns how many were exported; failed
// quotes stay pending for the next sweep.
func (w *ExportWorker) ProcessPending(ctx context.Context) (int, error) {
	pending, err := w.journal.PendingExport(ctx, w.batchSize)
	if err != nil {
		return 0, fmt.Errorf("get pending quotes: %w", err)
	}
	if len(pending) == 0 {
		return 0, nil
	}

	logger(ctx).InfoContext(ctx, "Processing pending quotes", "count", len(pending))

	var exported atomic.Int64
	var g errgroup.Group
	g.SetLimit(w.concurrency)
	for _, q := range pending {
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			done, err := w.export(ctx, q)
			if err != nil {
				logger(ctx).ErrorContext(ctx, "Failed to export quote", applog.FieldQuoteID, q.ID, applog.FieldError, err)
				return nil
			}
			if done {
				exported.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	return int(exported.Load()), ctx.Err()
}

// StartupCheck verifies the export target and drains quotes left pending
// while the worker was down, up to five batches.
func (w *ExportWorker) StartupCheck(ctx context.Context) error {
	if rc, ok := w.exporter.(sheets.ReadinessChecker); ok {
		if err := rc.Ready(ctx); err != nil {
			return fmt.Errorf("export target not ready: %w", err)
		}
	}

	total := 0
	for i := 0; i < 5; i++ {
		n, err := w.ProcessPending(ctx)
		if err != nil {
			return fmt.Errorf("startup export: %w", err)
		}
		total += n
		if n < w.batchSize {
			break
		}
	}

	logger(ctx).InfoContext(ctx, "Startup export check completed", "exported", total)
	return nil
}

// Run sweeps pending quotes every interval until ctx is cancelled. It backs
// up the AMQP path when messages are lost.
func (w *ExportWorker) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger(ctx).InfoContext(ctx, "Export sweep stopped")
			return
		case <-ticker.C:
			if _, err := w.ProcessPending(ctx); err != nil && ctx.Err() == nil {
				logger(ctx).ErrorContext(ctx, "Export sweep failed", applog.FieldError, err)
			}
		}
	}
}

// export claims the quote, appends its row and marks it exported. It
// reports false without error when another exporter holds the claim or
// already exported the quote.
func (w *ExportWorker) export(ctx context.Context, q core.Quote) (bool, error) {
	claimed, err := w.journal.ClaimExport(ctx, q.ID, w.now(), w.claimLease)
	if err != nil {
		return false, fmt.Errorf("claim quote %d: %w", q.ID, err)
	}
	if !claimed {
		logger(ctx).DebugContext(ctx, "Quote claimed elsewhere, skipping", applog.FieldQuoteID, q.ID)
		return false, nil
	}

	ref, err := w.exporter.ExportQuote(ctx, q)
	if err != nil {
		if rerr := w.journal.ReleaseExport(context.WithoutCancel(ctx), q.ID); rerr != nil {
			logger(ctx).WarnContext(ctx, "Failed to release export claim", applog.FieldQuoteID, q.ID, applog.FieldError, rerr)
		}
		return false, fmt.Errorf("export quote %d: %w", q.ID, err)
	}

	// the row is written; if the mark fails the claim still holds until the lease ends
	if err := w.journal.MarkExported(ctx, q.ID, w.now()); err != nil {
		logger(ctx).ErrorContext(ctx, "Failed to mark quote exported", applog.FieldQuoteID, q.ID, applog.FieldError, err)
	}

	logger(ctx).InfoContext(ctx, "Exported quote",
		applog.FieldQuoteID, q.ID,
		"sheets_ref", ref,
		applog.FieldLoanAmount, q.Inputs.LoanAmount,
		applog.FieldMonthlyPayment, q.Results.MonthlyPayment)
	return true, nil
}

func logger(ctx context.Context) *applog.Logger {
	return applog.FromContext(ctx).WithComponent(applog.ComponentWorker)
}
