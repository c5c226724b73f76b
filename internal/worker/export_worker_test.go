package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"emicalc/internal/amqp"
	"emicalc/internal/core"
	"emicalc/internal/sheets/memory"
	"emicalc/internal/storage"
)

type flakyExporter struct {
	mu       sync.Mutex
	failIDs  map[int64]bool
	exported []int64
	inFlight atomic.Int32
	maxSeen  atomic.Int32
	readyErr error
}

func (f *flakyExporter) ExportQuote(_ context.Context, q core.Quote) (string, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		m := f.maxSeen.Load()
		if n <= m || f.maxSeen.CompareAndSwap(m, n) {
			break
		}
	}
	time.Sleep(5 * time.Millisecond)

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failIDs[q.ID] {
		return "", errors.New("quota exceeded")
	}
	f.exported = append(f.exported, q.ID)
	return "ref", nil
}

func (f *flakyExporter) Ready(context.Context) error { return f.readyErr }

func seedJournal(t *testing.T, n int) *storage.MemoryJournal {
	t.Helper()
	j := storage.NewMemoryJournal()
	snap := core.NewCalculator(core.DefaultLimits()).Snapshot()
	for i := 0; i < n; i++ {
		if _, err := j.Record(context.Background(), core.NewQuote("s", snap)); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}
	return j
}

func TestExportWorker_HandleQuoteRecorded(t *testing.T) {
	j := seedJournal(t, 1)
	exp := memory.New()
	w := NewExportWorker(j, exp, 10, 2)
	ctx := context.Background()

	if err := w.HandleQuoteRecorded(ctx, amqp.NewQuoteRecordedMessage(1, "s")); err != nil {
		t.Fatalf("HandleQuoteRecorded: %v", err)
	}
	// redelivery must not write a second row
	if err := w.HandleQuoteRecorded(ctx, amqp.NewQuoteRecordedMessage(1, "s")); err != nil {
		t.Fatalf("HandleQuoteRecorded redelivery: %v", err)
	}
	if len(exp.Rows()) != 1 {
		t.Fatalf("expected 1 exported row, got %d", len(exp.Rows()))
	}
	q, _ := j.GetQuote(ctx, 1)
	if !q.Exported() {
		t.Error("quote should be marked exported")
	}
}

func TestExportWorker_HandleUnknownQuote(t *testing.T) {
	w := NewExportWorker(storage.NewMemoryJournal(), memory.New(), 10, 1)
	err := w.HandleQuoteRecorded(context.Background(), amqp.NewQuoteRecordedMessage(42, "s"))
	if !errors.Is(err, storage.ErrQuoteNotFound) {
		t.Fatalf("expected ErrQuoteNotFound, got %v", err)
	}
}

func TestExportWorker_ProcessPendingConcurrencyAndFailures(t *testing.T) {
	j := seedJournal(t, 8)
	exp := &flakyExporter{failIDs: map[int64]bool{3: true}}
	w := NewExportWorker(j, exp, 10, 3)
	ctx := context.Background()

	n, err := w.ProcessPending(ctx)
	if err != nil {
		t.Fatalf("ProcessPending: %v", err)
	}
	if n != 7 {
		t.Errorf("exported %d, want 7", n)
	}
	if got := exp.maxSeen.Load(); got > 3 {
		t.Errorf("concurrency limit exceeded: %d in flight", got)
	}

	pending, _ := j.PendingExport(ctx, 10)
	if len(pending) != 1 || pending[0].ID != 3 {
		t.Errorf("expected only quote 3 to remain pending, got %+v", pending)
	}
}

func TestExportWorker_StartupCheck(t *testing.T) {
	t.Run("drains several batches", func(t *testing.T) {
		j := seedJournal(t, 5)
		exp := memory.New()
		w := NewExportWorker(j, exp, 2, 2)

		if err := w.StartupCheck(context.Background()); err != nil {
			t.Fatalf("StartupCheck: %v", err)
		}
		if len(exp.Rows()) != 5 {
			t.Errorf("exported %d rows, want 5", len(exp.Rows()))
		}
	})

	t.Run("fails when target not ready", func(t *testing.T) {
		w := NewExportWorker(seedJournal(t, 1), &flakyExporter{readyErr: errors.New("no access")}, 2, 1)
		if err := w.StartupCheck(context.Background()); err == nil {
			t.Fatal("expected readiness error")
		}
	})
}

func TestExportWorker_RunStopsOnCancel(t *testing.T) {
	j := seedJournal(t, 1)
	exp := memory.New()
	w := NewExportWorker(j, exp, 10, 1)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx, 10*time.Millisecond)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for len(exp.Rows()) == 0 {
		select {
		case <-deadline:
			t.Fatal("sweep never exported the pending quote")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestExportWorker_HandlerAndSweepExportOnce(t *testing.T) {
	for round := 0; round < 20; round++ {
		j := seedJournal(t, 1)
		exp := &flakyExporter{}
		w := NewExportWorker(j, exp, 10, 2)
		ctx := context.Background()

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			if err := w.HandleQuoteRecorded(ctx, amqp.NewQuoteRecordedMessage(1, "s")); err != nil {
				t.Errorf("HandleQuoteRecorded: %v", err)
			}
		}()
		go func() {
			defer wg.Done()
			if _, err := w.ProcessPending(ctx); err != nil {
				t.Errorf("ProcessPending: %v", err)
			}
		}()
		wg.Wait()

		if len(exp.exported) != 1 {
			t.Fatalf("round %d: quote exported %d times", round, len(exp.exported))
		}
	}
}

func TestExportWorker_ExpiredClaimIsRetried(t *testing.T) {
	j := seedJournal(t, 1)
	exp := memory.New()
	w := NewExportWorker(j, exp, 10, 1)
	ctx := context.Background()

	start := time.Now()
	// an exporter that died after claiming
	if ok, err := j.ClaimExport(ctx, 1, start, time.Minute); err != nil || !ok {
		t.Fatalf("ClaimExport: ok=%v err=%v", ok, err)
	}

	w.now = func() time.Time { return start.Add(30 * time.Second) }
	n, err := w.ProcessPending(ctx)
	if err != nil || n != 0 || len(exp.Rows()) != 0 {
		t.Fatalf("live claim must be respected: n=%d rows=%d err=%v", n, len(exp.Rows()), err)
	}

	w.now = func() time.Time { return start.Add(2 * time.Minute) }
	n, err = w.ProcessPending(ctx)
	if err != nil || n != 1 || len(exp.Rows()) != 1 {
		t.Fatalf("expired claim must be retried: n=%d rows=%d err=%v", n, len(exp.Rows()), err)
	}
}
