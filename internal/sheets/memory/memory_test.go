package memory

import (
	"context"
	"testing"

	"emicalc/internal/core"
)

func TestStoreExportQuote(t *testing.T) {
	s := New()
	q := core.NewQuote("abc", core.NewCalculator(core.DefaultLimits()).Snapshot())
	q.ID = 1

	ref, err := s.ExportQuote(context.Background(), q)
	if err != nil || ref != "mem:1" {
		t.Fatalf("unexpected export: ref=%q err=%v", ref, err)
	}
	ref, _ = s.ExportQuote(context.Background(), q)
	if ref != "mem:2" {
		t.Fatalf("expected sequential refs, got %q", ref)
	}

	rows := s.Rows()
	if len(rows) != 2 || rows[0][0] != int64(1) || rows[0][2] != "abc" {
		t.Fatalf("unexpected rows %v", rows)
	}
}

func TestStoreRejectsInvalidQuote(t *testing.T) {
	if _, err := New().ExportQuote(context.Background(), core.Quote{}); err == nil {
		t.Fatal("expected validation error")
	}
	if err := New().Ready(context.Background()); err != nil {
		t.Fatalf("Ready: %v", err)
	}
}
