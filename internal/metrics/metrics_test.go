package metrics

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"meal-buddy/internal/database"
	"meal-buddy/internal/shared"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	db, err := database.NewDB(filepath.Join(t.TempDir(), "metrics.db"))
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewStore(db.SQL)
}

func TestStore_UsageAndCleanup(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	records := []ExecutionMetric{
		{AgentName: "PlanExtractor", Model: "m", PromptTokens: 100, CompletionTokens: 20, Timestamp: now.Add(-time.Hour)},
		{AgentName: "SuggestionGenerator", Model: "m", PromptTokens: 50, CompletionTokens: 30, Timestamp: now.Add(-2 * time.Hour)},
		{AgentName: "PlanExtractor", Model: "m", PromptTokens: 10, CompletionTokens: 5, Timestamp: now.AddDate(0, 0, -1)},
		{AgentName: "PlanExtractor", Model: "m", PromptTokens: 999, Timestamp: now.AddDate(0, 0, -40)},
	}
	for _, r := range records {
		if err := s.Record(ctx, r); err != nil {
			t.Fatalf("Record failed: %v", err)
		}
	}

	usage, err := s.GetDailyUsage(ctx, 7)
	if err != nil {
		t.Fatalf("GetDailyUsage failed: %v", err)
	}
	if len(usage) != 2 {
		t.Fatalf("Expected 2 days of usage, got %d: %+v", len(usage), usage)
	}

	today := usage[0]
	if today.Date != "2025-03-10" || today.TotalPrompt != 150 || today.TotalCompletion != 50 || today.TotalExecution != 2 {
		t.Errorf("Unexpected usage for today: %+v", today)
	}
	if usage[1].Date != "2025-03-09" || usage[1].TotalExecution != 1 {
		t.Errorf("Unexpected usage for yesterday: %+v", usage[1])
	}

	deleted, err := s.Cleanup(ctx, 30)
	if err != nil {
		t.Fatalf("Cleanup failed: %v", err)
	}
	if deleted != 1 {
		t.Errorf("Expected 1 deleted record, got %d", deleted)
	}
}

func TestStore_RecordMeta(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	if err := s.RecordMeta(ctx, shared.AgentMeta{}); err != nil {
		t.Fatalf("RecordMeta failed: %v", err)
	}
	err := s.RecordMeta(ctx, shared.AgentMeta{
		AgentName: "PlanExtractor",
		Usage:     shared.TokenUsage{Model: "gpt", PromptTokens: 3, CompletionTokens: 4},
		Latency:   1500 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("RecordMeta failed: %v", err)
	}

	var count int
	var latency int64
	if err := s.db.QueryRow(`SELECT COUNT(*), MAX(latency_ms) FROM execution_metrics`).Scan(&count, &latency); err != nil {
		t.Fatal(err)
	}
	if count != 1 || latency != 1500 {
		t.Errorf("Expected one record with 1500ms latency, got %d records, %dms", count, latency)
	}
}

func TestGetSysHealth(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "mb.db"), make([]byte, 2048), 0644); err != nil {
		t.Fatal(err)
	}

	h := GetSysHealth(dir)
	if h.DataBytes != 2048 {
		t.Errorf("Expected 2048 data bytes, got %d", h.DataBytes)
	}
	if h.Goroutines < 1 {
		t.Errorf("Expected at least one goroutine, got %d", h.Goroutines)
	}
	if !strings.Contains(h.Summary(), "2.0 KB") {
		t.Errorf("Expected summary to mention data size, got %q", h.Summary())
	}

	if got := GetSysHealth(filepath.Join(dir, "missing")).DataBytes; got != 0 {
		t.Errorf("Expected 0 bytes for a missing directory, got %d", got)
	}
}

func TestFormatBytes(t *testing.T) {
	tests := map[int64]string{
		512:             "512 B",
		1536:            "1.5 KB",
		5 * 1024 * 1024: "5.0 MB",
	}
	for in, want := range tests {
		if got := FormatBytes(in); got != want {
			t.Errorf("FormatBytes(%d) = %q, want %q", in, got, want)
		}
	}
}
