package model

import (
	"testing"
	"time"
)

// TestNewCrawlReport tests report construction and derived values.
func TestNewCrawlReport(t *testing.T) {
	t.Parallel()

	t.Run("starts in running state", func(t *testing.T) {
		t.Parallel()
		r := NewCrawlReport("run-1", "alice.bsky.social", "https://bsky.social")
		if r.Status != RunStatusRunning {
			t.Errorf("expected status running, got %q", r.Status)
		}
		if r.StartedAt.IsZero() {
			t.Error("expected StartedAt to be set")
		}
		if r.Duration() != 0 {
			t.Errorf("expected zero duration for unfinished run, got %v", r.Duration())
		}
		if r.Succeeded() {
			t.Error("expected running report not to be succeeded")
		}
	})

	t.Run("duration and attempts", func(t *testing.T) {
		t.Parallel()
		r := NewCrawlReport("run-2", "alice.bsky.social", "https://bsky.social")
		r.FinishedAt = r.StartedAt.Add(3 * time.Second)
		r.Enriched = 7
		r.EnrichmentFailures = 2
		r.Status = RunStatusCompleted

		if r.Duration() != 3*time.Second {
			t.Errorf("expected 3s, got %v", r.Duration())
		}
		if r.EnrichmentAttempts() != 9 {
			t.Errorf("expected 9 attempts, got %d", r.EnrichmentAttempts())
		}
		if !r.Succeeded() {
			t.Error("expected completed report to be succeeded")
		}
	})
}
