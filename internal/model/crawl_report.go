package model

import "time"

// RunStatus is the terminal state of a crawl run.
type RunStatus string

const (
	// RunStatusRunning marks a run that has started but not finished.
	RunStatusRunning RunStatus = "running"
	// RunStatusCompleted marks a run whose traversal and enrichment both finished.
	RunStatusCompleted RunStatus = "completed"
	// RunStatusFailed marks a run aborted by a fatal error.
	RunStatusFailed RunStatus = "failed"
	// RunStatusCancelled marks a run stopped by the caller.
	RunStatusCancelled RunStatus = "cancelled"
)

// CrawlReport is the summary of one crawl run.
//
// Design decision: The report only carries counters and the small list of
// unreachable identities. Edges and profiles are streamed to the observers
// (console, database) while the crawl runs, so the report stays small no
// matter how large the traversed neighbourhood is.
type CrawlReport struct {
	// RunID uniquely identifies the run (UUID).
	RunID string `json:"run_id"`

	// Root is the identity the crawl started from, as given by the user.
	Root Identity `json:"root"`

	// RootDID is the resolved DID of the root, if resolution was performed.
	RootDID Identity `json:"root_did,omitempty"`

	// Service is the XRPC service the crawl talked to.
	Service string `json:"service"`

	// FailurePolicy is the listing failure policy that was in effect.
	FailurePolicy string `json:"failure_policy"`

	// StartedAt is when the traversal started.
	StartedAt time.Time `json:"started_at"`

	// FinishedAt is when the enrichment consumer terminated.
	FinishedAt time.Time `json:"finished_at"`

	// Status is the terminal state of the run.
	Status RunStatus `json:"status"`

	// === Traversal ===

	// Identities is the number of distinct identities enrolled for enrichment.
	Identities int `json:"identities"`

	// Expansions is the number of identities whose follow list was listed.
	Expansions int `json:"expansions"`

	// Edges is the number of follow edges reported.
	Edges int `json:"edges"`

	// Pages is the number of follow listing pages fetched.
	Pages int `json:"pages"`

	// Unreachable lists identities skipped after listing failures.
	Unreachable []Identity `json:"unreachable,omitempty"`

	// === Enrichment ===

	// Enriched is the number of successful profile lookups.
	Enriched int `json:"enriched"`

	// EnrichmentFailures is the number of failed profile lookups.
	EnrichmentFailures int `json:"enrichment_failures"`

	// EnqueueFailures is the number of identities dropped before enrichment.
	EnqueueFailures int `json:"enqueue_failures"`

	// Error contains the fatal error message, if any.
	Error string `json:"error,omitempty"`
}

// NewCrawlReport creates a report for a run starting now.
func NewCrawlReport(runID string, root Identity, service string) *CrawlReport {
	return &CrawlReport{
		RunID:     runID,
		Root:      root,
		Service:   service,
		StartedAt: time.Now(),
		Status:    RunStatusRunning,
	}
}

// Duration returns how long the run took.
// For a run still in progress it returns zero.
func (r *CrawlReport) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// EnrichmentAttempts returns the number of identities that reached the consumer.
func (r *CrawlReport) EnrichmentAttempts() int {
	return r.Enriched + r.EnrichmentFailures
}

// Succeeded reports whether the run completed without a fatal error.
func (r *CrawlReport) Succeeded() bool {
	return r.Status == RunStatusCompleted
}
