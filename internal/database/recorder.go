package database

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/nao1215/skycrawl/internal/model"
	"github.com/nao1215/skycrawl/internal/observe"
)

// DefaultBatchSize is the number of pending events that triggers a flush.
const DefaultBatchSize = 500

// Recorder writes the events of one run to the database.
// It buffers events and writes them in a single transaction per batch.
type Recorder struct {
	observe.Nop

	db        *CrawlDB
	runID     string
	batchSize int
	logger    *slog.Logger

	mu         sync.Mutex
	seq        int
	identities []IdentityRecord
	edges      []model.Edge
	profiles   []*model.EnrichedProfile
	err        error
}

var _ observe.Observer = (*Recorder)(nil)

// RecorderOption configures a Recorder.
type RecorderOption func(*Recorder)

// WithBatchSize sets how many pending events trigger a flush.
func WithBatchSize(n int) RecorderOption {
	return func(r *Recorder) {
		if n > 0 {
			r.batchSize = n
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) RecorderOption {
	return func(r *Recorder) {
		r.logger = logger
	}
}

// NewRecorder creates a Recorder for runID.
// The run row itself is written with SaveRun.
func (cdb *CrawlDB) NewRecorder(runID string, opts ...RecorderOption) *Recorder {
	r := &Recorder{
		db:        cdb,
		runID:     runID,
		batchSize: DefaultBatchSize,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	return r
}

// IdentityEnrolled implements observe.Observer.
func (r *Recorder) IdentityEnrolled(id model.Identity, distance int) {
	r.mu.Lock()
	r.seq++
	r.identities = append(r.identities, IdentityRecord{Identity: id, Distance: distance, Seq: r.seq})
	r.mu.Unlock()
	r.maybeFlush()
}

// EdgeTraversed implements observe.Observer.
func (r *Recorder) EdgeTraversed(edge model.Edge) {
	r.mu.Lock()
	r.edges = append(r.edges, edge)
	r.mu.Unlock()
	r.maybeFlush()
}

// EnrichmentSucceeded implements observe.Observer.
func (r *Recorder) EnrichmentSucceeded(p *model.EnrichedProfile) {
	r.mu.Lock()
	r.profiles = append(r.profiles, p)
	r.mu.Unlock()
	r.maybeFlush()
}

func (r *Recorder) pending() int {
	return len(r.identities) + len(r.edges) + len(r.profiles)
}

func (r *Recorder) maybeFlush() {
	r.mu.Lock()
	full := r.pending() >= r.batchSize
	r.mu.Unlock()
	if !full {
		return
	}
	if err := r.Flush(context.Background()); err != nil {
		r.logger.Error("failed to record crawl events", "run_id", r.runID, "error", err)
	}
}

// Flush writes all pending events. Once a write has failed, Flush keeps
// returning that error and drops further events.
func (r *Recorder) Flush(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.err != nil {
		r.identities, r.edges, r.profiles = nil, nil, nil
		return r.err
	}
	if r.pending() == 0 {
		return nil
	}

	if err := r.write(ctx); err != nil {
		r.err = err
		return err
	}
	r.identities, r.edges, r.profiles = nil, nil, nil
	return nil
}

// Err returns the first write error, if any.
func (r *Recorder) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// write stores the pending events in one transaction. Callers hold r.mu.
func (r *Recorder) write(ctx context.Context) (err error) {
	tx, err := r.db.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback() //nolint:errcheck // the write error is what matters
		}
	}()

	for _, rec := range r.identities {
		if _, err = tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO identities (run_id, identity, distance, seq) VALUES (?, ?, ?, ?)`,
			r.runID, rec.Identity.String(), rec.Distance, rec.Seq,
		); err != nil {
			return fmt.Errorf("failed to insert identity: %w", err)
		}
	}

	for _, e := range r.edges {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO edges (run_id, source, target) VALUES (?, ?, ?)`,
			r.runID, e.Source.String(), e.Target.String(),
		); err != nil {
			return fmt.Errorf("failed to insert edge: %w", err)
		}
	}

	for _, p := range r.profiles {
		if _, err = tx.ExecContext(ctx, `
			INSERT INTO profiles (run_id, did, handle, display_name, followers_count, indexed_at, observed_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(run_id, did) DO UPDATE SET
				handle = excluded.handle,
				display_name = excluded.display_name,
				followers_count = excluded.followers_count,
				indexed_at = excluded.indexed_at,
				observed_at = excluded.observed_at`,
			r.runID, p.DID.String(), p.Handle, p.DisplayName, p.FollowersCount,
			formatTimestamp(p.IndexedAt), formatTimestamp(p.ObservedAt),
		); err != nil {
			return fmt.Errorf("failed to insert profile: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit crawl events: %w", err)
	}
	return nil
}
