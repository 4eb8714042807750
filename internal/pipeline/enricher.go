package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/nao1215/skycrawl/internal/model"
	"github.com/nao1215/skycrawl/internal/observe"
)

// ProfileFetcher looks up the attributes of a single identity.
type ProfileFetcher interface {
	GetProfile(ctx context.Context, actor model.Identity) (*model.EnrichedProfile, error)
}

// Enricher is the single consumer of a Queue.
// It fetches each identity's profile in enqueue order.
type Enricher struct {
	queue    *Queue
	fetcher  ProfileFetcher
	observer observe.Observer
	logger   *slog.Logger

	succeeded atomic.Int64
	failed    atomic.Int64
}

// EnricherOption configures an Enricher.
type EnricherOption func(*Enricher)

// WithObserver sets the observer that receives enrichment results.
func WithObserver(o observe.Observer) EnricherOption {
	return func(e *Enricher) {
		e.observer = o
	}
}

// WithLogger sets a custom logger for the consumer.
func WithLogger(logger *slog.Logger) EnricherOption {
	return func(e *Enricher) {
		e.logger = logger
	}
}

// NewEnricher creates a consumer for queue using fetcher for lookups.
func NewEnricher(queue *Queue, fetcher ProfileFetcher, opts ...EnricherOption) *Enricher {
	e := &Enricher{
		queue:   queue,
		fetcher: fetcher,
	}

	for _, opt := range opts {
		opt(e)
	}

	if e.observer == nil {
		e.observer = observe.Nop{}
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}

	return e
}

// Run receives identities until the queue is closed and drained, or ctx is
// cancelled. It returns nil after a clean drain and ctx.Err() on cancellation.
//
// Once Run returns, further Enqueue calls fail with ErrQueueClosed.
func (e *Enricher) Run(ctx context.Context) error {
	defer e.queue.stop()

	e.logger.Debug("enrichment consumer started", "capacity", e.queue.Cap())

	for {
		if err := ctx.Err(); err != nil {
			return e.cancelled(err)
		}

		select {
		case <-ctx.Done():
			return e.cancelled(ctx.Err())
		case id, ok := <-e.queue.items:
			if !ok {
				e.logger.Debug("enrichment consumer drained",
					"succeeded", e.Succeeded(),
					"failed", e.Failed(),
				)
				return nil
			}
			e.enrich(ctx, id)
		}
	}
}

func (e *Enricher) cancelled(err error) error {
	e.logger.Warn("enrichment consumer cancelled",
		"pending", e.queue.Len(),
		"reason", err,
	)
	return err
}

// enrich fetches and reports one profile. Failures are reported, never returned.
func (e *Enricher) enrich(ctx context.Context, id model.Identity) {
	profile, err := e.fetcher.GetProfile(ctx, id)
	if err == nil && profile == nil {
		err = fmt.Errorf("%w: %s", ErrEmptyProfile, id)
	}
	if err != nil {
		e.failed.Add(1)
		e.observer.EnrichmentFailed(id, err)
		return
	}

	if profile.ObservedAt.IsZero() {
		profile.ObservedAt = time.Now()
	}

	e.succeeded.Add(1)
	e.observer.EnrichmentSucceeded(profile)
}

// Succeeded returns the number of successful lookups so far.
func (e *Enricher) Succeeded() int {
	return int(e.succeeded.Load())
}

// Failed returns the number of failed lookups so far.
func (e *Enricher) Failed() int {
	return int(e.failed.Load())
}
