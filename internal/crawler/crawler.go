package crawler

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/skycrawl/internal/model"
	"github.com/nao1215/skycrawl/internal/observe"
	"github.com/nao1215/skycrawl/internal/pipeline"
)

// API is the remote service a crawl talks to.
type API interface {
	FollowLister
	pipeline.ProfileFetcher
}

// Result summarizes a finished or aborted crawl.
type Result struct {
	// Identities is the number of distinct identities enrolled for enrichment.
	Identities int

	// Expansions is the number of identities whose follows were listed.
	Expansions int

	// Edges is the number of follow edges reported.
	Edges int

	// Pages is the number of follow pages fetched.
	Pages int

	// Unreachable lists the identities skipped after listing failures.
	Unreachable []model.Identity

	// EnqueueFailures is the number of identities enrichment refused.
	EnqueueFailures int

	// Enriched is the number of successful profile lookups.
	Enriched int

	// EnrichmentFailures is the number of failed profile lookups.
	EnrichmentFailures int
}

// Apply copies the counters into report.
func (r *Result) Apply(report *model.CrawlReport) {
	report.Identities = r.Identities
	report.Expansions = r.Expansions
	report.Edges = r.Edges
	report.Pages = r.Pages
	report.Unreachable = r.Unreachable
	report.EnqueueFailures = r.EnqueueFailures
	report.Enriched = r.Enriched
	report.EnrichmentFailures = r.EnrichmentFailures
}

// Crawler runs the traversal and the enrichment consumer of one crawl.
type Crawler struct {
	api      API
	cfg      Config
	observer observe.Observer
	logger   *slog.Logger
	opts     []Option
}

// New creates a Crawler for api.
func New(api API, cfg Config, opts ...Option) *Crawler {
	o := buildOptions(opts)
	return &Crawler{
		api:      api,
		cfg:      cfg,
		observer: o.observer,
		logger:   o.logger,
		opts:     opts,
	}
}

// Run crawls from root. The enrichment consumer runs concurrently with the
// walk; the queue is closed when the walk ends and Run waits until the
// consumer has drained it. A fatal walk error cancels the consumer.
//
// The returned Result is never nil and holds the counters reached so far,
// also when an error is returned.
func (c *Crawler) Run(ctx context.Context, root model.Identity) (*Result, error) {
	if err := c.cfg.Validate(); err != nil {
		return &Result{}, fmt.Errorf("invalid crawl configuration: %w", err)
	}
	if root.IsZero() {
		return &Result{}, model.ErrEmptyIdentity
	}

	queue := pipeline.NewQueue(c.cfg.QueueCapacity)
	enricher := pipeline.NewEnricher(queue, c.api,
		pipeline.WithObserver(c.observer),
		pipeline.WithLogger(c.logger),
	)
	walker := NewWalker(c.api, queue, c.cfg, c.opts...)

	c.logger.Info("starting crawl",
		"root", root,
		"max_expand_distance", c.cfg.MaxExpandDistance,
		"concurrency", c.cfg.Concurrency,
		"failure_policy", c.cfg.FailurePolicy.String(),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return enricher.Run(gctx)
	})
	g.Go(func() error {
		defer queue.Close()
		return walker.Walk(gctx, root)
	})
	err := g.Wait()

	result := &Result{
		Identities:         walker.Index().Len(AttrDone),
		Expansions:         walker.Expansions(),
		Edges:              walker.Edges(),
		Pages:              walker.Pages(),
		Unreachable:        walker.Unreachable(),
		EnqueueFailures:    walker.EnqueueFailures(),
		Enriched:           enricher.Succeeded(),
		EnrichmentFailures: enricher.Failed(),
	}

	if err != nil {
		c.logger.Error("crawl stopped", "root", root, "error", err)
		return result, err
	}

	c.logger.Info("crawl finished",
		"root", root,
		"identities", result.Identities,
		"expansions", result.Expansions,
	)
	return result, nil
}
