package crawler

import (
	"log/slog"

	"github.com/nao1215/skycrawl/internal/observe"
	"github.com/nao1215/skycrawl/internal/pipeline"
)

// MaxPageSize is the largest page the follow listing accepts.
const MaxPageSize = 100

// DefaultMaxExpandDistance expands the root and its direct follows.
const DefaultMaxExpandDistance = 1

// Config holds traversal settings for one run.
type Config struct {
	// MaxExpandDistance is the largest root distance whose follows are listed.
	MaxExpandDistance int

	// PageSize is the limit passed to each follow listing call.
	PageSize int

	// QueueCapacity bounds the enrichment queue.
	QueueCapacity int

	// Concurrency is the number of expansions run in parallel per level.
	// 1 keeps the traversal strictly sequential.
	Concurrency int

	// FailurePolicy decides what a listing error does to the crawl.
	FailurePolicy FailurePolicy

	// Retry bounds per-page retries for FailRetry and FailSkip.
	Retry RetryConfig
}

// DefaultConfig returns the settings of a sequential two-level crawl.
func DefaultConfig() Config {
	return Config{
		MaxExpandDistance: DefaultMaxExpandDistance,
		PageSize:          MaxPageSize,
		QueueCapacity:     pipeline.DefaultQueueCapacity,
		Concurrency:       1,
		FailurePolicy:     FailAbort,
		Retry:             DefaultRetryConfig(),
	}
}

// Validate checks the configuration for invalid values.
func (c Config) Validate() error {
	if c.PageSize < 1 || c.PageSize > MaxPageSize {
		return ErrInvalidPageSize
	}
	if c.QueueCapacity < 1 {
		return ErrInvalidQueueCapacity
	}
	if c.MaxExpandDistance < 0 {
		return ErrInvalidExpandDistance
	}
	if c.Concurrency < 1 {
		return ErrInvalidConcurrency
	}
	if c.Retry.MaxRetries < 0 {
		return ErrInvalidRetries
	}
	return nil
}

// options are shared by Walker and Crawler.
type options struct {
	observer observe.Observer
	logger   *slog.Logger
}

// Option configures a Walker or a Crawler.
type Option func(*options)

// WithObserver sets the observer that receives traversal and enrichment events.
func WithObserver(o observe.Observer) Option {
	return func(opts *options) {
		opts.observer = o
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(opts *options) {
		opts.logger = logger
	}
}

func buildOptions(opts []Option) options {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.observer == nil {
		o.observer = observe.Nop{}
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	return o
}
