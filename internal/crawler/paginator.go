package crawler

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/nao1215/skycrawl/internal/model"
)

// FollowLister lists one page of the accounts an actor follows.
// An empty cursor requests the first page.
type FollowLister interface {
	ListFollows(ctx context.Context, actor model.Identity, cursor string, limit int) (*model.FollowPage, error)
}

// Paginator drives a FollowLister through every page of one actor.
type Paginator struct {
	lister FollowLister
	limit  int
	policy FailurePolicy
	retry  RetryConfig
	logger *slog.Logger

	pages atomic.Int64
}

// NewPaginator creates a Paginator using the page size, failure policy and
// retry settings of cfg.
func NewPaginator(lister FollowLister, cfg Config, logger *slog.Logger) *Paginator {
	if logger == nil {
		logger = slog.Default()
	}
	limit := cfg.PageSize
	if limit < 1 || limit > MaxPageSize {
		limit = MaxPageSize
	}
	return &Paginator{
		lister: lister,
		limit:  limit,
		policy: cfg.FailurePolicy,
		retry:  cfg.Retry,
		logger: logger,
	}
}

// ForEachPage calls fn with every page of actor's follow listing in order.
// It starts with an empty cursor and passes each returned cursor unchanged to
// the next call until the service returns none. A page is fetched exactly
// once on success; a failing page is retried with the same cursor.
//
// A listing failure is returned as *ListingError. Errors from fn and context
// cancellation are returned as is.
func (p *Paginator) ForEachPage(ctx context.Context, actor model.Identity, fn func(*model.FollowPage) error) error {
	cursor := ""
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		page, err := p.fetch(ctx, actor, cursor)
		if err != nil {
			return err
		}
		p.pages.Add(1)

		if err := fn(page); err != nil {
			return err
		}
		if !page.HasNext() {
			return nil
		}
		cursor = page.Cursor
	}
}

// Pages returns the number of pages fetched so far.
func (p *Paginator) Pages() int {
	return int(p.pages.Load())
}

// fetch lists a single page, retrying transient failures when the policy allows it.
func (p *Paginator) fetch(ctx context.Context, actor model.Identity, cursor string) (*model.FollowPage, error) {
	var (
		page *model.FollowPage
		err  error
	)
	if p.policy.retries() && p.retry.MaxRetries > 0 {
		page, err = p.fetchWithRetry(ctx, actor, cursor)
	} else {
		page, err = p.lister.ListFollows(ctx, actor, cursor, p.limit)
	}

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &ListingError{Actor: actor, Cursor: cursor, Err: err}
	}
	if page == nil {
		page = &model.FollowPage{}
	}
	return page, nil
}

func (p *Paginator) fetchWithRetry(ctx context.Context, actor model.Identity, cursor string) (*model.FollowPage, error) {
	b := backoff.NewExponentialBackOff()
	if p.retry.InitialInterval > 0 {
		b.InitialInterval = p.retry.InitialInterval
	}
	if p.retry.MaxInterval > 0 {
		b.MaxInterval = p.retry.MaxInterval
	}

	operation := func() (*model.FollowPage, error) {
		page, err := p.lister.ListFollows(ctx, actor, cursor, p.limit)
		if err == nil {
			return page, nil
		}
		if !isTransient(err) {
			return nil, backoff.Permanent(err)
		}
		return nil, err
	}

	notify := func(err error, next time.Duration) {
		p.logger.Warn("retrying follow listing",
			"actor", actor,
			"cursor", cursor,
			"error", err,
			"backoff", next,
		)
	}

	return backoff.Retry(ctx, operation,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(p.retry.MaxRetries)+1),
		backoff.WithNotify(notify),
	)
}
