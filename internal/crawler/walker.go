package crawler

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/skycrawl/internal/model"
	"github.com/nao1215/skycrawl/internal/observe"
)

// Enqueuer hands identities to enrichment. *pipeline.Queue implements it.
type Enqueuer interface {
	Enqueue(ctx context.Context, id model.Identity) error
}

// workItem is an identity waiting to be expanded.
type workItem struct {
	id model.Identity
	// handle is the handle seen on the follow that discovered id. It is
	// empty for the root.
	handle   string
	distance int
}

// Walker traverses the follow graph from a root identity.
// A Walker is good for a single Walk.
type Walker struct {
	paginator *Paginator
	index     *DedupIndex
	queue     Enqueuer
	cfg       Config
	observer  observe.Observer
	logger    *slog.Logger

	expansions      atomic.Int64
	edges           atomic.Int64
	enqueueFailures atomic.Int64

	mu          sync.Mutex
	unreachable []model.Identity
}

// NewWalker creates a Walker that lists follows with lister and hands every
// newly discovered identity to queue.
func NewWalker(lister FollowLister, queue Enqueuer, cfg Config, opts ...Option) *Walker {
	o := buildOptions(opts)
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	return &Walker{
		paginator: NewPaginator(lister, cfg, o.logger),
		index:     NewDedupIndex(),
		queue:     queue,
		cfg:       cfg,
		observer:  o.observer,
		logger:    o.logger,
	}
}

// Walk enrolls root, then expands identities level by level until the
// frontier is empty, a listing error aborts the crawl, or ctx is cancelled.
//
// Every identity is enrolled at most once and expanded at most once. The
// root is always enrolled first.
func (w *Walker) Walk(ctx context.Context, root model.Identity) error {
	if root.IsZero() {
		return model.ErrEmptyIdentity
	}

	w.index.TestAndInsert(FollowsDone, root)
	if err := w.enroll(ctx, root, 0); err != nil {
		return err
	}

	var frontier []workItem
	if w.expandable(0) {
		frontier = append(frontier, workItem{id: root, distance: 0})
	}

	if w.cfg.Concurrency > 1 {
		return w.walkLevels(ctx, frontier)
	}
	return w.walkSequential(ctx, frontier)
}

// walkSequential processes the work list in FIFO order on the calling goroutine.
func (w *Walker) walkSequential(ctx context.Context, work []workItem) error {
	for len(work) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}

		item := work[0]
		work = work[1:]

		next, err := w.expand(ctx, item)
		if err != nil {
			return err
		}
		work = append(work, next...)
	}
	return nil
}

// walkLevels expands each frontier with up to Concurrency goroutines and
// collects the next frontier in the order of the current one.
func (w *Walker) walkLevels(ctx context.Context, frontier []workItem) error {
	for len(frontier) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}

		results := make([][]workItem, len(frontier))
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(w.cfg.Concurrency)

		for i, item := range frontier {
			g.Go(func() error {
				next, err := w.expand(gctx, item)
				results[i] = next
				return err
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		frontier = frontier[:0]
		for _, next := range results {
			frontier = append(frontier, next...)
		}
	}
	return nil
}

// expand lists the follows of item and returns the newly discovered
// identities that are themselves within the expansion budget.
func (w *Walker) expand(ctx context.Context, item workItem) ([]workItem, error) {
	seq := int(w.expansions.Add(1))
	w.observer.ExpansionStarted(item.id, item.handle, item.distance, seq)

	childDistance := item.distance + 1
	expandChildren := w.expandable(childDistance)

	var next []workItem
	err := w.paginator.ForEachPage(ctx, item.id, func(page *model.FollowPage) error {
		source := page.Subject
		if source.IsZero() {
			source = item.id
		}

		for _, follow := range page.Follows {
			if err := ctx.Err(); err != nil {
				return err
			}
			if follow.DID.IsZero() {
				w.logger.Debug("skipping follow without identity", "source", source, "handle", follow.Handle)
				continue
			}

			w.edges.Add(1)
			w.observer.EdgeTraversed(model.Edge{Source: source, Target: follow.DID})

			if !w.index.TestAndInsert(FollowsDone, follow.DID) {
				continue
			}
			if err := w.enroll(ctx, follow.DID, childDistance); err != nil {
				return err
			}
			if expandChildren {
				next = append(next, workItem{id: follow.DID, handle: follow.Handle, distance: childDistance})
			}
		}
		return nil
	})

	if err != nil {
		var listingErr *ListingError
		if w.cfg.FailurePolicy == FailSkip && errors.As(err, &listingErr) {
			w.markUnreachable(item.id)
			w.observer.IdentityUnreachable(item.id, err)
			return next, nil
		}
		return nil, err
	}
	return next, nil
}

// enroll hands id to enrichment unless it was enrolled before.
// A rejected enqueue is reported and the traversal continues; only
// cancellation is returned.
func (w *Walker) enroll(ctx context.Context, id model.Identity, distance int) error {
	if !w.index.TestAndInsert(AttrDone, id) {
		return nil
	}
	w.observer.IdentityEnrolled(id, distance)

	if err := w.queue.Enqueue(ctx, id); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		w.enqueueFailures.Add(1)
		w.observer.EnqueueFailed(id, err)
	}
	return nil
}

// expandable reports whether an identity at distance d has its follows listed.
func (w *Walker) expandable(d int) bool {
	return d <= w.cfg.MaxExpandDistance
}

// Index returns the dedup index of this walk.
func (w *Walker) Index() *DedupIndex {
	return w.index
}

// Expansions returns the number of identities whose follows were listed.
func (w *Walker) Expansions() int {
	return int(w.expansions.Load())
}

// Edges returns the number of edges reported.
func (w *Walker) Edges() int {
	return int(w.edges.Load())
}

// Pages returns the number of follow pages fetched.
func (w *Walker) Pages() int {
	return w.paginator.Pages()
}

func (w *Walker) markUnreachable(id model.Identity) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.unreachable = append(w.unreachable, id)
}

// Unreachable returns the identities skipped after listing failures.
func (w *Walker) Unreachable() []model.Identity {
	w.mu.Lock()
	defer w.mu.Unlock()
	return slices.Clone(w.unreachable)
}

// EnqueueFailures returns the number of identities enrichment refused.
func (w *Walker) EnqueueFailures() int {
	return int(w.enqueueFailures.Load())
}
