package crawler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nao1215/skycrawl/internal/model"
	"github.com/nao1215/skycrawl/internal/observe"
)

// listCall is one recorded ListFollows invocation.
type listCall struct {
	Actor  model.Identity
	Cursor string
}

// fakeGraph is an in-memory follow graph served in pages.
type fakeGraph struct {
	mu sync.Mutex
	// pages maps an actor to its follow pages in order.
	pages map[model.Identity][]model.FollowPage
	// fail returns an error for a call, or nil.
	fail  func(actor model.Identity, cursor string, attempt int) error
	calls []listCall
	tries map[listCall]int
}

// newFakeGraph builds a graph where every actor has a single page.
func newFakeGraph(adj map[model.Identity][]model.Identity) *fakeGraph {
	g := &fakeGraph{
		pages: make(map[model.Identity][]model.FollowPage),
		tries: make(map[listCall]int),
	}
	for actor, targets := range adj {
		page := model.FollowPage{Subject: actor}
		for _, t := range targets {
			page.Follows = append(page.Follows, model.Follow{DID: t})
		}
		g.pages[actor] = []model.FollowPage{page}
	}
	return g
}

// cursorFor names the cursor leading to page index i.
func cursorFor(actor model.Identity, i int) string {
	return fmt.Sprintf("%s#%d", actor, i)
}

// setPages replaces the pages of actor and chains them with cursors.
func (g *fakeGraph) setPages(actor model.Identity, pages ...[]model.Identity) {
	out := make([]model.FollowPage, len(pages))
	for i, targets := range pages {
		out[i].Subject = actor
		for _, t := range targets {
			out[i].Follows = append(out[i].Follows, model.Follow{DID: t})
		}
		if i < len(pages)-1 {
			out[i].Cursor = cursorFor(actor, i+1)
		}
	}
	g.pages[actor] = out
}

func (g *fakeGraph) ListFollows(ctx context.Context, actor model.Identity, cursor string, _ int) (*model.FollowPage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	call := listCall{Actor: actor, Cursor: cursor}
	g.calls = append(g.calls, call)
	g.tries[call]++

	if g.fail != nil {
		if err := g.fail(actor, cursor, g.tries[call]); err != nil {
			return nil, err
		}
	}

	pages := g.pages[actor]
	if len(pages) == 0 {
		return &model.FollowPage{Subject: actor}, nil
	}
	idx := 0
	if cursor != "" {
		for i := 1; i < len(pages); i++ {
			if cursorFor(actor, i) == cursor {
				idx = i
				break
			}
		}
	}
	page := pages[idx]
	return &page, nil
}

func (g *fakeGraph) GetProfile(_ context.Context, actor model.Identity) (*model.EnrichedProfile, error) {
	return &model.EnrichedProfile{DID: actor, DisplayName: "user " + string(actor)}, nil
}

func (g *fakeGraph) recordedCalls() []listCall {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]listCall(nil), g.calls...)
}

// expandedActors returns the actors whose first page was requested, in order.
func (g *fakeGraph) expandedActors() []model.Identity {
	var out []model.Identity
	for _, c := range g.recordedCalls() {
		if c.Cursor == "" {
			out = append(out, c.Actor)
		}
	}
	return out
}

// recordingQueue records enqueued identities in order.
type recordingQueue struct {
	mu  sync.Mutex
	ids []model.Identity
	err error
}

func (q *recordingQueue) Enqueue(ctx context.Context, id model.Identity) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.ids = append(q.ids, id)
	return nil
}

func (q *recordingQueue) enqueued() []model.Identity {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]model.Identity(nil), q.ids...)
}

// eventRecorder records traversal events.
type eventRecorder struct {
	observe.Nop
	mu          sync.Mutex
	edges       []model.Edge
	enrolled    map[model.Identity]int
	expanded    []model.Identity
	handles     []string
	unreachable []model.Identity
	enqueueErrs int
	profiles    []model.Identity
}

func newEventRecorder() *eventRecorder {
	return &eventRecorder{enrolled: make(map[model.Identity]int)}
}

func (r *eventRecorder) IdentityEnrolled(id model.Identity, distance int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.enrolled[id] = distance
}

func (r *eventRecorder) ExpansionStarted(id model.Identity, handle string, _ int, _ int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.expanded = append(r.expanded, id)
	r.handles = append(r.handles, handle)
}

func (r *eventRecorder) EdgeTraversed(edge model.Edge) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.edges = append(r.edges, edge)
}

func (r *eventRecorder) IdentityUnreachable(id model.Identity, _ error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.unreachable = append(r.unreachable, id)
}

func (r *eventRecorder) EnqueueFailed(model.Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.enqueueErrs++
}

func (r *eventRecorder) EnrichmentSucceeded(p *model.EnrichedProfile) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.profiles = append(r.profiles, p.DID)
}

// transientErr reports itself as retryable or not.
type transientErr struct {
	retry bool
}

func (e transientErr) Error() string   { return fmt.Sprintf("transient=%v", e.retry) }
func (e transientErr) Transient() bool { return e.retry }

var errBoom = errors.New("boom")

// fastRetry keeps retry tests quick.
func fastRetry(maxRetries int) RetryConfig {
	return RetryConfig{MaxRetries: maxRetries, InitialInterval: time.Millisecond, MaxInterval: 2 * time.Millisecond}
}
