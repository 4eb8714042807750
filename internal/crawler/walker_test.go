package crawler

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/nao1215/skycrawl/internal/model"
	"github.com/nao1215/skycrawl/internal/pipeline"
)

// sharedTargetGraph is A->{B,C}, B->{D}, C->{B}.
func sharedTargetGraph() *fakeGraph {
	return newFakeGraph(map[model.Identity][]model.Identity{
		"A": {"B", "C"},
		"B": {"D"},
		"C": {"B"},
		"D": {"E"},
	})
}

func TestWalkerSharedTarget(t *testing.T) {
	t.Parallel()

	g := sharedTargetGraph()
	q := &recordingQueue{}
	rec := newEventRecorder()
	w := NewWalker(g, q, DefaultConfig(), WithObserver(rec))

	if err := w.Walk(context.Background(), "A"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if diff := cmp.Diff([]model.Identity{"A", "B", "C", "D"}, q.enqueued()); diff != "" {
		t.Errorf("enrollment order mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]model.Identity{"A", "B", "C"}, g.expandedActors()); diff != "" {
		t.Errorf("expansion order mismatch (-want +got):\n%s", diff)
	}

	wantEdges := []model.Edge{
		{Source: "A", Target: "B"},
		{Source: "A", Target: "C"},
		{Source: "B", Target: "D"},
		{Source: "C", Target: "B"},
	}
	if diff := cmp.Diff(wantEdges, rec.edges); diff != "" {
		t.Errorf("edges mismatch (-want +got):\n%s", diff)
	}

	wantDistances := map[model.Identity]int{"A": 0, "B": 1, "C": 1, "D": 2}
	if diff := cmp.Diff(wantDistances, rec.enrolled); diff != "" {
		t.Errorf("distances mismatch (-want +got):\n%s", diff)
	}
	if w.Expansions() != 3 || w.Edges() != 4 || w.Pages() != 3 {
		t.Errorf("unexpected counters: expansions=%d edges=%d pages=%d", w.Expansions(), w.Edges(), w.Pages())
	}
}

func TestWalkerExpansionHandle(t *testing.T) {
	t.Parallel()

	g := newFakeGraph(map[model.Identity][]model.Identity{"B": nil, "C": nil})
	g.pages["A"] = []model.FollowPage{{
		Subject: "A",
		Follows: []model.Follow{{DID: "B", Handle: "b.test"}, {DID: "C"}},
	}}
	rec := newEventRecorder()
	w := NewWalker(g, &recordingQueue{}, DefaultConfig(), WithObserver(rec))

	if err := w.Walk(context.Background(), "A"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff([]model.Identity{"A", "B", "C"}, rec.expanded); diff != "" {
		t.Errorf("expansion mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"", "b.test", ""}, rec.handles); diff != "" {
		t.Errorf("handles mismatch (-want +got):\n%s", diff)
	}
}

func TestWalkerDepthCutoff(t *testing.T) {
	t.Parallel()

	t.Run("distance two is enrolled but never listed", func(t *testing.T) {
		t.Parallel()

		g := newFakeGraph(map[model.Identity][]model.Identity{
			"root": {"x"},
			"x":    {"y"},
			"y":    {"z"},
		})
		q := &recordingQueue{}
		w := NewWalker(g, q, DefaultConfig())

		if err := w.Walk(context.Background(), "root"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if diff := cmp.Diff([]model.Identity{"root", "x", "y"}, q.enqueued()); diff != "" {
			t.Errorf("enrollment mismatch (-want +got):\n%s", diff)
		}
		if slices.Contains(g.expandedActors(), "y") {
			t.Error("identity at distance 2 must not be expanded")
		}
	})

	t.Run("identity reachable at distance one is expanded despite a longer path", func(t *testing.T) {
		t.Parallel()

		// root follows a and b; a also follows b. b must still be expanded.
		g := newFakeGraph(map[model.Identity][]model.Identity{
			"root": {"a", "b"},
			"a":    {"b"},
			"b":    {"c"},
		})
		q := &recordingQueue{}
		w := NewWalker(g, q, DefaultConfig())

		if err := w.Walk(context.Background(), "root"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if diff := cmp.Diff([]model.Identity{"root", "a", "b"}, g.expandedActors()); diff != "" {
			t.Errorf("expansion mismatch (-want +got):\n%s", diff)
		}
		if !slices.Contains(q.enqueued(), "c") {
			t.Error("expected c to be enrolled")
		}
	})

	t.Run("zero distance lists only the root", func(t *testing.T) {
		t.Parallel()

		g := sharedTargetGraph()
		q := &recordingQueue{}
		cfg := DefaultConfig()
		cfg.MaxExpandDistance = 0
		w := NewWalker(g, q, cfg)

		if err := w.Walk(context.Background(), "A"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if diff := cmp.Diff([]model.Identity{"A"}, g.expandedActors()); diff != "" {
			t.Errorf("expansion mismatch (-want +got):\n%s", diff)
		}
		if diff := cmp.Diff([]model.Identity{"A", "B", "C"}, q.enqueued()); diff != "" {
			t.Errorf("enrollment mismatch (-want +got):\n%s", diff)
		}
	})
}

func TestWalkerExactlyOnce(t *testing.T) {
	t.Parallel()

	t.Run("re-delivered identities are ignored", func(t *testing.T) {
		t.Parallel()

		g := newFakeGraph(map[model.Identity][]model.Identity{
			"root": {"a", "a", "b", "root"},
			"a":    {"b", "root"},
			"b":    {"a"},
		})
		q := &recordingQueue{}
		rec := newEventRecorder()
		w := NewWalker(g, q, DefaultConfig(), WithObserver(rec))

		if err := w.Walk(context.Background(), "root"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if diff := cmp.Diff([]model.Identity{"root", "a", "b"}, q.enqueued()); diff != "" {
			t.Errorf("enrollment mismatch (-want +got):\n%s", diff)
		}
		if diff := cmp.Diff([]model.Identity{"root", "a", "b"}, g.expandedActors()); diff != "" {
			t.Errorf("expansion mismatch (-want +got):\n%s", diff)
		}
		if len(rec.edges) != 7 {
			t.Errorf("every delivered edge is reported, expected 7, got %d", len(rec.edges))
		}
	})

	t.Run("root is enrolled first", func(t *testing.T) {
		t.Parallel()

		g := sharedTargetGraph()
		q := &recordingQueue{}
		w := NewWalker(g, q, DefaultConfig())
		if err := w.Walk(context.Background(), "A"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := q.enqueued(); len(got) == 0 || got[0] != "A" {
			t.Errorf("expected root first, got %v", got)
		}
	})

	t.Run("subject of the page is the edge source", func(t *testing.T) {
		t.Parallel()

		g := newFakeGraph(nil)
		g.pages["alice.example.com"] = []model.FollowPage{{
			Subject: "did:plc:alice",
			Follows: []model.Follow{{DID: "did:plc:bob"}, {DID: ""}},
		}}
		rec := newEventRecorder()
		cfg := DefaultConfig()
		cfg.MaxExpandDistance = 0
		w := NewWalker(g, &recordingQueue{}, cfg, WithObserver(rec))

		if err := w.Walk(context.Background(), "alice.example.com"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want := []model.Edge{{Source: "did:plc:alice", Target: "did:plc:bob"}}
		if diff := cmp.Diff(want, rec.edges); diff != "" {
			t.Errorf("edges mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("empty root", func(t *testing.T) {
		t.Parallel()

		w := NewWalker(newFakeGraph(nil), &recordingQueue{}, DefaultConfig())
		if err := w.Walk(context.Background(), ""); !errors.Is(err, model.ErrEmptyIdentity) {
			t.Errorf("expected ErrEmptyIdentity, got %v", err)
		}
	})
}

func TestWalkerFailurePolicy(t *testing.T) {
	t.Parallel()

	failOn := func(target model.Identity, err error) func(model.Identity, string, int) error {
		return func(actor model.Identity, _ string, _ int) error {
			if actor == target {
				return err
			}
			return nil
		}
	}

	t.Run("abort stops the crawl", func(t *testing.T) {
		t.Parallel()

		g := sharedTargetGraph()
		g.fail = failOn("B", errBoom)
		w := NewWalker(g, &recordingQueue{}, DefaultConfig())

		err := w.Walk(context.Background(), "A")
		if !errors.Is(err, ErrListing) || !errors.Is(err, errBoom) {
			t.Fatalf("expected listing error wrapping errBoom, got %v", err)
		}
		if slices.Contains(g.expandedActors(), "C") {
			t.Error("expected crawl to stop before expanding C")
		}
	})

	t.Run("skip marks identity unreachable and continues", func(t *testing.T) {
		t.Parallel()

		g := sharedTargetGraph()
		g.fail = failOn("B", transientErr{retry: true})
		cfg := DefaultConfig()
		cfg.FailurePolicy = FailSkip
		cfg.Retry = fastRetry(1)
		rec := newEventRecorder()
		q := &recordingQueue{}
		w := NewWalker(g, q, cfg, WithObserver(rec))

		if err := w.Walk(context.Background(), "A"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if diff := cmp.Diff([]model.Identity{"B"}, rec.unreachable); diff != "" {
			t.Errorf("unreachable mismatch (-want +got):\n%s", diff)
		}
		if diff := cmp.Diff([]model.Identity{"A", "B", "C"}, q.enqueued()); diff != "" {
			t.Errorf("enrollment mismatch (-want +got):\n%s", diff)
		}
		if diff := cmp.Diff([]model.Identity{"B"}, w.Unreachable()); diff != "" {
			t.Errorf("walker unreachable mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("skip keeps identities found on earlier pages", func(t *testing.T) {
		t.Parallel()

		g := newFakeGraph(nil)
		g.setPages("root", []model.Identity{"a"}, []model.Identity{"b"})
		g.fail = func(_ model.Identity, cursor string, _ int) error {
			if cursor != "" {
				return transientErr{retry: false}
			}
			return nil
		}
		cfg := DefaultConfig()
		cfg.FailurePolicy = FailSkip
		q := &recordingQueue{}
		w := NewWalker(g, q, cfg)

		if err := w.Walk(context.Background(), "root"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if diff := cmp.Diff([]model.Identity{"root", "a"}, q.enqueued()); diff != "" {
			t.Errorf("enrollment mismatch (-want +got):\n%s", diff)
		}
		if !slices.Contains(g.expandedActors(), "a") {
			t.Error("expected a to be expanded")
		}
	})

	t.Run("retry recovers from transient errors", func(t *testing.T) {
		t.Parallel()

		g := sharedTargetGraph()
		g.fail = func(actor model.Identity, _ string, attempt int) error {
			if actor == "C" && attempt == 1 {
				return transientErr{retry: true}
			}
			return nil
		}
		cfg := DefaultConfig()
		cfg.FailurePolicy = FailRetry
		cfg.Retry = fastRetry(3)
		q := &recordingQueue{}
		w := NewWalker(g, q, cfg)

		if err := w.Walk(context.Background(), "A"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if diff := cmp.Diff([]model.Identity{"A", "B", "C", "D"}, q.enqueued()); diff != "" {
			t.Errorf("enrollment mismatch (-want +got):\n%s", diff)
		}
	})
}

func TestWalkerEnqueueFailure(t *testing.T) {
	t.Parallel()

	g := sharedTargetGraph()
	q := &recordingQueue{err: pipeline.ErrQueueClosed}
	rec := newEventRecorder()
	w := NewWalker(g, q, DefaultConfig(), WithObserver(rec))

	if err := w.Walk(context.Background(), "A"); err != nil {
		t.Fatalf("enqueue failures must not abort the walk: %v", err)
	}
	if rec.enqueueErrs != 4 || w.EnqueueFailures() != 4 {
		t.Errorf("expected 4 enqueue failures, got observer=%d walker=%d", rec.enqueueErrs, w.EnqueueFailures())
	}
	if diff := cmp.Diff([]model.Identity{"A", "B", "C"}, g.expandedActors()); diff != "" {
		t.Errorf("expansion mismatch (-want +got):\n%s", diff)
	}
}

func TestWalkerConcurrent(t *testing.T) {
	t.Parallel()

	adj := map[model.Identity][]model.Identity{"root": {}}
	for i := range 20 {
		child := model.Identity("c" + string(rune('a'+i)))
		adj["root"] = append(adj["root"], child)
		adj[child] = []model.Identity{"shared", "root", child + "x"}
	}
	g := newFakeGraph(adj)
	q := &recordingQueue{}
	cfg := DefaultConfig()
	cfg.Concurrency = 4
	w := NewWalker(g, q, cfg)

	if err := w.Walk(context.Background(), "root"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := q.enqueued()
	if got[0] != "root" {
		t.Errorf("expected root first, got %q", got[0])
	}
	// root + 20 children + shared + 20 grandchildren
	if len(got) != 42 {
		t.Errorf("expected 42 enrollments, got %d", len(got))
	}
	sorted := slices.Clone(got)
	slices.Sort(sorted)
	if len(slices.Compact(sorted)) != len(got) {
		t.Error("an identity was enrolled twice")
	}
	expanded := slices.Sorted(slices.Values(g.expandedActors()))
	if len(slices.Compact(expanded)) != len(g.expandedActors()) {
		t.Error("an identity was expanded twice")
	}
	if w.Expansions() != 21 {
		t.Errorf("expected 21 expansions, got %d", w.Expansions())
	}
}

func TestWalkerCancellation(t *testing.T) {
	t.Parallel()

	g := sharedTargetGraph()
	ctx, cancel := context.WithCancel(context.Background())
	g.fail = func(actor model.Identity, _ string, _ int) error {
		if actor == "B" {
			cancel()
			return context.Canceled
		}
		return nil
	}
	cfg := DefaultConfig()
	cfg.FailurePolicy = FailSkip
	rec := newEventRecorder()
	w := NewWalker(g, &recordingQueue{}, cfg, WithObserver(rec))

	err := w.Walk(ctx, "A")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if errors.Is(err, ErrListing) {
		t.Error("cancellation must not be reported as a listing failure")
	}
	if len(rec.unreachable) != 0 {
		t.Error("cancellation must not mark identities unreachable")
	}
}
