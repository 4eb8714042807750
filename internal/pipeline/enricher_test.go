package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nao1215/skycrawl/internal/model"
	"github.com/nao1215/skycrawl/internal/observe"
)

// mockFetcher is a ProfileFetcher backed by a function.
type mockFetcher struct {
	fn func(ctx context.Context, actor model.Identity) (*model.EnrichedProfile, error)
}

func (m *mockFetcher) GetProfile(ctx context.Context, actor model.Identity) (*model.EnrichedProfile, error) {
	return m.fn(ctx, actor)
}

// echoFetcher returns a profile for every identity.
func echoFetcher() *mockFetcher {
	return &mockFetcher{fn: func(_ context.Context, actor model.Identity) (*model.EnrichedProfile, error) {
		return &model.EnrichedProfile{DID: actor, DisplayName: "name of " + string(actor)}, nil
	}}
}

// recordingObserver records enrichment results in arrival order.
type recordingObserver struct {
	observe.Nop
	mu        sync.Mutex
	succeeded []model.Identity
	failed    []model.Identity
	errs      []error
}

func (r *recordingObserver) EnrichmentSucceeded(p *model.EnrichedProfile) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.succeeded = append(r.succeeded, p.DID)
}

func (r *recordingObserver) EnrichmentFailed(id model.Identity, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failed = append(r.failed, id)
	r.errs = append(r.errs, err)
}

// TestEnricherRun tests the consumer loop.
func TestEnricherRun(t *testing.T) {
	t.Parallel()

	t.Run("drains in FIFO order and exits on close", func(t *testing.T) {
		t.Parallel()

		q := NewQueue(10)
		obs := &recordingObserver{}
		e := NewEnricher(q, echoFetcher(), WithObserver(obs))

		ctx := context.Background()
		for _, id := range []model.Identity{"a", "b", "c", "d"} {
			if err := q.Enqueue(ctx, id); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		}
		q.Close()

		if err := e.Run(ctx); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		want := []model.Identity{"a", "b", "c", "d"}
		if len(obs.succeeded) != len(want) {
			t.Fatalf("expected %v, got %v", want, obs.succeeded)
		}
		for i := range want {
			if obs.succeeded[i] != want[i] {
				t.Errorf("position %d: expected %q, got %q", i, want[i], obs.succeeded[i])
			}
		}
		if e.Succeeded() != 4 || e.Failed() != 0 {
			t.Errorf("expected 4/0, got %d/%d", e.Succeeded(), e.Failed())
		}
	})

	t.Run("continues after lookup failure", func(t *testing.T) {
		t.Parallel()

		q := NewQueue(10)
		obs := &recordingObserver{}
		fetcher := &mockFetcher{fn: func(_ context.Context, actor model.Identity) (*model.EnrichedProfile, error) {
			if actor == "bad" {
				return nil, errors.New("profile not found")
			}
			return &model.EnrichedProfile{DID: actor}, nil
		}}
		e := NewEnricher(q, fetcher, WithObserver(obs))

		ctx := context.Background()
		for _, id := range []model.Identity{"a", "bad", "c"} {
			if err := q.Enqueue(ctx, id); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		}
		q.Close()

		if err := e.Run(ctx); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(obs.succeeded) != 2 || len(obs.failed) != 1 || obs.failed[0] != "bad" {
			t.Errorf("unexpected results: succeeded=%v failed=%v", obs.succeeded, obs.failed)
		}
		if e.Failed() != 1 {
			t.Errorf("expected 1 failure, got %d", e.Failed())
		}
	})

	t.Run("lookup without profile or error is a failure", func(t *testing.T) {
		t.Parallel()

		q := NewQueue(1)
		obs := &recordingObserver{}
		fetcher := &mockFetcher{fn: func(context.Context, model.Identity) (*model.EnrichedProfile, error) {
			return nil, nil
		}}
		e := NewEnricher(q, fetcher, WithObserver(obs))

		if err := q.Enqueue(context.Background(), "a"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		q.Close()

		if err := e.Run(context.Background()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if e.Succeeded() != 0 || e.Failed() != 1 {
			t.Errorf("expected 0/1, got %d/%d", e.Succeeded(), e.Failed())
		}
		if len(obs.errs) != 1 || !errors.Is(obs.errs[0], ErrEmptyProfile) {
			t.Errorf("expected ErrEmptyProfile, got %v", obs.errs)
		}
	})

	t.Run("sets observation time", func(t *testing.T) {
		t.Parallel()

		q := NewQueue(1)
		var got *model.EnrichedProfile
		obs := &profileCapture{fn: func(p *model.EnrichedProfile) { got = p }}
		e := NewEnricher(q, echoFetcher(), WithObserver(obs))

		if err := q.Enqueue(context.Background(), "a"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		q.Close()
		if err := e.Run(context.Background()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got == nil || got.ObservedAt.IsZero() {
			t.Error("expected ObservedAt to be set")
		}
	})

	t.Run("returns context error on cancellation", func(t *testing.T) {
		t.Parallel()

		q := NewQueue(1)
		e := NewEnricher(q, echoFetcher())

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() {
			done <- e.Run(ctx)
		}()

		cancel()
		select {
		case err := <-done:
			if !errors.Is(err, context.Canceled) {
				t.Errorf("expected context.Canceled, got %v", err)
			}
		case <-time.After(time.Second):
			t.Fatal("consumer did not stop after cancellation")
		}

		if err := q.Enqueue(context.Background(), "late"); !errors.Is(err, ErrQueueClosed) {
			t.Errorf("expected ErrQueueClosed after consumer stopped, got %v", err)
		}
	})

	t.Run("slow consumer applies backpressure", func(t *testing.T) {
		t.Parallel()

		gate := make(chan struct{})
		fetcher := &mockFetcher{fn: func(_ context.Context, actor model.Identity) (*model.EnrichedProfile, error) {
			<-gate
			return &model.EnrichedProfile{DID: actor}, nil
		}}

		q := NewQueue(1)
		e := NewEnricher(q, fetcher)

		ctx := context.Background()
		runDone := make(chan error, 1)
		go func() {
			runDone <- e.Run(ctx)
		}()

		// "a" is taken by the consumer (which then blocks on the gate),
		// "b" fills the single buffer slot.
		for _, id := range []model.Identity{"a", "b"} {
			if err := q.Enqueue(ctx, id); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		}

		third := make(chan error, 1)
		go func() {
			third <- q.Enqueue(ctx, "c")
		}()

		select {
		case err := <-third:
			t.Fatalf("expected enqueue to block on a full queue, returned %v", err)
		case <-time.After(50 * time.Millisecond):
		}

		close(gate)

		select {
		case err := <-third:
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		case <-time.After(time.Second):
			t.Fatal("enqueue did not unblock once the consumer progressed")
		}

		q.Close()
		if err := <-runDone; err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if e.Succeeded() != 3 {
			t.Errorf("expected 3 enriched, got %d", e.Succeeded())
		}
	})
}

// profileCapture calls fn for every enriched profile.
type profileCapture struct {
	observe.Nop
	fn func(*model.EnrichedProfile)
}

func (p *profileCapture) EnrichmentSucceeded(profile *model.EnrichedProfile) {
	p.fn(profile)
}
