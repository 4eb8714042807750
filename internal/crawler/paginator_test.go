package crawler

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/nao1215/skycrawl/internal/model"
	"github.com/nao1215/skycrawl/internal/xrpc"
)

func TestPaginatorForEachPage(t *testing.T) {
	t.Parallel()

	t.Run("follows cursors until none is returned", func(t *testing.T) {
		t.Parallel()

		g := newFakeGraph(nil)
		g.setPages("a", []model.Identity{"b"}, []model.Identity{"c"}, []model.Identity{"d"})
		p := NewPaginator(g, DefaultConfig(), nil)

		var seen []model.Identity
		err := p.ForEachPage(context.Background(), "a", func(page *model.FollowPage) error {
			for _, f := range page.Follows {
				seen = append(seen, f.DID)
			}
			return nil
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		wantCalls := []listCall{
			{Actor: "a", Cursor: ""},
			{Actor: "a", Cursor: cursorFor("a", 1)},
			{Actor: "a", Cursor: cursorFor("a", 2)},
		}
		if diff := cmp.Diff(wantCalls, g.recordedCalls()); diff != "" {
			t.Errorf("calls mismatch (-want +got):\n%s", diff)
		}
		if diff := cmp.Diff([]model.Identity{"b", "c", "d"}, seen); diff != "" {
			t.Errorf("follows mismatch (-want +got):\n%s", diff)
		}
		if p.Pages() != 3 {
			t.Errorf("expected 3 pages, got %d", p.Pages())
		}
	})

	t.Run("empty page with cursor continues", func(t *testing.T) {
		t.Parallel()

		g := newFakeGraph(nil)
		g.setPages("a", nil, []model.Identity{"b"})
		p := NewPaginator(g, DefaultConfig(), nil)

		pages := 0
		err := p.ForEachPage(context.Background(), "a", func(*model.FollowPage) error {
			pages++
			return nil
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if pages != 2 {
			t.Errorf("expected 2 pages, got %d", pages)
		}
	})

	t.Run("abort returns listing error without retry", func(t *testing.T) {
		t.Parallel()

		g := newFakeGraph(nil)
		g.setPages("a", []model.Identity{"b"}, []model.Identity{"c"})
		g.fail = func(_ model.Identity, cursor string, _ int) error {
			if cursor != "" {
				return transientErr{retry: true}
			}
			return nil
		}
		p := NewPaginator(g, DefaultConfig(), nil)

		err := p.ForEachPage(context.Background(), "a", func(*model.FollowPage) error { return nil })
		if !errors.Is(err, ErrListing) {
			t.Fatalf("expected ErrListing, got %v", err)
		}
		var listingErr *ListingError
		if !errors.As(err, &listingErr) {
			t.Fatalf("expected *ListingError, got %T", err)
		}
		if listingErr.Actor != "a" || listingErr.Cursor != cursorFor("a", 1) {
			t.Errorf("unexpected error context: %+v", listingErr)
		}
		if len(g.recordedCalls()) != 2 {
			t.Errorf("expected 2 calls, got %d", len(g.recordedCalls()))
		}
	})

	t.Run("retry refetches only the failing page", func(t *testing.T) {
		t.Parallel()

		g := newFakeGraph(nil)
		g.setPages("a", []model.Identity{"b"}, []model.Identity{"c"})
		g.fail = func(_ model.Identity, cursor string, attempt int) error {
			if cursor != "" && attempt < 3 {
				return transientErr{retry: true}
			}
			return nil
		}
		cfg := DefaultConfig()
		cfg.FailurePolicy = FailRetry
		cfg.Retry = fastRetry(5)
		p := NewPaginator(g, cfg, nil)

		if err := p.ForEachPage(context.Background(), "a", func(*model.FollowPage) error { return nil }); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		want := []listCall{
			{Actor: "a", Cursor: ""},
			{Actor: "a", Cursor: cursorFor("a", 1)},
			{Actor: "a", Cursor: cursorFor("a", 1)},
			{Actor: "a", Cursor: cursorFor("a", 1)},
		}
		if diff := cmp.Diff(want, g.recordedCalls()); diff != "" {
			t.Errorf("calls mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("retry gives up after max retries", func(t *testing.T) {
		t.Parallel()

		g := newFakeGraph(nil)
		g.fail = func(model.Identity, string, int) error { return transientErr{retry: true} }
		cfg := DefaultConfig()
		cfg.FailurePolicy = FailRetry
		cfg.Retry = fastRetry(2)
		p := NewPaginator(g, cfg, nil)

		err := p.ForEachPage(context.Background(), "a", func(*model.FollowPage) error { return nil })
		if !errors.Is(err, ErrListing) {
			t.Fatalf("expected ErrListing, got %v", err)
		}
		if len(g.recordedCalls()) != 3 {
			t.Errorf("expected 3 attempts, got %d", len(g.recordedCalls()))
		}
	})

	t.Run("permanent errors are not retried", func(t *testing.T) {
		t.Parallel()

		g := newFakeGraph(nil)
		g.fail = func(model.Identity, string, int) error { return transientErr{retry: false} }
		cfg := DefaultConfig()
		cfg.FailurePolicy = FailRetry
		cfg.Retry = fastRetry(5)
		p := NewPaginator(g, cfg, nil)

		err := p.ForEachPage(context.Background(), "a", func(*model.FollowPage) error { return nil })
		if !errors.Is(err, ErrListing) {
			t.Fatalf("expected ErrListing, got %v", err)
		}
		var te transientErr
		if !errors.As(err, &te) {
			t.Errorf("expected cause to be preserved, got %v", err)
		}
		if len(g.recordedCalls()) != 1 {
			t.Errorf("expected 1 attempt, got %d", len(g.recordedCalls()))
		}
	})

	t.Run("undecodable responses are not retried", func(t *testing.T) {
		t.Parallel()

		g := newFakeGraph(nil)
		g.fail = func(model.Identity, string, int) error {
			return &xrpc.DecodeError{Method: "app.bsky.graph.getFollows", Err: errors.New("unexpected end of JSON input")}
		}
		cfg := DefaultConfig()
		cfg.FailurePolicy = FailRetry
		cfg.Retry = fastRetry(5)
		p := NewPaginator(g, cfg, nil)

		err := p.ForEachPage(context.Background(), "a", func(*model.FollowPage) error { return nil })
		var decodeErr *xrpc.DecodeError
		if !errors.Is(err, ErrListing) || !errors.As(err, &decodeErr) {
			t.Fatalf("expected listing error wrapping the decode error, got %v", err)
		}
		if len(g.recordedCalls()) != 1 {
			t.Errorf("expected 1 attempt, got %d", len(g.recordedCalls()))
		}
	})

	t.Run("callback error stops paging", func(t *testing.T) {
		t.Parallel()

		g := newFakeGraph(nil)
		g.setPages("a", []model.Identity{"b"}, []model.Identity{"c"})
		p := NewPaginator(g, DefaultConfig(), nil)

		err := p.ForEachPage(context.Background(), "a", func(*model.FollowPage) error { return errBoom })
		if !errors.Is(err, errBoom) {
			t.Fatalf("expected errBoom, got %v", err)
		}
		if errors.Is(err, ErrListing) {
			t.Error("callback errors must not be reported as listing errors")
		}
		if len(g.recordedCalls()) != 1 {
			t.Errorf("expected 1 call, got %d", len(g.recordedCalls()))
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		t.Parallel()

		g := newFakeGraph(nil)
		p := NewPaginator(g, DefaultConfig(), nil)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := p.ForEachPage(ctx, "a", func(*model.FollowPage) error { return nil })
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
		if len(g.recordedCalls()) != 0 {
			t.Errorf("expected no calls, got %d", len(g.recordedCalls()))
		}
	})
}
