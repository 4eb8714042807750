package crawler

import (
	"sync"
	"sync/atomic"
	"testing"
)

func TestDedupIndex(t *testing.T) {
	t.Parallel()

	t.Run("first insert wins", func(t *testing.T) {
		t.Parallel()

		d := NewDedupIndex()
		if !d.TestAndInsert(AttrDone, "did:plc:a") {
			t.Error("expected first insert to report new")
		}
		if d.TestAndInsert(AttrDone, "did:plc:a") {
			t.Error("expected second insert to report existing")
		}
		if !d.Contains(AttrDone, "did:plc:a") {
			t.Error("expected identity to be recorded")
		}
		if d.Len(AttrDone) != 1 {
			t.Errorf("expected 1 entry, got %d", d.Len(AttrDone))
		}
	})

	t.Run("namespaces are independent", func(t *testing.T) {
		t.Parallel()

		d := NewDedupIndex()
		d.TestAndInsert(FollowsDone, "did:plc:a")

		if d.Contains(AttrDone, "did:plc:a") {
			t.Error("expected attr_done to be unaffected")
		}
		if !d.TestAndInsert(AttrDone, "did:plc:a") {
			t.Error("expected insert into attr_done to report new")
		}
		if d.Len(FollowsDone) != 1 || d.Len(AttrDone) != 1 {
			t.Errorf("unexpected sizes: follows_done=%d attr_done=%d", d.Len(FollowsDone), d.Len(AttrDone))
		}
	})

	t.Run("concurrent inserts admit exactly one", func(t *testing.T) {
		t.Parallel()

		d := NewDedupIndex()
		var wins atomic.Int64
		var wg sync.WaitGroup
		for range 64 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if d.TestAndInsert(FollowsDone, "did:plc:shared") {
					wins.Add(1)
				}
			}()
		}
		wg.Wait()

		if wins.Load() != 1 {
			t.Errorf("expected exactly one winner, got %d", wins.Load())
		}
	})

	t.Run("namespace names", func(t *testing.T) {
		t.Parallel()

		tests := []struct {
			ns   Namespace
			want string
		}{
			{AttrDone, "attr_done"},
			{FollowsDone, "follows_done"},
			{Namespace(9), "unknown"},
		}
		for _, tt := range tests {
			if got := tt.ns.String(); got != tt.want {
				t.Errorf("Namespace(%d).String() = %q, want %q", tt.ns, got, tt.want)
			}
		}
	})
}
