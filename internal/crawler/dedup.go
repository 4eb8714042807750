package crawler

import (
	"sync"

	"github.com/nao1215/skycrawl/internal/model"
)

// Namespace selects one of the two DedupIndex sets.
type Namespace int

const (
	// AttrDone holds identities already queued for enrichment.
	AttrDone Namespace = iota
	// FollowsDone holds identities whose follow list was (or is being) expanded.
	FollowsDone
)

// String returns the namespace name.
func (n Namespace) String() string {
	switch n {
	case AttrDone:
		return "attr_done"
	case FollowsDone:
		return "follows_done"
	default:
		return "unknown"
	}
}

// DedupIndex holds the two membership sets of one crawl run.
// Entries are never removed. All methods are safe for concurrent use.
type DedupIndex struct {
	sets [2]identitySet
}

// identitySet is a mutex-guarded set of identities.
type identitySet struct {
	mu      sync.Mutex
	members map[model.Identity]struct{}
}

// NewDedupIndex creates an empty index.
func NewDedupIndex() *DedupIndex {
	d := &DedupIndex{}
	for i := range d.sets {
		d.sets[i].members = make(map[model.Identity]struct{})
	}
	return d
}

// TestAndInsert records id in the namespace and reports whether it was new.
// Concurrent callers racing on the same id see exactly one true.
func (d *DedupIndex) TestAndInsert(ns Namespace, id model.Identity) bool {
	s := &d.sets[ns]
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.members[id]; ok {
		return false
	}
	s.members[id] = struct{}{}
	return true
}

// Contains reports whether id is recorded in the namespace.
func (d *DedupIndex) Contains(ns Namespace, id model.Identity) bool {
	s := &d.sets[ns]
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.members[id]
	return ok
}

// Len returns the number of identities in the namespace.
func (d *DedupIndex) Len(ns Namespace) int {
	s := &d.sets[ns]
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.members)
}
