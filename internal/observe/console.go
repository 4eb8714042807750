package observe

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/nao1215/skycrawl/internal/model"
)

// Console prints the two progress streams of a crawl:
// one line per traversed edge to edges, and one record per enriched
// profile to profiles. The streams are independent; no ordering between
// an edge line and the profile record of the same identity is implied.
type Console struct {
	Nop

	edges    io.Writer
	profiles io.Writer

	// mu serializes writes so lines from the traversal and the
	// enrichment consumer never interleave mid-line.
	mu sync.Mutex
}

// NewConsole creates a Console writing edges and profiles to the given writers.
// Either writer may be nil to suppress that stream.
func NewConsole(edges, profiles io.Writer) *Console {
	return &Console{edges: edges, profiles: profiles}
}

// EdgeTraversed prints " source -> target".
func (c *Console) EdgeTraversed(edge model.Edge) {
	if c.edges == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.edges, " %s\n", edge)
}

// EnrichmentSucceeded prints the profile as a tuple of its observed attributes.
func (c *Console) EnrichmentSucceeded(p *model.EnrichedProfile) {
	if c.profiles == nil {
		return
	}

	indexedAt := "-"
	if !p.IndexedAt.IsZero() {
		indexedAt = p.IndexedAt.UTC().Format(time.RFC3339)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.profiles, "(%q, %s, %q, %d)\n", p.DID, indexedAt, p.DisplayName, p.FollowersCount)
}
