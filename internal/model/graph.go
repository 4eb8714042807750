package model

// Edge is an observed "source follows target" relation.
// Edges are reported as they are discovered and never retained by the walker.
type Edge struct {
	Source Identity `json:"source"`
	Target Identity `json:"target"`
}

// String renders the edge the way it is printed during traversal.
func (e Edge) String() string {
	return string(e.Source) + " -> " + string(e.Target)
}

// Follow is a single entry of a follow listing.
type Follow struct {
	// DID is the stable identifier of the followed actor.
	DID Identity `json:"did"`

	// Handle is the followed actor's current handle, used only for logging.
	Handle string `json:"handle"`
}

// FollowPage is one page of a cursor-paginated follow listing.
type FollowPage struct {
	// Subject is the actor whose follows are listed, as resolved by the service.
	Subject Identity `json:"subject"`

	// Follows are the follow targets on this page in service order.
	Follows []Follow `json:"follows"`

	// Cursor continues the listing. An empty cursor ends the page sequence.
	Cursor string `json:"cursor,omitempty"`
}

// HasNext reports whether another page follows this one.
func (p *FollowPage) HasNext() bool {
	return p.Cursor != ""
}
