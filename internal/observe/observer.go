package observe

import "github.com/nao1215/skycrawl/internal/model"

// Observer receives crawl events.
// Implementations must be safe for concurrent use.
type Observer interface {
	// IdentityEnrolled is called once per identity queued for enrichment.
	IdentityEnrolled(id model.Identity, distance int)

	// ExpansionStarted is called before an identity's follow list is listed.
	// handle is the handle the identity was discovered under, empty when
	// unknown. seq is the running number of expanded identities, starting at 1.
	ExpansionStarted(id model.Identity, handle string, distance int, seq int)

	// EdgeTraversed is called for every follow edge in service order.
	EdgeTraversed(edge model.Edge)

	// IdentityUnreachable is called when listing failed and the identity was skipped.
	IdentityUnreachable(id model.Identity, err error)

	// EnqueueFailed is called when an identity could not be handed to enrichment.
	EnqueueFailed(id model.Identity, err error)

	// EnrichmentSucceeded is called with every successfully fetched profile.
	EnrichmentSucceeded(profile *model.EnrichedProfile)

	// EnrichmentFailed is called when a profile lookup failed.
	EnrichmentFailed(id model.Identity, err error)
}

// Nop is an Observer that ignores every event.
// Embed it to implement only a subset of the events.
type Nop struct{}

var _ Observer = Nop{}

// IdentityEnrolled implements Observer.
func (Nop) IdentityEnrolled(model.Identity, int) {}

// ExpansionStarted implements Observer.
func (Nop) ExpansionStarted(model.Identity, string, int, int) {}

// EdgeTraversed implements Observer.
func (Nop) EdgeTraversed(model.Edge) {}

// IdentityUnreachable implements Observer.
func (Nop) IdentityUnreachable(model.Identity, error) {}

// EnqueueFailed implements Observer.
func (Nop) EnqueueFailed(model.Identity, error) {}

// EnrichmentSucceeded implements Observer.
func (Nop) EnrichmentSucceeded(*model.EnrichedProfile) {}

// EnrichmentFailed implements Observer.
func (Nop) EnrichmentFailed(model.Identity, error) {}

// Multi fans every event out to a list of observers in order.
type Multi []Observer

var _ Observer = Multi(nil)

// NewMulti creates a Multi, dropping nil observers.
func NewMulti(observers ...Observer) Multi {
	m := make(Multi, 0, len(observers))
	for _, o := range observers {
		if o != nil {
			m = append(m, o)
		}
	}
	return m
}

// IdentityEnrolled implements Observer.
func (m Multi) IdentityEnrolled(id model.Identity, distance int) {
	for _, o := range m {
		o.IdentityEnrolled(id, distance)
	}
}

// ExpansionStarted implements Observer.
func (m Multi) ExpansionStarted(id model.Identity, handle string, distance int, seq int) {
	for _, o := range m {
		o.ExpansionStarted(id, handle, distance, seq)
	}
}

// EdgeTraversed implements Observer.
func (m Multi) EdgeTraversed(edge model.Edge) {
	for _, o := range m {
		o.EdgeTraversed(edge)
	}
}

// IdentityUnreachable implements Observer.
func (m Multi) IdentityUnreachable(id model.Identity, err error) {
	for _, o := range m {
		o.IdentityUnreachable(id, err)
	}
}

// EnqueueFailed implements Observer.
func (m Multi) EnqueueFailed(id model.Identity, err error) {
	for _, o := range m {
		o.EnqueueFailed(id, err)
	}
}

// EnrichmentSucceeded implements Observer.
func (m Multi) EnrichmentSucceeded(profile *model.EnrichedProfile) {
	for _, o := range m {
		o.EnrichmentSucceeded(profile)
	}
}

// EnrichmentFailed implements Observer.
func (m Multi) EnrichmentFailed(id model.Identity, err error) {
	for _, o := range m {
		o.EnrichmentFailed(id, err)
	}
}
