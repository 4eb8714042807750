package metrics

import (
	"strconv"

	"github.com/nao1215/skycrawl/internal/model"
	"github.com/nao1215/skycrawl/internal/observe"
)

// Observer turns crawl events into metric updates.
type Observer struct{}

var _ observe.Observer = Observer{}

// IdentityEnrolled implements observe.Observer.
func (Observer) IdentityEnrolled(_ model.Identity, distance int) {
	enrolledTotal.WithLabelValues(strconv.Itoa(distance)).Inc()
}

// ExpansionStarted implements observe.Observer.
func (Observer) ExpansionStarted(model.Identity, string, int, int) {
	expansionsTotal.Inc()
}

// EdgeTraversed implements observe.Observer.
func (Observer) EdgeTraversed(model.Edge) {
	edgesTotal.Inc()
}

// IdentityUnreachable implements observe.Observer.
func (Observer) IdentityUnreachable(model.Identity, error) {
	unreachableTotal.Inc()
}

// EnqueueFailed implements observe.Observer.
func (Observer) EnqueueFailed(model.Identity, error) {
	enrichmentTotal.WithLabelValues("rejected").Inc()
}

// EnrichmentSucceeded implements observe.Observer.
func (Observer) EnrichmentSucceeded(*model.EnrichedProfile) {
	enrichmentTotal.WithLabelValues("success").Inc()
}

// EnrichmentFailed implements observe.Observer.
func (Observer) EnrichmentFailed(model.Identity, error) {
	enrichmentTotal.WithLabelValues("failure").Inc()
}
