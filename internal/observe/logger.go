package observe

import (
	"fmt"
	"log/slog"

	"github.com/nao1215/skycrawl/internal/model"
)

// Logger reports crawl events as structured log records.
//
// Expansion progress is logged at warn level so that it is visible with the
// default (non-verbose) log level, the same way progress was reported before
// events were structured. Per-identity enrollment is debug only.
type Logger struct {
	logger *slog.Logger
}

var _ Observer = (*Logger)(nil)

// NewLogger creates a Logger. A nil logger falls back to slog.Default().
func NewLogger(logger *slog.Logger) *Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Logger{logger: logger}
}

// IdentityEnrolled implements Observer.
func (l *Logger) IdentityEnrolled(id model.Identity, distance int) {
	l.logger.Debug("identity enrolled", "identity", id, "distance", distance)
}

// ExpansionStarted implements Observer.
// The message names the actor by handle, falling back to the identity.
func (l *Logger) ExpansionStarted(id model.Identity, handle string, distance int, seq int) {
	name := handle
	if name == "" {
		name = id.String()
	}
	l.logger.Warn(fmt.Sprintf("traversing follows of %s, actor#%d", name, seq),
		"identity", id,
		"handle", handle,
		"distance", distance,
		"actor_seq", seq,
	)
}

// EdgeTraversed implements Observer.
func (l *Logger) EdgeTraversed(edge model.Edge) {
	l.logger.Debug("edge traversed", "source", edge.Source, "target", edge.Target)
}

// IdentityUnreachable implements Observer.
func (l *Logger) IdentityUnreachable(id model.Identity, err error) {
	l.logger.Error("identity unreachable, skipping its follows", "identity", id, "error", err)
}

// EnqueueFailed implements Observer.
func (l *Logger) EnqueueFailed(id model.Identity, err error) {
	l.logger.Error("failed to queue identity for enrichment", "identity", id, "error", err)
}

// EnrichmentSucceeded implements Observer.
func (l *Logger) EnrichmentSucceeded(p *model.EnrichedProfile) {
	l.logger.Debug("profile enriched",
		"did", p.DID,
		"handle", p.Handle,
		"followers", p.FollowersCount,
	)
}

// EnrichmentFailed implements Observer.
func (l *Logger) EnrichmentFailed(id model.Identity, err error) {
	l.logger.Error("failed to retrieve profile", "identity", id, "error", err)
}
