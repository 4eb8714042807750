package xrpc

import (
	"context"
	"time"

	"github.com/bluesky-social/indigo/api/atproto"
	"github.com/bluesky-social/indigo/api/bsky"
	indigo "github.com/bluesky-social/indigo/xrpc"

	"github.com/nao1215/skycrawl/internal/model"
)

const (
	getFollowsNSID    = "app.bsky.graph.getFollows"
	getProfileNSID    = "app.bsky.actor.getProfile"
	resolveHandleNSID = "com.atproto.identity.resolveHandle"
)

// ListFollows returns one page of the accounts actor follows.
// An empty cursor requests the first page.
func (c *Client) ListFollows(ctx context.Context, actor model.Identity, cursor string, limit int) (*model.FollowPage, error) {
	var out *bsky.GraphGetFollows_Output
	err := c.call(ctx, getFollowsNSID, func(lc *indigo.Client) error {
		var err error
		out, err = bsky.GraphGetFollows(ctx, lc, actor.String(), cursor, int64(limit))
		return err
	})
	if err != nil {
		return nil, err
	}

	page := &model.FollowPage{
		Cursor:  value(out.Cursor),
		Follows: make([]model.Follow, 0, len(out.Follows)),
	}
	if out.Subject != nil {
		page.Subject = model.Identity(out.Subject.Did)
	}
	for _, f := range out.Follows {
		if f == nil {
			continue
		}
		page.Follows = append(page.Follows, model.Follow{DID: model.Identity(f.Did), Handle: f.Handle})
	}
	return page, nil
}

// GetProfile returns the profile attributes of actor.
func (c *Client) GetProfile(ctx context.Context, actor model.Identity) (*model.EnrichedProfile, error) {
	var out *bsky.ActorDefs_ProfileViewDetailed
	err := c.call(ctx, getProfileNSID, func(lc *indigo.Client) error {
		var err error
		out, err = bsky.ActorGetProfile(ctx, lc, actor.String())
		return err
	})
	if err != nil {
		return nil, err
	}

	return &model.EnrichedProfile{
		DID:            model.Identity(out.Did),
		Handle:         out.Handle,
		IndexedAt:      parseTimestamp(value(out.IndexedAt)),
		DisplayName:    value(out.DisplayName),
		FollowersCount: value(out.FollowersCount),
		ObservedAt:     time.Now(),
	}, nil
}

// ResolveHandle returns the DID a handle points to.
func (c *Client) ResolveHandle(ctx context.Context, handle string) (model.Identity, error) {
	var out *atproto.IdentityResolveHandle_Output
	err := c.call(ctx, resolveHandleNSID, func(lc *indigo.Client) error {
		var err error
		out, err = atproto.IdentityResolveHandle(ctx, lc, handle)
		return err
	})
	if err != nil {
		return "", err
	}
	return model.Identity(out.Did), nil
}

// ResolveActor returns actor unchanged if it is a DID and resolves it otherwise.
func (c *Client) ResolveActor(ctx context.Context, actor model.Identity) (model.Identity, error) {
	if actor.IsDID() {
		return actor, nil
	}
	return c.ResolveHandle(ctx, actor.String())
}

// value dereferences an optional lexicon field.
func value[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}

// parseTimestamp parses an RFC 3339 timestamp, returning the zero time on failure.
func parseTimestamp(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
