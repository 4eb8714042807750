package model

import "time"

// EnrichedProfile is the result of an attribute lookup for one identity.
// All fields are observed by the remote service and immutable once received.
type EnrichedProfile struct {
	// DID is the actor's decentralized identifier.
	DID Identity `json:"did"`

	// Handle is the actor's handle at lookup time.
	Handle string `json:"handle"`

	// IndexedAt is when the service last indexed the profile.
	// Zero if the service did not report it.
	IndexedAt time.Time `json:"indexedAt,omitzero"`

	// DisplayName is the actor's display name, possibly empty.
	DisplayName string `json:"displayName"`

	// FollowersCount is the follower count reported by the service.
	FollowersCount int64 `json:"followersCount"`

	// ObservedAt is when skycrawl received the profile.
	ObservedAt time.Time `json:"observedAt"`
}
