package model

import (
	"errors"
	"strings"
	"unicode"

	"golang.org/x/net/idna"
	"golang.org/x/text/cases"
)

// Identity errors.
var (
	// ErrEmptyIdentity is returned when the actor string is empty.
	ErrEmptyIdentity = errors.New("identity cannot be empty")
	// ErrInvalidDID is returned when a "did:" prefixed actor is malformed.
	ErrInvalidDID = errors.New("invalid DID: expected did:<method>:<identifier>")
	// ErrInvalidHandle is returned when a handle is not a valid domain name.
	ErrInvalidHandle = errors.New("invalid handle: expected a domain name such as alice.bsky.social")
)

// didPrefix marks decentralized identifiers.
const didPrefix = "did:"

// Identity is an opaque, stable actor key: a DID or a handle.
// Equality is exact string match; the traversal never inspects its contents.
type Identity string

// String returns the identity as a plain string.
func (i Identity) String() string {
	return string(i)
}

// IsDID reports whether the identity is a decentralized identifier.
func (i Identity) IsDID() bool {
	return strings.HasPrefix(string(i), didPrefix)
}

// IsZero reports whether the identity is empty.
func (i Identity) IsZero() bool {
	return i == ""
}

// ParseActor validates and normalizes a user-supplied actor.
//
// DIDs are returned unchanged after a structural check. Handles may carry a
// leading "@", are case-folded and converted to their ASCII (punycode) form so
// that "Alice.bsky.social" and "alice.bsky.social" map to the same Identity.
func ParseActor(s string) (Identity, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", ErrEmptyIdentity
	}

	if strings.HasPrefix(s, didPrefix) {
		parts := strings.SplitN(s, ":", 3)
		if len(parts) != 3 || parts[1] == "" || parts[2] == "" {
			return "", ErrInvalidDID
		}
		return Identity(s), nil
	}

	handle := cases.Fold().String(strings.TrimPrefix(s, "@"))
	if strings.ContainsFunc(handle, unicode.IsSpace) {
		return "", ErrInvalidHandle
	}
	ascii, err := idna.Lookup.ToASCII(handle)
	if err != nil {
		return "", errors.Join(ErrInvalidHandle, err)
	}
	if !strings.Contains(ascii, ".") || strings.HasPrefix(ascii, ".") || strings.HasSuffix(ascii, ".") {
		return "", ErrInvalidHandle
	}

	return Identity(ascii), nil
}
