package xrpc

import (
	"net/url"
	"strings"
)

// DefaultService is the entryway used when no service is configured.
const DefaultService = "https://bsky.social"

// SanitizeService reduces a service URL to scheme://host[:port].
// A missing scheme defaults to https; paths, queries and fragments are dropped.
func SanitizeService(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrInvalidService
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", ErrInvalidService
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", ErrInvalidService
	}
	if u.Hostname() == "" {
		return "", ErrInvalidService
	}

	return scheme + "://" + strings.ToLower(u.Host), nil
}
