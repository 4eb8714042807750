package xrpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bluesky-social/indigo/api/atproto"

	"github.com/nao1215/skycrawl/internal/model"
)

const (
	createSessionNSID  = "com.atproto.server.createSession"
	refreshSessionNSID = "com.atproto.server.refreshSession"

	sessionFileMode = 0o600
	sessionDirMode  = 0o700
)

// Session holds the tokens of a logged-in account.
type Session struct {
	// Service is the base URL the session was created on.
	Service string `json:"service"`

	// Identifier is the handle or email used to log in.
	Identifier string `json:"identifier"`

	// DID is the account's DID.
	DID model.Identity `json:"did"`

	// Handle is the account's handle.
	Handle string `json:"handle"`

	// AccessJwt authenticates requests.
	AccessJwt string `json:"accessJwt"`

	// RefreshJwt renews AccessJwt.
	RefreshJwt string `json:"refreshJwt"`
}

// matches reports whether the cached session belongs to service and identifier.
func (s *Session) matches(service, identifier string) bool {
	return s.Service == service &&
		strings.EqualFold(s.Identifier, identifier) &&
		s.AccessJwt != "" && s.RefreshJwt != ""
}

// Login creates a client for service and logs in with an app password.
// With WithSessionFile, a cached session for the same service and
// identifier is reused instead of creating a new one.
//
// Any login failure matches ErrAuth.
func Login(ctx context.Context, service, identifier, password string, opts ...Option) (*Client, error) {
	c, err := NewClient(service, opts...)
	if err != nil {
		return nil, err
	}
	if err := c.Login(ctx, identifier, password); err != nil {
		return nil, err
	}
	return c, nil
}

// Login authenticates the client. See the package-level Login.
func (c *Client) Login(ctx context.Context, identifier, password string) error {
	identifier = strings.TrimPrefix(strings.TrimSpace(identifier), "@")
	if identifier == "" {
		return fmt.Errorf("%w: %w", ErrAuth, ErrEmptyCredentials)
	}

	if cached := c.loadSession(); cached != nil && cached.matches(c.service, identifier) {
		c.setSession(cached)
		c.logger.Debug("reusing cached login", "did", cached.DID, "handle", cached.Handle)
		return nil
	}

	if password == "" {
		return fmt.Errorf("%w: %w", ErrAuth, ErrEmptyCredentials)
	}

	out, err := atproto.ServerCreateSession(ctx, c.lexClient(""), &atproto.ServerCreateSession_Input{
		Identifier: identifier,
		Password:   password,
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrAuth, wrapError(createSessionNSID, err))
	}

	c.setSession(&Session{
		Service:    c.service,
		Identifier: identifier,
		DID:        model.Identity(out.Did),
		Handle:     out.Handle,
		AccessJwt:  out.AccessJwt,
		RefreshJwt: out.RefreshJwt,
	})
	c.logger.Info("logged in", "did", out.Did, "handle", out.Handle)
	return nil
}

// Session returns a copy of the current session, or nil before login.
func (c *Client) Session() *Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.session == nil {
		return nil
	}
	s := *c.session
	return &s
}

// refresh renews the access token after stale was rejected as expired.
// Concurrent callers holding the same stale token share one renewal, and a
// caller arriving after the token already changed does not renew again.
func (c *Client) refresh(ctx context.Context, stale string) error {
	_, err, _ := c.refreshes.Do(stale, func() (any, error) {
		if c.accessToken() != stale {
			return nil, nil
		}
		return nil, c.renewSession(ctx)
	})
	return err
}

// renewSession exchanges the refresh token for a new pair of tokens.
func (c *Client) renewSession(ctx context.Context) error {
	c.mu.RLock()
	current := c.session
	c.mu.RUnlock()
	if current == nil || current.RefreshJwt == "" {
		return ErrNotLoggedIn
	}

	// refreshSession authenticates with the refresh token in place of the
	// access token.
	lc := c.lexClient(current.RefreshJwt)
	lc.Auth.RefreshJwt = current.RefreshJwt
	out, err := atproto.ServerRefreshSession(ctx, lc)
	if err != nil {
		return fmt.Errorf("failed to refresh login: %w", wrapError(refreshSessionNSID, err))
	}

	next := *current
	next.AccessJwt = out.AccessJwt
	next.RefreshJwt = out.RefreshJwt
	if out.Handle != "" {
		next.Handle = out.Handle
	}
	c.setSession(&next)
	c.logger.Debug("access token refreshed", "did", next.DID)
	return nil
}

// setSession stores s and writes it to the session file, if any.
func (c *Client) setSession(s *Session) {
	c.mu.Lock()
	c.session = s
	c.mu.Unlock()

	if err := c.saveSession(s); err != nil {
		c.logger.Warn("failed to save login cache", "path", c.sessionFile, "error", err)
	}
}

func (c *Client) accessToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.session == nil {
		return ""
	}
	return c.session.AccessJwt
}

// loadSession reads the session file. Missing or corrupt files yield nil.
func (c *Client) loadSession() *Session {
	if c.sessionFile == "" {
		return nil
	}

	data, err := os.ReadFile(c.sessionFile)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			c.logger.Warn("failed to read login cache", "path", c.sessionFile, "error", err)
		}
		return nil
	}

	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		c.logger.Warn("ignoring corrupt login cache", "path", c.sessionFile, "error", err)
		return nil
	}
	return &s
}

// saveSession writes s to the session file with owner-only permissions.
func (c *Client) saveSession(s *Session) error {
	if c.sessionFile == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(c.sessionFile), sessionDirMode); err != nil {
		return err
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(c.sessionFile, data, sessionFileMode)
}
