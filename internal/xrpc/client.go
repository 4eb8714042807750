package xrpc

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	indigo "github.com/bluesky-social/indigo/xrpc"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/nao1215/skycrawl/internal/metrics"
)

const (
	// defaultTimeout bounds a single request when no HTTP client is supplied.
	defaultTimeout = 30 * time.Second

	defaultUserAgent = "skycrawl"
)

// Client talks to one XRPC service.
// It is safe for concurrent use once logged in.
type Client struct {
	service     string
	httpClient  *http.Client
	limiter     *rate.Limiter
	logger      *slog.Logger
	userAgent   string
	sessionFile string

	mu      sync.RWMutex
	session *Session

	// refreshes collapses concurrent renewals of the same expired token.
	refreshes singleflight.Group
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client used for every request.
// Use it to route traffic through a SOCKS5 proxy.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithRateLimit limits requests to rps per second with the given burst.
// A non-positive rps disables limiting.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithSessionFile persists the session to path and reuses it on the next login.
func WithSessionFile(path string) Option {
	return func(c *Client) {
		c.sessionFile = path
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// NewClient creates an unauthenticated client for service.
func NewClient(service string, opts ...Option) (*Client, error) {
	base, err := SanitizeService(service)
	if err != nil {
		return nil, err
	}

	c := &Client{
		service:   base,
		userAgent: defaultUserAgent,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.logger == nil {
		c.logger = slog.Default()
	}
	c.httpClient = instrument(c.httpClient, c.limiter, c.logger)

	return c, nil
}

// Service returns the sanitized service base URL.
func (c *Client) Service() string {
	return c.service
}

// lexClient returns an indigo client for one call authenticated with token.
// A fresh value per call keeps concurrent calls from sharing AuthInfo.
func (c *Client) lexClient(token string) *indigo.Client {
	ua := c.userAgent
	lc := &indigo.Client{
		Client:    c.httpClient,
		Host:      c.service,
		UserAgent: &ua,
	}
	if token != "" {
		lc.Auth = &indigo.AuthInfo{AccessJwt: token}
	}
	return lc
}

// call runs fn with the current access token, refreshing an expired token once.
func (c *Client) call(ctx context.Context, nsid string, fn func(*indigo.Client) error) error {
	token := c.accessToken()
	err := wrapError(nsid, fn(c.lexClient(token)))

	var xerr *Error
	if token == "" || !errors.As(err, &xerr) || !xerr.expired() {
		return err
	}

	c.logger.Debug("access token expired, refreshing", "method", nsid)
	if refreshErr := c.refresh(ctx, token); refreshErr != nil {
		return errors.Join(err, refreshErr)
	}
	return wrapError(nsid, fn(c.lexClient(c.accessToken())))
}

// instrument wraps hc so every round trip waits on limiter and is recorded
// in the request metrics. A nil hc gets a client with the default timeout.
func instrument(hc *http.Client, limiter *rate.Limiter, logger *slog.Logger) *http.Client {
	if hc == nil {
		hc = &http.Client{Timeout: defaultTimeout}
	}
	base := hc.Transport
	if base == nil {
		base = http.DefaultTransport
	}

	wrapped := *hc
	wrapped.Transport = &meteredTransport{base: base, limiter: limiter, logger: logger}
	return &wrapped
}

// meteredTransport applies the rate limit and records each XRPC round trip.
type meteredTransport struct {
	base    http.RoundTripper
	limiter *rate.Limiter
	logger  *slog.Logger
}

// RoundTrip implements http.RoundTripper.
func (t *meteredTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	nsid := strings.TrimPrefix(req.URL.Path, "/xrpc/")

	if t.limiter != nil {
		if err := t.limiter.Wait(req.Context()); err != nil {
			if req.Body != nil {
				_ = req.Body.Close() //nolint:errcheck // request is abandoned
			}
			return nil, err
		}
	}

	start := time.Now()
	resp, err := t.base.RoundTrip(req)
	elapsed := time.Since(start)
	if err != nil {
		metrics.ObserveRequest(nsid, 0, elapsed)
		return nil, err
	}

	metrics.ObserveRequest(nsid, resp.StatusCode, elapsed)
	t.logger.Debug("xrpc request",
		"method", nsid,
		"status", resp.StatusCode,
		"duration", elapsed,
	)
	return resp, nil
}
