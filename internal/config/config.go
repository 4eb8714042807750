package config

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"

	"github.com/nao1215/skycrawl/internal/crawler"
	"github.com/nao1215/skycrawl/internal/pipeline"
	"github.com/nao1215/skycrawl/internal/tor"
	"github.com/nao1215/skycrawl/internal/xrpc"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "skycrawl"

	// DefaultTimeout bounds a single XRPC request.
	DefaultTimeout = 30 * time.Second

	// DefaultRequestsPerSecond keeps a crawl well below the public rate limits
	// of the Bluesky AppView.
	DefaultRequestsPerSecond = 10.0

	// DefaultBurst is the number of requests allowed above the steady rate.
	DefaultBurst = 5

	// DefaultTorProxyAddress is the standard Tor SOCKS5 proxy address.
	DefaultTorProxyAddress = "127.0.0.1:9050"

	// DefaultUserAgent identifies skycrawl in XRPC requests.
	DefaultUserAgent = "skycrawl (+https://github.com/nao1215/skycrawl)"

	// SessionFileName is the session cache file inside the XDG state directory.
	SessionFileName = "session.json"
)

// Config holds all configuration options for a crawl.
//
// Design decision: A single flat struct populated once and passed down,
// rather than nested structs or global state. The number of options is
// small enough that nesting would only add indirection.
type Config struct {
	// Root is the handle or DID the crawl starts from.
	Root string

	// Service is the XRPC service URL.
	Service string

	// Username is the login identifier (handle, DID or email).
	Username string

	// Password is the account or app password. It is only read from the
	// environment or flags.
	Password string

	// MaxExpandDistance is the largest root distance whose follows are listed.
	// The default of 1 lists the root and the identities it follows.
	MaxExpandDistance int

	// PageSize is the follow listing page size.
	PageSize int

	// QueueCapacity bounds the enrichment queue.
	QueueCapacity int

	// Concurrency is the number of parallel expansions per level.
	Concurrency int

	// FailurePolicy is one of abort, retry or skip.
	FailurePolicy string

	// MaxRetries bounds retries per page under the retry and skip policies.
	MaxRetries int

	// RequestsPerSecond limits the XRPC request rate. Zero disables limiting.
	RequestsPerSecond float64

	// Burst is the number of requests allowed above the steady rate.
	Burst int

	// Timeout bounds a single XRPC request.
	Timeout time.Duration

	// UserAgent is sent with every XRPC request.
	UserAgent string

	// Verbose enables debug logging.
	Verbose bool

	// LogJSON switches the log output to JSON.
	LogJSON bool

	// ConfigFilePath is the configuration file to load. If empty,
	// FindConfigFile searches the default locations.
	ConfigFilePath string

	// JSONReport selects the JSON report format.
	JSONReport bool

	// MarkdownReport selects the Markdown report format.
	MarkdownReport bool

	// ReportFile writes the report to this path instead of stdout.
	ReportFile string

	// TorProxyAddress routes XRPC traffic through this SOCKS5 proxy when set.
	TorProxyAddress string

	// UseEmbeddedTor starts an embedded Tor daemon and routes traffic through it.
	UseEmbeddedTor bool

	// TorStartupTimeout bounds the embedded Tor bootstrap.
	TorStartupTimeout time.Duration

	// DBDir is the directory of the run database.
	DBDir string

	// SaveToDB records the run in the database.
	SaveToDB bool

	// SessionFile caches the login session between runs when set.
	SessionFile string

	// MetricsAddr serves Prometheus metrics on this address during the crawl.
	MetricsAddr string
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	defaults := crawler.DefaultConfig()
	return &Config{
		Service:           xrpc.DefaultService,
		MaxExpandDistance: defaults.MaxExpandDistance,
		PageSize:          defaults.PageSize,
		QueueCapacity:     pipeline.DefaultQueueCapacity,
		Concurrency:       defaults.Concurrency,
		FailurePolicy:     defaults.FailurePolicy.String(),
		MaxRetries:        defaults.Retry.MaxRetries,
		RequestsPerSecond: DefaultRequestsPerSecond,
		Burst:             DefaultBurst,
		Timeout:           DefaultTimeout,
		UserAgent:         DefaultUserAgent,
		TorStartupTimeout: tor.DefaultStartupTimeout,
		DBDir:             XDGDataDir(),
		SaveToDB:          true,
	}
}

// XDGDataDir returns the data directory holding the run database.
// On Linux: ~/.local/share/skycrawl
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the configuration directory.
// On Linux: ~/.config/skycrawl
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// XDGStateDir returns the state directory holding the session cache.
// On Linux: ~/.local/state/skycrawl
func XDGStateDir() string {
	return filepath.Join(xdg.StateHome, AppName)
}

// DefaultSessionFile returns the default session cache path.
func DefaultSessionFile() string {
	return filepath.Join(XDGStateDir(), SessionFileName)
}

// Validate checks if the configuration is valid and returns the first
// problem found.
func (c *Config) Validate() error {
	if c.Root == "" {
		return ErrNoRoot
	}
	if c.Username == "" {
		return ErrMissingUsername
	}
	if c.Password == "" {
		return ErrMissingPassword
	}
	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.MaxExpandDistance < 0 {
		return ErrInvalidDepth
	}
	if c.PageSize < 1 || c.PageSize > crawler.MaxPageSize {
		return ErrInvalidPageSize
	}
	if c.QueueCapacity < 1 {
		return ErrInvalidQueueCapacity
	}
	if c.Concurrency < 1 {
		return ErrInvalidConcurrency
	}
	if c.MaxRetries < 0 {
		return ErrInvalidRetries
	}
	if c.RequestsPerSecond < 0 {
		return ErrInvalidRate
	}
	if _, err := crawler.ParseFailurePolicy(c.FailurePolicy); err != nil {
		return err
	}
	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}
	if c.UseEmbeddedTor && c.TorProxyAddress != "" {
		return ErrConflictingTorOptions
	}
	return nil
}

// CrawlerConfig returns the traversal settings for the crawler package.
func (c *Config) CrawlerConfig() (crawler.Config, error) {
	policy, err := crawler.ParseFailurePolicy(c.FailurePolicy)
	if err != nil {
		return crawler.Config{}, err
	}

	cfg := crawler.DefaultConfig()
	cfg.MaxExpandDistance = c.MaxExpandDistance
	cfg.PageSize = c.PageSize
	cfg.QueueCapacity = c.QueueCapacity
	cfg.Concurrency = c.Concurrency
	cfg.FailurePolicy = policy
	cfg.Retry.MaxRetries = c.MaxRetries

	if err := cfg.Validate(); err != nil {
		return crawler.Config{}, fmt.Errorf("invalid crawl settings: %w", err)
	}
	return cfg, nil
}

// ApplyEnv overrides the account settings from ATP_SERVICE, ATP_USERNAME
// and ATP_PASSWORD. Unset or empty variables are ignored.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := getenv("ATP_SERVICE"); v != "" {
		c.Service = v
	}
	if v := getenv("ATP_USERNAME"); v != "" {
		c.Username = v
	}
	if v := getenv("ATP_PASSWORD"); v != "" {
		c.Password = v
	}
}
