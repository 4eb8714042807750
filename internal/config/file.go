package config

// CrawlSettings are crawl settings that may be set in the config file,
// globally or per root. Zero values leave the current setting unchanged.
type CrawlSettings struct {
	// Depth overrides MaxExpandDistance. A pointer, since 0 is a valid depth.
	Depth *int `yaml:"depth,omitempty"`

	// PageSize overrides the follow listing page size.
	PageSize int `yaml:"pageSize,omitempty"`

	// QueueCapacity overrides the enrichment queue bound.
	QueueCapacity int `yaml:"queueCapacity,omitempty"`

	// Concurrency overrides the parallel expansions per level.
	Concurrency int `yaml:"concurrency,omitempty"`

	// FailurePolicy overrides the listing failure policy.
	FailurePolicy string `yaml:"failurePolicy,omitempty"`

	// MaxRetries overrides the retries per page.
	MaxRetries *int `yaml:"maxRetries,omitempty"`
}

// File represents the structure of the .skycrawl configuration file.
type File struct {
	// Service is the XRPC service URL.
	Service string `yaml:"service,omitempty"`

	// Username is the login identifier.
	Username string `yaml:"username,omitempty"`

	// RequestsPerSecond limits the request rate.
	RequestsPerSecond *float64 `yaml:"rps,omitempty"`

	// TorProxy routes traffic through a SOCKS5 proxy.
	TorProxy string `yaml:"torProxy,omitempty"`

	// DBDir overrides the database directory.
	DBDir string `yaml:"dbDir,omitempty"`

	// SessionFile enables the session cache at this path.
	SessionFile string `yaml:"sessionFile,omitempty"`

	// Defaults apply to every root.
	Defaults CrawlSettings `yaml:"defaults,omitempty"`

	// Roots maps a root handle or DID to its own settings.
	Roots map[string]CrawlSettings `yaml:"roots,omitempty"`
}

// RootSettings returns the crawl settings for root: the defaults merged
// with the root-specific entry.
func (f *File) RootSettings(root string) CrawlSettings {
	result := f.Defaults

	rs, ok := f.Roots[root]
	if !ok {
		return result
	}
	if rs.Depth != nil {
		result.Depth = rs.Depth
	}
	if rs.PageSize != 0 {
		result.PageSize = rs.PageSize
	}
	if rs.QueueCapacity != 0 {
		result.QueueCapacity = rs.QueueCapacity
	}
	if rs.Concurrency != 0 {
		result.Concurrency = rs.Concurrency
	}
	if rs.FailurePolicy != "" {
		result.FailurePolicy = rs.FailurePolicy
	}
	if rs.MaxRetries != nil {
		result.MaxRetries = rs.MaxRetries
	}
	return result
}

// ApplyFile copies the settings of f into c. Crawl settings are resolved
// for c.Root, so Root must be set first.
func (c *Config) ApplyFile(f *File) {
	if f == nil {
		return
	}
	if f.Service != "" {
		c.Service = f.Service
	}
	if f.Username != "" {
		c.Username = f.Username
	}
	if f.RequestsPerSecond != nil {
		c.RequestsPerSecond = *f.RequestsPerSecond
	}
	if f.TorProxy != "" {
		c.TorProxyAddress = f.TorProxy
	}
	if f.DBDir != "" {
		c.DBDir = f.DBDir
	}
	if f.SessionFile != "" {
		c.SessionFile = f.SessionFile
	}

	s := f.RootSettings(c.Root)
	if s.Depth != nil {
		c.MaxExpandDistance = *s.Depth
	}
	if s.PageSize != 0 {
		c.PageSize = s.PageSize
	}
	if s.QueueCapacity != 0 {
		c.QueueCapacity = s.QueueCapacity
	}
	if s.Concurrency != 0 {
		c.Concurrency = s.Concurrency
	}
	if s.FailurePolicy != "" {
		c.FailurePolicy = s.FailurePolicy
	}
	if s.MaxRetries != nil {
		c.MaxRetries = *s.MaxRetries
	}
}
