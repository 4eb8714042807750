package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/nao1215/skycrawl/internal/config"
	"github.com/nao1215/skycrawl/internal/crawler"
	"github.com/nao1215/skycrawl/internal/database"
	"github.com/nao1215/skycrawl/internal/metrics"
	"github.com/nao1215/skycrawl/internal/model"
	"github.com/nao1215/skycrawl/internal/observe"
	"github.com/nao1215/skycrawl/internal/pipeline"
	"github.com/nao1215/skycrawl/internal/report"
	"github.com/nao1215/skycrawl/internal/tor"
	"github.com/nao1215/skycrawl/internal/xrpc"
)

// NewCrawlCmd creates the crawl command.
func NewCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl [handle-or-did]",
		Short: "Crawl the follow graph around an account",
		Long: `Crawl logs in to an AT Protocol service and walks the follow graph
starting from the given account.

The root and every account it follows are expanded: their follow lists are
read page by page and every follow edge is printed as " source -> target".
Each distinct account met on the way is enriched with its profile exactly
once; profiles are printed to stderr as they arrive. The run ends with a
report whose last line is the number of distinct accounts.

Credentials are read from ATP_USERNAME and ATP_PASSWORD (use an app
password), the configuration file, or flags.

Examples:
  # Crawl the neighbourhood of an account
  ATP_USERNAME=me.bsky.social ATP_PASSWORD=xxxx-xxxx-xxxx-xxxx \
    skycrawl crawl alice.bsky.social

  # Only list the root's follows, keep going past failing accounts
  skycrawl crawl --depth 0 --policy skip did:plc:ewvi7nxzyoun6zhxrhs64oiz

  # Write a Markdown report and serve Prometheus metrics while crawling
  skycrawl crawl -m -o report.md --metrics-addr :9090 alice.bsky.social

  # Route all traffic through a local Tor daemon
  skycrawl crawl --tor-proxy alice.bsky.social`,
		Args: cobra.MaximumNArgs(1),
		RunE: runCrawlCmd,
	}

	// Account flags
	cmd.Flags().String("service", xrpc.DefaultService, "XRPC service URL (env ATP_SERVICE)")
	cmd.Flags().StringP("username", "u", "", "Login handle, DID or email (env ATP_USERNAME)")
	cmd.Flags().StringP("password", "p", "", "App password (prefer env ATP_PASSWORD)")
	cmd.Flags().Bool("local-storage", false, "Cache the login session in the XDG state directory")
	cmd.Flags().String("session-file", "", "Cache the login session in this file")

	// Traversal flags
	cmd.Flags().IntP("depth", "d", crawler.DefaultMaxExpandDistance,
		"Largest distance from the root whose follows are listed")
	cmd.Flags().Int("page-size", crawler.MaxPageSize, "Follows requested per page (1-100)")
	cmd.Flags().Int("queue-capacity", pipeline.DefaultQueueCapacity, "Identities buffered before enrichment")
	cmd.Flags().Int("concurrency", 1, "Parallel follow listings per level")
	cmd.Flags().String("policy", "abort", "Listing failure policy: abort, retry or skip")
	cmd.Flags().Int("max-retries", crawler.DefaultRetryConfig().MaxRetries,
		"Retries per page for the retry and skip policies")

	// Network flags
	cmd.Flags().Float64("rps", config.DefaultRequestsPerSecond, "Maximum requests per second (0 disables the limit)")
	cmd.Flags().Int("burst", config.DefaultBurst, "Requests allowed above the steady rate")
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout, "Timeout for each request")
	cmd.Flags().String("tor-proxy", "", "Route traffic through a SOCKS5 proxy (default 127.0.0.1:9050 when given without value)")
	cmd.Flags().Lookup("tor-proxy").NoOptDefVal = config.DefaultTorProxyAddress
	cmd.Flags().Bool("tor", false, "Start an embedded Tor daemon and route traffic through it")
	cmd.Flags().Duration("tor-timeout", tor.DefaultStartupTimeout, "Timeout for embedded Tor startup")

	// Report and storage flags
	cmd.Flags().BoolP("json", "j", false, "Output JSON report (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false, "Output Markdown report (mutually exclusive with --json)")
	cmd.Flags().StringP("output", "o", "", "Write report to specified file path (creates directories if needed)")
	cmd.Flags().BoolP("quiet", "q", false, "Do not print edges and profiles while crawling")
	cmd.Flags().Bool("no-db", false, "Do not record the run in the database")
	cmd.Flags().String("db-dir", "", "Database directory (default: XDG data directory)")
	cmd.Flags().String("metrics-addr", "", "Serve Prometheus metrics on this address during the crawl")

	return cmd
}

func runCrawlCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args, os.Getenv)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := newLogger(cmd)
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			logger.Warn("received shutdown signal, cancelling...")
			cancel()
		case <-ctx.Done():
		}
	}()

	quiet, err := cmd.Flags().GetBool("quiet")
	if err != nil {
		return err
	}
	streams := crawlStreams{out: cmd.OutOrStdout(), err: cmd.ErrOrStderr()}
	if quiet {
		streams.edges, streams.profiles = nil, nil
	} else {
		streams.edges, streams.profiles = streams.out, streams.err
	}

	return runCrawl(ctx, cfg, logger, streams)
}

// buildConfig resolves the configuration: defaults, then the config file,
// then the environment, then explicitly set flags.
func buildConfig(cmd *cobra.Command, args []string, getenv func(string) string) (*config.Config, error) {
	cfg := config.NewConfig()
	if len(args) > 0 {
		cfg.Root = args[0]
	}

	cfg.ConfigFilePath = getStringFlag(cmd, "config")
	explicitConfigPath := cfg.ConfigFilePath != ""
	configPath := config.FindConfigFile(cfg.ConfigFilePath)

	switch {
	case configPath != "":
		file, err := config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
		cfg.ApplyFile(file)
	case explicitConfigPath:
		return nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, cfg.ConfigFilePath)
	}

	cfg.ApplyEnv(getenv)

	if err := applyFlags(cmd, cfg); err != nil {
		return nil, err
	}

	cfg.Verbose = getBoolFlag(cmd, "verbose")
	cfg.LogJSON = getBoolFlag(cmd, "log-json")
	return cfg, nil
}

// applyFlags copies the flags the user set into cfg.
func applyFlags(cmd *cobra.Command, cfg *config.Config) error {
	f := cmd.Flags()
	var err error
	set := func(name string, apply func() error) {
		if err == nil && f.Changed(name) {
			err = apply()
		}
	}

	set("service", func() (e error) { cfg.Service, e = f.GetString("service"); return })
	set("username", func() (e error) { cfg.Username, e = f.GetString("username"); return })
	set("password", func() (e error) { cfg.Password, e = f.GetString("password"); return })
	set("local-storage", func() error {
		on, e := f.GetBool("local-storage")
		if on {
			cfg.SessionFile = config.DefaultSessionFile()
		}
		return e
	})
	set("session-file", func() (e error) { cfg.SessionFile, e = f.GetString("session-file"); return })

	set("depth", func() (e error) { cfg.MaxExpandDistance, e = f.GetInt("depth"); return })
	set("page-size", func() (e error) { cfg.PageSize, e = f.GetInt("page-size"); return })
	set("queue-capacity", func() (e error) { cfg.QueueCapacity, e = f.GetInt("queue-capacity"); return })
	set("concurrency", func() (e error) { cfg.Concurrency, e = f.GetInt("concurrency"); return })
	set("policy", func() (e error) { cfg.FailurePolicy, e = f.GetString("policy"); return })
	set("max-retries", func() (e error) { cfg.MaxRetries, e = f.GetInt("max-retries"); return })

	set("rps", func() (e error) { cfg.RequestsPerSecond, e = f.GetFloat64("rps"); return })
	set("burst", func() (e error) { cfg.Burst, e = f.GetInt("burst"); return })
	set("timeout", func() (e error) { cfg.Timeout, e = f.GetDuration("timeout"); return })
	set("tor-proxy", func() (e error) { cfg.TorProxyAddress, e = f.GetString("tor-proxy"); return })
	set("tor", func() (e error) { cfg.UseEmbeddedTor, e = f.GetBool("tor"); return })
	set("tor-timeout", func() (e error) { cfg.TorStartupTimeout, e = f.GetDuration("tor-timeout"); return })

	set("json", func() (e error) { cfg.JSONReport, e = f.GetBool("json"); return })
	set("markdown", func() (e error) { cfg.MarkdownReport, e = f.GetBool("markdown"); return })
	set("output", func() (e error) { cfg.ReportFile, e = f.GetString("output"); return })
	set("no-db", func() error {
		off, e := f.GetBool("no-db")
		cfg.SaveToDB = !off
		return e
	})
	set("db-dir", func() (e error) { cfg.DBDir, e = f.GetString("db-dir"); return })
	set("metrics-addr", func() (e error) { cfg.MetricsAddr, e = f.GetString("metrics-addr"); return })

	return err
}

// crawlStreams are the writers of one crawl. edges and profiles may be nil.
type crawlStreams struct {
	out      io.Writer
	err      io.Writer
	edges    io.Writer
	profiles io.Writer
}

// runCrawl performs one crawl run: login, traversal with enrichment,
// recording and the final report. It returns a non-nil error for every run
// that did not complete.
func runCrawl(ctx context.Context, cfg *config.Config, logger *slog.Logger, streams crawlStreams) error {
	crawlCfg, err := cfg.CrawlerConfig()
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	root, err := model.ParseActor(cfg.Root)
	if err != nil {
		return fmt.Errorf("invalid root %q: %w", cfg.Root, err)
	}

	httpClient, stopTor, err := newHTTPClient(ctx, cfg, logger, streams.err)
	if err != nil {
		return err
	}
	defer stopTor()

	clientOpts := []xrpc.Option{
		xrpc.WithHTTPClient(httpClient),
		xrpc.WithRateLimit(cfg.RequestsPerSecond, cfg.Burst),
		xrpc.WithLogger(logger),
		xrpc.WithUserAgent(cfg.UserAgent),
	}
	if cfg.SessionFile != "" {
		clientOpts = append(clientOpts, xrpc.WithSessionFile(cfg.SessionFile))
	}

	client, err := xrpc.Login(ctx, cfg.Service, cfg.Username, cfg.Password, clientOpts...)
	if err != nil {
		return err
	}

	rootDID, err := client.ResolveActor(ctx, root)
	if err != nil {
		return fmt.Errorf("failed to resolve root %s: %w", root, err)
	}

	crawlReport := model.NewCrawlReport(uuid.NewString(), root, client.Service())
	crawlReport.RootDID = rootDID
	crawlReport.FailurePolicy = crawlCfg.FailurePolicy.String()

	observers := []observe.Observer{
		observe.NewLogger(logger),
		metrics.Observer{},
	}
	if streams.edges != nil || streams.profiles != nil {
		observers = append(observers, observe.NewConsole(streams.edges, streams.profiles))
	}

	var (
		db       *database.CrawlDB
		recorder *database.Recorder
	)
	if cfg.SaveToDB {
		db, err = database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()

		if err := db.SaveRun(ctx, crawlReport); err != nil {
			return err
		}
		recorder = db.NewRecorder(crawlReport.RunID, database.WithLogger(logger))
		observers = append(observers, recorder)
		logger.Info("recording run", "run_id", crawlReport.RunID, "db", db.Path())
	}

	if cfg.MetricsAddr != "" {
		srv, err := metrics.Listen(cfg.MetricsAddr, logger)
		if err != nil {
			return fmt.Errorf("failed to listen for metrics: %w", err)
		}
		metricsCtx, stopMetrics := context.WithCancel(context.WithoutCancel(ctx))
		done := make(chan struct{})
		go func() {
			defer close(done)
			if err := srv.Serve(metricsCtx); err != nil {
				logger.Error("metrics server failed", "error", err)
			}
		}()
		defer func() {
			stopMetrics()
			<-done
		}()
	}

	c := crawler.New(client, crawlCfg,
		crawler.WithObserver(observe.NewMulti(observers...)),
		crawler.WithLogger(logger),
	)
	result, crawlErr := c.Run(ctx, rootDID)

	result.Apply(crawlReport)
	crawlReport.FinishedAt = time.Now()
	crawlReport.Status = runStatus(crawlErr)
	if crawlErr != nil {
		crawlReport.Error = crawlErr.Error()
	}

	// The crawl context may be cancelled; persisting the outcome must not be.
	saveCtx := context.WithoutCancel(ctx)
	if recorder != nil {
		if err := recorder.Flush(saveCtx); err != nil {
			logger.Error("failed to record crawl events", "run_id", crawlReport.RunID, "error", err)
		}
	}
	if db != nil {
		if err := db.SaveRun(saveCtx, crawlReport); err != nil {
			logger.Error("failed to save run", "run_id", crawlReport.RunID, "error", err)
		}
	}

	if err := outputReport(cfg, crawlReport, streams.out); err != nil {
		logger.Error("report failed", "run_id", crawlReport.RunID, "error", err)
		if crawlErr == nil {
			return err
		}
	}

	if crawlErr != nil {
		return fmt.Errorf("crawl %s: %w", crawlReport.Status, crawlErr)
	}
	return nil
}

// runStatus maps the error of crawler.Run to the terminal status of a run.
func runStatus(err error) model.RunStatus {
	switch {
	case err == nil:
		return model.RunStatusCompleted
	case errors.Is(err, context.Canceled):
		return model.RunStatusCancelled
	default:
		return model.RunStatusFailed
	}
}

// reportFormat returns the report format selected by cfg.
func reportFormat(cfg *config.Config) report.Format {
	switch {
	case cfg.JSONReport:
		return report.FormatJSON
	case cfg.MarkdownReport:
		return report.FormatMarkdown
	default:
		return report.FormatText
	}
}

// outputReport writes the run report to cfg.ReportFile, or to stdout.
func outputReport(cfg *config.Config, crawlReport *model.CrawlReport, stdout io.Writer) error {
	output := stdout
	if cfg.ReportFile != "" {
		f, err := report.CreateFile(cfg.ReportFile)
		if err != nil {
			return err
		}
		defer f.Close()
		output = f
	}

	var w report.Writer
	if format := reportFormat(cfg); format == report.FormatText {
		w = report.NewSimpleWriter(output, report.WithVerbose(cfg.Verbose))
	} else {
		var err error
		if w, err = report.NewWriter(format, output); err != nil {
			return err
		}
	}

	_, err := w.Write(crawlReport)
	return err
}

// newHTTPClient returns the HTTP client for XRPC traffic and a function
// releasing what it started. Traffic goes direct unless a SOCKS5 proxy or
// the embedded Tor daemon is configured.
func newHTTPClient(ctx context.Context, cfg *config.Config, logger *slog.Logger, status io.Writer) (*http.Client, func(), error) {
	noop := func() {}

	switch {
	case cfg.TorProxyAddress != "":
		client, err := tor.NewClient(cfg.TorProxyAddress, cfg.Timeout)
		if err != nil {
			return nil, noop, fmt.Errorf("failed to create proxy client: %w", err)
		}
		if err := checkProxy(ctx, client, cfg.Service); err != nil {
			return nil, noop, fmt.Errorf("%w (make sure Tor is running at %s)", err, cfg.TorProxyAddress)
		}
		logger.Info("proxy connection verified", "address", cfg.TorProxyAddress)
		return client.NewHTTPClient(), noop, nil

	case cfg.UseEmbeddedTor:
		fmt.Fprintln(status, "Starting embedded Tor daemon...")
		fmt.Fprintf(status, "This may take 1-3 minutes while Tor bootstraps and connects to the network.\n\n")

		embedded := tor.NewEmbeddedTor(
			tor.WithStartupTimeout(cfg.TorStartupTimeout),
			tor.WithLogger(logger),
		)
		if err := embedded.Start(ctx); err != nil {
			return nil, noop, fmt.Errorf("failed to start embedded Tor: %w", err)
		}
		stop := func() {
			logger.Info("stopping embedded Tor daemon...")
			if err := embedded.Stop(); err != nil {
				logger.Error("failed to stop embedded Tor", "error", err)
			}
		}

		client, err := embedded.NewClient(cfg.Timeout)
		if err != nil {
			stop()
			return nil, noop, fmt.Errorf("failed to create Tor client: %w", err)
		}
		if err := checkProxy(ctx, client, cfg.Service); err != nil {
			stop()
			return nil, noop, fmt.Errorf("embedded Tor proxy check failed: %w", err)
		}
		fmt.Fprintf(status, "Embedded Tor daemon started (SOCKS proxy %s)\n\n", embedded.SocksAddr())
		return client.NewHTTPClient(), stop, nil

	default:
		return &http.Client{Timeout: cfg.Timeout}, noop, nil
	}
}

// checkProxy verifies the proxy can open a connection to the service.
func checkProxy(ctx context.Context, client *tor.Client, service string) error {
	target, err := serviceTarget(service)
	if err != nil {
		return err
	}
	status, err := client.CheckConnection(ctx, target)
	if err != nil {
		return err
	}
	return status.Err()
}

// serviceTarget returns the "host:port" of a service URL.
func serviceTarget(service string) (string, error) {
	clean, err := xrpc.SanitizeService(service)
	if err != nil {
		return "", err
	}
	u, err := url.Parse(clean)
	if err != nil {
		return "", fmt.Errorf("%w: %w", xrpc.ErrInvalidService, err)
	}

	port := u.Port()
	if port == "" {
		port = "443"
		if u.Scheme == "http" {
			port = "80"
		}
	}
	return net.JoinHostPort(u.Hostname(), port), nil
}
