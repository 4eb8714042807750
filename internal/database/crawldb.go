package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/skycrawl/internal/model"
)

// FileName is the database file created in the data directory.
const FileName = "skycrawl.db"

// CrawlDB stores crawl runs and what they observed.
type CrawlDB struct {
	db     *sql.DB
	dbPath string
}

// Options configures CrawlDB behavior.
type Options struct {
	// CreateIfNotExists creates the directory and database file if missing.
	CreateIfNotExists bool

	// EnableWAL enables write-ahead logging.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates the database in dbDir.
func Open(dbDir string, opts Options) (*CrawlDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("database not found at %s (run a crawl first)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else if err := os.MkdirAll(dbDir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// busy_timeout lets history and compare read while a crawl is writing.
	dsn := dbPath + "?mode=rw&_pragma=busy_timeout(5000)"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite has a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	cdb := &CrawlDB{db: db, dbPath: dbPath}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := cdb.createTables(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return cdb, nil
}

// Close closes the database connection.
func (cdb *CrawlDB) Close() error {
	return cdb.db.Close()
}

// Path returns the database file path.
func (cdb *CrawlDB) Path() string {
	return cdb.dbPath
}

func (cdb *CrawlDB) createTables(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		root TEXT NOT NULL,
		root_did TEXT NOT NULL DEFAULT '',
		service TEXT NOT NULL,
		failure_policy TEXT NOT NULL DEFAULT '',
		started_at TEXT NOT NULL,
		finished_at TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		identities INTEGER NOT NULL DEFAULT 0,
		expansions INTEGER NOT NULL DEFAULT 0,
		edges INTEGER NOT NULL DEFAULT 0,
		pages INTEGER NOT NULL DEFAULT 0,
		enriched INTEGER NOT NULL DEFAULT 0,
		enrichment_failures INTEGER NOT NULL DEFAULT 0,
		enqueue_failures INTEGER NOT NULL DEFAULT 0,
		unreachable TEXT NOT NULL DEFAULT '[]',
		error TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_runs_root ON runs(root);
	CREATE INDEX IF NOT EXISTS idx_runs_root_did ON runs(root_did);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);

	-- Identities enrolled for enrichment, in enrollment order
	CREATE TABLE IF NOT EXISTS identities (
		run_id TEXT NOT NULL,
		identity TEXT NOT NULL,
		distance INTEGER NOT NULL,
		seq INTEGER NOT NULL,
		PRIMARY KEY (run_id, identity)
	);

	CREATE TABLE IF NOT EXISTS edges (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		source TEXT NOT NULL,
		target TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_edges_run ON edges(run_id);

	CREATE TABLE IF NOT EXISTS profiles (
		run_id TEXT NOT NULL,
		did TEXT NOT NULL,
		handle TEXT NOT NULL DEFAULT '',
		display_name TEXT NOT NULL DEFAULT '',
		followers_count INTEGER NOT NULL DEFAULT 0,
		indexed_at TEXT NOT NULL DEFAULT '',
		observed_at TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (run_id, did)
	);
	`

	_, err := cdb.db.ExecContext(ctx, schema)
	return err
}

// SaveRun inserts or updates the summary row of report.RunID.
func (cdb *CrawlDB) SaveRun(ctx context.Context, report *model.CrawlReport) error {
	unreachable := report.Unreachable
	if unreachable == nil {
		unreachable = []model.Identity{}
	}
	unreachableJSON, err := json.Marshal(unreachable)
	if err != nil {
		return fmt.Errorf("failed to serialize unreachable identities: %w", err)
	}

	query := `
	INSERT INTO runs (id, root, root_did, service, failure_policy, started_at, finished_at, status,
		identities, expansions, edges, pages, enriched, enrichment_failures, enqueue_failures, unreachable, error)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		root_did = excluded.root_did,
		finished_at = excluded.finished_at,
		status = excluded.status,
		identities = excluded.identities,
		expansions = excluded.expansions,
		edges = excluded.edges,
		pages = excluded.pages,
		enriched = excluded.enriched,
		enrichment_failures = excluded.enrichment_failures,
		enqueue_failures = excluded.enqueue_failures,
		unreachable = excluded.unreachable,
		error = excluded.error
	`

	_, err = cdb.db.ExecContext(ctx, query,
		report.RunID,
		report.Root.String(),
		report.RootDID.String(),
		report.Service,
		report.FailurePolicy,
		formatTimestamp(report.StartedAt),
		formatTimestamp(report.FinishedAt),
		string(report.Status),
		report.Identities,
		report.Expansions,
		report.Edges,
		report.Pages,
		report.Enriched,
		report.EnrichmentFailures,
		report.EnqueueFailures,
		string(unreachableJSON),
		report.Error,
	)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}
	return nil
}

const runColumns = `id, root, root_did, service, failure_policy, started_at, finished_at, status,
	identities, expansions, edges, pages, enriched, enrichment_failures, enqueue_failures, unreachable, error`

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*model.CrawlReport, error) {
	var (
		report          model.CrawlReport
		root, rootDID   string
		started         string
		finished        string
		status          string
		unreachableJSON string
	)

	err := row.Scan(
		&report.RunID,
		&root,
		&rootDID,
		&report.Service,
		&report.FailurePolicy,
		&started,
		&finished,
		&status,
		&report.Identities,
		&report.Expansions,
		&report.Edges,
		&report.Pages,
		&report.Enriched,
		&report.EnrichmentFailures,
		&report.EnqueueFailures,
		&unreachableJSON,
		&report.Error,
	)
	if err != nil {
		return nil, err
	}

	report.Root = model.Identity(root)
	report.RootDID = model.Identity(rootDID)
	report.StartedAt = parseTimestamp(started)
	report.FinishedAt = parseTimestamp(finished)
	report.Status = model.RunStatus(status)
	if unreachableJSON != "" {
		if err := json.Unmarshal([]byte(unreachableJSON), &report.Unreachable); err != nil {
			return nil, fmt.Errorf("failed to parse unreachable identities: %w", err)
		}
	}
	if len(report.Unreachable) == 0 {
		report.Unreachable = nil
	}
	return &report, nil
}

// GetRun returns the run with the given ID, or nil if there is none.
// A unique ID prefix of at least 8 characters is accepted as well.
func (cdb *CrawlDB) GetRun(ctx context.Context, id string) (*model.CrawlReport, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE id = ?`
	report, err := scanRun(cdb.db.QueryRowContext(ctx, query, id))
	if err == nil {
		return report, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	if len(id) < minPrefixLen {
		return nil, nil
	}

	rows, err := cdb.db.QueryContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id LIKE ? || '%' LIMIT 2`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	defer rows.Close()

	var matches []*model.CrawlReport
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		matches = append(matches, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	switch len(matches) {
	case 0:
		return nil, nil
	case 1:
		return matches[0], nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrAmbiguousRunID, id)
	}
}

// minPrefixLen is the shortest run ID prefix GetRun resolves.
const minPrefixLen = 8

// ErrAmbiguousRunID is returned when a run ID prefix matches several runs.
var ErrAmbiguousRunID = errors.New("run ID prefix matches more than one run")

// ListRuns returns up to limit runs, newest first. A non-positive limit returns all runs.
func (cdb *CrawlDB) ListRuns(ctx context.Context, limit int) ([]*model.CrawlReport, error) {
	query := `SELECT ` + runColumns + ` FROM runs ORDER BY started_at DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	return cdb.queryRuns(ctx, query, args...)
}

// LatestRuns returns up to n runs whose root (as given or resolved) is root,
// newest first.
func (cdb *CrawlDB) LatestRuns(ctx context.Context, root model.Identity, n int) ([]*model.CrawlReport, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE root = ? OR root_did = ? ORDER BY started_at DESC`
	args := []any{root.String(), root.String()}
	if n > 0 {
		query += ` LIMIT ?`
		args = append(args, n)
	}
	return cdb.queryRuns(ctx, query, args...)
}

func (cdb *CrawlDB) queryRuns(ctx context.Context, query string, args ...any) ([]*model.CrawlReport, error) {
	rows, err := cdb.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []*model.CrawlReport
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// IdentityRecord is an identity enrolled during a run.
type IdentityRecord struct {
	// Identity is the enrolled identity.
	Identity model.Identity

	// Distance is the root distance it was discovered at.
	Distance int

	// Seq is its 1-based position in enrollment order.
	Seq int
}

// RunIdentities returns the identities of a run in enrollment order.
func (cdb *CrawlDB) RunIdentities(ctx context.Context, runID string) ([]IdentityRecord, error) {
	rows, err := cdb.db.QueryContext(ctx,
		`SELECT identity, distance, seq FROM identities WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query identities: %w", err)
	}
	defer rows.Close()

	var records []IdentityRecord
	for rows.Next() {
		var rec IdentityRecord
		var id string
		if err := rows.Scan(&id, &rec.Distance, &rec.Seq); err != nil {
			return nil, fmt.Errorf("failed to scan identity: %w", err)
		}
		rec.Identity = model.Identity(id)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// RunEdges returns the edges of a run in the order they were reported.
func (cdb *CrawlDB) RunEdges(ctx context.Context, runID string) ([]model.Edge, error) {
	rows, err := cdb.db.QueryContext(ctx,
		`SELECT source, target FROM edges WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query edges: %w", err)
	}
	defer rows.Close()

	var edges []model.Edge
	for rows.Next() {
		var source, target string
		if err := rows.Scan(&source, &target); err != nil {
			return nil, fmt.Errorf("failed to scan edge: %w", err)
		}
		edges = append(edges, model.Edge{Source: model.Identity(source), Target: model.Identity(target)})
	}
	return edges, rows.Err()
}

// RunProfiles returns the profiles enriched during a run, ordered by DID.
func (cdb *CrawlDB) RunProfiles(ctx context.Context, runID string) ([]*model.EnrichedProfile, error) {
	rows, err := cdb.db.QueryContext(ctx, `
	SELECT did, handle, display_name, followers_count, indexed_at, observed_at
	FROM profiles WHERE run_id = ? ORDER BY did`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query profiles: %w", err)
	}
	defer rows.Close()

	var profiles []*model.EnrichedProfile
	for rows.Next() {
		var (
			p                 model.EnrichedProfile
			did               string
			indexed, observed string
		)
		if err := rows.Scan(&did, &p.Handle, &p.DisplayName, &p.FollowersCount, &indexed, &observed); err != nil {
			return nil, fmt.Errorf("failed to scan profile: %w", err)
		}
		p.DID = model.Identity(did)
		p.IndexedAt = parseTimestamp(indexed)
		p.ObservedAt = parseTimestamp(observed)
		profiles = append(profiles, &p)
	}
	return profiles, rows.Err()
}

// formatTimestamp renders t for storage; the zero time is stored as "".
func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

// timestampFormats are tried in order by parseTimestamp.
var timestampFormats = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999",
}

// parseTimestamp parses a stored timestamp, returning the zero time for "" or
// an unknown format.
func parseTimestamp(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
