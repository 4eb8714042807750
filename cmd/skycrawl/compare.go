package main

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/nao1215/markdown"
	"github.com/spf13/cobra"

	"github.com/nao1215/skycrawl/internal/config"
	"github.com/nao1215/skycrawl/internal/database"
	"github.com/nao1215/skycrawl/internal/model"
)

// Directions of the change in neighbourhood size between two runs.
const (
	directionGrown     = "grown"
	directionShrunk    = "shrunk"
	directionUnchanged = "unchanged"
)

// NewCompareCmd creates the compare command.
func NewCompareCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compare [run-a run-b]",
		Short: "Compare two recorded crawl runs",
		Long: `Compare shows how the neighbourhood of a root changed between two runs.

It lists the identities that appeared or disappeared and the accounts whose
follower count changed, using the runs recorded in the database.

Runs are given by ID (a unique prefix of at least 8 characters is enough),
or with --root the latest two runs of that root are compared.

Examples:
  # Compare two runs by ID
  skycrawl compare 5f0c7d1e 9a2b44c0

  # Compare the latest two runs of a root
  skycrawl compare --root alice.bsky.social

  # Compare the latest run with the first run since a date
  skycrawl compare --root alice.bsky.social --since 2025-01-01

  # Output comparison in JSON format
  skycrawl compare --json --root alice.bsky.social`,
		Args: func(_ *cobra.Command, args []string) error {
			if len(args) != 0 && len(args) != 2 {
				return errors.New("compare takes two run IDs, or none with --root")
			}
			return nil
		},
		RunE: runCompareCmd,
	}

	cmd.Flags().StringP("root", "r", "", "Compare the latest runs of this root")
	cmd.Flags().StringP("since", "s", "",
		"With --root, compare with the first run after this date (format: YYYY-MM-DD)")
	cmd.Flags().BoolP("json", "j", false, "Output comparison result in JSON format")
	cmd.Flags().BoolP("markdown", "m", false, "Output comparison result in Markdown format")
	cmd.Flags().String("db-dir", "", "Database directory (default: XDG data directory)")

	return cmd
}

func runCompareCmd(cmd *cobra.Command, args []string) error {
	rootFlag, err := cmd.Flags().GetString("root")
	if err != nil {
		return err
	}
	since, err := cmd.Flags().GetString("since")
	if err != nil {
		return err
	}
	jsonOutput, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}
	markdownOutput, err := cmd.Flags().GetBool("markdown")
	if err != nil {
		return err
	}

	// Validate arguments before opening the database.
	if len(args) == 0 && rootFlag == "" {
		return errors.New("two run IDs or --root are required (use 'skycrawl history' to see recorded runs)")
	}
	if len(args) == 2 && rootFlag != "" {
		return errors.New("run IDs and --root cannot be used together")
	}
	if jsonOutput && markdownOutput {
		return config.ErrConflictingReportFormats
	}

	var sinceDate time.Time
	if since != "" {
		if rootFlag == "" {
			return errors.New("--since requires --root")
		}
		sinceDate, err = time.Parse("2006-01-02", since)
		if err != nil {
			return fmt.Errorf("invalid date format (use YYYY-MM-DD): %w", err)
		}
	}

	db, err := openExistingDB(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := cmd.Context()
	var previous, current *model.CrawlReport
	if rootFlag != "" {
		root, err := model.ParseActor(rootFlag)
		if err != nil {
			return fmt.Errorf("invalid root: %w", err)
		}
		previous, current, err = selectRootRuns(ctx, db, root, sinceDate)
		if err != nil {
			return err
		}
	} else {
		if previous, err = lookupRun(ctx, db, args[0]); err != nil {
			return err
		}
		if current, err = lookupRun(ctx, db, args[1]); err != nil {
			return err
		}
	}

	comparison, err := compareRuns(ctx, db, previous, current)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	switch {
	case jsonOutput:
		return outputComparisonJSON(out, comparison)
	case markdownOutput:
		return outputComparisonMarkdown(out, comparison)
	default:
		return outputComparisonText(out, comparison)
	}
}

// openExistingDB opens the run database without creating it. The directory
// comes from --db-dir, then the config file, then the XDG data directory.
func openExistingDB(cmd *cobra.Command) (*database.CrawlDB, error) {
	dir := getStringFlag(cmd, "db-dir")
	if dir == "" {
		if path := config.FindConfigFile(getStringFlag(cmd, "config")); path != "" {
			if file, err := config.LoadConfigFile(path); err == nil {
				dir = file.DBDir
			}
		}
	}
	if dir == "" {
		dir = config.XDGDataDir()
	}
	db, err := database.Open(dir, database.Options{CreateIfNotExists: false, EnableWAL: true})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

// lookupRun returns the run with the given ID or ID prefix.
func lookupRun(ctx context.Context, db *database.CrawlDB, id string) (*model.CrawlReport, error) {
	run, err := db.GetRun(ctx, id)
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, fmt.Errorf("run %s not found", id)
	}
	return run, nil
}

// selectRootRuns picks the runs to compare for root: the latest run and
// either the run before it or the oldest run started on or after since.
func selectRootRuns(ctx context.Context, db *database.CrawlDB, root model.Identity, since time.Time) (previous, current *model.CrawlReport, err error) {
	runs, err := db.LatestRuns(ctx, root, 0)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get run history: %w", err)
	}
	if len(runs) == 0 {
		return nil, nil, fmt.Errorf("no runs found for %s", root)
	}

	current = runs[0]
	if since.IsZero() {
		if len(runs) < 2 {
			return nil, nil, fmt.Errorf("at least 2 runs are required for comparison (found %d)", len(runs))
		}
		return runs[1], current, nil
	}

	// Runs are newest first; walk backwards to find the oldest match.
	for i := len(runs) - 1; i >= 0; i-- {
		if !runs[i].StartedAt.Before(since) {
			previous = runs[i]
			break
		}
	}
	if previous == nil {
		return nil, nil, fmt.Errorf("no runs found since %s", since.Format("2006-01-02"))
	}
	if previous == current {
		return nil, nil, fmt.Errorf("only one run found since %s; at least 2 runs are required for comparison",
			since.Format("2006-01-02"))
	}
	return previous, current, nil
}

// ComparisonResult holds the result of comparing two crawl runs.
type ComparisonResult struct {
	// Root is the root of the current run.
	Root string `json:"root"`

	// PreviousRun describes the older run.
	PreviousRun RunMetadata `json:"previous_run"`

	// CurrentRun describes the newer run.
	CurrentRun RunMetadata `json:"current_run"`

	// NewIdentities were enrolled by the current run only.
	NewIdentities []model.Identity `json:"new_identities,omitempty"`

	// LostIdentities were enrolled by the previous run only.
	LostIdentities []model.Identity `json:"lost_identities,omitempty"`

	// UnchangedCount is the number of identities enrolled by both runs.
	UnchangedCount int `json:"unchanged_count"`

	// FollowerChanges lists accounts profiled by both runs whose follower
	// count changed, largest change first.
	FollowerChanges []FollowerChange `json:"follower_changes,omitempty"`

	// Direction is "grown", "shrunk" or "unchanged".
	Direction string `json:"direction"`
}

// RunMetadata summarizes a run for comparison display.
type RunMetadata struct {
	RunID      string          `json:"run_id"`
	StartedAt  time.Time       `json:"started_at"`
	Status     model.RunStatus `json:"status"`
	Identities int             `json:"identities"`
	Edges      int             `json:"edges"`
	Enriched   int             `json:"enriched"`
}

// FollowerChange is the follower count of one account in both runs.
type FollowerChange struct {
	DID      model.Identity `json:"did"`
	Handle   string         `json:"handle"`
	Previous int64          `json:"previous"`
	Current  int64          `json:"current"`
	Delta    int64          `json:"delta"`
}

func runMetadata(r *model.CrawlReport) RunMetadata {
	return RunMetadata{
		RunID:      r.RunID,
		StartedAt:  r.StartedAt,
		Status:     r.Status,
		Identities: r.Identities,
		Edges:      r.Edges,
		Enriched:   r.Enriched,
	}
}

// compareRuns loads the recorded identities and profiles of both runs and
// compares them.
func compareRuns(ctx context.Context, db *database.CrawlDB, previous, current *model.CrawlReport) (*ComparisonResult, error) {
	prevIDs, err := db.RunIdentities(ctx, previous.RunID)
	if err != nil {
		return nil, err
	}
	curIDs, err := db.RunIdentities(ctx, current.RunID)
	if err != nil {
		return nil, err
	}
	prevProfiles, err := db.RunProfiles(ctx, previous.RunID)
	if err != nil {
		return nil, err
	}
	curProfiles, err := db.RunProfiles(ctx, current.RunID)
	if err != nil {
		return nil, err
	}
	return buildComparison(previous, current, prevIDs, curIDs, prevProfiles, curProfiles), nil
}

// buildComparison compares two runs from their recorded data.
func buildComparison(
	previous, current *model.CrawlReport,
	prevIDs, curIDs []database.IdentityRecord,
	prevProfiles, curProfiles []*model.EnrichedProfile,
) *ComparisonResult {
	result := &ComparisonResult{
		Root:        current.Root.String(),
		PreviousRun: runMetadata(previous),
		CurrentRun:  runMetadata(current),
	}

	prevSet := make(map[model.Identity]struct{}, len(prevIDs))
	for _, rec := range prevIDs {
		prevSet[rec.Identity] = struct{}{}
	}
	curSet := make(map[model.Identity]struct{}, len(curIDs))
	for _, rec := range curIDs {
		curSet[rec.Identity] = struct{}{}
	}

	for id := range curSet {
		if _, ok := prevSet[id]; ok {
			result.UnchangedCount++
		} else {
			result.NewIdentities = append(result.NewIdentities, id)
		}
	}
	for id := range prevSet {
		if _, ok := curSet[id]; !ok {
			result.LostIdentities = append(result.LostIdentities, id)
		}
	}
	slices.Sort(result.NewIdentities)
	slices.Sort(result.LostIdentities)

	prevFollowers := make(map[model.Identity]int64, len(prevProfiles))
	for _, p := range prevProfiles {
		prevFollowers[p.DID] = p.FollowersCount
	}
	for _, p := range curProfiles {
		before, ok := prevFollowers[p.DID]
		if !ok || before == p.FollowersCount {
			continue
		}
		result.FollowerChanges = append(result.FollowerChanges, FollowerChange{
			DID:      p.DID,
			Handle:   p.Handle,
			Previous: before,
			Current:  p.FollowersCount,
			Delta:    p.FollowersCount - before,
		})
	}
	slices.SortFunc(result.FollowerChanges, func(a, b FollowerChange) int {
		if c := cmp.Compare(abs(b.Delta), abs(a.Delta)); c != 0 {
			return c
		}
		return cmp.Compare(a.DID, b.DID)
	})

	switch {
	case len(curSet) > len(prevSet):
		result.Direction = directionGrown
	case len(curSet) < len(prevSet):
		result.Direction = directionShrunk
	default:
		result.Direction = directionUnchanged
	}
	return result
}

func abs(n int64) int64 {
	if n < 0 {
		return -n
	}
	return n
}

func outputComparisonJSON(w io.Writer, result *ComparisonResult) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}

func outputComparisonMarkdown(w io.Writer, result *ComparisonResult) error {
	md := markdown.NewMarkdown(w)

	md.H1("Run Comparison: " + result.Root)
	md.PlainText("")
	md.PlainTextf("**Neighbourhood:** %s", formatDirection(result.Direction))
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Metric", "Previous", "Current", "Change"},
		Rows: [][]string{
			{"Run", "`" + shortID(result.PreviousRun.RunID) + "`", "`" + shortID(result.CurrentRun.RunID) + "`", "-"},
			{"Started", result.PreviousRun.StartedAt.Format("2006-01-02 15:04"), result.CurrentRun.StartedAt.Format("2006-01-02 15:04"), "-"},
			{"Status", string(result.PreviousRun.Status), string(result.CurrentRun.Status), "-"},
			{"Identities", strconv.Itoa(result.PreviousRun.Identities), strconv.Itoa(result.CurrentRun.Identities),
				formatDelta(int64(result.CurrentRun.Identities - result.PreviousRun.Identities))},
			{"Edges", strconv.Itoa(result.PreviousRun.Edges), strconv.Itoa(result.CurrentRun.Edges),
				formatDelta(int64(result.CurrentRun.Edges - result.PreviousRun.Edges))},
		},
	})
	md.PlainText("")

	if len(result.NewIdentities) > 0 {
		md.H2(fmt.Sprintf("New Identities (%d)", len(result.NewIdentities)))
		md.PlainText("")
		md.BulletList(codeList(result.NewIdentities)...)
		md.PlainText("")
	}
	if len(result.LostIdentities) > 0 {
		md.H2(fmt.Sprintf("Lost Identities (%d)", len(result.LostIdentities)))
		md.PlainText("")
		md.BulletList(codeList(result.LostIdentities)...)
		md.PlainText("")
	}
	if len(result.FollowerChanges) > 0 {
		rows := make([][]string, len(result.FollowerChanges))
		for i, c := range result.FollowerChanges {
			rows[i] = []string{
				"`" + c.DID.String() + "`", c.Handle,
				strconv.FormatInt(c.Previous, 10), strconv.FormatInt(c.Current, 10), formatDelta(c.Delta),
			}
		}
		md.H2("Follower Changes")
		md.PlainText("")
		md.Table(markdown.TableSet{
			Header: []string{"DID", "Handle", "Previous", "Current", "Change"},
			Rows:   rows,
		})
		md.PlainText("")
	}

	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*%d identities unchanged*", result.UnchangedCount)

	return md.Build()
}

func outputComparisonText(w io.Writer, result *ComparisonResult) error {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Run Comparison: %s\n", result.Root)
	sb.WriteString(strings.Repeat("=", 60))
	sb.WriteString("\n")
	fmt.Fprintf(&sb, "\nNeighbourhood: %s\n", formatDirection(result.Direction))

	fmt.Fprintf(&sb, "\nPrevious run: %s  %s  %s\n", shortID(result.PreviousRun.RunID),
		result.PreviousRun.StartedAt.Format("2006-01-02 15:04:05"), result.PreviousRun.Status)
	fmt.Fprintf(&sb, "Current run:  %s  %s  %s\n", shortID(result.CurrentRun.RunID),
		result.CurrentRun.StartedAt.Format("2006-01-02 15:04:05"), result.CurrentRun.Status)

	sb.WriteString("\nSummary:\n")
	fmt.Fprintf(&sb, "  %-12s  %-10s  %-10s  %-10s\n", "Metric", "Previous", "Current", "Change")
	sb.WriteString("  " + strings.Repeat("-", 47) + "\n")
	fmt.Fprintf(&sb, "  %-12s  %-10d  %-10d  %-10s\n", "Identities",
		result.PreviousRun.Identities, result.CurrentRun.Identities,
		formatDelta(int64(result.CurrentRun.Identities-result.PreviousRun.Identities)))
	fmt.Fprintf(&sb, "  %-12s  %-10d  %-10d  %-10s\n", "Edges",
		result.PreviousRun.Edges, result.CurrentRun.Edges,
		formatDelta(int64(result.CurrentRun.Edges-result.PreviousRun.Edges)))
	fmt.Fprintf(&sb, "  %-12s  %-10d  %-10d  %-10s\n", "Enriched",
		result.PreviousRun.Enriched, result.CurrentRun.Enriched,
		formatDelta(int64(result.CurrentRun.Enriched-result.PreviousRun.Enriched)))

	if len(result.NewIdentities) > 0 {
		fmt.Fprintf(&sb, "\nNew Identities (%d):\n", len(result.NewIdentities))
		for _, id := range result.NewIdentities {
			fmt.Fprintf(&sb, "  [+] %s\n", id)
		}
	}
	if len(result.LostIdentities) > 0 {
		fmt.Fprintf(&sb, "\nLost Identities (%d):\n", len(result.LostIdentities))
		for _, id := range result.LostIdentities {
			fmt.Fprintf(&sb, "  [-] %s\n", id)
		}
	}
	if len(result.FollowerChanges) > 0 {
		sb.WriteString("\nFollower Changes:\n")
		for _, c := range result.FollowerChanges {
			fmt.Fprintf(&sb, "  %s (%s): %d -> %d (%s)\n", c.DID, c.Handle, c.Previous, c.Current, formatDelta(c.Delta))
		}
	}

	fmt.Fprintf(&sb, "\nUnchanged: %d identities\n", result.UnchangedCount)

	_, err := io.WriteString(w, sb.String())
	return err
}

func codeList(ids []model.Identity) []string {
	items := make([]string, len(ids))
	for i, id := range ids {
		items[i] = "`" + id.String() + "`"
	}
	return items
}

// shortID returns the first 8 characters of a run ID.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func formatDirection(direction string) string {
	switch direction {
	case directionGrown:
		return "GROWN (more identities)"
	case directionShrunk:
		return "SHRUNK (fewer identities)"
	default:
		return "UNCHANGED"
	}
}

// formatDelta formats a numeric delta with sign for display.
func formatDelta(delta int64) string {
	if delta > 0 {
		return "+" + strconv.FormatInt(delta, 10)
	}
	return strconv.FormatInt(delta, 10)
}
