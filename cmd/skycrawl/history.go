package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/skycrawl/internal/config"
	"github.com/nao1215/skycrawl/internal/model"
	"github.com/nao1215/skycrawl/internal/report"
)

// defaultHistoryLimit is the number of runs listed when --limit is not given.
const defaultHistoryLimit = 20

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [root]",
		Short: "List recorded crawl runs",
		Long: `History lists the crawl runs recorded in the database, newest first.

With a root argument only the runs of that root are listed. With --run the
report of a single run is printed again, optionally followed by the follow
edges it recorded.

Examples:
  # List the latest runs
  skycrawl history

  # List all runs of a root
  skycrawl history alice.bsky.social --limit 0

  # Show the report of a run in Markdown
  skycrawl history --run 5f0c7d1e --markdown

  # Show the report of a run with its edges
  skycrawl history --run 5f0c7d1e --edges`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistoryCmd,
	}

	cmd.Flags().IntP("limit", "n", defaultHistoryLimit, "Maximum number of runs to list (0 for all)")
	cmd.Flags().String("run", "", "Show the report of this run (ID or unique prefix)")
	cmd.Flags().Bool("edges", false, "With --run, also print the recorded follow edges")
	cmd.Flags().BoolP("json", "j", false, "Output in JSON format")
	cmd.Flags().BoolP("markdown", "m", false, "With --run, output the report in Markdown format")
	cmd.Flags().String("db-dir", "", "Database directory (default: XDG data directory)")

	return cmd
}

func runHistoryCmd(cmd *cobra.Command, args []string) error {
	limit, err := cmd.Flags().GetInt("limit")
	if err != nil {
		return err
	}
	runID, err := cmd.Flags().GetString("run")
	if err != nil {
		return err
	}
	showEdges, err := cmd.Flags().GetBool("edges")
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

	if jsonOutput && markdownOutput {
		return config.ErrConflictingReportFormats
	}
	if runID != "" && len(args) > 0 {
		return errors.New("--run cannot be combined with a root")
	}
	if runID == "" && (showEdges || markdownOutput) {
		return errors.New("--edges and --markdown require --run")
	}
	if limit < 0 {
		return errors.New("--limit must not be negative")
	}

	var root model.Identity
	if len(args) > 0 {
		if root, err = model.ParseActor(args[0]); err != nil {
			return fmt.Errorf("invalid root: %w", err)
		}
	}

	db, err := openExistingDB(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	if runID != "" {
		run, err := lookupRun(ctx, db, runID)
		if err != nil {
			return err
		}
		format := report.FormatText
		switch {
		case jsonOutput:
			format = report.FormatJSON
		case markdownOutput:
			format = report.FormatMarkdown
		}
		var writer report.Writer
		if format == report.FormatText {
			writer = report.NewSimpleWriter(out, report.WithVerbose(true))
		} else if writer, err = report.NewWriter(format, out); err != nil {
			return err
		}
		if _, err := writer.Write(run); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
		if !showEdges {
			return nil
		}
		edges, err := db.RunEdges(ctx, run.RunID)
		if err != nil {
			return err
		}
		return writeEdges(out, edges)
	}

	var runs []*model.CrawlReport
	if root.IsZero() {
		runs, err = db.ListRuns(ctx, limit)
	} else {
		runs, err = db.LatestRuns(ctx, root, limit)
	}
	if err != nil {
		return fmt.Errorf("failed to get run history: %w", err)
	}

	if jsonOutput {
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(runs)
	}
	return writeHistory(out, root, runs)
}

// writeHistory prints the run list as a table.
func writeHistory(w io.Writer, root model.Identity, runs []*model.CrawlReport) error {
	var sb strings.Builder

	if len(runs) == 0 {
		if root.IsZero() {
			sb.WriteString("No crawl runs recorded\n")
		} else {
			fmt.Fprintf(&sb, "No crawl runs recorded for %s\n", root)
		}
		sb.WriteString("\nUse 'skycrawl crawl <root>' to start one.\n")
		_, err := io.WriteString(w, sb.String())
		return err
	}

	if root.IsZero() {
		fmt.Fprintf(&sb, "Crawl history (%d runs):\n\n", len(runs))
	} else {
		fmt.Fprintf(&sb, "Crawl history for %s (%d runs):\n\n", root, len(runs))
	}
	fmt.Fprintf(&sb, "  %-8s  %-19s  %-10s  %-10s  %-24s  %s\n",
		"ID", "Started", "Status", "Identities", "Root", "Duration")
	sb.WriteString("  " + strings.Repeat("-", 90) + "\n")

	for _, r := range runs {
		fmt.Fprintf(&sb, "  %-8s  %-19s  %-10s  %-10d  %-24s  %s\n",
			shortID(r.RunID),
			r.StartedAt.Format("2006-01-02 15:04:05"),
			r.Status,
			r.Identities,
			r.Root,
			formatRunDuration(r),
		)
	}

	sb.WriteString("\nUse 'skycrawl history --run <id>' to show the report of a run.\n")
	sb.WriteString("Use 'skycrawl compare <id> <id>' to compare two runs.\n")

	_, err := io.WriteString(w, sb.String())
	return err
}

func formatRunDuration(r *model.CrawlReport) string {
	if r.FinishedAt.IsZero() {
		return "-"
	}
	return r.Duration().Round(time.Millisecond).String()
}

// writeEdges prints recorded edges the way the crawl prints them live.
func writeEdges(w io.Writer, edges []model.Edge) error {
	var sb strings.Builder
	fmt.Fprintf(&sb, "\nEdges (%d):\n", len(edges))
	for _, e := range edges {
		fmt.Fprintf(&sb, " %s\n", e)
	}
	_, err := io.WriteString(w, sb.String())
	return err
}
