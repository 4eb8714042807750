package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/nao1215/skycrawl/internal/model"
)

// SimpleWriter outputs human-readable text reports.
//
// Design decision: Plain ASCII without ANSI colors, so the output reads the
// same in every terminal and when piped to a file.
type SimpleWriter struct {
	baseWriter

	// verbose lists unreachable identities instead of only counting them.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithVerbose lists every unreachable identity.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the report in human-readable format.
func (w *SimpleWriter) Write(report *model.CrawlReport) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, report)
	w.writeTraversal(&sb, report)
	w.writeEnrichment(&sb, report)

	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString(cardinalityLine(report))
	sb.WriteString("\n")

	return io.WriteString(w.output, sb.String())
}

func section(sb *strings.Builder, title string) {
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString(title)
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")
}

func (w *SimpleWriter) writeHeader(sb *strings.Builder, r *model.CrawlReport) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("                          SKYCRAWL REPORT\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")

	fmt.Fprintf(sb, "Run ID:         %s\n", r.RunID)
	fmt.Fprintf(sb, "Root:           %s\n", rootLabel(r))
	fmt.Fprintf(sb, "Service:        %s\n", r.Service)
	fmt.Fprintf(sb, "Started:        %s\n", r.StartedAt.Format(timeLayout))
	if d := r.Duration(); d > 0 {
		fmt.Fprintf(sb, "Duration:       %s\n", d.Round(1e6))
	}
	if r.FailurePolicy != "" {
		fmt.Fprintf(sb, "Failure Policy: %s\n", r.FailurePolicy)
	}
	fmt.Fprintf(sb, "Status:         %s\n", statusText(r))
	sb.WriteString("\n")
}

func statusText(r *model.CrawlReport) string {
	switch r.Status {
	case model.RunStatusCompleted:
		return "Complete"
	case model.RunStatusCancelled:
		return "CANCELLED (partial results)"
	case model.RunStatusFailed:
		if r.Error != "" {
			return "FAILED - " + r.Error
		}
		return "FAILED"
	default:
		return "Running"
	}
}

func (w *SimpleWriter) writeTraversal(sb *strings.Builder, r *model.CrawlReport) {
	section(sb, "TRAVERSAL")

	fmt.Fprintf(sb, "  Identities:   %d\n", r.Identities)
	fmt.Fprintf(sb, "  Expansions:   %d\n", r.Expansions)
	fmt.Fprintf(sb, "  Edges:        %d\n", r.Edges)
	fmt.Fprintf(sb, "  Pages:        %d\n", r.Pages)
	fmt.Fprintf(sb, "  Unreachable:  %d\n", len(r.Unreachable))
	if w.verbose {
		for _, id := range r.Unreachable {
			fmt.Fprintf(sb, "    [-] %s\n", id)
		}
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeEnrichment(sb *strings.Builder, r *model.CrawlReport) {
	section(sb, "ENRICHMENT")

	fmt.Fprintf(sb, "  Enriched:          %d\n", r.Enriched)
	fmt.Fprintf(sb, "  Failed:            %d\n", r.EnrichmentFailures)
	if r.EnqueueFailures > 0 {
		fmt.Fprintf(sb, "  Dropped (enqueue): %d\n", r.EnqueueFailures)
	}
	sb.WriteString("\n")
}
