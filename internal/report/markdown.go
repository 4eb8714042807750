package report

import (
	"bytes"
	"io"
	"strconv"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/nao1215/skycrawl/internal/model"
)

// MarkdownWriter outputs reports in Markdown format.
//
// Design decision: nao1215/markdown builds tables, alerts and mermaid code
// blocks without hand-escaping, and the result renders on GitHub as is.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{baseWriter: newBaseWriter(output)}
}

// Write outputs the report in Markdown format.
func (w *MarkdownWriter) Write(report *model.CrawlReport) (int, error) {
	var buf bytes.Buffer
	md := markdown.NewMarkdown(&buf)

	w.writeHeader(md, report)
	w.writeTraversal(md, report)
	w.writeEnrichment(md, report)

	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("**%s**", cardinalityLine(report))

	if err := md.Build(); err != nil {
		return 0, err
	}
	return w.output.Write(buf.Bytes())
}

func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, r *model.CrawlReport) {
	md.H1("Skycrawl Report")
	md.PlainText("")

	rows := [][]string{
		{"Run ID", "`" + r.RunID + "`"},
		{"Root", "`" + rootLabel(r) + "`"},
		{"Service", r.Service},
		{"Started", r.StartedAt.Format(timeLayout)},
	}
	if d := r.Duration(); d > 0 {
		rows = append(rows, []string{"Duration", d.Round(1e6).String()})
	}
	if r.FailurePolicy != "" {
		rows = append(rows, []string{"Failure Policy", r.FailurePolicy})
	}
	rows = append(rows, []string{"Status", markdownStatus(r)})

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows:   rows,
	})
	md.PlainText("")

	switch r.Status {
	case model.RunStatusFailed:
		md.Cautionf("The crawl failed: %s", r.Error)
		md.PlainText("")
	case model.RunStatusCancelled:
		md.Warning("The crawl was cancelled. Counts cover the partial run.")
		md.PlainText("")
	}
}

func markdownStatus(r *model.CrawlReport) string {
	switch r.Status {
	case model.RunStatusCompleted:
		return "✅ Complete"
	case model.RunStatusCancelled:
		return "⚠️ Cancelled"
	case model.RunStatusFailed:
		return "❌ Failed"
	default:
		return "Running"
	}
}

func (w *MarkdownWriter) writeTraversal(md *markdown.Markdown, r *model.CrawlReport) {
	md.H2("Traversal")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Metric", "Count"},
		Rows: [][]string{
			{"Identities", strconv.Itoa(r.Identities)},
			{"Expansions", strconv.Itoa(r.Expansions)},
			{"Edges", strconv.Itoa(r.Edges)},
			{"Pages", strconv.Itoa(r.Pages)},
			{"Unreachable", strconv.Itoa(len(r.Unreachable))},
		},
	})
	md.PlainText("")

	if len(r.Unreachable) > 0 {
		ids := make([]string, len(r.Unreachable))
		for i, id := range r.Unreachable {
			ids[i] = "`" + id.String() + "`"
		}
		md.H3("Unreachable Identities")
		md.PlainText("")
		md.BulletList(ids...)
		md.PlainText("")
	}
}

func (w *MarkdownWriter) writeEnrichment(md *markdown.Markdown, r *model.CrawlReport) {
	md.H2("Enrichment")
	md.PlainText("")

	rows := [][]string{
		{"Enriched", strconv.Itoa(r.Enriched)},
		{"Failed", strconv.Itoa(r.EnrichmentFailures)},
	}
	if r.EnqueueFailures > 0 {
		rows = append(rows, []string{"Dropped before enrichment", strconv.Itoa(r.EnqueueFailures)})
	}
	md.Table(markdown.TableSet{
		Header: []string{"Outcome", "Count"},
		Rows:   rows,
	})
	md.PlainText("")

	if r.EnrichmentAttempts()+r.EnqueueFailures > 0 {
		w.writePieChart(md, r)
	}
}

// writePieChart writes a mermaid pie chart of enrichment outcomes.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, r *model.CrawlReport) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Enrichment Outcomes"),
		piechart.WithShowData(true),
	)

	if r.Enriched > 0 {
		chart.LabelAndIntValue("Enriched", uint64(r.Enriched))
	}
	if r.EnrichmentFailures > 0 {
		chart.LabelAndIntValue("Failed", uint64(r.EnrichmentFailures))
	}
	if r.EnqueueFailures > 0 {
		chart.LabelAndIntValue("Dropped", uint64(r.EnqueueFailures))
	}

	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}
