package report

import (
	"encoding/json"
	"io"

	"github.com/nao1215/skycrawl/internal/model"
)

// JSONWriter outputs reports in JSON format.
//
// Design decision: encoding/json is enough here. The report is a flat
// struct with tags, and the output has to match what the database and the
// compare command read back.
type JSONWriter struct {
	baseWriter

	indent       bool
	indentPrefix string
	indentString string
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithIndent enables pretty-printed JSON output.
func WithIndent(prefix, indent string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.indent = true
		w.indentPrefix = prefix
		w.indentString = indent
	}
}

// WithPrettyPrint is WithIndent("", "  ").
func WithPrettyPrint() JSONWriterOption {
	return WithIndent("", "  ")
}

// NewJSONWriter creates a JSONWriter that outputs to the given writer.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// JSONReport wraps the run summary with output-only fields.
type JSONReport struct {
	*model.CrawlReport

	// DurationMS is the run duration in milliseconds.
	DurationMS int64 `json:"duration_ms"`

	// Cardinality is the number of distinct identities enrolled.
	Cardinality int `json:"cardinality"`
}

// Write outputs the report in JSON format.
func (w *JSONWriter) Write(report *model.CrawlReport) (int, error) {
	return w.writeJSON(JSONReport{
		CrawlReport: report,
		DurationMS:  report.Duration().Milliseconds(),
		Cardinality: report.Identities,
	})
}

func (w *JSONWriter) writeJSON(v any) (int, error) {
	var (
		data []byte
		err  error
	)
	if w.indent {
		data, err = json.MarshalIndent(v, w.indentPrefix, w.indentString)
	} else {
		data, err = json.Marshal(v)
	}
	if err != nil {
		return 0, err
	}

	data = append(data, '\n')
	return w.output.Write(data)
}
