// Package report renders crawl run summaries.
//
// This package contains writers for different output formats:
//   - SimpleWriter: human-readable text for terminal display
//   - JSONWriter: structured JSON for tool integration
//   - MarkdownWriter: Markdown with a mermaid chart of enrichment outcomes
//
// Every format ends with the number of distinct identities the run
// enrolled, which is the one figure users compare between runs.
//
// Design decision: Report data lives in the model package and rendering
// lives here, so a new output format never touches the crawl code.
// Writers implement the Writer interface and can be composed with
// MultiWriter.
package report
