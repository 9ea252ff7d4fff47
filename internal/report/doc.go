// Package report renders run summaries and run history.
//
// This package contains writers for different output formats:
//   - SimpleWriter: the plain text summary block printed after a crawl
//   - MarkdownWriter: tables for sharing and documentation
//   - JSONWriter: structured output for tool integration
//
// Writers implement the Writer interface, allowing them to be used
// interchangeably and composed for multi-format output.
package report
