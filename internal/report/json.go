package report

import (
	"encoding/json"
	"io"

	"github.com/imcrawler/imcrawler/internal/database"
	"github.com/imcrawler/imcrawler/internal/model"
)

// JSONWriter outputs reports in JSON format for tool integration.
type JSONWriter struct {
	baseWriter

	// indent enables pretty-printed JSON output.
	indent bool

	// indentPrefix is the prefix for each line in indented output.
	indentPrefix string

	// indentString is the indentation string (typically "  " or "\t").
	indentString string

	// version is included in summaries when set.
	version string
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithIndent enables pretty-printed JSON output.
// The prefix is prepended to each line, and indent is used for each level.
func WithIndent(prefix, indent string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.indent = true
		w.indentPrefix = prefix
		w.indentString = indent
	}
}

// WithPrettyPrint enables pretty-printed JSON with two-space indentation.
func WithPrettyPrint() JSONWriterOption {
	return WithIndent("", "  ")
}

// WithVersion records the program version in summary output.
func WithVersion(version string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.version = version
	}
}

// NewJSONWriter creates a JSONWriter that outputs to the given writer.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{
		baseWriter: newBaseWriter(output),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// SummaryReport wraps a run summary with output-specific fields.
type SummaryReport struct {
	// Version is the ImCrawler version that produced the run.
	Version string `json:"version,omitempty"`

	// Status is Complete, Interrupted or Incomplete.
	Status string `json:"status"`

	// ElapsedSeconds is the wall time of the run.
	ElapsedSeconds float64 `json:"elapsed_seconds"`

	// Summary is the run summary.
	Summary *model.RunSummary `json:"summary"`
}

// WriteSummary outputs the run summary wrapped in a SummaryReport.
func (w *JSONWriter) WriteSummary(s *model.RunSummary) (int, error) {
	return w.writeJSON(SummaryReport{
		Version:        w.version,
		Status:         statusText(s),
		ElapsedSeconds: s.Elapsed().Seconds(),
		Summary:        s,
	})
}

// WriteHistory outputs stored runs as a JSON array.
func (w *JSONWriter) WriteHistory(runs []database.RunRecord) (int, error) {
	if runs == nil {
		runs = []database.RunRecord{}
	}
	return w.writeJSON(runs)
}

// WriteImages outputs stored images as a JSON array.
func (w *JSONWriter) WriteImages(images []database.ImageRecord) (int, error) {
	if images == nil {
		images = []database.ImageRecord{}
	}
	return w.writeJSON(images)
}

// writeJSON marshals the given value to JSON and writes it to the output.
func (w *JSONWriter) writeJSON(v any) (int, error) {
	var data []byte
	var err error

	if w.indent {
		data, err = json.MarshalIndent(v, w.indentPrefix, w.indentString)
	} else {
		data, err = json.Marshal(v)
	}

	if err != nil {
		return 0, err
	}

	// Trailing newline for terminal output.
	data = append(data, '\n')

	return w.output.Write(data)
}
