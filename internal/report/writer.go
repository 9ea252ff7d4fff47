package report

import (
	"io"

	"github.com/imcrawler/imcrawler/internal/database"
	"github.com/imcrawler/imcrawler/internal/model"
)

// Writer defines the interface for report output.
type Writer interface {
	// WriteSummary outputs the summary of one crawl run.
	// Returns the number of bytes written and any error encountered.
	WriteSummary(summary *model.RunSummary) (int, error)

	// WriteHistory outputs a list of stored runs.
	WriteHistory(runs []database.RunRecord) (int, error)

	// WriteImages outputs the images kept by one stored run.
	WriteImages(images []database.ImageRecord) (int, error)
}

// MultiWriter writes to multiple Writers in order.
// It stops on the first error encountered.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// WriteSummary outputs the summary to all configured Writers.
func (m *MultiWriter) WriteSummary(summary *model.RunSummary) (int, error) {
	return m.each(func(w Writer) (int, error) { return w.WriteSummary(summary) })
}

// WriteHistory outputs the run list to all configured Writers.
func (m *MultiWriter) WriteHistory(runs []database.RunRecord) (int, error) {
	return m.each(func(w Writer) (int, error) { return w.WriteHistory(runs) })
}

// WriteImages outputs the image list to all configured Writers.
func (m *MultiWriter) WriteImages(images []database.ImageRecord) (int, error) {
	return m.each(func(w Writer) (int, error) { return w.WriteImages(images) })
}

func (m *MultiWriter) each(fn func(Writer) (int, error)) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := fn(w)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output io.Writer
}

// newBaseWriter creates a baseWriter with the given output destination.
func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// timeLayout is used for every human-readable timestamp.
const timeLayout = "2006-01-02 15:04:05 MST"

// statusText describes how a run ended.
func statusText(s *model.RunSummary) string {
	switch {
	case s.FinishedAt.IsZero():
		return "Incomplete"
	case s.Interrupted:
		return "Interrupted"
	default:
		return "Complete"
	}
}
