package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/imcrawler/imcrawler/internal/database"
	"github.com/imcrawler/imcrawler/internal/model"
)

// SimpleWriter outputs plain text for terminal display.
type SimpleWriter struct {
	baseWriter

	// verbose adds pages, timing and output directory to the summary.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithVerbose enables verbose output with additional details.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// WriteSummary outputs the summary block.
func (w *SimpleWriter) WriteSummary(s *model.RunSummary) (int, error) {
	var sb strings.Builder

	sb.WriteString("\nSummary:\n")
	fmt.Fprintf(&sb, "  Sites visited      : %d/%d\n", s.SitesVisited, s.SitesTotal)
	fmt.Fprintf(&sb, "  Total images found : %d\n", s.Found)
	fmt.Fprintf(&sb, "  Images downloaded  : %d\n", s.Downloaded)
	fmt.Fprintf(&sb, "  Duplicates skipped : %d\n", s.Duplicates)
	fmt.Fprintf(&sb, "  Failed downloads   : %d\n", s.Failed)
	fmt.Fprintf(&sb, "  Metadata saved to  : %s\n", s.MetadataPath)

	if w.verbose {
		fmt.Fprintf(&sb, "  Pages crawled      : %d\n", s.Pages)
		fmt.Fprintf(&sb, "  Resumed records    : %d\n", s.Resumed)
		fmt.Fprintf(&sb, "  Output directory   : %s\n", s.OutputDir)
		fmt.Fprintf(&sb, "  Elapsed            : %s\n", s.Elapsed().Round(time.Millisecond))
	}
	if s.Interrupted {
		sb.WriteString("  Status             : interrupted, run again to resume\n")
	}

	return io.WriteString(w.output, sb.String())
}

// WriteHistory outputs one line per run, newest first.
func (w *SimpleWriter) WriteHistory(runs []database.RunRecord) (int, error) {
	var sb strings.Builder

	if len(runs) == 0 {
		sb.WriteString("No crawl history found.\n")
		return io.WriteString(w.output, sb.String())
	}

	fmt.Fprintf(&sb, "%-6s %-23s %-11s %7s %7s %10s %10s %6s  %s\n",
		"ID", "STARTED", "STATUS", "SITES", "FOUND", "DOWNLOADED", "DUPLICATES", "FAILED", "OUTPUT")
	for _, r := range runs {
		s := r.Summary
		fmt.Fprintf(&sb, "%-6d %-23s %-11s %7s %7d %10d %10d %6d  %s\n",
			r.ID,
			s.StartedAt.Local().Format(timeLayout),
			statusText(&s),
			fmt.Sprintf("%d/%d", s.SitesVisited, s.SitesTotal),
			s.Found,
			s.Downloaded,
			s.Duplicates,
			s.Failed,
			s.OutputDir,
		)
	}

	return io.WriteString(w.output, sb.String())
}

// WriteImages outputs one line per kept image.
func (w *SimpleWriter) WriteImages(images []database.ImageRecord) (int, error) {
	var sb strings.Builder

	if len(images) == 0 {
		sb.WriteString("No images recorded for this run.\n")
		return io.WriteString(w.output, sb.String())
	}

	for _, img := range images {
		fmt.Fprintf(&sb, "%s  %s %dx%d  %s\n",
			img.Record.Filename,
			img.Info.Format,
			img.Info.Width,
			img.Info.Height,
			img.Record.ImageURL,
		)
		if w.verbose {
			fmt.Fprintf(&sb, "    page: %s\n", img.Record.PageURL)
			fmt.Fprintf(&sb, "    hash: %s\n", img.Record.ContentHash)
			if img.Info.Camera != "" {
				fmt.Fprintf(&sb, "    camera: %s\n", img.Info.Camera)
			}
			if img.Info.TakenAt != "" {
				fmt.Fprintf(&sb, "    taken: %s\n", img.Info.TakenAt)
			}
		}
	}

	return io.WriteString(w.output, sb.String())
}
