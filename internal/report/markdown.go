package report

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/imcrawler/imcrawler/internal/database"
	"github.com/imcrawler/imcrawler/internal/model"
)

// MarkdownWriter outputs reports in GitHub-flavored Markdown
// using the nao1215/markdown builder.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// WriteSummary outputs the run summary as a property table with an
// outcome chart.
func (w *MarkdownWriter) WriteSummary(s *model.RunSummary) (int, error) {
	return w.build(func(md *markdown.Markdown) {
		md.H1("ImCrawler Summary")
		md.PlainText("")

		md.Table(markdown.TableSet{
			Header: []string{"Property", "Value"},
			Rows: [][]string{
				{"Output Directory", "`" + s.OutputDir + "`"},
				{"Metadata File", "`" + s.MetadataPath + "`"},
				{"Started", s.StartedAt.Local().Format(timeLayout)},
				{"Elapsed", s.Elapsed().Round(time.Millisecond).String()},
				{"Status", statusText(s)},
			},
		})
		md.PlainText("")

		md.H2("Counters")
		md.PlainText("")
		md.Table(markdown.TableSet{
			Header: []string{"Counter", "Value"},
			Rows: [][]string{
				{"Sites visited", strconv.Itoa(s.SitesVisited) + "/" + strconv.Itoa(s.SitesTotal)},
				{"Pages crawled", strconv.Itoa(s.Pages)},
				{"Images found", strconv.Itoa(s.Found)},
				{"Images downloaded", strconv.Itoa(s.Downloaded)},
				{"Duplicates skipped", strconv.Itoa(s.Duplicates)},
				{"Failed", strconv.Itoa(s.Failed)},
				{"Resumed records", strconv.Itoa(s.Resumed)},
			},
		})
		md.PlainText("")

		if s.Downloaded+s.Duplicates+s.Failed > 0 {
			w.writePieChart(md, s)
		}
		w.writeAlert(md, s)
	})
}

// writePieChart writes a mermaid pie chart of image outcomes.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, s *model.RunSummary) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Image Outcomes"),
		piechart.WithShowData(true),
	)

	if s.Downloaded > 0 {
		chart.LabelAndIntValue("Downloaded", uint64(s.Downloaded))
	}
	if s.Duplicates > 0 {
		chart.LabelAndIntValue("Duplicates", uint64(s.Duplicates))
	}
	if s.Failed > 0 {
		chart.LabelAndIntValue("Failed", uint64(s.Failed))
	}

	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writeAlert writes an alert describing how the run ended.
func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, s *model.RunSummary) {
	switch {
	case s.Interrupted:
		md.Warningf("The run was interrupted after %d of %d sites. Run the same command again to resume.",
			s.SitesVisited, s.SitesTotal)
	case s.Failed > 0:
		md.Note(fmt.Sprintf("%d page(s) or image(s) could not be fetched. Re-running retries them.", s.Failed))
	default:
		md.Tip("All sites were processed without failures.")
	}
	md.PlainText("")
}

// WriteHistory outputs stored runs as a table.
func (w *MarkdownWriter) WriteHistory(runs []database.RunRecord) (int, error) {
	return w.build(func(md *markdown.Markdown) {
		md.H1("Crawl History")
		md.PlainText("")

		if len(runs) == 0 {
			md.PlainText("No crawl history found.")
			return
		}

		rows := make([][]string, len(runs))
		for i, r := range runs {
			s := r.Summary
			rows[i] = []string{
				strconv.FormatInt(r.ID, 10),
				s.StartedAt.Local().Format(timeLayout),
				statusText(&s),
				strconv.Itoa(s.SitesVisited) + "/" + strconv.Itoa(s.SitesTotal),
				strconv.Itoa(s.Found),
				strconv.Itoa(s.Downloaded),
				strconv.Itoa(s.Duplicates),
				strconv.Itoa(s.Failed),
				"`" + s.OutputDir + "`",
			}
		}

		md.Table(markdown.TableSet{
			Header: []string{"ID", "Started", "Status", "Sites", "Found", "Downloaded", "Duplicates", "Failed", "Output"},
			Rows:   rows,
		})
	})
}

// WriteImages outputs the images of a stored run as a table.
func (w *MarkdownWriter) WriteImages(images []database.ImageRecord) (int, error) {
	return w.build(func(md *markdown.Markdown) {
		md.H1("Images")
		md.PlainText("")

		if len(images) == 0 {
			md.PlainText("No images recorded for this run.")
			return
		}

		rows := make([][]string, len(images))
		for i, img := range images {
			rows[i] = []string{
				"`" + img.Record.Filename + "`",
				orDash(img.Info.Format),
				strconv.Itoa(img.Info.Width) + "x" + strconv.Itoa(img.Info.Height),
				orDash(img.Info.Camera),
				truncateString(img.Record.ImageURL, 60),
				truncateString(img.Record.PageURL, 60),
			}
		}

		md.Table(markdown.TableSet{
			Header: []string{"File", "Format", "Size", "Camera", "Image URL", "Page URL"},
			Rows:   rows,
		})
	})
}

// build renders into a buffer first so a failed build writes nothing.
func (w *MarkdownWriter) build(fn func(md *markdown.Markdown)) (int, error) {
	var buf bytes.Buffer
	md := markdown.NewMarkdown(&buf)
	fn(md)
	md.PlainText("")
	md.HorizontalRule()
	md.PlainText("")
	md.PlainText("*Generated by ImCrawler*")

	if err := md.Build(); err != nil {
		return 0, err
	}
	return w.output.Write(buf.Bytes())
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// truncateString truncates a string to maxLen characters with ellipsis.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
