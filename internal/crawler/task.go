package crawler

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/imcrawler/imcrawler/internal/download"
	"github.com/imcrawler/imcrawler/internal/model"
)

// Gate is the run-wide admission state shared by all tasks.
// *dedup.Gate implements it.
type Gate interface {
	// Admit claims an image URL and allocates its file index.
	Admit(imageURL string) (int, bool)

	// VisitPage claims a page; false means some task already visited it.
	VisitPage(pageURL string) bool

	// Visited reports whether a page was already claimed.
	Visited(pageURL string) bool
}

// Downloader fetches one image. *download.Worker implements it.
type Downloader interface {
	Fetch(ctx context.Context, imageURL, destPath string) download.Outcome
}

// PageFetcher fetches one HTML page. *Fetcher implements it.
type PageFetcher interface {
	Fetch(ctx context.Context, pageURL string) (*Page, error)
}

// Canceller reports whether a graceful shutdown was requested.
type Canceller interface {
	Requested() bool
}

// Task crawls seed sites. A Task holds no per-seed state; Crawl may be
// called concurrently for different seeds.
type Task struct {
	pages      PageFetcher
	gate       Gate
	downloader Downloader
	shutdown   Canceller
	outputDir  string
	extensions []string
	logger     *slog.Logger
}

// TaskOption configures a Task.
type TaskOption func(*Task)

// WithExtensions restricts downloads to image URLs whose path ends with one
// of exts (lowercase, with leading dot). An empty list accepts every image.
func WithExtensions(exts []string) TaskOption {
	return func(t *Task) { t.extensions = exts }
}

// WithTaskLogger sets the logger.
func WithTaskLogger(l *slog.Logger) TaskOption {
	return func(t *Task) { t.logger = l }
}

// NewTask creates a Task that writes images into outputDir.
func NewTask(pages PageFetcher, gate Gate, downloader Downloader, shutdown Canceller, outputDir string, opts ...TaskOption) *Task {
	t := &Task{
		pages:      pages,
		gate:       gate,
		downloader: downloader,
		shutdown:   shutdown,
		outputDir:  outputDir,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Crawl processes seedURL depth-first: fetch a page, download all of its
// images, then descend into its same-origin links, in document order.
// maxDepth is the number of link levels followed below the seed; a
// negative value crawls nothing.
//
// Per-page and per-image failures are counted, never returned. When a
// shutdown is requested Crawl stops taking new pages and images and returns
// what it has; an image download already in flight completes.
func (t *Task) Crawl(ctx context.Context, seedURL string, maxDepth int) model.TaskResult {
	result := model.TaskResult{Seed: seedURL}

	if t.shutdown.Requested() {
		result.Skipped = true
		return result
	}
	if maxDepth < 0 {
		return result
	}

	seed, err := url.Parse(seedURL)
	if err != nil || (seed.Scheme != "http" && seed.Scheme != "https") || seed.Host == "" {
		t.logger.Warn("skipping seed", "seed", seedURL, "error", fmt.Errorf("%w: %s", ErrInvalidSeed, seedURL))
		result.Failed++
		return result
	}
	origin := originOf(seed)

	// LIFO frontier; children are pushed in reverse so they pop in
	// document order.
	frontier := []model.PageVisit{{URL: seedURL, Depth: maxDepth}}
	first := true

	for len(frontier) > 0 {
		if t.shutdown.Requested() || ctx.Err() != nil {
			break
		}

		visit := frontier[len(frontier)-1]
		frontier = frontier[:len(frontier)-1]

		if !t.gate.VisitPage(NormalizeURL(visit.URL)) {
			continue
		}

		page, err := t.pages.Fetch(ctx, visit.URL)
		if err != nil {
			t.logger.Warn("page fetch failed", "url", visit.URL, "error", err)
			result.Failed++
			continue
		}

		parser, err := NewParser(page.FinalURL)
		if err != nil {
			result.Failed++
			continue
		}
		parsed, err := parser.Parse(bytes.NewReader(page.Body))
		if err != nil {
			t.logger.Warn("page parse failed", "url", visit.URL, "error", err)
			result.Failed++
			continue
		}
		result.Pages++

		if first {
			first = false
			// A seed that redirects (http to https, bare to www) defines
			// the origin by where it landed.
			if u, err := url.Parse(page.FinalURL); err == nil && u.Host != "" {
				origin = originOf(u)
			}
			t.gate.VisitPage(NormalizeURL(page.FinalURL))
		}

		t.downloadImages(ctx, visit.URL, parsed.Images, &result)

		if visit.Depth <= 0 || t.shutdown.Requested() {
			continue
		}
		children := t.sameOriginLinks(origin, parsed.Links)
		for i := len(children) - 1; i >= 0; i-- {
			frontier = append(frontier, model.PageVisit{URL: children[i], Depth: visit.Depth - 1})
		}
	}

	return result
}

// downloadImages runs every allowed image of one page through the gate and
// the downloader, updating result.
func (t *Task) downloadImages(ctx context.Context, pageURL string, images []string, result *model.TaskResult) {
	allowed := make([]model.ImageReference, 0, len(images))
	for _, img := range images {
		if t.allowedExtension(img) {
			allowed = append(allowed, model.ImageReference{URL: img, PageURL: pageURL})
		}
	}
	result.Found += len(allowed)

	for _, ref := range allowed {
		if t.shutdown.Requested() || ctx.Err() != nil {
			return
		}

		idx, ok := t.gate.Admit(ref.URL)
		if !ok {
			result.Duplicates++
			continue
		}

		dest := filepath.Join(t.outputDir, model.ImageFilename(idx, ref.URL))
		out := t.downloader.Fetch(ctx, ref.URL, dest)
		switch out.Status {
		case download.StatusSaved:
			result.Downloaded++
			result.Records = append(result.Records, model.MetadataRecord{
				Filename:    out.Info.Filename,
				ImageURL:    ref.URL,
				PageURL:     ref.PageURL,
				ContentHash: out.Hash,
			})
			result.Images = append(result.Images, out.Info)
			t.logger.Debug("image saved", "url", ref.URL, "file", out.Info.Filename)
		case download.StatusDuplicate:
			result.Duplicates++
		default:
			result.Failed++
			t.logger.Info("image download failed", "url", ref.URL, "error", out.Err)
		}
	}
}

// sameOriginLinks returns the links on origin (see originOf) that no task
// has visited yet.
func (t *Task) sameOriginLinks(origin string, links []string) []string {
	out := make([]string, 0, len(links))
	for _, link := range links {
		u, err := url.Parse(link)
		if err != nil || originOf(u) != origin {
			continue
		}
		if t.gate.Visited(NormalizeURL(link)) {
			continue
		}
		out = append(out, link)
	}
	return out
}

// allowedExtension matches the URL path suffix against the allow-list.
func (t *Task) allowedExtension(imageURL string) bool {
	if len(t.extensions) == 0 {
		return true
	}
	p := imageURL
	if u, err := url.Parse(imageURL); err == nil {
		p = u.Path
	}
	p = strings.ToLower(p)
	for _, ext := range t.extensions {
		if strings.HasSuffix(p, ext) {
			return true
		}
	}
	return false
}

// NormalizeURL returns the key used for the visited-page set: lowercase
// scheme and host, no default port, no fragment, and "/" for an empty path.
func NormalizeURL(pageURL string) string {
	u, err := url.Parse(pageURL)
	if err != nil {
		return pageURL
	}
	u.Fragment = ""
	u.RawFragment = ""
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = hostKey(u.Scheme, u.Host)
	if u.Path == "" {
		u.Path = "/"
	}
	return u.String()
}

// originOf returns the host:port a page belongs to, lowercased and without
// the scheme's default port, so http://h:80/ and http://h/ share an origin.
func originOf(u *url.URL) string {
	return hostKey(strings.ToLower(u.Scheme), u.Host)
}

// hostKey lowercases host and drops the default port of scheme.
func hostKey(scheme, host string) string {
	host = strings.ToLower(host)
	switch {
	case scheme == "http" && strings.HasSuffix(host, ":80"):
		return strings.TrimSuffix(host, ":80")
	case scheme == "https" && strings.HasSuffix(host, ":443"):
		return strings.TrimSuffix(host, ":443")
	}
	return host
}
