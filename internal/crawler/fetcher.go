package crawler

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"golang.org/x/net/html/charset"

	"github.com/imcrawler/imcrawler/internal/config"
)

// Getter performs HTTP GET requests. *transport.Client implements it.
type Getter interface {
	Get(ctx context.Context, rawURL string) (*http.Response, error)
}

// Page is a fetched HTML page.
type Page struct {
	// URL is the URL that was requested.
	URL string

	// FinalURL is the URL after redirects; relative links resolve against it.
	FinalURL string

	// Body is the page decoded to UTF-8.
	Body []byte
}

// Fetcher retrieves HTML pages.
type Fetcher struct {
	client      Getter
	maxBodySize int64
}

// NewFetcher creates a Fetcher. maxBodySize caps how much of a page is
// read; zero selects config.DefaultMaxPageSize.
func NewFetcher(client Getter, maxBodySize int64) *Fetcher {
	if maxBodySize <= 0 {
		maxBodySize = config.DefaultMaxPageSize
	}
	return &Fetcher{client: client, maxBodySize: maxBodySize}
}

// Fetch downloads pageURL and decodes it to UTF-8 using the charset from
// the Content-Type header or the document's <meta> declaration.
// Bodies larger than the limit are truncated, not rejected.
func (f *Fetcher) Fetch(ctx context.Context, pageURL string) (*Page, error) {
	resp, err := f.client.Get(ctx, pageURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch page: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck // response body

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %d", ErrBadStatus, resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	if !isHTML(contentType) {
		return nil, fmt.Errorf("%w: %s", ErrNotHTML, contentType)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("failed to read page body: %w", err)
	}

	body := raw
	if r, err := charset.NewReader(bytes.NewReader(raw), contentType); err == nil {
		if decoded, err := io.ReadAll(r); err == nil {
			body = decoded
		}
	}

	final := pageURL
	if resp.Request != nil && resp.Request.URL != nil {
		final = resp.Request.URL.String()
	}

	return &Page{URL: pageURL, FinalURL: final, Body: body}, nil
}

// isHTML accepts HTML and XHTML, and a missing Content-Type.
func isHTML(contentType string) bool {
	if contentType == "" {
		return true
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.Contains(strings.ToLower(contentType), "html")
	}
	return mediaType == "text/html" || mediaType == "application/xhtml+xml"
}
