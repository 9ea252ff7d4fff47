package crawler

import (
	"io"
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

// Parser extracts image and link URLs from an HTML page.
type Parser struct {
	// baseURL is the URL relative references are resolved against.
	// A <base href> element in the document replaces it.
	baseURL *url.URL
}

// ParseResult contains the URLs found on one page, in document order.
type ParseResult struct {
	// Images are the resolved image URLs, one per <img> element.
	// Repeats are kept; deciding what is a duplicate is not the parser's job.
	Images []string

	// Links are the resolved <a href> targets, without repeats.
	Links []string
}

// NewParser creates a new HTML parser with the given base URL.
func NewParser(baseURL string) (*Parser, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}
	return &Parser{baseURL: u}, nil
}

// Parse parses HTML content and extracts image and link URLs.
// Only http and https URLs are returned, with fragments removed.
func (p *Parser) Parse(content io.Reader) (*ParseResult, error) {
	doc, err := html.Parse(content)
	if err != nil {
		return nil, err
	}

	result := &ParseResult{
		Images: make([]string, 0),
		Links:  make([]string, 0),
	}
	seenLinks := make(map[string]bool)
	baseSet := false

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "base":
				// Only the first <base href> counts.
				if href := getAttr(n, "href"); href != "" && !baseSet {
					if u, err := url.Parse(strings.TrimSpace(href)); err == nil {
						p.baseURL = p.baseURL.ResolveReference(u)
						baseSet = true
					}
				}

			case "img":
				if src := imageSource(n); src != "" {
					if resolved := p.resolveURL(src); resolved != "" {
						result.Images = append(result.Images, resolved)
					}
				}

			case "a":
				if href := getAttr(n, "href"); href != "" {
					if resolved := p.resolveURL(href); resolved != "" && !seenLinks[resolved] {
						seenLinks[resolved] = true
						result.Links = append(result.Links, resolved)
					}
				}
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}

	walk(doc)
	return result, nil
}

// imageSource returns the src of an <img>, falling back to data-src for
// lazy-loaded images whose src is empty or an inline placeholder.
func imageSource(n *html.Node) string {
	src := strings.TrimSpace(getAttr(n, "src"))
	if src == "" || hasPrefixFold(src, "data:") {
		if lazy := strings.TrimSpace(getAttr(n, "data-src")); lazy != "" {
			return lazy
		}
	}
	return src
}

// resolveURL resolves a reference against the base URL. It returns "" for
// references that do not point at a fetchable http(s) resource.
func (p *Parser) resolveURL(href string) string {
	href = strings.TrimSpace(href)
	if href == "" || href == "#" {
		return ""
	}
	for _, scheme := range []string{"javascript:", "mailto:", "tel:", "data:"} {
		if hasPrefixFold(href, scheme) {
			return ""
		}
	}

	u, err := url.Parse(href)
	if err != nil {
		return ""
	}

	resolved := p.baseURL.ResolveReference(u)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return ""
	}
	resolved.Fragment = ""
	resolved.RawFragment = ""
	return resolved.String()
}

func hasPrefixFold(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}

// getAttr retrieves an attribute value from an HTML node.
func getAttr(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}
