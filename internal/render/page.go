// Package render loads URLs in a headless browser and exposes the rendered
// DOM as a queryable document.
package render

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Page is a single loaded page handle. It performs no navigation; the
// extractor consumes it read-only.
type Page struct {
	// URL is the canonical URL that was requested.
	URL string
	// FinalURL is the URL after any redirects.
	FinalURL string
	// StatusCode is the HTTP status of the document response, when observed.
	StatusCode int
	// Doc is the rendered DOM.
	Doc *goquery.Document

	base *url.URL
}

// NewPage parses rendered HTML into a page handle.
func NewPage(rawURL, finalURL string, statusCode int, html string) (*Page, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse rendered html: %w", err)
	}
	base, err := url.Parse(finalURL)
	if err != nil {
		base, err = url.Parse(rawURL)
		if err != nil {
			return nil, fmt.Errorf("parse page url: %w", err)
		}
	}
	return &Page{
		URL:        rawURL,
		FinalURL:   finalURL,
		StatusCode: statusCode,
		Doc:        doc,
		base:       base,
	}, nil
}

// Resolve turns a possibly relative reference into an absolute URL against
// the page's final location.
func (p *Page) Resolve(ref string) (string, error) {
	parsed, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return "", fmt.Errorf("parse href %q: %w", ref, err)
	}
	return p.base.ResolveReference(parsed).String(), nil
}
