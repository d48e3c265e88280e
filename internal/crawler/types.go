// Package crawler defines core types shared across subsystems.
package crawler

import (
	"time"
)

// Status reports whether a page was extracted or failed to load.
type Status string

// Record status values persisted by the sinks.
const (
	StatusOK    Status = "ok"
	StatusError Status = "error"
)

// Heading is one h1-h4 element tagged with its level.
type Heading struct {
	Level int    `json:"level"`
	Text  string `json:"text"`
}

// SectionLink is one anchor found inside a content box, with the text of its
// enclosing block for context.
type SectionLink struct {
	Href    string `json:"href"`
	Text    string `json:"text"`
	Context string `json:"context"`
}

// Section is one content box: its title, full text and the links it contains.
type Section struct {
	Title string        `json:"title"`
	Text  string        `json:"text"`
	Links []SectionLink `json:"links"`
}

// Table is a row-major text matrix in source order.
type Table [][]string

// Image is one img element's source and alt text.
type Image struct {
	Src string `json:"src"`
	Alt string `json:"alt"`
}

// PageRecord is one observation of one page at one crawl time. Exactly one
// record is emitted per crawl attempt of a URL; on a load failure every
// content field is empty and ErrorMsg is set.
type PageRecord struct {
	URL             string    `json:"url"`
	ParentURL       string    `json:"parent_url,omitempty"`
	Depth           int       `json:"depth"`
	CrawledAt       time.Time `json:"crawled_at"`
	Title           string    `json:"title"`
	MetaDescription string    `json:"meta_description"`
	FullText        string    `json:"full_text"`
	Headings        []Heading `json:"headings"`
	Sections        []Section `json:"sections"`
	Paragraphs      []string  `json:"paragraphs"`
	Tables          []Table   `json:"tables"`
	LinksOut        []string  `json:"links_out"`
	Images          []Image   `json:"images"`
	Status          Status    `json:"status"`
	ErrorMsg        string    `json:"error_msg,omitempty"`
}

// NewErrorRecord builds the record emitted when a page load fails.
func NewErrorRecord(url, parentURL string, depth int, at time.Time, msg string) PageRecord {
	return PageRecord{
		URL:       url,
		ParentURL: parentURL,
		Depth:     depth,
		CrawledAt: at,
		Status:    StatusError,
		ErrorMsg:  msg,
	}
}

// frontierEntry is one discovered-but-unvisited URL on the stack.
type frontierEntry struct {
	url       string
	parentURL string
	depth     int
}
