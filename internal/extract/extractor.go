// Package extract turns a loaded page into a structured PageRecord.
package extract

import (
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"guidecrawler/internal/crawler"
	"guidecrawler/internal/render"
)

// Default selectors target LibGuides-style pages; both are configurable.
var (
	// DefaultContentSelectors is the ordered main-content fallback chain.
	DefaultContentSelectors = []string{"#s-lg-content", `[role="main"]`, ".s-lg-content-col"}
	// DefaultSectionSelector matches the content "box" containers.
	DefaultSectionSelector = ".s-lib-box"
)

const sectionLinkContextMax = 300

var whitespaceRun = regexp.MustCompile(`\s+`)

// Config controls which selectors the extractor looks for.
type Config struct {
	// ContentSelectors are tried in order; the first match becomes the
	// content root. The page body is the final fallback.
	ContentSelectors []string
	// SectionSelector matches the explicit content boxes that produce
	// sections.
	SectionSelector string
}

// DefaultConfig returns the selector set for LibGuides-style sites.
func DefaultConfig() Config {
	return Config{
		ContentSelectors: DefaultContentSelectors,
		SectionSelector:  DefaultSectionSelector,
	}
}

// Extractor reads a rendered page into a PageRecord. It never fails: missing
// optional content degrades gracefully and the record still comes back ok.
type Extractor struct {
	cfg Config
	now func() time.Time
}

// New builds an extractor, filling in default selectors where unset.
func New(cfg Config) *Extractor {
	if len(cfg.ContentSelectors) == 0 {
		cfg.ContentSelectors = DefaultContentSelectors
	}
	if cfg.SectionSelector == "" {
		cfg.SectionSelector = DefaultSectionSelector
	}
	return &Extractor{cfg: cfg, now: time.Now}
}

// Extract produces the record for one loaded page. It operates on the page
// handle only and performs no navigation.
func (x *Extractor) Extract(page *render.Page, pageURL, parentURL string, depth int) crawler.PageRecord {
	root := x.contentRoot(page.Doc)

	record := crawler.PageRecord{
		URL:       pageURL,
		ParentURL: parentURL,
		Depth:     depth,
		CrawledAt: x.now().UTC(),
		Status:    crawler.StatusOK,
	}

	record.Title = collapseWhitespace(page.Doc.Find("title").First().Text())
	if desc, ok := page.Doc.Find(`meta[name="description"]`).Attr("content"); ok {
		record.MetaDescription = strings.TrimSpace(desc)
	}

	record.FullText = collapseWhitespace(root.Text())
	record.Headings = headings(root)
	record.Sections = x.sections(root, page)
	record.Paragraphs = []string{}
	if len(record.Sections) == 0 {
		record.Paragraphs = paragraphs(root)
	}
	record.Tables = tables(root)
	record.LinksOut = linksOut(page)
	record.Images = images(page)

	return record
}

// contentRoot resolves the main content element. First selector match wins;
// the roots are never merged.
func (x *Extractor) contentRoot(doc *goquery.Document) *goquery.Selection {
	for _, selector := range x.cfg.ContentSelectors {
		if sel := doc.Find(selector); sel.Length() > 0 {
			return sel.First()
		}
	}
	if body := doc.Find("body"); body.Length() > 0 {
		return body.First()
	}
	return doc.Selection
}

func headings(root *goquery.Selection) []crawler.Heading {
	out := []crawler.Heading{}
	root.Find("h1, h2, h3, h4").Each(func(_ int, s *goquery.Selection) {
		text := collapseWhitespace(s.Text())
		if text == "" {
			return
		}
		level := int(goquery.NodeName(s)[1] - '0')
		out = append(out, crawler.Heading{Level: level, Text: text})
	})
	return out
}

func (x *Extractor) sections(root *goquery.Selection, page *render.Page) []crawler.Section {
	out := []crawler.Section{}
	root.Find(x.cfg.SectionSelector).Each(func(_ int, box *goquery.Selection) {
		section := crawler.Section{
			Title: collapseWhitespace(box.Find(`h2, h3, h4, h5, [class*="title"]`).First().Text()),
			Text:  collapseWhitespace(box.Text()),
			Links: []crawler.SectionLink{},
		}
		box.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
			href, _ := a.Attr("href")
			abs, err := page.Resolve(href)
			if err != nil || abs == "" {
				return
			}
			section.Links = append(section.Links, crawler.SectionLink{
				Href:    abs,
				Text:    collapseWhitespace(a.Text()),
				Context: truncate(collapseWhitespace(a.Closest("p, li, div").Text()), sectionLinkContextMax),
			})
		})
		out = append(out, section)
	})
	return out
}

func paragraphs(root *goquery.Selection) []string {
	out := []string{}
	root.Find("p, li").Each(func(_ int, s *goquery.Selection) {
		if text := collapseWhitespace(s.Text()); text != "" {
			out = append(out, text)
		}
	})
	return out
}

// tables preserves source row and column order; header cells become the
// first row when present.
func tables(root *goquery.Selection) []crawler.Table {
	out := []crawler.Table{}
	root.Find("table").Each(func(_ int, table *goquery.Selection) {
		matrix := crawler.Table{}
		table.Find("tr").Each(func(_ int, tr *goquery.Selection) {
			row := []string{}
			tr.Find("th, td").Each(func(_ int, cell *goquery.Selection) {
				row = append(row, collapseWhitespace(cell.Text()))
			})
			if len(row) > 0 {
				matrix = append(matrix, row)
			}
		})
		out = append(out, matrix)
	})
	return out
}

// linksOut collects every anchor on the page, absolute and canonical, with
// in-page duplicates collapsed.
func linksOut(page *render.Page) []string {
	seen := make(map[string]struct{})
	out := []string{}
	page.Doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		if strings.TrimSpace(href) == "" {
			return
		}
		abs, err := page.Resolve(href)
		if err != nil {
			return
		}
		norm, err := crawler.NormalizeURL(abs)
		if err != nil {
			return
		}
		if _, dup := seen[norm]; dup {
			return
		}
		seen[norm] = struct{}{}
		out = append(out, norm)
	})
	return out
}

func images(page *render.Page) []crawler.Image {
	out := []crawler.Image{}
	page.Doc.Find("img").Each(func(_ int, img *goquery.Selection) {
		src, _ := img.Attr("src")
		if strings.TrimSpace(src) == "" {
			return
		}
		abs, err := page.Resolve(src)
		if err != nil {
			return
		}
		alt, _ := img.Attr("alt")
		out = append(out, crawler.Image{Src: abs, Alt: strings.TrimSpace(alt)})
	})
	return out
}

func collapseWhitespace(text string) string {
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(text, " "))
}

func truncate(text string, max int) string {
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	return string(runes[:max])
}
