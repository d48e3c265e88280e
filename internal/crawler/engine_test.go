package crawler_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"guidecrawler/internal/crawler"
	"guidecrawler/internal/extract"
	"guidecrawler/internal/render"
)

type fakePage struct {
	html     string
	finalURL string
}

// fakeLoader serves canned pages keyed by canonical URL and records every
// load it is asked for.
type fakeLoader struct {
	pages map[string]fakePage
	errs  map[string]error
	loads []string
}

func (l *fakeLoader) Load(_ context.Context, url string) (*render.Page, error) {
	l.loads = append(l.loads, url)
	if err, ok := l.errs[url]; ok {
		return nil, err
	}
	p, ok := l.pages[url]
	if !ok {
		return nil, fmt.Errorf("no such page: %s", url)
	}
	final := p.finalURL
	if final == "" {
		final = url
	}
	return render.NewPage(url, final, 200, p.html)
}

func newTestEngine(cfg crawler.EngineConfig, loader crawler.Loader) *crawler.Engine {
	extractor := extract.New(extract.DefaultConfig())
	return crawler.NewEngine(cfg, loader, extractor.Extract, zap.NewNop())
}

func collectRecords(t *testing.T, engine *crawler.Engine) []crawler.PageRecord {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var out []crawler.PageRecord
	for record := range engine.Records(ctx) {
		out = append(out, record)
	}
	return out
}

func pageWithLinks(hrefs ...string) string {
	body := ""
	for _, h := range hrefs {
		body += fmt.Sprintf(`<a href=%q>link</a>`, h)
	}
	return "<html><head><title>t</title></head><body>" + body + "</body></html>"
}

func TestEngineStaysInScope(t *testing.T) {
	t.Parallel()

	loader := &fakeLoader{pages: map[string]fakePage{
		"https://ex.com/a": {html: pageWithLinks("https://ex.com/b", "https://other.com/x")},
		"https://ex.com/b": {html: pageWithLinks()},
	}}
	engine := newTestEngine(crawler.EngineConfig{
		StartURL:    "https://ex.com/a",
		ScopePrefix: "https://ex.com",
		MaxDepth:    1,
		MaxPages:    10,
	}, loader)

	records := collectRecords(t, engine)
	require.Len(t, records, 2)

	require.Equal(t, "https://ex.com/a", records[0].URL)
	require.Empty(t, records[0].ParentURL)
	require.Equal(t, 0, records[0].Depth)

	require.Equal(t, "https://ex.com/b", records[1].URL)
	require.Equal(t, "https://ex.com/a", records[1].ParentURL)
	require.Equal(t, 1, records[1].Depth)

	require.NotContains(t, loader.loads, "https://other.com/x", "out-of-scope link must never be fetched")
}

func TestEngineHonorsPageBudget(t *testing.T) {
	t.Parallel()

	loader := &fakeLoader{pages: map[string]fakePage{
		"https://ex.com/a": {html: pageWithLinks(
			"https://ex.com/1", "https://ex.com/2", "https://ex.com/3",
			"https://ex.com/4", "https://ex.com/5",
		)},
	}}
	engine := newTestEngine(crawler.EngineConfig{
		StartURL:    "https://ex.com/a",
		ScopePrefix: "https://ex.com",
		MaxDepth:    -1,
		MaxPages:    1,
	}, loader)

	records := collectRecords(t, engine)
	require.Len(t, records, 1)
	require.Equal(t, "https://ex.com/a", records[0].URL)
	require.Equal(t, []string{"https://ex.com/a"}, loader.loads, "no children fetched once the budget is spent")
}

func TestEngineEmitsErrorRecordOnLoadFailure(t *testing.T) {
	t.Parallel()

	loader := &fakeLoader{
		pages: map[string]fakePage{},
		errs:  map[string]error{"https://ex.com/a": errors.New("navigation timeout")},
	}
	engine := newTestEngine(crawler.EngineConfig{
		StartURL:    "https://ex.com/a",
		ScopePrefix: "https://ex.com",
		MaxDepth:    -1,
		MaxPages:    10,
	}, loader)

	records := collectRecords(t, engine)
	require.Len(t, records, 1)

	rec := records[0]
	require.Equal(t, crawler.StatusError, rec.Status)
	require.Contains(t, rec.ErrorMsg, "navigation timeout")
	require.Empty(t, rec.FullText)
	require.Empty(t, rec.LinksOut)
	require.Equal(t, []string{"https://ex.com/a"}, loader.loads, "a failed page contributes nothing to the frontier")
}

func TestEngineErrorRecordOnOutOfScopeRedirect(t *testing.T) {
	t.Parallel()

	loader := &fakeLoader{pages: map[string]fakePage{
		"https://ex.com/a": {
			html:     pageWithLinks("https://ex.com/b"),
			finalURL: "https://login.other.com/sso",
		},
	}}
	engine := newTestEngine(crawler.EngineConfig{
		StartURL:    "https://ex.com/a",
		ScopePrefix: "https://ex.com",
		MaxDepth:    -1,
		MaxPages:    10,
	}, loader)

	records := collectRecords(t, engine)
	require.Len(t, records, 1)
	require.Equal(t, crawler.StatusError, records[0].Status)
	require.Contains(t, records[0].ErrorMsg, "redirected outside scope")
}

func TestEngineVisitsLinksInDocumentOrder(t *testing.T) {
	t.Parallel()

	loader := &fakeLoader{pages: map[string]fakePage{
		"https://ex.com/a": {html: pageWithLinks("https://ex.com/1", "https://ex.com/2")},
		"https://ex.com/1": {html: pageWithLinks()},
		"https://ex.com/2": {html: pageWithLinks()},
	}}
	engine := newTestEngine(crawler.EngineConfig{
		StartURL:    "https://ex.com/a",
		ScopePrefix: "https://ex.com",
		MaxDepth:    1,
		MaxPages:    10,
	}, loader)

	records := collectRecords(t, engine)
	require.Len(t, records, 3)
	require.Equal(t, "https://ex.com/a", records[0].URL)
	require.Equal(t, "https://ex.com/1", records[1].URL)
	require.Equal(t, "https://ex.com/2", records[2].URL)
}

func TestEngineNeverRevisits(t *testing.T) {
	t.Parallel()

	// a and b link to each other and both link back to a.
	loader := &fakeLoader{pages: map[string]fakePage{
		"https://ex.com/a": {html: pageWithLinks("https://ex.com/b", "https://ex.com/a")},
		"https://ex.com/b": {html: pageWithLinks("https://ex.com/a", "https://ex.com/b")},
	}}
	engine := newTestEngine(crawler.EngineConfig{
		StartURL:    "https://ex.com/a",
		ScopePrefix: "https://ex.com",
		MaxDepth:    -1,
		MaxPages:    10,
	}, loader)

	records := collectRecords(t, engine)
	require.Len(t, records, 2)

	seen := make(map[string]int)
	for _, rec := range records {
		seen[rec.URL]++
	}
	for url, n := range seen {
		require.Equal(t, 1, n, "url %s emitted more than once", url)
	}
}

func TestEngineDepthLimit(t *testing.T) {
	t.Parallel()

	loader := &fakeLoader{pages: map[string]fakePage{
		"https://ex.com/a": {html: pageWithLinks("https://ex.com/b")},
		"https://ex.com/b": {html: pageWithLinks("https://ex.com/c")},
		"https://ex.com/c": {html: pageWithLinks("https://ex.com/d")},
		"https://ex.com/d": {html: pageWithLinks()},
	}}

	t.Run("depth zero crawls only the root", func(t *testing.T) {
		l := &fakeLoader{pages: loader.pages}
		engine := newTestEngine(crawler.EngineConfig{
			StartURL:    "https://ex.com/a",
			ScopePrefix: "https://ex.com",
			MaxDepth:    0,
			MaxPages:    10,
		}, l)
		records := collectRecords(t, engine)
		require.Len(t, records, 1)
	})

	t.Run("unlimited depth follows the whole chain", func(t *testing.T) {
		l := &fakeLoader{pages: loader.pages}
		engine := newTestEngine(crawler.EngineConfig{
			StartURL:    "https://ex.com/a",
			ScopePrefix: "https://ex.com",
			MaxDepth:    -1,
			MaxPages:    10,
		}, l)
		records := collectRecords(t, engine)
		require.Len(t, records, 4)
		for i, rec := range records {
			require.Equal(t, i, rec.Depth)
		}
	})

	t.Run("bounded depth never exceeds the limit", func(t *testing.T) {
		l := &fakeLoader{pages: loader.pages}
		engine := newTestEngine(crawler.EngineConfig{
			StartURL:    "https://ex.com/a",
			ScopePrefix: "https://ex.com",
			MaxDepth:    2,
			MaxPages:    10,
		}, l)
		records := collectRecords(t, engine)
		require.Len(t, records, 3)
		for _, rec := range records {
			require.LessOrEqual(t, rec.Depth, 2)
		}
	})
}

func TestEngineSkipURLContains(t *testing.T) {
	t.Parallel()

	loader := &fakeLoader{pages: map[string]fakePage{
		"https://ex.com/a":       {html: pageWithLinks("https://ex.com/keep", "https://ex.com/admin/x")},
		"https://ex.com/keep":    {html: pageWithLinks()},
		"https://ex.com/admin/x": {html: pageWithLinks()},
	}}
	engine := newTestEngine(crawler.EngineConfig{
		StartURL:        "https://ex.com/a",
		ScopePrefix:     "https://ex.com",
		MaxDepth:        -1,
		MaxPages:        10,
		SkipURLContains: []string{"/admin/"},
	}, loader)

	records := collectRecords(t, engine)
	require.Len(t, records, 2)
	require.NotContains(t, loader.loads, "https://ex.com/admin/x")
}

func TestEngineCancellationStopsStream(t *testing.T) {
	t.Parallel()

	loader := &fakeLoader{pages: map[string]fakePage{
		"https://ex.com/a": {html: pageWithLinks("https://ex.com/b")},
		"https://ex.com/b": {html: pageWithLinks("https://ex.com/c")},
		"https://ex.com/c": {html: pageWithLinks()},
	}}
	engine := newTestEngine(crawler.EngineConfig{
		StartURL:    "https://ex.com/a",
		ScopePrefix: "https://ex.com",
		MaxDepth:    -1,
		MaxPages:    100,
	}, loader)

	ctx, cancel := context.WithCancel(context.Background())
	records := engine.Records(ctx)

	first, ok := <-records
	require.True(t, ok)
	require.Equal(t, "https://ex.com/a", first.URL)
	cancel()

	for range records {
		// drain until the engine notices the cancellation
	}
}

func TestEngineRecordsScopeProperty(t *testing.T) {
	t.Parallel()

	loader := &fakeLoader{pages: map[string]fakePage{
		"https://ex.com/a": {html: pageWithLinks("https://ex.com/b", "https://cdn.ex.net/img")},
		"https://ex.com/b": {html: pageWithLinks()},
	}}
	engine := newTestEngine(crawler.EngineConfig{
		StartURL:    "https://ex.com/a",
		ScopePrefix: "https://ex.com",
		MaxDepth:    -1,
		MaxPages:    10,
	}, loader)

	for _, rec := range collectRecords(t, engine) {
		norm, err := crawler.NormalizeURL(rec.URL)
		require.NoError(t, err)
		require.True(t, crawler.InScope(norm, "https://ex.com"), "emitted record %s escaped scope", rec.URL)
	}
}

func TestEngineAcceptsTrailingSlashScopePrefix(t *testing.T) {
	t.Parallel()

	loader := &fakeLoader{pages: map[string]fakePage{
		"https://ex.com/guides":   {html: pageWithLinks("/guides/a")},
		"https://ex.com/guides/a": {html: pageWithLinks()},
	}}
	engine := newTestEngine(crawler.EngineConfig{
		StartURL:    "https://ex.com/guides/",
		ScopePrefix: "https://ex.com/guides/",
		MaxDepth:    -1,
		MaxPages:    10,
	}, loader)

	records := collectRecords(t, engine)
	require.Len(t, records, 2)
	require.Equal(t, "https://ex.com/guides", records[0].URL)
	require.Equal(t, crawler.StatusOK, records[0].Status,
		"the scope root must not be treated as an out-of-scope redirect")
	require.Equal(t, "https://ex.com/guides/a", records[1].URL)
}
