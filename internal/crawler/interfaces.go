package crawler

import (
	"context"

	"guidecrawler/internal/render"
)

// Loader is the rendering capability consumed by the engine. Load fails with
// an error on navigation problems or timeouts.
type Loader interface {
	Load(ctx context.Context, url string) (*render.Page, error)
}

// ExtractFunc turns a loaded page plus crawl metadata into a record. It is
// injected as a strategy so the engine carries no extraction logic.
type ExtractFunc func(page *render.Page, url, parentURL string, depth int) PageRecord
