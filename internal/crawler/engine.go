package crawler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// EngineConfig holds the settings for one crawl run. It is immutable once
// constructed; the engine never writes to it.
type EngineConfig struct {
	StartURL        string
	ScopePrefix     string
	MaxDepth        int // -1 means unlimited
	MaxPages        int
	PoliteDelay     time.Duration
	SkipURLContains []string
}

// Engine drives a depth-first traversal of the scope. It exclusively owns the
// frontier stack and the visited set; neither survives the run.
type Engine struct {
	cfg     EngineConfig
	loader  Loader
	extract ExtractFunc
	pause   pauseController
	logger  *zap.Logger
}

// NewEngine wires a traversal engine. The extractor is injected so the engine
// only ever sees finished records.
func NewEngine(cfg EngineConfig, loader Loader, extract ExtractFunc, logger *zap.Logger) *Engine {
	// Scope checks compare normalized URLs against the prefix, so the prefix
	// itself must be in normalized form. An unparseable prefix is kept as-is
	// and simply never matches.
	if scope, err := NormalizeURL(cfg.ScopePrefix); err == nil {
		cfg.ScopePrefix = scope
	}
	return &Engine{
		cfg:     cfg,
		loader:  loader,
		extract: extract,
		pause:   &timerPauseController{},
		logger:  logger,
	}
}

// Records starts the crawl and returns the record stream. The channel is
// unbuffered, closes when the frontier empties or the page budget is spent,
// and must be consumed exactly once. Canceling ctx stops the run.
func (e *Engine) Records(ctx context.Context) <-chan PageRecord {
	out := make(chan PageRecord)
	go func() {
		defer close(out)
		e.run(ctx, out)
	}()
	return out
}

func (e *Engine) run(ctx context.Context, out chan<- PageRecord) {
	start, err := NormalizeURL(e.cfg.StartURL)
	if err != nil {
		e.logger.Error("Invalid start URL", zap.String("url", e.cfg.StartURL), zap.Error(err))
		return
	}

	stack := []frontierEntry{{url: start, depth: 0}}
	visited := make(map[string]struct{})
	emitted := 0

	for len(stack) > 0 && emitted < e.cfg.MaxPages {
		if ctx.Err() != nil {
			return
		}

		entry := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if _, seen := visited[entry.url]; seen {
			continue
		}
		visited[entry.url] = struct{}{}

		record := e.visit(ctx, entry)
		emitted++
		TotalPages.Inc()

		select {
		case out <- record:
		case <-ctx.Done():
			return
		}

		if record.Status == StatusOK && (e.cfg.MaxDepth == -1 || entry.depth < e.cfg.MaxDepth) {
			stack = e.pushChildren(stack, entry, record.LinksOut, visited)
		}

		e.pause.Pause(ctx, e.cfg.PoliteDelay)
	}
}

// visit loads one frontier entry and produces exactly one record for it.
func (e *Engine) visit(ctx context.Context, entry frontierEntry) PageRecord {
	page, err := e.loader.Load(ctx, entry.url)
	if err != nil {
		e.logger.Warn("Page load failed",
			zap.String("url", entry.url),
			zap.Int("depth", entry.depth),
			zap.Error(err),
		)
		TotalPageErrors.Inc()
		return NewErrorRecord(entry.url, entry.parentURL, entry.depth, time.Now().UTC(), err.Error())
	}

	if final, nerr := NormalizeURL(page.FinalURL); nerr == nil && !InScope(final, e.cfg.ScopePrefix) {
		e.logger.Warn("Redirected outside scope",
			zap.String("url", entry.url),
			zap.String("final_url", page.FinalURL),
		)
		TotalPageErrors.Inc()
		msg := fmt.Sprintf("redirected outside scope to %s", page.FinalURL)
		return NewErrorRecord(entry.url, entry.parentURL, entry.depth, time.Now().UTC(), msg)
	}

	record := e.extract(page, entry.url, entry.parentURL, entry.depth)
	e.logger.Info("Crawled page",
		zap.String("url", entry.url),
		zap.Int("depth", entry.depth),
		zap.Int("links_out", len(record.LinksOut)),
	)
	return record
}

// pushChildren enqueues in-scope, unvisited links. Links are pushed in reverse
// document order so the LIFO stack explores them in encounter order.
func (e *Engine) pushChildren(stack []frontierEntry, parent frontierEntry, links []string, visited map[string]struct{}) []frontierEntry {
	for i := len(links) - 1; i >= 0; i-- {
		norm, err := NormalizeURL(links[i])
		if err != nil {
			continue
		}
		if !InScope(norm, e.cfg.ScopePrefix) {
			continue
		}
		if _, seen := visited[norm]; seen {
			continue
		}
		if e.skipURL(norm) {
			continue
		}
		stack = append(stack, frontierEntry{
			url:       norm,
			parentURL: parent.url,
			depth:     parent.depth + 1,
		})
	}
	return stack
}

func (e *Engine) skipURL(norm string) bool {
	for _, s := range e.cfg.SkipURLContains {
		if s != "" && strings.Contains(norm, s) {
			return true
		}
	}
	return false
}
