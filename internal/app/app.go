// Package app wires configuration, the traversal engine and the persistence
// sinks into one crawl run.
package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"guidecrawler/internal/config"
	"guidecrawler/internal/crawler"
	"guidecrawler/internal/extract"
	"guidecrawler/internal/render"
	"guidecrawler/internal/sink"
)

// recordSink adapts each enabled sink to a uniform per-record write call.
type recordSink interface {
	Write(ctx context.Context, record crawler.PageRecord) error
}

type documentRecordSink struct {
	doc *sink.DocumentSink
}

func (s *documentRecordSink) Write(_ context.Context, record crawler.PageRecord) error {
	if err := s.doc.Write(record); err != nil {
		return fmt.Errorf("document sink: %w", err)
	}
	return nil
}

type relationalRecordSink struct {
	pg          *sink.PostgresSink
	scopePrefix string
}

func (s *relationalRecordSink) Write(ctx context.Context, record crawler.PageRecord) error {
	if err := s.pg.Upsert(ctx, record, s.scopePrefix); err != nil {
		return fmt.Errorf("relational sink: %w", err)
	}
	return nil
}

// Run executes one crawl: it starts the browser, opens the enabled sinks,
// drains the engine's record stream and routes every record to every enabled
// sink. Persistence failures are fatal: the first sink error cancels the
// crawl and is returned. Per-page load failures are not errors; they surface
// as status=error records.
func Run(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	renderer, err := render.NewRenderer(render.Config{
		Headless:          cfg.Browser.Headless,
		NavTimeout:        cfg.Browser.NavTimeout,
		IgnoreHTTPSErrors: cfg.Browser.IgnoreHTTPSErrors,
	}, logger.Named("render"))
	if err != nil {
		return fmt.Errorf("init renderer: %w", err)
	}
	defer func() {
		if cerr := renderer.Close(ctx); cerr != nil {
			logger.Warn("Failed to close renderer", zap.Error(cerr))
		}
	}()

	return run(ctx, cfg, logger, renderer)
}

// run is separated from Run so tests can inject a fake loader.
func run(ctx context.Context, cfg config.Config, logger *zap.Logger, loader crawler.Loader) (err error) {
	var sinks []recordSink

	if cfg.Output.DocumentPath != "" {
		doc, derr := sink.OpenDocument(cfg.Output.DocumentPath)
		if derr != nil {
			return fmt.Errorf("open document sink: %w", derr)
		}
		defer func() {
			if cerr := doc.Close(); cerr != nil && err == nil {
				err = fmt.Errorf("close document sink: %w", cerr)
			}
		}()
		sinks = append(sinks, &documentRecordSink{doc: doc})
	}

	if cfg.Relational.Enabled {
		pg, perr := sink.NewPostgresSink(ctx, cfg.Relational.ConnectionString, cfg.Relational.MaxConns)
		if perr != nil {
			return fmt.Errorf("open relational sink: %w", perr)
		}
		defer pg.Close()
		if ierr := pg.Init(ctx); ierr != nil {
			return fmt.Errorf("init relational schema: %w", ierr)
		}
		sinks = append(sinks, &relationalRecordSink{pg: pg, scopePrefix: cfg.Crawler.ScopePrefix})
	}

	extractor := extract.New(extract.Config{
		ContentSelectors: cfg.Extract.ContentSelectors,
		SectionSelector:  cfg.Extract.SectionSelector,
	})
	engine := crawler.NewEngine(crawler.EngineConfig{
		StartURL:        cfg.Crawler.StartURL,
		ScopePrefix:     cfg.Crawler.ScopePrefix,
		MaxDepth:        cfg.Crawler.MaxDepth,
		MaxPages:        cfg.Crawler.MaxPages,
		PoliteDelay:     cfg.Crawler.PoliteDelay,
		SkipURLContains: cfg.Crawler.SkipURLContains,
	}, loader, extractor.Extract, logger.Named("crawler"))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	started := time.Now()
	count, sinkErr := pump(ctx, cancel, engine.Records(ctx), sinks)
	if sinkErr != nil {
		return sinkErr
	}

	fields := []zap.Field{
		zap.Int("pages", count),
		zap.Duration("elapsed", time.Since(started)),
		zap.String("output", cfg.Output.DocumentPath),
	}
	if snap, gerr := crawler.Snapshot(); gerr == nil {
		fields = append(fields,
			zap.Float64("pages_total", snap.Pages),
			zap.Float64("page_errors_total", snap.PageErrors),
			zap.Float64("document_writes_total", snap.DocumentWrites),
			zap.Float64("upserts_total", snap.Upserts),
		)
	} else {
		logger.Warn("Failed to gather metrics", zap.Error(gerr))
	}
	logger.Info("Crawl complete", fields...)
	return nil
}

// pump consumes the record stream, routing each record to every sink. The
// first sink error cancels the stream and drains it so the engine goroutine
// exits; no further records are persisted after a failure.
func pump(ctx context.Context, cancel context.CancelFunc, records <-chan crawler.PageRecord, sinks []recordSink) (int, error) {
	count := 0
	for record := range records {
		count++
		for _, s := range sinks {
			if err := s.Write(ctx, record); err != nil {
				cancel()
				for range records {
					// drain so the engine goroutine exits
				}
				return count, err
			}
		}
	}
	return count, nil
}
