package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"guidecrawler/internal/crawler"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS crawl_pages (
	scope_prefix     TEXT NOT NULL,
	url              TEXT NOT NULL,
	parent_url       TEXT,
	depth            INT NOT NULL,
	crawled_at       TIMESTAMPTZ NOT NULL,
	title            TEXT,
	meta_description TEXT,
	full_text        TEXT,
	headings         JSON,
	sections         JSON,
	paragraphs       JSON,
	tables           JSON,
	links_out        JSON,
	images           JSON,
	status           TEXT NOT NULL,
	error_msg        TEXT,
	PRIMARY KEY (scope_prefix, url)
);

CREATE INDEX IF NOT EXISTS crawl_pages_scope_depth_idx
	ON crawl_pages (scope_prefix, depth);

CREATE INDEX IF NOT EXISTS crawl_pages_scope_parent_idx
	ON crawl_pages (scope_prefix, parent_url);
`

const upsertSQL = `
INSERT INTO crawl_pages (
	scope_prefix, url, parent_url, depth, crawled_at,
	title, meta_description, full_text, headings, sections,
	paragraphs, tables, links_out, images, status, error_msg
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
ON CONFLICT (scope_prefix, url) DO UPDATE SET
	parent_url = EXCLUDED.parent_url,
	depth = EXCLUDED.depth,
	crawled_at = EXCLUDED.crawled_at,
	title = EXCLUDED.title,
	meta_description = EXCLUDED.meta_description,
	full_text = EXCLUDED.full_text,
	headings = EXCLUDED.headings,
	sections = EXCLUDED.sections,
	paragraphs = EXCLUDED.paragraphs,
	tables = EXCLUDED.tables,
	links_out = EXCLUDED.links_out,
	images = EXCLUDED.images,
	status = EXCLUDED.status,
	error_msg = EXCLUDED.error_msg
`

type execCloser interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Close()
}

// PostgresSink writes records into the crawl_pages table keyed by
// (scope_prefix, url). Re-crawls overwrite rather than duplicate.
type PostgresSink struct {
	pool execCloser
}

// NewPostgresSink connects a pgx pool from the DSN.
func NewPostgresSink(ctx context.Context, dsn string, maxConns int32) (*PostgresSink, error) {
	if dsn == "" {
		return nil, fmt.Errorf("relational.connection_string is required")
	}
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if maxConns > 0 {
		poolCfg.MaxConns = maxConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &PostgresSink{pool: pool}, nil
}

// NewPostgresSinkWithPool constructs a sink from an existing pool (primarily
// for testing).
func NewPostgresSinkWithPool(pool execCloser) (*PostgresSink, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &PostgresSink{pool: pool}, nil
}

// Close releases the underlying pool resources.
func (s *PostgresSink) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Init idempotently ensures the table and its indexes exist. Safe to run on
// every start.
func (s *PostgresSink) Init(ctx context.Context) error {
	for _, stmt := range schemaStatements() {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

// Upsert inserts the record or overwrites every non-key column of the row
// with the same (scope_prefix, url), last write wins.
func (s *PostgresSink) Upsert(ctx context.Context, record crawler.PageRecord, scopePrefix string) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("postgres sink is not configured")
	}

	headings, err := jsonColumn(record.Headings)
	if err != nil {
		return fmt.Errorf("marshal headings: %w", err)
	}
	sections, err := jsonColumn(record.Sections)
	if err != nil {
		return fmt.Errorf("marshal sections: %w", err)
	}
	paragraphs, err := jsonColumn(record.Paragraphs)
	if err != nil {
		return fmt.Errorf("marshal paragraphs: %w", err)
	}
	tbls, err := jsonColumn(record.Tables)
	if err != nil {
		return fmt.Errorf("marshal tables: %w", err)
	}
	linksOut, err := jsonColumn(record.LinksOut)
	if err != nil {
		return fmt.Errorf("marshal links_out: %w", err)
	}
	imgs, err := jsonColumn(record.Images)
	if err != nil {
		return fmt.Errorf("marshal images: %w", err)
	}

	args := []any{
		scopePrefix,
		record.URL,
		nullString(record.ParentURL),
		record.Depth,
		record.CrawledAt,
		nullString(record.Title),
		nullString(record.MetaDescription),
		nullString(record.FullText),
		headings,
		sections,
		paragraphs,
		tbls,
		linksOut,
		imgs,
		string(record.Status),
		nullString(record.ErrorMsg),
	}
	if _, err := s.pool.Exec(ctx, upsertSQL, args...); err != nil {
		return fmt.Errorf("upsert %s: %w", record.URL, err)
	}
	crawler.TotalUpserts.Inc()
	return nil
}

// schemaStatements splits the schema into single statements.
func schemaStatements() []string {
	parts := strings.Split(schemaSQL, ";")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// jsonColumn serializes a slice for a JSON column; nil slices store NULL.
func jsonColumn(v any) (any, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	if string(payload) == "null" {
		return nil, nil
	}
	return payload, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
