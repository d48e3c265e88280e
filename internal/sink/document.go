// Package sink implements the persistence sinks records are routed to: an
// incremental JSON array file and an idempotent Postgres table.
package sink

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"guidecrawler/internal/crawler"
)

// DocumentSink appends records to a single JSON array file. Each Write is
// flushed to disk before it returns, so a crash between writes leaves a
// well-formed array prefix that only misses its closing bracket.
// Single writer only.
type DocumentSink struct {
	file  *os.File
	wrote bool
}

// OpenDocument creates the output file and writes the opening delimiter.
func OpenDocument(path string) (*DocumentSink, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create output dir %s: %w", dir, err)
		}
	}
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create document file %s: %w", path, err)
	}
	if _, err := file.WriteString("[\n"); err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("write array open: %w", err)
	}
	return &DocumentSink{file: file}, nil
}

// Write appends one record, separator first so the stream never ends
// mid-record.
func (s *DocumentSink) Write(record crawler.PageRecord) error {
	payload, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal record %s: %w", record.URL, err)
	}
	if s.wrote {
		if _, err := s.file.WriteString(",\n"); err != nil {
			return fmt.Errorf("write record separator: %w", err)
		}
	}
	if _, err := s.file.Write(payload); err != nil {
		return fmt.Errorf("write record %s: %w", record.URL, err)
	}
	s.wrote = true
	if err := s.file.Sync(); err != nil {
		return fmt.Errorf("sync document file: %w", err)
	}
	crawler.TotalDocumentWrites.Inc()
	return nil
}

// Close writes the closing delimiter; the file is a valid JSON array only
// after Close returns nil.
func (s *DocumentSink) Close() error {
	if _, err := s.file.WriteString("\n]\n"); err != nil {
		_ = s.file.Close()
		return fmt.Errorf("write array close: %w", err)
	}
	if err := s.file.Close(); err != nil {
		return fmt.Errorf("close document file: %w", err)
	}
	return nil
}
