// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package store persists extracted fragments in SQLite and indexes their
// text for full-text search.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/curt/internal/extract"
	"github.com/pdiddy/curt/pkg/types"
)

const defaultMaxResults = 20

// Fragment is a stored extraction result with its provenance.
type Fragment struct {
	ID        string `json:"id" yaml:"id"`
	Indicator string `json:"indicator" yaml:"indicator"`
	Text      string `json:"text" yaml:"text"`
	Source    string `json:"source" yaml:"source"`
	Start     int    `json:"start" yaml:"start"`
	End       int    `json:"end" yaml:"end"`
}

// Store manages the fragment database.
type Store struct {
	db         *sql.DB
	maxResults int
}

// Open opens or creates the database at cfg.DBPath and creates the
// schema if it does not exist.
func Open(cfg types.StoreConfig) (*Store, error) {
	path := cfg.DBPath
	if path == "" {
		path = "curt.db"
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}

	s := &Store{db: db, maxResults: maxResults}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS sources (
			source TEXT PRIMARY KEY,
			mod_time TEXT NOT NULL,
			normalized INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS fragments (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			indicator TEXT NOT NULL,
			text TEXT NOT NULL,
			source TEXT NOT NULL REFERENCES sources(source) ON DELETE CASCADE,
			start_offset INTEGER NOT NULL,
			end_offset INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_fragments_source ON fragments(source)`,
		`CREATE INDEX IF NOT EXISTS idx_fragments_indicator ON fragments(indicator)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}

	var ftsExists int
	if err := s.db.QueryRow(
		`SELECT count(*) FROM sqlite_master WHERE type='table' AND name='fragments_fts'`,
	).Scan(&ftsExists); err != nil {
		return fmt.Errorf("checking FTS table: %w", err)
	}
	if ftsExists > 0 {
		return nil
	}

	ftsStatements := []string{
		`CREATE VIRTUAL TABLE fragments_fts USING fts5(text, content=fragments, content_rowid=rowid)`,
		`CREATE TRIGGER fragments_ai AFTER INSERT ON fragments BEGIN
			INSERT INTO fragments_fts(rowid, text) VALUES (new.rowid, new.text);
		END`,
		`CREATE TRIGGER fragments_ad AFTER DELETE ON fragments BEGIN
			INSERT INTO fragments_fts(fragments_fts, rowid, text) VALUES('delete', old.rowid, old.text);
		END`,
		`CREATE TRIGGER fragments_au AFTER UPDATE ON fragments BEGIN
			INSERT INTO fragments_fts(fragments_fts, rowid, text) VALUES('delete', old.rowid, old.text);
			INSERT INTO fragments_fts(rowid, text) VALUES (new.rowid, new.text);
		END`,
	}
	for _, stmt := range ftsStatements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("creating FTS infrastructure: %w", err)
		}
	}
	return nil
}

// FragmentID returns the stable identifier of a fragment: the first 16
// hex digits of xxhash64 over source, start offset and text.
func FragmentID(source string, res extract.Result) string {
	d := xxhash.New()
	d.WriteString(source)
	d.WriteString("\x00")
	d.WriteString(strconv.Itoa(res.Start))
	d.WriteString("\x00")
	d.WriteString(res.Text)
	return fmt.Sprintf("%016x", d.Sum64())
}

// IndexStatus reports what Index did with a source.
type IndexStatus int

const (
	StatusIndexed IndexStatus = iota
	StatusUpdated
	StatusSkipped
)

func (s IndexStatus) String() string {
	switch s {
	case StatusIndexed:
		return "indexed"
	case StatusUpdated:
		return "updated"
	case StatusSkipped:
		return "skipped"
	}
	return "unknown"
}

// IndexSummary holds counts from an indexing run.
type IndexSummary struct {
	Indexed int
	Updated int
	Skipped int
	Failed  int
}

// Total returns the number of sources processed.
func (s IndexSummary) Total() int {
	return s.Indexed + s.Updated + s.Skipped + s.Failed
}

// Add counts one source with the given status.
func (s *IndexSummary) Add(status IndexStatus) {
	switch status {
	case StatusIndexed:
		s.Indexed++
	case StatusUpdated:
		s.Updated++
	case StatusSkipped:
		s.Skipped++
	}
}

// Source identifies one indexed input file and how it was read.
type Source struct {
	Path    string
	ModTime time.Time

	// Normalized records that lines were NFC-normalized before scanning,
	// so fragment offsets refer to the normalized text.
	Normalized bool
}

// Changed reports whether src must be re-indexed: it has never been
// indexed, or its modification time or normalization differs from the
// recorded one.
func (s *Store) Changed(ctx context.Context, src Source) (bool, error) {
	var (
		stored     string
		normalized bool
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT mod_time, normalized FROM sources WHERE source = ?`, src.Path,
	).Scan(&stored, &normalized)
	if err == sql.ErrNoRows {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("looking up source %s: %w", src.Path, err)
	}
	return stored != formatTime(src.ModTime) || normalized != src.Normalized, nil
}

// Index replaces the fragments recorded for src with results. Sources
// whose modification time and normalization are unchanged are skipped.
func (s *Store) Index(ctx context.Context, src Source, results []extract.Result) (IndexStatus, error) {
	mt := formatTime(src.ModTime)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var (
		stored     string
		normalized bool
	)
	err = tx.QueryRowContext(ctx,
		`SELECT mod_time, normalized FROM sources WHERE source = ?`, src.Path,
	).Scan(&stored, &normalized)
	isUpdate := err == nil
	if err != nil && err != sql.ErrNoRows {
		return 0, fmt.Errorf("looking up source %s: %w", src.Path, err)
	}
	if isUpdate && stored == mt && normalized == src.Normalized {
		return StatusSkipped, nil
	}

	if isUpdate {
		if _, err := tx.ExecContext(ctx, `DELETE FROM fragments WHERE source = ?`, src.Path); err != nil {
			return 0, fmt.Errorf("deleting old fragments: %w", err)
		}
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO sources (source, mod_time, normalized) VALUES (?, ?, ?)
		 ON CONFLICT(source) DO UPDATE SET mod_time=excluded.mod_time, normalized=excluded.normalized`,
		src.Path, mt, src.Normalized,
	)
	if err != nil {
		return 0, fmt.Errorf("updating source: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR IGNORE INTO fragments (id, indicator, text, source, start_offset, end_offset)
		 VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, res := range results {
		id := FragmentID(src.Path, res)
		if _, err := stmt.ExecContext(ctx, id, res.Indicator, res.Text, src.Path, res.Start, res.End); err != nil {
			return 0, fmt.Errorf("inserting fragment %s: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing: %w", err)
	}
	if isUpdate {
		return StatusUpdated, nil
	}
	return StatusIndexed, nil
}

// Remove deletes source and its fragments.
func (s *Store) Remove(ctx context.Context, source string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM fragments WHERE source = ?`, source); err != nil {
		return fmt.Errorf("deleting fragments of %s: %w", source, err)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sources WHERE source = ?`, source); err != nil {
		return fmt.Errorf("deleting source %s: %w", source, err)
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
