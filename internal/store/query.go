// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// ErrNotFound is returned when a fragment ID is not in the store.
var ErrNotFound = errors.New("fragment not found")

// QueryOptions holds parameters for fragment queries.
type QueryOptions struct {
	// Query is the FTS5 full-text search string.
	Query string

	// Indicator filters by indicator token.
	Indicator string

	// Source filters by source file.
	Source string

	// MaxResults limits result count. Zero uses the store default.
	MaxResults int
}

// IsEmpty reports whether the query has no search terms or filters.
func (q QueryOptions) IsEmpty() bool {
	return q.Query == "" && q.Indicator == "" && q.Source == ""
}

// Query searches the store with optional full-text search and filters.
// Full-text results are ranked by relevance; filter-only results are
// ordered by source and offset.
func (s *Store) Query(ctx context.Context, opts QueryOptions) ([]Fragment, error) {
	maxResults := opts.MaxResults
	if maxResults <= 0 {
		maxResults = s.maxResults
	}

	var (
		qb     strings.Builder
		args   []any
		useFTS = opts.Query != ""
	)

	if useFTS {
		qb.WriteString(
			`SELECT f.id, f.indicator, f.text, f.source, f.start_offset, f.end_offset
			FROM fragments_fts
			JOIN fragments f ON f.rowid = fragments_fts.rowid
			WHERE fragments_fts MATCH ?`)
		args = append(args, opts.Query)
	} else {
		qb.WriteString(
			`SELECT f.id, f.indicator, f.text, f.source, f.start_offset, f.end_offset
			FROM fragments f
			WHERE 1=1`)
	}

	if opts.Indicator != "" {
		qb.WriteString(` AND f.indicator = ?`)
		args = append(args, opts.Indicator)
	}

	if opts.Source != "" {
		qb.WriteString(` AND f.source = ?`)
		args = append(args, opts.Source)
	}

	if useFTS {
		qb.WriteString(` ORDER BY fragments_fts.rank, f.source, f.start_offset`)
	} else {
		qb.WriteString(` ORDER BY f.source, f.start_offset, f.rowid`)
	}

	qb.WriteString(` LIMIT ?`)
	args = append(args, maxResults)

	rows, err := s.db.QueryContext(ctx, qb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("querying fragments: %w", err)
	}
	defer rows.Close()

	var results []Fragment
	for rows.Next() {
		var f Fragment
		if err := rows.Scan(&f.ID, &f.Indicator, &f.Text, &f.Source, &f.Start, &f.End); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		results = append(results, f)
	}
	return results, rows.Err()
}

// Get returns the fragment with the given ID.
func (s *Store) Get(ctx context.Context, id string) (Fragment, error) {
	f := Fragment{ID: id}
	err := s.db.QueryRowContext(ctx,
		`SELECT indicator, text, source, start_offset, end_offset FROM fragments WHERE id = ?`, id,
	).Scan(&f.Indicator, &f.Text, &f.Source, &f.Start, &f.End)
	if errors.Is(err, sql.ErrNoRows) {
		return Fragment{}, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	if err != nil {
		return Fragment{}, fmt.Errorf("looking up fragment: %w", err)
	}
	return f, nil
}

// Trace returns the source text around a fragment: the lines holding
// its span plus up to radius lines on each side. It rereads the source
// file, normalizing it the way it was normalized when indexed, so offsets
// must still match its contents.
func (s *Store) Trace(ctx context.Context, id string, radius int) (string, error) {
	f, err := s.Get(ctx, id)
	if err != nil {
		return "", err
	}

	var normalized bool
	if err := s.db.QueryRowContext(ctx,
		`SELECT normalized FROM sources WHERE source = ?`, f.Source,
	).Scan(&normalized); err != nil {
		return "", fmt.Errorf("looking up source %s: %w", f.Source, err)
	}

	data, err := os.ReadFile(f.Source)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", f.Source, err)
	}
	content := string(data)
	if normalized {
		content = normalizeLines(content)
	}
	if f.End > len(content) || f.Start > f.End {
		return "", fmt.Errorf("fragment %s: span %d..%d outside %s", id, f.Start, f.End, f.Source)
	}
	return surroundingLines(content, f.Start, f.End, radius), nil
}

// normalizeLines applies NFC to each line on its own, matching how lines
// are normalized before scanning.
func normalizeLines(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, line := range strings.SplitAfter(text, "\n") {
		b.WriteString(norm.NFC.String(line))
	}
	return b.String()
}

// surroundingLines returns the lines of text overlapping [start, end)
// with radius extra lines before and after.
func surroundingLines(text string, start, end, radius int) string {
	from := start
	for n := 0; ; n++ {
		i := strings.LastIndexByte(text[:from], '\n')
		if i < 0 {
			from = 0
			break
		}
		from = i
		if n == radius {
			from = i + 1
			break
		}
	}

	to := end
	if to > from && text[to-1] == '\n' {
		to--
	}
	for n := 0; ; n++ {
		i := strings.IndexByte(text[to:], '\n')
		if i < 0 {
			to = len(text)
			break
		}
		to += i
		if n == radius {
			break
		}
		to++
	}
	return text[from:to]
}

// IndicatorCount is the number of stored fragments for one indicator.
type IndicatorCount struct {
	Indicator string `json:"indicator" yaml:"indicator"`
	Count     int    `json:"count" yaml:"count"`
}

// Stats returns the fragment count per indicator, ordered by indicator.
func (s *Store) Stats(ctx context.Context) ([]IndicatorCount, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT indicator, count(*) FROM fragments GROUP BY indicator ORDER BY indicator`)
	if err != nil {
		return nil, fmt.Errorf("counting fragments: %w", err)
	}
	defer rows.Close()

	var counts []IndicatorCount
	for rows.Next() {
		var c IndicatorCount
		if err := rows.Scan(&c.Indicator, &c.Count); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}
