// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package render

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/rs/zerolog/log"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/curt/internal/bloom"
	"github.com/pdiddy/curt/internal/extract"
	"github.com/pdiddy/curt/pkg/types"
)

// Expected fragment count and false positive rate for the duplicate filter.
const (
	uniqueCapacity = 100000
	uniqueFPRate   = 0.0001
)

// WriterOptions configures a Writer.
type WriterOptions struct {
	// Format selects list, yaml, or json output; empty means list.
	Format types.OutputFormat

	// Unique skips fragments whose text was already written.
	Unique bool
}

// Stats holds counts of what a Writer has written.
type Stats struct {
	Written    int
	Duplicates int
	Unparsable int
}

// Writer writes fragments in a single output format. It is not safe for
// concurrent use; callers serialize writes.
type Writer struct {
	w      io.Writer
	format types.OutputFormat
	seen   *bloom.Filter
	stats  Stats
}

// NewWriter returns a Writer for w.
func NewWriter(w io.Writer, opts WriterOptions) (*Writer, error) {
	format := opts.Format
	if format == "" {
		format = types.FormatList
	}
	if !format.Valid() {
		return nil, fmt.Errorf("unsupported format %q: use list, yaml, or json", format)
	}

	wr := &Writer{w: w, format: format}
	if opts.Unique {
		wr.seen = bloom.NewFilter(uniqueCapacity, uniqueFPRate)
	}
	return wr, nil
}

// Stats returns the counts so far.
func (w *Writer) Stats() Stats {
	return w.stats
}

// Write renders one fragment found in source.
func (w *Writer) Write(source string, res extract.Result) error {
	if w.seen != nil && w.seen.Seen(res.Text) {
		w.stats.Duplicates++
		return nil
	}

	if w.format == types.FormatList {
		if _, err := fmt.Fprintf(w.w, "- %s\n", res.Text); err != nil {
			return fmt.Errorf("writing fragment: %w", err)
		}
		w.stats.Written++
		return nil
	}

	entry, err := Parse(source, res)
	if err != nil {
		w.stats.Unparsable++
		log.Warn().Err(err).Str("source", source).Int("start", res.Start).Msg("writing fragment unparsed")
	}

	switch w.format {
	case types.FormatYAML:
		err = w.writeYAML(entry)
	case types.FormatJSON:
		err = w.writeJSON(entry)
	}
	if err != nil {
		return err
	}
	w.stats.Written++
	return nil
}

// writeYAML appends entry as one item of a YAML sequence. Consecutive
// items form a single sequence document.
func (w *Writer) writeYAML(entry Entry) error {
	out := yamlEntry{Entry: entry}
	if entry.Fields == nil {
		out.Text = entry.Text
	}
	data, err := yaml.Marshal([]yamlEntry{out})
	if err != nil {
		return fmt.Errorf("marshaling YAML: %w", err)
	}
	if _, err := w.w.Write(data); err != nil {
		return fmt.Errorf("writing fragment: %w", err)
	}
	return nil
}

// yamlEntry keeps the raw text for fragments that did not parse.
type yamlEntry struct {
	Entry `yaml:",inline"`
	Text  string `yaml:"text,omitempty"`
}

// jsonEntry adds every key of the fragment map, which Entry leaves to YAML.
type jsonEntry struct {
	Entry
	Fields any `json:"fields,omitempty"`
}

func (w *Writer) writeJSON(entry Entry) error {
	entry.Value = jsonSafe(entry.Value)
	out := jsonEntry{Entry: entry}
	fields, err := entry.Map()
	if err != nil {
		return err
	}
	if fields != nil {
		out.Fields = jsonSafe(fields)
	}
	data, err := json.Marshal(out)
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	data = append(data, '\n')
	if _, err := w.w.Write(data); err != nil {
		return fmt.Errorf("writing fragment: %w", err)
	}
	return nil
}

// jsonSafe converts maps with non-string keys, which YAML allows and
// JSON does not.
func jsonSafe(v any) any {
	switch t := v.(type) {
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[fmt.Sprint(k)] = jsonSafe(val)
		}
		return out
	case map[string]any:
		for k, val := range t {
			t[k] = jsonSafe(val)
		}
		return t
	case []any:
		for i, val := range t {
			t[i] = jsonSafe(val)
		}
		return t
	}
	return v
}
