// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"go.yaml.in/yaml/v3"
)

const exportLimit = 1000000

// ExportYAML writes the fragments matching opts to w as a YAML sequence.
func (s *Store) ExportYAML(ctx context.Context, w io.Writer, opts QueryOptions) error {
	fragments, err := s.exportFragments(ctx, opts)
	if err != nil {
		return err
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(fragments); err != nil {
		return fmt.Errorf("marshaling YAML: %w", err)
	}
	return enc.Close()
}

// ExportJSON writes the fragments matching opts to w as an indented JSON array.
func (s *Store) ExportJSON(ctx context.Context, w io.Writer, opts QueryOptions) error {
	fragments, err := s.exportFragments(ctx, opts)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(fragments); err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	return nil
}

func (s *Store) exportFragments(ctx context.Context, opts QueryOptions) ([]Fragment, error) {
	opts.MaxResults = exportLimit
	fragments, err := s.Query(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("querying for export: %w", err)
	}
	if fragments == nil {
		fragments = []Fragment{}
	}
	return fragments, nil
}
