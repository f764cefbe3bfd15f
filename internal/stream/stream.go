// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package stream feeds a reader into an extraction engine line by line and
// hands completed fragments to a callback.
package stream

import (
	"bufio"
	"context"
	"fmt"
	"io"

	"github.com/rs/zerolog/log"
	"golang.org/x/text/unicode/norm"

	"github.com/pdiddy/curt/internal/extract"
)

// Options controls how a stream is fed to the engine.
type Options struct {
	// Source names the input in log events (a file path or "-").
	Source string

	// Normalize applies Unicode NFC normalization to each line.
	Normalize bool

	// MaxOpenLines abandons a fragment that stays open for more than this
	// many lines. Zero waits until the end of the input.
	MaxOpenLines int
}

// Summary holds counts from one Pipe run.
type Summary struct {
	Lines     int
	Fragments int
	Abandoned int
}

// EmitFunc receives each completed fragment in order.
type EmitFunc func(extract.Result) error

// Pipe reads r line by line and feeds every line to eng. Buffered results
// are emitted only while no fragment is open, so a fragment spanning
// several lines is written together with the ones completed before it.
// A fragment still open at the end of r is abandoned.
func Pipe(ctx context.Context, eng *extract.Engine, r io.Reader, opts Options, emit EmitFunc) (Summary, error) {
	var (
		summary   Summary
		openLines int
	)

	flush := func() error {
		for _, res := range eng.Drain() {
			summary.Fragments++
			log.Debug().
				Str("source", opts.Source).
				Str("indicator", res.Indicator).
				Int("start", res.Start).
				Int("end", res.End).
				Msg("fragment")
			if err := emit(res); err != nil {
				return err
			}
		}
		return nil
	}

	abandon := func(reason string) {
		if eng.ResetOpen() {
			summary.Abandoned++
			log.Warn().
				Str("source", opts.Source).
				Int("line", summary.Lines).
				Msg(reason)
		}
	}

	br := bufio.NewReader(r)
	for {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		line, err := br.ReadString('\n')
		if len(line) > 0 {
			summary.Lines++
			if opts.Normalize {
				line = norm.NFC.String(line)
			}
			eng.Feed(line)

			if eng.IsOpen() {
				openLines++
				if opts.MaxOpenLines > 0 && openLines > opts.MaxOpenLines {
					abandon("abandoning fragment open for too many lines")
				}
			}
			if !eng.IsOpen() {
				openLines = 0
				if ferr := flush(); ferr != nil {
					return summary, ferr
				}
			}
		}

		if err == io.EOF {
			break
		}
		if err != nil {
			return summary, fmt.Errorf("reading %s: %w", opts.Source, err)
		}
	}

	eng.Flush()
	abandon("abandoning unterminated fragment at end of input")
	if err := flush(); err != nil {
		return summary, err
	}
	return summary, nil
}
