// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package extract finds indicator-introduced fragments in free-form text.
//
// A fragment is an indicator token immediately followed by a delimited
// region, e.g. ID[name, size: 3] or #tag. The Engine scans every
// configured indicator in one pass, honors nested delimiters and quoted
// text, and accepts its input in chunks of any size: a fragment may open
// in one Feed call and close in a later one.
package extract

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/pdiddy/curt/pkg/types"
)

var (
	// ErrNoIndicators is returned when an engine is built without indicators.
	ErrNoIndicators = errors.New("no indicators configured")

	// ErrEmptyToken is returned for an indicator whose token is empty.
	ErrEmptyToken = errors.New("indicator token is empty")

	// ErrUnknownKind is returned for an indicator with an unsupported delimiter kind.
	ErrUnknownKind = errors.New("unknown delimiter kind")
)

// Result is one extracted fragment. Text reads as a single-entry flow
// map, "{ID: content}", whose key is the indicator token.
type Result struct {
	Indicator string `json:"indicator" yaml:"indicator"`
	Text      string `json:"text" yaml:"text"`

	// Start is the byte offset of the indicator's first character.
	Start int `json:"start" yaml:"start"`

	// End is the byte offset one past the character that closed the fragment.
	End int `json:"end" yaml:"end"`
}

func (r Result) String() string {
	return r.Text
}

// Engine drives one scanner per indicator over a stream of chunks.
// An Engine belongs to a single stream and is not safe for concurrent use.
type Engine struct {
	scanners []scanner
	results  []Result

	// offset is the number of bytes scanned so far.
	offset int

	// partial holds the leading bytes of a character cut by a chunk boundary.
	partial []byte
}

// New builds an engine for the given indicators. Every token must be
// non-empty and every kind supported; an empty kind means brackets.
func New(indicators []types.Indicator) (*Engine, error) {
	if len(indicators) == 0 {
		return nil, ErrNoIndicators
	}

	e := &Engine{scanners: make([]scanner, 0, len(indicators))}
	for i, ind := range indicators {
		if ind.Token == "" {
			return nil, fmt.Errorf("indicator %d: %w", i, ErrEmptyToken)
		}
		d, ok := delimiterFor(ind.Kind)
		if !ok {
			return nil, fmt.Errorf("indicator %d (%s): %w %q", i, ind.Token, ErrUnknownKind, ind.Kind)
		}
		e.scanners = append(e.scanners, newScanner(ind, d))
	}
	return e, nil
}

// Feed scans chunk. Completed fragments are appended to the result
// buffer; fragments still open at the end of chunk carry over to the
// next call.
func (e *Engine) Feed(chunk string) {
	if len(e.partial) > 0 {
		chunk = string(e.partial) + chunk
		e.partial = e.partial[:0]
	}
	if n := incompleteSuffix(chunk); n > 0 {
		e.partial = append(e.partial, chunk[len(chunk)-n:]...)
		chunk = chunk[:len(chunk)-n]
	}
	e.scan(chunk)
}

// Flush scans bytes held back from an incomplete trailing character.
// Call it once the stream has ended.
func (e *Engine) Flush() {
	if len(e.partial) == 0 {
		return
	}
	chunk := string(e.partial)
	e.partial = e.partial[:0]
	e.scan(chunk)
}

func (e *Engine) scan(chunk string) {
	base := e.offset

	for i := 0; i < len(chunk); {
		r, w := rune(chunk[i]), 1
		if r >= utf8.RuneSelf {
			r, w = utf8.DecodeRuneInString(chunk[i:])
		}

		for k := range e.scanners {
			s := &e.scanners[k]
			s.step(r, base+i)
			if s.state == stateDone {
				e.results = append(e.results, s.result(chunk, base, i, w))
				s.reset()
			}
		}
		i += w
	}

	for k := range e.scanners {
		s := &e.scanners[k]
		if !s.open() {
			continue
		}
		from := s.start - base
		if from < 0 {
			from = 0
		}
		s.carry = append(s.carry, chunk[from:]...)
	}

	e.offset += len(chunk)
}

// incompleteSuffix returns the length of a truncated UTF-8 sequence at
// the end of s, or 0 if s ends on a character boundary.
func incompleteSuffix(s string) int {
	for i := len(s) - 1; i >= 0 && i > len(s)-utf8.UTFMax; i-- {
		if !utf8.RuneStart(s[i]) {
			continue
		}
		if utf8.FullRuneInString(s[i:]) {
			return 0
		}
		return len(s) - i
	}
	return 0
}

// result builds the Result of a scanner that closed on the character at
// chunk[closeAt:closeAt+width].
func (s *scanner) result(chunk string, base, closeAt, width int) Result {
	var raw string
	if len(s.carry) > 0 {
		raw = string(s.carry) + chunk[:closeAt]
	} else {
		raw = chunk[s.start-base : closeAt]
	}

	token := s.indicator.Token
	body := strings.Replace(raw[len(token):], string(s.delim.begin), ": ", 1)

	var b strings.Builder
	b.Grow(len(token) + len(body) + 2)
	b.WriteByte('{')
	b.WriteString(token)
	b.WriteString(body)
	b.WriteByte('}')

	return Result{
		Indicator: token,
		Text:      b.String(),
		Start:     s.start,
		End:       base + closeAt + width,
	}
}

// IsOpen reports whether any indicator has started a fragment that has
// not closed yet. Callers use it to decide whether buffered input must
// be kept.
func (e *Engine) IsOpen() bool {
	for k := range e.scanners {
		if e.scanners[k].open() {
			return true
		}
	}
	return false
}

// ResetOpen abandons every open fragment and reports whether there was any.
func (e *Engine) ResetOpen() bool {
	abandoned := false
	for k := range e.scanners {
		s := &e.scanners[k]
		if s.open() {
			s.reset()
			abandoned = true
		}
	}
	return abandoned
}

// Results returns a copy of the buffered results.
func (e *Engine) Results() []Result {
	out := make([]Result, len(e.results))
	copy(out, e.results)
	return out
}

// Drain returns the buffered results and clears the buffer.
func (e *Engine) Drain() []Result {
	out := e.results
	e.results = nil
	return out
}

// ClearResults empties the result buffer.
func (e *Engine) ClearResults() {
	e.results = e.results[:0]
}

// Offset returns the number of bytes scanned so far. Result offsets are
// relative to the first byte of the first chunk.
func (e *Engine) Offset() int {
	return e.offset
}

// Reset returns the engine to its initial state so it can serve a new stream.
func (e *Engine) Reset() {
	e.ResetOpen()
	e.results = nil
	e.offset = 0
	e.partial = e.partial[:0]
}

// All extracts every fragment of text in one call. A fragment still
// open at the end of text is dropped.
func All(indicators []types.Indicator, text string) ([]Result, error) {
	e, err := New(indicators)
	if err != nil {
		return nil, err
	}
	e.Feed(text)
	e.Flush()
	return e.Drain(), nil
}

// Contains reports whether text holds at least one complete fragment.
// Invalid indicator sets never match.
func Contains(indicators []types.Indicator, text string) bool {
	results, err := All(indicators, text)
	return err == nil && len(results) > 0
}
