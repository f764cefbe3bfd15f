// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package extract

import "github.com/pdiddy/curt/pkg/types"

// state is the position of a scanner within a fragment.
type state uint8

const (
	stateOut state = iota
	stateMatchingToken
	stateInside
	stateInSingleQuote
	stateInDoubleQuote
	stateSingleQuoteEscaped
	stateDoubleQuoteEscaped
	stateDone
)

var stateNames = [...]string{
	stateOut:                "out",
	stateMatchingToken:      "matching-token",
	stateInside:             "inside",
	stateInSingleQuote:      "in-single-quote",
	stateInDoubleQuote:      "in-double-quote",
	stateSingleQuoteEscaped: "single-quote-escaped",
	stateDoubleQuoteEscaped: "double-quote-escaped",
	stateDone:               "done",
}

func (s state) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

// minTagLength is the number of characters, sigil included, that a tag
// must exceed before a terminator accepts it. Shorter tags are dropped.
const minTagLength = 2

// scanner tracks the progress of one indicator through the input, one
// character at a time.
type scanner struct {
	indicator types.Indicator
	token     []rune
	firstChar rune
	delim     delimiter

	state state

	// matchLength counts the characters consumed since the token's first
	// character, the current one included.
	matchLength int

	// depth is the nesting level while inside a nested region.
	depth int

	// start is the absolute byte offset of the token's first character.
	start int

	// carry holds the bytes of an open fragment that arrived in earlier chunks.
	carry []byte
}

func newScanner(ind types.Indicator, d delimiter) scanner {
	token := []rune(ind.Token)
	return scanner{
		indicator: ind,
		token:     token,
		firstChar: token[0],
		delim:     d,
	}
}

// open reports whether a fragment has started and not yet been drained.
func (s *scanner) open() bool {
	return s.state != stateOut
}

func (s *scanner) reset() {
	s.state = stateOut
	s.matchLength = 0
	s.depth = 0
	s.start = 0
	s.carry = s.carry[:0]
}

// step consumes r, located at absolute byte offset pos.
func (s *scanner) step(r rune, pos int) {
	switch s.state {
	case stateOut:
		s.enter(r, pos)
		return
	case stateMatchingToken:
		if !s.matchToken(r) {
			// A rejected character may itself start the next fragment.
			s.reset()
			s.enter(r, pos)
			return
		}
	case stateInside:
		s.inside(r)
	case stateInSingleQuote:
		s.inQuote(r, '\'', stateSingleQuoteEscaped)
	case stateInDoubleQuote:
		s.inQuote(r, '"', stateDoubleQuoteEscaped)
	case stateSingleQuoteEscaped:
		s.state = stateInSingleQuote
	case stateDoubleQuoteEscaped:
		s.state = stateInDoubleQuote
	case stateDone:
		// Drained by the engine on completion; only reachable if a caller
		// steps a finished scanner directly.
		s.reset()
		s.enter(r, pos)
		return
	}
	if s.state != stateOut {
		s.matchLength++
	}
}

func (s *scanner) enter(r rune, pos int) {
	if r != s.firstChar {
		return
	}
	s.state = stateMatchingToken
	s.matchLength = 1
	s.start = pos
}

// matchToken handles r while the token (and, for tags, the tag name) is
// being read. It returns false when r rejects the fragment.
func (s *scanner) matchToken(r rune) bool {
	if s.matchLength < len(s.token) {
		return r == s.token[s.matchLength]
	}

	if !s.delim.terminated {
		if r != s.delim.begin {
			return false
		}
		s.state = stateInside
		s.depth = 1
		return true
	}

	switch {
	case r == s.delim.begin:
		s.state = stateInside
	case isTerminator(r):
		if s.matchLength > minTagLength {
			s.state = stateDone
		} else {
			s.reset()
		}
	}
	return true
}

func (s *scanner) inside(r rune) {
	switch {
	case r == '\'':
		s.state = stateInSingleQuote
	case r == '"':
		s.state = stateInDoubleQuote
	case !s.delim.nested:
		if r == s.delim.end {
			s.state = stateDone
		}
	case r == s.delim.begin:
		s.depth++
	case r == s.delim.end:
		s.depth--
		if s.depth == 0 {
			s.state = stateDone
		}
	}
}

func (s *scanner) inQuote(r, quote rune, escaped state) {
	switch r {
	case quote:
		s.state = stateInside
	case '\\':
		s.state = escaped
	}
}
