// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package extract

import (
	"unicode"

	"github.com/pdiddy/curt/pkg/types"
)

// delimiter describes how a fragment region begins, nests and ends.
// The scanner consults only these fields, so its transitions stay the
// same for every kind.
type delimiter struct {
	begin rune
	end   rune

	// nested tracks depth: begin opens a level, end closes one.
	nested bool

	// terminated means the region can also end while the tag name is
	// still being read, at whitespace, a comma or a period.
	terminated bool
}

var delimiters = map[types.DelimiterKind]delimiter{
	types.KindBrackets: {begin: '[', end: ']', nested: true},
	types.KindClosures: {begin: '{', end: '}', nested: true},
	types.KindCrickets: {begin: '<', end: '>', nested: true},
	types.KindRounds:   {begin: '(', end: ')', nested: true},
	types.KindTag:      {begin: ':', end: '\n', terminated: true},
}

// delimiterFor returns the descriptor of kind. An empty kind means brackets.
func delimiterFor(kind types.DelimiterKind) (delimiter, bool) {
	if kind == "" {
		kind = types.KindBrackets
	}
	d, ok := delimiters[kind]
	return d, ok
}

// isTerminator reports whether r ends a tag name.
func isTerminator(r rune) bool {
	return r == ',' || r == '.' || unicode.IsSpace(r)
}
