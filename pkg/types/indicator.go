// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"fmt"
	"strings"
)

// DelimiterKind selects the delimiter policy that follows an indicator token.
type DelimiterKind string

const (
	// KindBrackets delimits a fragment with [ and ], nesting allowed.
	KindBrackets DelimiterKind = "brackets"

	// KindClosures delimits a fragment with { and }, nesting allowed.
	KindClosures DelimiterKind = "closures"

	// KindCrickets delimits a fragment with < and >, nesting allowed.
	KindCrickets DelimiterKind = "crickets"

	// KindRounds delimits a fragment with ( and ), nesting allowed.
	KindRounds DelimiterKind = "rounds"

	// KindTag reads a bare tag that ends at whitespace, a comma or a period.
	// A colon after the tag name opens a value that runs to the end of the line.
	KindTag DelimiterKind = "tag"
)

// kindAliases maps the short spellings accepted in config and flags.
var kindAliases = map[string]DelimiterKind{
	"[]": KindBrackets,
	"{}": KindClosures,
	"<>": KindCrickets,
	"()": KindRounds,
	"#":  KindTag,
}

// DelimiterKinds lists every supported kind in display order.
func DelimiterKinds() []DelimiterKind {
	return []DelimiterKind{KindBrackets, KindClosures, KindCrickets, KindRounds, KindTag}
}

// Valid reports whether k is one of the supported kinds.
func (k DelimiterKind) Valid() bool {
	switch k {
	case KindBrackets, KindClosures, KindCrickets, KindRounds, KindTag:
		return true
	}
	return false
}

// ParseDelimiterKind converts a config or flag value into a DelimiterKind.
// Matching is case-insensitive and accepts the bracket-pair aliases.
func ParseDelimiterKind(s string) (DelimiterKind, error) {
	s = strings.TrimSpace(s)
	if k, ok := kindAliases[s]; ok {
		return k, nil
	}
	k := DelimiterKind(strings.ToLower(s))
	if !k.Valid() {
		return "", fmt.Errorf("unknown delimiter kind %q", s)
	}
	return k, nil
}

// Indicator is a token that introduces an extractable fragment, together
// with the delimiter policy of the region that follows it.
type Indicator struct {
	// Token is the literal text that starts a fragment (e.g. "ID", "#").
	Token string `json:"token" yaml:"token" mapstructure:"token"`

	// Kind is the delimiter policy; empty means brackets.
	Kind DelimiterKind `json:"kind" yaml:"kind" mapstructure:"kind"`
}

// String renders the indicator the way it appears in text, e.g. "ID[]".
func (i Indicator) String() string {
	switch i.Kind {
	case KindClosures:
		return i.Token + "{}"
	case KindCrickets:
		return i.Token + "<>"
	case KindRounds:
		return i.Token + "()"
	case KindTag:
		return i.Token
	}
	return i.Token + "[]"
}

// NewIndicators builds one indicator of the given kind per token.
func NewIndicators(kind DelimiterKind, tokens ...string) []Indicator {
	out := make([]Indicator, len(tokens))
	for i, t := range tokens {
		out[i] = Indicator{Token: t, Kind: kind}
	}
	return out
}

// DefaultIndicators is the set used when no configuration names any.
func DefaultIndicators() []Indicator {
	return NewIndicators(KindBrackets, "ID", "REF", "ADD", "END")
}
