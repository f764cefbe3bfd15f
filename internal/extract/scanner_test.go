package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/curt/pkg/types"
)

func testScanner(t *testing.T, token string, kind types.DelimiterKind) *scanner {
	t.Helper()
	d, ok := delimiterFor(kind)
	require.True(t, ok)
	s := newScanner(types.Indicator{Token: token, Kind: kind}, d)
	return &s
}

// run steps s through input and returns the state after each character.
func run(s *scanner, input string) []state {
	var states []state
	pos := 0
	for _, r := range input {
		s.step(r, pos)
		states = append(states, s.state)
		pos++
	}
	return states
}

func TestScanner_Transitions(t *testing.T) {
	tests := []struct {
		name  string
		token string
		kind  types.DelimiterKind
		input string
		want  []state
	}{
		{
			name:  "brackets",
			token: "ID", kind: types.KindBrackets,
			input: "xID[a]",
			want: []state{
				stateOut, stateMatchingToken, stateMatchingToken,
				stateInside, stateInside, stateDone,
			},
		},
		{
			name:  "quotes and escapes",
			token: "I", kind: types.KindBrackets,
			input: `I['\'"']`,
			want: []state{
				stateMatchingToken, stateInside, stateInSingleQuote,
				stateSingleQuoteEscaped, stateInSingleQuote, stateInSingleQuote,
				stateInside, stateDone,
			},
		},
		{
			name:  "double quote escape",
			token: "I", kind: types.KindBrackets,
			input: `I["\\"]`,
			want: []state{
				stateMatchingToken, stateInside, stateInDoubleQuote,
				stateDoubleQuoteEscaped, stateInDoubleQuote, stateInside, stateDone,
			},
		},
		{
			name:  "mismatch re-enters",
			token: "ID", kind: types.KindBrackets,
			input: "IIDx",
			want:  []state{stateMatchingToken, stateMatchingToken, stateMatchingToken, stateOut},
		},
		{
			name:  "tag with value",
			token: "@", kind: types.KindTag,
			input: "@ab: c\n",
			want: []state{
				stateMatchingToken, stateMatchingToken, stateMatchingToken,
				stateInside, stateInside, stateInside, stateDone,
			},
		},
		{
			name:  "short tag dropped",
			token: "#", kind: types.KindTag,
			input: "#a,",
			want:  []state{stateMatchingToken, stateMatchingToken, stateOut},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := testScanner(t, tt.token, tt.kind)
			assert.Equal(t, tt.want, run(s, tt.input))
		})
	}
}

func TestScanner_Depth(t *testing.T) {
	s := testScanner(t, "ID", types.KindBrackets)
	run(s, "ID[a[b[")
	assert.Equal(t, 3, s.depth)
	run(s, "']]]'")
	assert.Equal(t, 3, s.depth, "quoted delimiters do not change depth")
	run(s, "]]")
	assert.Equal(t, 1, s.depth)
	assert.Equal(t, stateInside, s.state)
}

func TestScanner_TagIgnoresDepth(t *testing.T) {
	s := testScanner(t, "#", types.KindTag)
	run(s, "#key: a: b: c")
	assert.Equal(t, stateInside, s.state)
	assert.Zero(t, s.depth)
}

func TestScanner_MatchLength(t *testing.T) {
	s := testScanner(t, "REF", types.KindBrackets)
	run(s, "xxREF[ab")
	assert.Equal(t, 6, s.matchLength)
	assert.Equal(t, 2, s.start)
}

func TestScanner_Reset(t *testing.T) {
	s := testScanner(t, "ID", types.KindBrackets)
	run(s, "ID[a[")
	s.carry = append(s.carry, "ID[a["...)

	s.reset()
	assert.Equal(t, stateOut, s.state)
	assert.Zero(t, s.matchLength)
	assert.Zero(t, s.depth)
	assert.Empty(t, s.carry)
	assert.False(t, s.open())
}

func TestScanner_DoneReenters(t *testing.T) {
	s := testScanner(t, "ID", types.KindBrackets)
	run(s, "ID[]")
	require.Equal(t, stateDone, s.state)

	s.step('I', 4)
	assert.Equal(t, stateMatchingToken, s.state)
	assert.Equal(t, 4, s.start)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "inside", stateInside.String())
	assert.Equal(t, "unknown", state(99).String())
}

func TestIsTerminator(t *testing.T) {
	for _, r := range " \t\n\r,." {
		assert.True(t, isTerminator(r), "%q", r)
	}
	for _, r := range "a:#[" {
		assert.False(t, isTerminator(r), "%q", r)
	}
}
