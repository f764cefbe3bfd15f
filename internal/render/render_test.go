package render

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/curt/internal/extract"
	"github.com/pdiddy/curt/pkg/types"
)

func fragments(t *testing.T, indicators []types.Indicator, text string) []extract.Result {
	t.Helper()
	results, err := extract.All(indicators, text)
	require.NoError(t, err)
	return results
}

// --- Parse ---

func TestParse_Brackets(t *testing.T) {
	res := fragments(t, types.NewIndicators(types.KindBrackets, "ID"), "other stuff ID[Test, TestContent: 3] more stuff")
	require.Len(t, res, 1)

	entry, err := Parse("notes.md", res[0])
	require.NoError(t, err)
	assert.Equal(t, "notes.md", entry.Source)
	assert.Equal(t, "ID", entry.Key)
	assert.Equal(t, "Test", entry.Value)
	assert.Equal(t, 12, entry.Start)

	m, err := entry.Map()
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"ID": "Test", "TestContent": 3}, m)
}

func TestParse_Nested(t *testing.T) {
	res := fragments(t, types.NewIndicators(types.KindBrackets, "ADD"), "stuADD[Test3, TestContent: [[a,7],[a,d]]]ff")
	require.Len(t, res, 1)

	entry, err := Parse("", res[0])
	require.NoError(t, err)

	m, err := entry.Map()
	require.NoError(t, err)
	assert.Equal(t, []any{[]any{"a", 7}, []any{"a", "d"}}, m["TestContent"])
}

func TestParse_Tags(t *testing.T) {
	res := fragments(t, types.NewIndicators(types.KindTag, "#", "@"), "#Test,\n @more\n\n #Test2 @TestContent: more content\n")
	require.Len(t, res, 4)

	tests := []struct {
		key   string
		value any
	}{
		{"#Test", nil},
		{"@more", nil},
		{"#Test2", nil},
		{"@TestContent", "more content"},
	}
	for i, tt := range tests {
		entry, err := Parse("", res[i])
		require.NoError(t, err, res[i].Text)
		assert.Equal(t, tt.key, entry.Key)
		assert.Equal(t, tt.value, entry.Value)
	}
}

func TestParse_Unparsable(t *testing.T) {
	res := fragments(t, types.NewIndicators(types.KindBrackets, "ID"), `ID[a: '\'x']`)
	require.Len(t, res, 1)

	entry, err := Parse("", res[0])
	assert.ErrorIs(t, err, ErrUnparsable)
	assert.Equal(t, "ID", entry.Key)
	assert.Equal(t, res[0].Text, entry.Text)
	assert.Nil(t, entry.Fields)
}

func TestParse_Malformed(t *testing.T) {
	_, err := Parse("", extract.Result{Indicator: "ID", Text: "ID: x"})
	assert.ErrorIs(t, err, ErrUnparsable)
}

// --- Writer ---

func TestWriter_List(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf, WriterOptions{})
	require.NoError(t, err)

	for _, r := range fragments(t, types.DefaultIndicators(), "ID[a] REF[b, c: 1] ID[a]") {
		require.NoError(t, w.Write("-", r))
	}
	assert.Equal(t, "- {ID: a}\n- {REF: b, c: 1}\n- {ID: a}\n", buf.String())
	assert.Equal(t, Stats{Written: 3}, w.Stats())
}

func TestWriter_Unique(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf, WriterOptions{Unique: true})
	require.NoError(t, err)

	for _, r := range fragments(t, types.DefaultIndicators(), "ID[a] REF[b] ID[a] ID[ a]") {
		require.NoError(t, w.Write("-", r))
	}
	assert.Equal(t, "- {ID: a}\n- {REF: b}\n- {ID:  a}\n", buf.String())
	assert.Equal(t, Stats{Written: 3, Duplicates: 1}, w.Stats())
}

func TestWriter_YAML(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf, WriterOptions{Format: types.FormatYAML})
	require.NoError(t, err)

	input := "x ID[Test, TestContent: 3] y ID[a: '\\'x']"
	for _, r := range fragments(t, types.DefaultIndicators(), input) {
		require.NoError(t, w.Write("notes.md", r))
	}
	assert.Equal(t, Stats{Written: 2, Unparsable: 1}, w.Stats())

	var got []map[string]any
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &got))
	require.Len(t, got, 2)

	assert.Equal(t, "notes.md", got[0]["source"])
	assert.Equal(t, "ID", got[0]["key"])
	assert.Equal(t, 2, got[0]["start"])
	assert.Equal(t, map[string]any{"ID": "Test", "TestContent": 3}, got[0]["fragment"])

	assert.Nil(t, got[1]["fragment"])
	assert.Equal(t, `{ID: a: '\'x'}`, got[1]["text"])
}

func TestWriter_JSON(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf, WriterOptions{Format: types.FormatJSON})
	require.NoError(t, err)

	for _, r := range fragments(t, types.DefaultIndicators(), "ID[n, tags: [a, b]]\nREF[{1: x}]") {
		require.NoError(t, w.Write("doc.txt", r))
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var first map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, "doc.txt", first["source"])
	assert.Equal(t, "ID", first["indicator"])
	assert.Equal(t, "n", first["value"])
	assert.Equal(t, "{ID: n, tags: [a, b]}", first["text"])

	assert.Equal(t, map[string]any{"ID": "n", "tags": []any{"a", "b"}}, first["fields"])

	var second map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &second))
	assert.Equal(t, map[string]any{"1": "x"}, second["value"])
	assert.Equal(t, map[string]any{"REF": map[string]any{"1": "x"}}, second["fields"])
}

func TestWriter_JSONKeepsEveryKey(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf, WriterOptions{Format: types.FormatJSON})
	require.NoError(t, err)

	for _, r := range fragments(t, types.DefaultIndicators(), "other stuff ID[Test, TestContent: 3] more stuff") {
		require.NoError(t, w.Write("f", r))
	}

	var got map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "Test", got["value"])
	assert.Equal(t, map[string]any{"ID": "Test", "TestContent": float64(3)}, got["fields"])
	assert.Equal(t, float64(12), got["start"])
	assert.Equal(t, float64(36), got["end"])
}

func TestWriter_BareTagIsNull(t *testing.T) {
	tags := types.NewIndicators(types.KindTag, "#")

	t.Run("yaml", func(t *testing.T) {
		var buf bytes.Buffer
		w, err := NewWriter(&buf, WriterOptions{Format: types.FormatYAML})
		require.NoError(t, err)
		for _, r := range fragments(t, tags, "#Test, done\n") {
			require.NoError(t, w.Write("notes.md", r))
		}

		assert.Contains(t, buf.String(), `"#Test": null`)
		assert.NotContains(t, buf.String(), "''")

		var got []map[string]any
		require.NoError(t, yaml.Unmarshal(buf.Bytes(), &got))
		require.Len(t, got, 1)
		assert.Equal(t, map[string]any{"#Test": nil}, got[0]["fragment"])
	})

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		w, err := NewWriter(&buf, WriterOptions{Format: types.FormatJSON})
		require.NoError(t, err)
		for _, r := range fragments(t, tags, "#Test, done\n") {
			require.NoError(t, w.Write("notes.md", r))
		}

		var got map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
		assert.Nil(t, got["value"])
		assert.Equal(t, map[string]any{"#Test": nil}, got["fields"])
	})
}

func TestNewWriter_BadFormat(t *testing.T) {
	_, err := NewWriter(&bytes.Buffer{}, WriterOptions{Format: "xml"})
	assert.Error(t, err)
}
