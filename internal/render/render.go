// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package render turns extracted fragments into structured entries and
// writes them as list lines, YAML, or JSON.
package render

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/curt/internal/extract"
)

// ErrUnparsable is returned when a fragment's text is not a valid flow map.
var ErrUnparsable = errors.New("fragment is not a flow map")

// Entry is a parsed fragment with its provenance.
type Entry struct {
	Source    string `json:"source,omitempty" yaml:"source,omitempty"`
	Indicator string `json:"indicator" yaml:"indicator"`

	// Key is the first key of the fragment map: the indicator token, or the
	// full tag for tag indicators (e.g. "#todo").
	Key string `json:"key" yaml:"key"`

	// Value is the decoded value of Key; nil for a bare tag.
	Value any `json:"value" yaml:"-"`

	// Fields holds every key of the fragment map in source order.
	Fields *yaml.Node `json:"-" yaml:"fragment,omitempty"`

	Text  string `json:"text" yaml:"-"`
	Start int    `json:"start" yaml:"start"`
	End   int    `json:"end" yaml:"end"`
}

// Map decodes Fields into a plain map. Keys that are not strings are
// rendered with fmt.
func (e Entry) Map() (map[string]any, error) {
	if e.Fields == nil {
		return nil, nil
	}
	var raw map[any]any
	if err := e.Fields.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decoding fragment fields: %w", err)
	}
	out := make(map[string]any, len(raw))
	for k, v := range raw {
		out[fmt.Sprint(k)] = v
	}
	return out, nil
}

// Parse reads the flow-map text of res into an Entry. The key is quoted
// before parsing so that tag sigils such as # and @, which YAML reserves,
// survive as part of the key.
func Parse(source string, res extract.Result) (Entry, error) {
	entry := Entry{
		Source:    source,
		Indicator: res.Indicator,
		Text:      res.Text,
		Start:     res.Start,
		End:       res.End,
	}

	key, rest, err := splitKey(res)
	if err != nil {
		return entry, err
	}
	entry.Key = key

	var doc yaml.Node
	if err := yaml.Unmarshal([]byte("{"+strconv.Quote(key)+rest+"}"), &doc); err != nil {
		return entry, fmt.Errorf("%w: %v", ErrUnparsable, err)
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) != 1 || doc.Content[0].Kind != yaml.MappingNode {
		return entry, ErrUnparsable
	}

	fields := doc.Content[0]
	spellNulls(fields)
	if len(fields.Content) >= 2 {
		var v any
		if err := fields.Content[1].Decode(&v); err != nil {
			return entry, fmt.Errorf("%w: %v", ErrUnparsable, err)
		}
		entry.Value = v
	}
	entry.Fields = fields
	return entry, nil
}

// splitKey separates the key of a fragment from the remainder of its
// body. The key runs from the indicator to the first ": " or, for a bare
// tag, to the closing brace.
func splitKey(res extract.Result) (string, string, error) {
	text := res.Text
	if len(text) < 2+len(res.Indicator) || text[0] != '{' || text[len(text)-1] != '}' ||
		!strings.HasPrefix(text[1:], res.Indicator) {
		return "", "", fmt.Errorf("%w: malformed text %q", ErrUnparsable, text)
	}
	body := text[1 : len(text)-1]

	i := strings.Index(body[len(res.Indicator):], ": ")
	if i < 0 {
		return body, "", nil
	}
	i += len(res.Indicator)
	return body[:i], body[i:], nil
}

// spellNulls gives implicit null scalars, such as the value of a bare
// tag, the text "null" so that encoding n writes null instead of ''.
func spellNulls(n *yaml.Node) {
	if n.Kind == yaml.ScalarNode && n.ShortTag() == "!!null" && n.Value == "" {
		n.Value = "null"
		n.Style = 0
		return
	}
	for _, c := range n.Content {
		spellNulls(c)
	}
}
