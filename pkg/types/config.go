// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// OutputFormat selects how extracted fragments are written.
type OutputFormat string

const (
	// FormatList writes one "- {TOKEN: content}" line per fragment.
	FormatList OutputFormat = "list"

	// FormatYAML writes a YAML sequence of parsed entries.
	FormatYAML OutputFormat = "yaml"

	// FormatJSON writes one JSON object per line.
	FormatJSON OutputFormat = "json"
)

// Valid reports whether f names a supported output format.
func (f OutputFormat) Valid() bool {
	switch f {
	case FormatList, FormatYAML, FormatJSON:
		return true
	}
	return false
}

// ExtractConfig holds settings for the extract stage.
type ExtractConfig struct {
	// Format selects the output format: list, yaml, or json (default list).
	Format OutputFormat `json:"format" yaml:"format" mapstructure:"format"`

	// Unique drops fragments whose text was already written in the same run.
	Unique bool `json:"unique" yaml:"unique" mapstructure:"unique"`

	// Normalize applies Unicode NFC normalization to each line before scanning.
	// Offsets then refer to the normalized text.
	Normalize bool `json:"normalize" yaml:"normalize" mapstructure:"normalize"`

	// MaxOpenLines abandons a fragment that stays open for more than this
	// many lines. Zero waits until the end of the input.
	MaxOpenLines int `json:"max_open_lines" yaml:"max_open_lines" mapstructure:"max_open_lines"`

	// Jobs is the number of input files processed concurrently (default 4).
	Jobs int `json:"jobs" yaml:"jobs" mapstructure:"jobs"`
}

// StoreConfig holds settings for the fragment store.
type StoreConfig struct {
	// DBPath is the SQLite database file (default "curt.db").
	DBPath string `json:"db_path" yaml:"db_path" mapstructure:"db_path"`

	// MaxResults is the default maximum number of query results (default 20).
	MaxResults int `json:"max_results" yaml:"max_results" mapstructure:"max_results"`
}

// Config groups the indicator set and all stage configurations.
type Config struct {
	Indicators []Indicator   `json:"indicators" yaml:"indicators" mapstructure:"indicators"`
	Extract    ExtractConfig `json:"extract" yaml:"extract" mapstructure:"extract"`
	Store      StoreConfig   `json:"store" yaml:"store" mapstructure:"store"`
}

// DefaultConfig returns the configuration used when no file or flag overrides it.
func DefaultConfig() Config {
	return Config{
		Indicators: DefaultIndicators(),
		Extract: ExtractConfig{
			Format: FormatList,
			Jobs:   4,
		},
		Store: StoreConfig{
			DBPath:     "curt.db",
			MaxResults: 20,
		},
	}
}
