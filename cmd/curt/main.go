// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the curt CLI.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/curt/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// rootCmd is the base command for the curt CLI.
var rootCmd = &cobra.Command{
	Use:   "curt",
	Short: "Extract indicator fragments such as ID[...] from free-form text",
	Long: `curt scans text for fragments introduced by indicator tokens, such as
ID[name, size: 3] or #todo, and writes each one as a one-entry flow map
"{ID: name, size: 3}".

Use extract to print fragments from files or standard input, and store to
index them in a searchable SQLite database.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		verbose, _ := cmd.Flags().GetBool("verbose")
		setupLogging(verbose)
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./curt.yaml or ~/.config/curt/curt.yaml)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "log every fragment at debug level")
}

func setupLogging(verbose bool) {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	if verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("curt")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "curt"))
		}
	}

	viper.SetEnvPrefix("CURT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// loadConfig merges defaults, the config file, the environment and the
// command's flags into one Config.
func loadConfig(cmd *cobra.Command) (types.Config, error) {
	cfg, err := decodeConfig(viper.GetViper())
	if err != nil {
		return cfg, err
	}

	// Query filters reuse the name --indicator for a single string.
	if f := cmd.Flags().Lookup("indicator"); f != nil && f.Changed && f.Value.Type() == "stringSlice" {
		tokens, _ := cmd.Flags().GetStringSlice("indicator")
		kind, _ := cmd.Flags().GetString("kind")
		if cfg.Indicators, err = indicatorsFromFlags(tokens, kind); err != nil {
			return cfg, err
		}
	}

	log.Debug().Strs("indicators", indicatorNames(cfg.Indicators)).Msg("configuration loaded")
	return cfg, nil
}

// indicatorNames renders indicators the way they appear in text, e.g. "ID[]".
func indicatorNames(indicators []types.Indicator) []string {
	names := make([]string, len(indicators))
	for i, ind := range indicators {
		names[i] = ind.String()
	}
	return names
}

// kindNames lists the supported delimiter kinds for flag help.
func kindNames() string {
	kinds := types.DelimiterKinds()
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = string(k)
	}
	return strings.Join(names, ", ")
}

// decodeConfig unmarshals v over DefaultConfig and validates the result.
func decodeConfig(v *viper.Viper) (types.Config, error) {
	cfg := types.DefaultConfig()
	if v.IsSet("indicators") {
		// Decoding merges into an existing slice; configured indicators replace the defaults.
		cfg.Indicators = nil
	}
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("decoding config: %w", err)
	}

	for i, ind := range cfg.Indicators {
		if ind.Kind == "" {
			continue
		}
		kind, err := types.ParseDelimiterKind(string(ind.Kind))
		if err != nil {
			return cfg, fmt.Errorf("indicator %q: %w", ind.Token, err)
		}
		cfg.Indicators[i].Kind = kind
	}

	if !cfg.Extract.Format.Valid() {
		return cfg, fmt.Errorf("unsupported format %q: use list, yaml, or json", cfg.Extract.Format)
	}
	if cfg.Extract.Jobs < 1 {
		cfg.Extract.Jobs = 1
	}
	return cfg, nil
}

// indicatorsFromFlags builds the indicator list given with --indicator and --kind.
func indicatorsFromFlags(tokens []string, kindName string) ([]types.Indicator, error) {
	kind, err := types.ParseDelimiterKind(kindName)
	if err != nil {
		return nil, err
	}
	var clean []string
	for _, t := range tokens {
		if t = strings.TrimSpace(t); t != "" {
			clean = append(clean, t)
		}
	}
	if len(clean) == 0 {
		return nil, fmt.Errorf("--indicator needs at least one non-empty token")
	}
	return types.NewIndicators(kind, clean...), nil
}

// addIndicatorFlags registers the flags read by loadConfig on cmd.
func addIndicatorFlags(cmd *cobra.Command) {
	cmd.Flags().StringSliceP("indicator", "i", nil, "indicator token, repeatable (default: ID, REF, ADD, END or the config file)")
	cmd.Flags().StringP("kind", "k", string(types.KindBrackets), "delimiter kind of --indicator tokens: "+kindNames())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("curt failed")
		os.Exit(1)
	}
}
