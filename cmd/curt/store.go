// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/curt/internal/store"
	"github.com/pdiddy/curt/pkg/types"
)

var storeCmd = &cobra.Command{
	Use:   "store",
	Short: "Manage the fragment store (index, query, trace, export, stats)",
	Long: `Store manages a local SQLite database of extracted fragments with
FTS5 full-text search. Use subcommands to index files, query fragments,
show their source context, or export them.`,
}

// --- index subcommand ---

var storeIndexCmd = &cobra.Command{
	Use:   "index [files...]",
	Short: "Extract fragments from files and index them",
	Long: `Index extracts the fragments of each file and replaces the ones stored
for it. Files whose modification time has not changed since the last run
are skipped.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		s, err := store.Open(cfg.Store)
		if err != nil {
			return err
		}
		defer s.Close()

		summary, err := runIndex(cmd.Context(), s, cfg, args, cmd.OutOrStdout())
		if err != nil {
			return err
		}
		if summary.Failed > 0 {
			return fmt.Errorf("%d file(s) failed indexing", summary.Failed)
		}
		return nil
	},
}

// runIndex indexes files into s, printing one line per file to out.
func runIndex(ctx context.Context, s *store.Store, cfg types.Config, files []string, out io.Writer) (store.IndexSummary, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	var summary store.IndexSummary
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		status, n, err := indexFile(ctx, s, cfg, file)
		if err != nil {
			summary.Failed++
			log.Error().Err(err).Str("source", file).Msg("indexing failed")
			fmt.Fprintf(out, "  %-8s %s\n", "failed", file)
			continue
		}
		summary.Add(status)
		if status == store.StatusSkipped {
			fmt.Fprintf(out, "  %-8s %s\n", status, file)
		} else {
			fmt.Fprintf(out, "  %-8s %s (%d fragments)\n", status, file, n)
		}
	}

	fmt.Fprintf(out, "\n%d indexed, %d updated, %d skipped, %d failed\n",
		summary.Indexed, summary.Updated, summary.Skipped, summary.Failed)
	return summary, nil
}

func indexFile(ctx context.Context, s *store.Store, cfg types.Config, file string) (store.IndexStatus, int, error) {
	info, err := os.Stat(file)
	if err != nil {
		return 0, 0, fmt.Errorf("stat %s: %w", file, err)
	}

	src := store.Source{Path: file, ModTime: info.ModTime(), Normalized: cfg.Extract.Normalize}
	changed, err := s.Changed(ctx, src)
	if err != nil {
		return 0, 0, err
	}
	if !changed {
		return store.StatusSkipped, 0, nil
	}

	results, err := extractFile(ctx, cfg, file)
	if err != nil {
		return 0, 0, err
	}
	status, err := s.Index(ctx, src, results)
	return status, len(results), err
}

// --- query subcommand ---

var storeQueryCmd = &cobra.Command{
	Use:   "query [text]",
	Short: "Search stored fragments with full-text search and filters",
	Long: `Query searches the store using FTS5 full-text search, filters by
indicator or source, or a combination of both.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		opts := queryOptsFromFlags(cmd, args)
		if opts.IsEmpty() {
			return fmt.Errorf("query or filter required: provide search text, --indicator, or --source")
		}

		s, err := store.Open(cfg.Store)
		if err != nil {
			return err
		}
		defer s.Close()

		fragments, err := s.Query(cmd.Context(), opts)
		if err != nil {
			return err
		}
		jsonOutput, _ := cmd.Flags().GetBool("json")
		return formatQueryOutput(cmd.OutOrStdout(), fragments, jsonOutput)
	},
}

func formatQueryOutput(out io.Writer, fragments []store.Fragment, jsonOutput bool) error {
	if jsonOutput {
		if fragments == nil {
			fragments = []store.Fragment{}
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(fragments)
	}

	if len(fragments) == 0 {
		fmt.Fprintln(out, "No results found.")
		return nil
	}

	fmt.Fprintf(out, "%-16s  %-9s  %-50s  %-20s  %s\n", "ID", "Indicator", "Text", "Source", "Offset")
	fmt.Fprintln(out, strings.Repeat("-", 110))
	for _, f := range fragments {
		fmt.Fprintf(out, "%-16s  %-9s  %-50s  %-20s  %d\n",
			f.ID, clip(f.Indicator, 9), clip(f.Text, 50), clip(f.Source, 20), f.Start)
	}
	fmt.Fprintf(out, "\n%d results\n", len(fragments))
	return nil
}

// clip shortens s to at most n characters, marking the cut with "...".
func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

// --- trace subcommand ---

var storeTraceCmd = &cobra.Command{
	Use:   "trace <id>",
	Short: "Show the source lines around a stored fragment",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		radius, _ := cmd.Flags().GetInt("radius")

		s, err := store.Open(cfg.Store)
		if err != nil {
			return err
		}
		defer s.Close()

		text, err := s.Trace(cmd.Context(), args[0], radius)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), text)
		return nil
	},
}

// --- export subcommand ---

var storeExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export stored fragments to YAML or JSON",
	Long: `Export writes every stored fragment, or a filtered subset, to standard
output or to --output. Supports the same filter flags as query.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		format, _ := cmd.Flags().GetString("format")
		output, _ := cmd.Flags().GetString("output")

		s, err := store.Open(cfg.Store)
		if err != nil {
			return err
		}
		defer s.Close()

		out := cmd.OutOrStdout()
		if output != "" {
			f, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("creating %s: %w", output, err)
			}
			defer f.Close()
			out = f
		}

		if err := runExport(cmd.Context(), s, out, format, queryOptsFromFlags(cmd, args)); err != nil {
			return err
		}
		if output != "" {
			fmt.Fprintf(cmd.ErrOrStderr(), "Exported to %s\n", output)
		}
		return nil
	},
}

func runExport(ctx context.Context, s *store.Store, out io.Writer, format string, opts store.QueryOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	switch types.OutputFormat(format) {
	case types.FormatYAML, "":
		return s.ExportYAML(ctx, out, opts)
	case types.FormatJSON:
		return s.ExportJSON(ctx, out, opts)
	}
	return fmt.Errorf("unsupported format %q: use yaml or json", format)
}

// --- stats subcommand ---

var storeStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print the number of stored fragments per indicator",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		s, err := store.Open(cfg.Store)
		if err != nil {
			return err
		}
		defer s.Close()

		counts, err := s.Stats(cmd.Context())
		if err != nil {
			return err
		}
		total := 0
		for _, c := range counts {
			fmt.Fprintf(cmd.OutOrStdout(), "%-12s %d\n", c.Indicator, c.Count)
			total += c.Count
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%-12s %d\n", "total", total)
		return nil
	},
}

// --- shared helpers ---

func queryOptsFromFlags(cmd *cobra.Command, args []string) store.QueryOptions {
	queryText, _ := cmd.Flags().GetString("query")
	if queryText == "" && len(args) > 0 {
		queryText = strings.Join(args, " ")
	}
	indicator, _ := cmd.Flags().GetString("indicator")
	source, _ := cmd.Flags().GetString("source")
	limit, _ := cmd.Flags().GetInt("limit")

	return store.QueryOptions{
		Query:      queryText,
		Indicator:  indicator,
		Source:     source,
		MaxResults: limit,
	}
}

func addFilterFlags(cmd *cobra.Command, what string) {
	cmd.Flags().String("query", "", "full-text search "+what)
	cmd.Flags().String("indicator", "", "filter by indicator token")
	cmd.Flags().String("source", "", "filter by source file")
}

func init() {
	// Shared flags on the parent command, inherited by subcommands.
	storeCmd.PersistentFlags().String("db", "curt.db", "SQLite database file")
	storeCmd.PersistentFlags().Int("max-results", 20, "default maximum number of query results")
	viper.BindPFlag("store.db_path", storeCmd.PersistentFlags().Lookup("db"))
	viper.BindPFlag("store.max_results", storeCmd.PersistentFlags().Lookup("max-results"))

	// Index flags.
	addIndicatorFlags(storeIndexCmd)

	// Query flags.
	addFilterFlags(storeQueryCmd, "query")
	storeQueryCmd.Flags().Int("limit", 0, "maximum results (0 = use default)")
	storeQueryCmd.Flags().Bool("json", false, "output results as JSON")

	// Trace flags.
	storeTraceCmd.Flags().Int("radius", 2, "number of lines shown before and after the fragment")

	// Export flags.
	addFilterFlags(storeExportCmd, "filter for partial export")
	storeExportCmd.Flags().String("format", "yaml", "export format: yaml or json")
	storeExportCmd.Flags().StringP("output", "o", "", "write to this file instead of standard output")

	// Wire subcommands.
	storeCmd.AddCommand(storeIndexCmd)
	storeCmd.AddCommand(storeQueryCmd)
	storeCmd.AddCommand(storeTraceCmd)
	storeCmd.AddCommand(storeExportCmd)
	storeCmd.AddCommand(storeStatsCmd)

	rootCmd.AddCommand(storeCmd)
}
