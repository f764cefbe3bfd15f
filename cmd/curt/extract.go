// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/curt/internal/extract"
	"github.com/pdiddy/curt/internal/render"
	"github.com/pdiddy/curt/internal/stream"
	"github.com/pdiddy/curt/pkg/types"
)

// stdinName is the argument and source name that stands for standard input.
const stdinName = "-"

var extractCmd = &cobra.Command{
	Use:   "extract [files...]",
	Short: "Print the indicator fragments found in files or standard input",
	Long: `Extract scans each file, or standard input when no file is given, and
writes every complete fragment. Fragments may span lines. Output follows
the order of the arguments even when files are scanned concurrently.

Formats: list prints "- {ID: ...}" lines, yaml prints a sequence of parsed
entries with offsets, json prints one object per line.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		stats, err := runExtract(cmd.Context(), cfg, args, cmd.InOrStdin(), cmd.OutOrStdout())
		if err != nil {
			return err
		}
		log.Debug().
			Int("written", stats.Written).
			Int("duplicates", stats.Duplicates).
			Int("unparsable", stats.Unparsable).
			Msg("extract finished")
		return nil
	},
}

// runExtract writes the fragments of files, or of stdin when files is
// empty, to stdout in cfg.Extract.Format.
func runExtract(ctx context.Context, cfg types.Config, files []string, stdin io.Reader, stdout io.Writer) (render.Stats, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	w, err := render.NewWriter(stdout, render.WriterOptions{
		Format: cfg.Extract.Format,
		Unique: cfg.Extract.Unique,
	})
	if err != nil {
		return render.Stats{}, err
	}

	if len(files) == 0 || (len(files) == 1 && files[0] == stdinName) {
		eng, err := extract.New(cfg.Indicators)
		if err != nil {
			return render.Stats{}, err
		}
		_, err = stream.Pipe(ctx, eng, stdin, streamOptions(cfg, stdinName), func(res extract.Result) error {
			return w.Write(stdinName, res)
		})
		return w.Stats(), err
	}

	results, err := extractFiles(ctx, cfg, files)
	if err != nil {
		return render.Stats{}, err
	}
	for i, file := range files {
		for _, res := range results[i] {
			if err := w.Write(file, res); err != nil {
				return w.Stats(), err
			}
		}
	}
	return w.Stats(), nil
}

// extractFiles scans up to cfg.Extract.Jobs files at a time, each with its
// own engine. results[i] holds the fragments of files[i].
func extractFiles(ctx context.Context, cfg types.Config, files []string) ([][]extract.Result, error) {
	results := make([][]extract.Result, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(cfg.Extract.Jobs, 1))
	for i, file := range files {
		i, file := i, file
		g.Go(func() error {
			res, err := extractFile(gctx, cfg, file)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// extractFile returns every fragment of the file at path.
func extractFile(ctx context.Context, cfg types.Config, path string) ([]extract.Result, error) {
	eng, err := extract.New(cfg.Indicators)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	var results []extract.Result
	summary, err := stream.Pipe(ctx, eng, f, streamOptions(cfg, path), func(res extract.Result) error {
		results = append(results, res)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("extracting %s: %w", path, err)
	}

	log.Debug().
		Str("source", path).
		Int("lines", summary.Lines).
		Int("fragments", summary.Fragments).
		Int("abandoned", summary.Abandoned).
		Msg("scanned")
	return results, nil
}

func streamOptions(cfg types.Config, source string) stream.Options {
	return stream.Options{
		Source:       source,
		Normalize:    cfg.Extract.Normalize,
		MaxOpenLines: cfg.Extract.MaxOpenLines,
	}
}

func init() {
	addIndicatorFlags(extractCmd)
	extractCmd.Flags().StringP("format", "f", string(types.FormatList), "output format: list, yaml, or json")
	extractCmd.Flags().Bool("unique", false, "skip fragments whose text was already written")
	extractCmd.Flags().Bool("normalize", false, "apply Unicode NFC normalization before scanning")
	extractCmd.Flags().Int("max-open-lines", 0, "abandon a fragment open for more than this many lines (0 = never)")
	extractCmd.Flags().IntP("jobs", "j", 4, "number of files scanned concurrently")

	viper.BindPFlag("extract.format", extractCmd.Flags().Lookup("format"))
	viper.BindPFlag("extract.unique", extractCmd.Flags().Lookup("unique"))
	viper.BindPFlag("extract.normalize", extractCmd.Flags().Lookup("normalize"))
	viper.BindPFlag("extract.max_open_lines", extractCmd.Flags().Lookup("max-open-lines"))
	viper.BindPFlag("extract.jobs", extractCmd.Flags().Lookup("jobs"))

	rootCmd.AddCommand(extractCmd)
}
