package cmd

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/MeKo-Tech/gobar/internal/barcode"
	"github.com/MeKo-Tech/gobar/internal/config"
	"github.com/MeKo-Tech/gobar/internal/generator"
	"github.com/spf13/cobra"
)

// batchCmd generates one barcode per input line.
var batchCmd = &cobra.Command{
	Use:   "batch FILE",
	Short: "Generate one barcode per line of a text file",
	Long: `Generate a Code 128 barcode for every non-empty line of FILE ("-" reads stdin).
Lines are processed in parallel on a worker pool; results are written to the
output directory as 0001.<ext>, 0002.<ext>, ... in input order.

Examples:
  gobar batch labels.txt --output-dir out/
  gobar batch labels.txt --mode bytes --workers 8 --progress
  cat labels.txt | gobar batch - --output-dir out/ --stats`,
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	RunE:         runBatchCommand,
}

// batchOptions are the resolved settings of one batch run.
type batchOptions struct {
	OutputDir       string
	Mode            barcode.Mode
	Workers         int
	ContinueOnError bool
	Progress        bool
	Stats           bool
	Generator       generator.Config
	ImageFormat     string
}

// configToBatchOptions maps centralized configuration to batchOptions.
// Flags that were set explicitly win over config values.
func configToBatchOptions(cfg *config.Config, cmd *cobra.Command) (batchOptions, error) {
	opts := batchOptions{
		OutputDir:       cfg.Output.Dir,
		Mode:            cfg.Mode(),
		Workers:         cfg.Batch.Workers,
		ContinueOnError: cfg.Batch.ContinueOnError,
		Generator:       cfg.ToGeneratorConfig(),
		ImageFormat:     cfg.Output.ImageFormat,
	}

	if cmd.Flags().Changed("output-dir") {
		opts.OutputDir, _ = cmd.Flags().GetString("output-dir")
	}
	if cmd.Flags().Changed("mode") {
		name, _ := cmd.Flags().GetString("mode")
		m, err := barcode.ParseMode(name)
		if err != nil {
			return opts, err
		}
		opts.Mode = m
	}
	if cmd.Flags().Changed("workers") {
		opts.Workers, _ = cmd.Flags().GetInt("workers")
	}
	if cmd.Flags().Changed("continue-on-error") {
		opts.ContinueOnError, _ = cmd.Flags().GetBool("continue-on-error")
	}
	if cmd.Flags().Changed("encoder") {
		opts.Generator.Encoder, _ = cmd.Flags().GetString("encoder")
	}
	opts.Progress, _ = cmd.Flags().GetBool("progress")
	opts.Stats, _ = cmd.Flags().GetBool("stats")

	if opts.Workers < 1 {
		return opts, fmt.Errorf("workers must be at least 1, got %d", opts.Workers)
	}
	opts.Generator.Workers = opts.Workers
	opts.Generator.QueueSize = 0
	opts.Generator.Logger = slog.Default()
	return opts, nil
}

func runBatchCommand(cmd *cobra.Command, args []string) error {
	opts, err := configToBatchOptions(GetConfig(), cmd)
	if err != nil {
		return err
	}

	texts, err := readInputLines(cmd, args[0])
	if err != nil {
		return err
	}
	if len(texts) == 0 {
		return fmt.Errorf("no input lines in %s", args[0])
	}

	gen, err := generator.New(opts.Generator)
	if err != nil {
		return fmt.Errorf("failed to create generator: %w", err)
	}
	defer func() { _ = gen.Close() }()

	var progress generator.ProgressCallback = generator.NoOpProgressCallback{}
	if opts.Progress {
		progress = generator.NewConsoleProgressCallback(cmd.ErrOrStderr(), "Generating: ")
	}

	slog.Info("Starting batch", "inputs", len(texts), "workers", opts.Workers, "mode", opts.Mode.String())
	start := time.Now()
	items, err := gen.GenerateBatch(cmd.Context(), texts, opts.Mode, progress)
	if err != nil {
		return fmt.Errorf("batch generation failed: %w", err)
	}
	stats := generator.CalculateBatchStats(items, time.Since(start), opts.Workers)

	if err := writeBatchItems(cmd.OutOrStdout(), items, opts); err != nil {
		return err
	}

	if opts.Stats {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(stats)
	}
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Generated %d/%d barcodes in %v (%.1f/s)\n",
		stats.Succeeded, stats.Total, stats.TotalDuration.Round(time.Millisecond), stats.ThroughputPerSec)
	return nil
}

// writeBatchItems stores every successful item. Without ContinueOnError the
// first failure stops writing and is returned.
func writeBatchItems(w io.Writer, items []generator.BatchItem, opts batchOptions) error {
	ext := artifactExt(opts.Mode, opts.ImageFormat)
	for _, it := range items {
		if it.Err != nil {
			slog.Warn("Batch item failed", "index", it.Index, "text", it.Text, "error", it.Err)
			if !opts.ContinueOnError {
				return fmt.Errorf("item %d (%q): %w", it.Index+1, it.Text, it.Err)
			}
			_, _ = fmt.Fprintf(w, "Skipped line %d: %v\n", it.Index+1, it.Err)
			continue
		}

		path := filepath.Join(opts.OutputDir, fmt.Sprintf("%04d%s", it.Index+1, ext))
		if err := writeArtifact(it.Outcome, path); err != nil {
			return fmt.Errorf("failed to write %s: %w", path, err)
		}
		slog.Debug("Batch item written", "index", it.Index, "path", path, "task_id", it.TaskID)
	}
	return nil
}

// readInputLines returns the non-empty lines of path, or of stdin for "-".
func readInputLines(cmd *cobra.Command, path string) ([]string, error) {
	var r io.Reader
	if path == "-" {
		r = cmd.InOrStdin()
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open input: %w", err)
		}
		defer func() { _ = f.Close() }()
		r = f
	}

	var lines []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines = append(lines, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read input: %w", err)
	}
	return lines, nil
}

func init() {
	rootCmd.AddCommand(batchCmd)
	batchCmd.Flags().StringP("output-dir", "d", ".", "directory for generated files")
	batchCmd.Flags().StringP("mode", "m", "base64", "output mode: image, base64 or bytes")
	batchCmd.Flags().IntP("workers", "w", 4, "number of parallel workers")
	batchCmd.Flags().StringP("encoder", "e", barcode.EncoderZXing,
		"encoder backend ("+strings.Join(barcode.EncoderNames(), ", ")+")")
	batchCmd.Flags().Bool("continue-on-error", true, "keep writing results after a failed line")
	batchCmd.Flags().Bool("progress", false, "show a progress bar on stderr")
	batchCmd.Flags().Bool("stats", false, "print batch statistics as JSON")
}
