package cmd

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/MeKo-Tech/gobar/internal/barcode"
	"github.com/MeKo-Tech/gobar/internal/generator"
	"github.com/spf13/cobra"
)

// generateCmd renders a single barcode.
var generateCmd = &cobra.Command{
	Use:   "generate TEXT",
	Short: "Generate a Code 128 barcode for TEXT",
	Long: `Generate a Code 128 barcode on a 512x256 raster.

Output modes:
  image   save the raster to --output (format chosen by extension, default barcode.png)
  base64  print the JPEG as base64 to stdout, or write it to --output
  bytes   write the JPEG bytes to --output or stdout

Examples:
  gobar generate "ORDER-4711"
  gobar generate "ORDER-4711" --mode image --output order.png
  gobar generate "ORDER-4711" --mode bytes > order.jpg
  gobar generate "ＡＢＣ１２３" --normalize --verify`,
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	RunE:         runGenerate,
}

func init() {
	rootCmd.AddCommand(generateCmd)
	generateCmd.Flags().StringP("mode", "m", "base64", "output mode: image, base64 or bytes")
	generateCmd.Flags().StringP("output", "o", "", "output file")
	generateCmd.Flags().StringP("encoder", "e", barcode.EncoderZXing,
		"encoder backend ("+strings.Join(barcode.EncoderNames(), ", ")+")")
	generateCmd.Flags().Bool("verify", false, "decode the result and check that it matches TEXT")
	generateCmd.Flags().Bool("normalize", false, "NFKC-normalize TEXT before encoding")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	text := args[0]

	mode := cfg.Mode()
	if cmd.Flags().Changed("mode") {
		name, _ := cmd.Flags().GetString("mode")
		m, err := barcode.ParseMode(name)
		if err != nil {
			return err
		}
		mode = m
	}

	genCfg := cfg.ToGeneratorConfig()
	genCfg.Workers = 1
	genCfg.QueueSize = 1
	genCfg.Logger = slog.Default()
	if cmd.Flags().Changed("encoder") {
		genCfg.Encoder, _ = cmd.Flags().GetString("encoder")
	}
	if cmd.Flags().Changed("normalize") {
		genCfg.Normalize, _ = cmd.Flags().GetBool("normalize")
	}

	gen, err := generator.New(genCfg)
	if err != nil {
		return fmt.Errorf("failed to create generator: %w", err)
	}
	defer func() { _ = gen.Close() }()

	slog.Debug("Generating barcode", "mode", mode.String(), "encoder", gen.EncoderName())
	out, err := gen.Generate(cmd.Context(), barcode.Request{Text: text, Mode: mode})
	if err != nil {
		return err
	}

	if verify, _ := cmd.Flags().GetBool("verify"); verify {
		if err := verifyOutcome(cmd.Context(), out, text, genCfg.Normalize); err != nil {
			return err
		}
		_, _ = fmt.Fprintln(cmd.ErrOrStderr(), "Verified: output decodes to the input text")
	}

	output, _ := cmd.Flags().GetString("output")
	if output == "" && mode == barcode.ModeImage {
		output = filepath.Join(cfg.Output.Dir, "barcode"+artifactExt(mode, cfg.Output.ImageFormat))
	}

	if output == "" {
		switch out.Kind {
		case barcode.ModeBase64:
			_, err = fmt.Fprintln(cmd.OutOrStdout(), out.Text)
		default:
			_, err = cmd.OutOrStdout().Write(out.Bytes)
		}
		return err
	}

	if err := writeArtifact(out, output); err != nil {
		return fmt.Errorf("failed to write %s: %w", output, err)
	}
	slog.Info("Barcode written", "path", output, "mode", mode.String())
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Saved barcode to %s\n", output)
	return nil
}
