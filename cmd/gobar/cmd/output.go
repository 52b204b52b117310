package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/MeKo-Tech/gobar/internal/barcode"
	"golang.org/x/text/unicode/norm"
)

// artifactExt returns the file extension for an outcome of mode.
func artifactExt(mode barcode.Mode, imageFormat string) string {
	switch mode {
	case barcode.ModeImage:
		if imageFormat == "" {
			imageFormat = "png"
		}
		return "." + imageFormat
	case barcode.ModeBytes:
		return ".jpg"
	default:
		return ".b64"
	}
}

// writeArtifact stores out at path. Images are encoded by extension.
func writeArtifact(out barcode.Outcome, path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	switch out.Kind {
	case barcode.ModeImage:
		return barcode.SaveImage(out.Image, path)
	case barcode.ModeBase64:
		return os.WriteFile(path, []byte(out.Text), 0o644)
	case barcode.ModeBytes:
		return os.WriteFile(path, out.Bytes, 0o644)
	default:
		return barcode.ErrNullResult
	}
}

// verifyOutcome decodes out and checks it against the text that was encoded.
func verifyOutcome(ctx context.Context, out barcode.Outcome, text string, normalized bool) error {
	want := text
	if normalized {
		want = norm.NFKC.String(text)
	}

	results, err := barcode.NewReader().DecodeOutcome(ctx, out, barcode.Options{TryHarder: true})
	if err != nil {
		return fmt.Errorf("verification failed: %w", err)
	}
	if got := results[0].Value; got != want {
		return fmt.Errorf("verification failed: decoded %q, want %q", got, want)
	}
	return nil
}
