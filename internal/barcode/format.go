package barcode

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
)

// Formatter converts a raster into the artifact for a Mode.
type Formatter struct {
	quality int
}

// NewFormatter returns a Formatter that compresses at JPEGQuality.
func NewFormatter() *Formatter {
	return &Formatter{quality: JPEGQuality}
}

// Format returns img unchanged for ModeImage. For ModeBase64 and ModeBytes img
// is compressed to JPEG and is not referenced by the returned Outcome.
func (f *Formatter) Format(img *image.RGBA, mode Mode) (Outcome, error) {
	if img == nil {
		return Outcome{}, ErrNullResult
	}

	switch mode {
	case ModeImage:
		return Outcome{Kind: ModeImage, Image: img}, nil
	case ModeBase64:
		data, err := f.jpeg(img)
		if err != nil {
			return Outcome{}, &FormatterError{Mode: mode, Err: err}
		}
		return Outcome{Kind: ModeBase64, Text: base64.StdEncoding.EncodeToString(data)}, nil
	case ModeBytes:
		data, err := f.jpeg(img)
		if err != nil {
			return Outcome{}, &FormatterError{Mode: mode, Err: err}
		}
		return Outcome{Kind: ModeBytes, Bytes: data}, nil
	default:
		return Outcome{}, &FormatterError{Mode: mode, Err: fmt.Errorf("unsupported mode %d", int(mode))}
	}
}

func (f *Formatter) jpeg(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(f.quality)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// SupportedImageExtensions lists file extensions SaveImage can write.
var SupportedImageExtensions = []string{".png", ".jpg", ".jpeg", ".gif", ".tif", ".tiff", ".bmp"}

// SaveImage writes img to path, choosing the image format from the file
// extension. JPEG files are written at JPEGQuality.
func SaveImage(img image.Image, path string) error {
	if img == nil {
		return ErrNullResult
	}
	ext := strings.ToLower(filepath.Ext(path))
	if _, err := imaging.FormatFromExtension(ext); err != nil {
		return fmt.Errorf("unsupported image extension %q: %w", ext, err)
	}
	return imaging.Save(img, path, imaging.JPEGQuality(JPEGQuality))
}
