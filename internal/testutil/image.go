package testutil

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"os"
	"testing"

	"github.com/MeKo-Tech/gobar/internal/barcode"
	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// DecodeImage decodes PNG, JPEG, GIF, BMP or TIFF data.
func DecodeImage(data []byte) (image.Image, error) {
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return img, nil
}

// LoadImageFile loads an image from the specified path.
func LoadImageFile(path string) (image.Image, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: test files with controlled paths
	if err != nil {
		return nil, fmt.Errorf("failed to open image file %s: %w", path, err)
	}
	return DecodeImage(data)
}

// RequireImage decodes data or fails the test.
func RequireImage(t *testing.T, data []byte) image.Image {
	t.Helper()
	img, err := DecodeImage(data)
	require.NoError(t, err)
	return img
}

// CheckRasterSize reports an error unless img has the fixed barcode raster size.
func CheckRasterSize(img image.Image) error {
	if w, h := img.Bounds().Dx(), img.Bounds().Dy(); w != barcode.Width || h != barcode.Height {
		return fmt.Errorf("image is %dx%d, want %dx%d", w, h, barcode.Width, barcode.Height)
	}
	return nil
}

// RequireRasterSize fails the test unless img is a full barcode raster.
func RequireRasterSize(t *testing.T, img image.Image) {
	t.Helper()
	require.NoError(t, CheckRasterSize(img))
}

// IsBlackAndWhite reports whether every pixel of img is pure black or pure white.
func IsBlackAndWhite(img image.Image) bool {
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := img.At(x, y).RGBA()
			if !(r == g && g == bl && (r == 0 || r == 0xffff)) {
				return false
			}
		}
	}
	return true
}

// DecodeText scans encoded image data and returns the barcode content.
func DecodeText(data []byte) (string, error) {
	results, err := barcode.NewReader().DecodeBytes(context.Background(), data, barcode.Options{TryHarder: true})
	if err != nil {
		return "", err
	}
	return results[0].Value, nil
}

// EncodePNG encodes img as PNG or fails the test.
func EncodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, imaging.Encode(&buf, img, imaging.PNG))
	return buf.Bytes()
}

// CreateTestImage creates a uniformly colored image.
func CreateTestImage(width, height int, background color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), &image.Uniform{background}, image.Point{}, draw.Src)
	return img
}

// CreateTestImageWithText renders text in a bitmap font on white. The result
// contains dark strokes but no barcode.
func CreateTestImageWithText(text string, width, height int) *image.RGBA {
	img := CreateTestImage(width, height, color.White)
	face := basicfont.Face7x13

	drawer := &font.Drawer{Dst: img, Src: image.NewUniform(color.Black), Face: face}
	textWidth := font.MeasureString(face, text).Ceil()
	textHeight := face.Metrics().Height.Ceil()
	drawer.Dot = fixed.P((width-textWidth)/2, (height+textHeight)/2)
	drawer.DrawString(text)
	return img
}
