package testutil

import (
	"image/color"
	"path/filepath"
	"testing"

	"github.com/MeKo-Tech/gobar/internal/barcode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeImageRoundTrip(t *testing.T) {
	img := CreateTestImage(barcode.Width, barcode.Height, color.White)

	decoded := RequireImage(t, EncodePNG(t, img))
	RequireRasterSize(t, decoded)
	assert.True(t, IsBlackAndWhite(decoded))

	_, err := DecodeImage([]byte("garbage"))
	assert.Error(t, err)
}

func TestCheckRasterSize(t *testing.T) {
	assert.NoError(t, CheckRasterSize(CreateTestImage(barcode.Width, barcode.Height, color.Black)))
	assert.EqualError(t, CheckRasterSize(CreateTestImage(10, 20, color.Black)), "image is 10x20, want 512x256")
}

func TestIsBlackAndWhite(t *testing.T) {
	assert.True(t, IsBlackAndWhite(CreateTestImage(4, 4, color.Black)))
	assert.False(t, IsBlackAndWhite(CreateTestImage(4, 4, color.Gray{Y: 128})))
}

func TestCreateTestImageWithText(t *testing.T) {
	img := CreateTestImageWithText("NO BARCODE", 200, 60)
	assert.Equal(t, 200, img.Bounds().Dx())
	assert.NotEqual(t, CreateTestImage(200, 60, color.White).Pix, img.Pix)

	_, err := DecodeText(EncodePNG(t, img))
	assert.ErrorIs(t, err, barcode.ErrNotFound)
}

func TestDecodeText(t *testing.T) {
	raster, err := barcode.NewRasterizer(nil).Rasterize("TU-1")
	require.NoError(t, err)

	text, err := DecodeText(EncodePNG(t, raster))
	require.NoError(t, err)
	assert.Equal(t, "TU-1", text)
}

func TestLoadImageFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "img.png")
	require.NoError(t, barcode.SaveImage(CreateTestImage(8, 8, color.White), path))

	img, err := LoadImageFile(path)
	require.NoError(t, err)
	assert.Equal(t, 8, img.Bounds().Dx())

	_, err = LoadImageFile(filepath.Join(t.TempDir(), "missing.png"))
	assert.Error(t, err)
}

func TestInputFixtures(t *testing.T) {
	for _, f := range InputFixtures() {
		_, err := barcode.NewRasterizer(nil).Rasterize(f.Text)
		if f.Valid {
			assert.NoError(t, err, f.Name)
		} else {
			assert.Error(t, err, f.Name)
		}
	}

	assert.Contains(t, ValidInputs(), "123456")
	assert.NotContains(t, ValidInputs(), "")

	path := WriteLines(t, t.TempDir(), "in.txt", []string{"a", "b"})
	assert.Equal(t, "a\nb\n", string(ReadFile(t, path)))
}
