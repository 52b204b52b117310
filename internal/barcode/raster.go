package barcode

import (
	"errors"
	"fmt"
	"image"
	"image/color"

	"github.com/MeKo-Tech/gobar/internal/mempool"
)

var (
	black = color.RGBA{A: 0xff}
	white = color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
)

// Rasterizer paints encoder output into a fixed-size black/white image.
type Rasterizer struct {
	encoder Encoder
	width   int
	height  int
}

// NewRasterizer returns a Rasterizer producing Width x Height images.
// A nil encoder selects the zxing encoder.
func NewRasterizer(enc Encoder) *Rasterizer {
	if enc == nil {
		enc = &zxingEncoder{}
	}
	return &Rasterizer{encoder: enc, width: Width, height: Height}
}

// Encoder returns the encoder used by the rasterizer.
func (r *Rasterizer) Encoder() Encoder { return r.encoder }

// Rasterize encodes text and paints every pixel of a new image: black where the
// matrix cell is set, white otherwise. It returns an *EncodingError when the
// encoder rejects text or the symbol does not fit into the raster.
//
// The image is backed by a pooled buffer; callers that are done with it may
// hand it back with Release.
func (r *Rasterizer) Rasterize(text string) (*image.RGBA, error) {
	m, err := r.encoder.Encode(text, r.width, r.height)
	if err != nil {
		return nil, &EncodingError{Text: text, Err: err}
	}
	if m == nil {
		return nil, &EncodingError{Text: text, Err: errors.New("encoder returned no matrix")}
	}
	if m.Width() != r.width || m.Height() != r.height {
		return nil, &EncodingError{
			Text: text,
			Err: fmt.Errorf("symbol needs %dx%d pixels, capacity is %dx%d",
				m.Width(), m.Height(), r.width, r.height),
		}
	}

	img := mempool.GetRGBA(r.width, r.height)
	for x := 0; x < r.width; x++ {
		for y := 0; y < r.height; y++ {
			if m.Get(x, y) {
				img.SetRGBA(x, y, black)
			} else {
				img.SetRGBA(x, y, white)
			}
		}
	}
	return img, nil
}

// Release returns a raster produced by Rasterize to the buffer pool. img must
// not be used afterwards.
func (r *Rasterizer) Release(img *image.RGBA) {
	mempool.PutRGBA(img)
}
