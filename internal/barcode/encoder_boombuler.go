package barcode

import (
	"image/color"

	bbarcode "github.com/boombuler/barcode"
	"github.com/boombuler/barcode/code128"
)

// boombulerEncoder renders Code 128 with boombuler/barcode and reads the
// presence matrix back from the scaled symbol. The symbol has no quiet zone.
type boombulerEncoder struct{}

func (b *boombulerEncoder) Name() string { return EncoderBoombuler }

func (b *boombulerEncoder) Encode(text string, width, height int) (PresenceMatrix, error) {
	if text == "" {
		return nil, ErrEmptyContent
	}
	bc, err := code128.Encode(text)
	if err != nil {
		return nil, err
	}
	scaled, err := bbarcode.Scale(bc, width, height)
	if err != nil {
		return nil, err
	}

	bounds := scaled.Bounds()
	m := newBoolMatrix(bounds.Dx(), bounds.Dy())
	for y := 0; y < m.h; y++ {
		for x := 0; x < m.w; x++ {
			g := color.GrayModel.Convert(scaled.At(bounds.Min.X+x, bounds.Min.Y+y)).(color.Gray)
			m.set(x, y, g.Y < 128)
		}
	}
	return m, nil
}
