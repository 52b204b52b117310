package barcode

import (
	gozxing "github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/oned"
)

// zxingEncoder renders Code 128 with gozxing's one-dimensional writer, which
// centers the symbol and adds a quiet zone on both sides.
type zxingEncoder struct{}

func (z *zxingEncoder) Name() string { return EncoderZXing }

func (z *zxingEncoder) Encode(text string, width, height int) (PresenceMatrix, error) {
	if text == "" {
		return nil, ErrEmptyContent
	}
	writer := oned.NewCode128Writer()
	bm, err := writer.Encode(text, gozxing.BarcodeFormat_CODE_128, width, height, nil)
	if err != nil {
		return nil, err
	}
	return zxingMatrix{bm}, nil
}

type zxingMatrix struct {
	bm *gozxing.BitMatrix
}

func (m zxingMatrix) Width() int        { return m.bm.GetWidth() }
func (m zxingMatrix) Height() int       { return m.bm.GetHeight() }
func (m zxingMatrix) Get(x, y int) bool { return m.bm.Get(x, y) }
