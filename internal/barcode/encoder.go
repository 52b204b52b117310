package barcode

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Encoder names accepted by NewEncoder.
const (
	EncoderZXing     = "zxing"
	EncoderBoombuler = "boombuler"
)

// ErrEmptyContent is returned by encoders for zero-length input.
var ErrEmptyContent = errors.New("found empty contents")

// Encoder turns text into a Code 128 presence matrix of the requested size.
// Implementations must be safe for concurrent use.
type Encoder interface {
	Encode(text string, width, height int) (PresenceMatrix, error)
	Name() string
}

// NewEncoder returns the encoder registered under name. An empty name selects
// the zxing encoder.
func NewEncoder(name string) (Encoder, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", EncoderZXing, "gozxing":
		return &zxingEncoder{}, nil
	case EncoderBoombuler:
		return &boombulerEncoder{}, nil
	default:
		return nil, fmt.Errorf("unknown encoder %q (must be one of: %s, %s)", name, EncoderZXing, EncoderBoombuler)
	}
}

// EncoderNames lists the available encoder backends.
func EncoderNames() []string {
	return []string{EncoderZXing, EncoderBoombuler}
}

// Normalizing wraps enc so that input is NFKC normalized before encoding.
// Full-width digits and letters become their ASCII forms.
func Normalizing(enc Encoder) Encoder {
	if enc == nil {
		return nil
	}
	if _, ok := enc.(*normalizingEncoder); ok {
		return enc
	}
	return &normalizingEncoder{next: enc}
}

type normalizingEncoder struct {
	next Encoder
}

func (n *normalizingEncoder) Encode(text string, width, height int) (PresenceMatrix, error) {
	return n.next.Encode(norm.NFKC.String(text), width, height)
}

func (n *normalizingEncoder) Name() string { return n.next.Name() + "+nfkc" }

// boolMatrix is a dense PresenceMatrix.
type boolMatrix struct {
	w, h  int
	cells []bool
}

func newBoolMatrix(w, h int) *boolMatrix {
	return &boolMatrix{w: w, h: h, cells: make([]bool, w*h)}
}

func (m *boolMatrix) Width() int  { return m.w }
func (m *boolMatrix) Height() int { return m.h }

func (m *boolMatrix) Get(x, y int) bool {
	if x < 0 || y < 0 || x >= m.w || y >= m.h {
		return false
	}
	return m.cells[y*m.w+x]
}

func (m *boolMatrix) set(x, y int, v bool) { m.cells[y*m.w+x] = v }
