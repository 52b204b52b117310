package barcode

import (
	"fmt"
	"image"
	"strings"
)

const (
	// Width is the fixed raster width in pixels.
	Width = 512
	// Height is the fixed raster height in pixels.
	Height = 256
	// JPEGQuality is the quality used for the compressed output modes.
	JPEGQuality = 100
)

// Format represents a barcode symbology.
type Format int

const (
	FormatUnknown Format = iota
	FormatCode128
)

func (f Format) String() string {
	switch f {
	case FormatCode128:
		return "code128"
	default:
		return "unknown"
	}
}

// Mode selects the artifact produced for a request.
type Mode int

const (
	// ModeImage returns the uncompressed raster.
	ModeImage Mode = iota
	// ModeBase64 returns the JPEG bytes as standard base64 without line wrapping.
	ModeBase64
	// ModeBytes returns the raw JPEG bytes.
	ModeBytes
)

func (m Mode) String() string {
	switch m {
	case ModeImage:
		return "image"
	case ModeBase64:
		return "base64"
	case ModeBytes:
		return "bytes"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ParseMode maps a user supplied mode name to a Mode.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "image", "bitmap", "raster":
		return ModeImage, nil
	case "base64", "string", "text":
		return ModeBase64, nil
	case "bytes", "byte-array", "bytearray", "jpeg", "jpg":
		return ModeBytes, nil
	default:
		return 0, fmt.Errorf("unknown output mode %q (must be one of: image, base64, bytes)", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Mode) UnmarshalText(b []byte) error {
	parsed, err := ParseMode(string(b))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Request describes a single generation.
type Request struct {
	Text string `json:"text"`
	Mode Mode   `json:"mode"`
}

// PresenceMatrix is a grid of bar/space cells produced by an Encoder.
type PresenceMatrix interface {
	Width() int
	Height() int
	// Get reports whether the cell at (x, y) is a bar.
	Get(x, y int) bool
}

// Outcome is the artifact of a successful generation. Exactly one of Image,
// Text or Bytes is set, matching Kind.
type Outcome struct {
	Kind  Mode
	Image *image.RGBA
	Text  string
	Bytes []byte
}

// Width returns the pixel width of the raster behind the outcome.
func (o Outcome) Width() int {
	if o.Image != nil {
		return o.Image.Bounds().Dx()
	}
	return Width
}

// Height returns the pixel height of the raster behind the outcome.
func (o Outcome) Height() int {
	if o.Image != nil {
		return o.Image.Bounds().Dy()
	}
	return Height
}

// Options controls Reader behavior.
type Options struct {
	// TryHarder enables more exhaustive search (slower but more robust).
	TryHarder bool

	// ROI optionally restricts decoding to a sub-rectangle of the image.
	// If zero-sized or out of bounds it is ignored.
	ROI image.Rectangle
}

// Point is an integer point in image coordinates.
type Point struct {
	X int
	Y int
}

// Result represents a decoded barcode.
type Result struct {
	Type   Format
	Value  string
	Points []Point
	BBox   image.Rectangle
}
