package barcode

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"image/draw"
	_ "image/jpeg"
	_ "image/png"

	gozxing "github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/oned"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
)

// Reader decodes Code 128 symbols from images. It is used to check that
// generated output is scannable.
type Reader struct{}

// NewReader returns a Code 128 reader.
func NewReader() *Reader { return &Reader{} }

// Decode scans img for a Code 128 symbol.
func (r *Reader) Decode(ctx context.Context, img image.Image, opts Options) ([]Result, error) {
	if img == nil {
		return nil, ErrNullResult
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if !opts.ROI.Empty() {
		if roiImg, ok := subImage(img, opts.ROI); ok {
			img = roiImg
		}
	}

	hints := map[gozxing.DecodeHintType]interface{}{
		gozxing.DecodeHintType_POSSIBLE_FORMATS: []gozxing.BarcodeFormat{gozxing.BarcodeFormat_CODE_128},
	}
	if opts.TryHarder {
		hints[gozxing.DecodeHintType_TRY_HARDER] = true
	}

	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return nil, fmt.Errorf("prepare bitmap: %w", err)
	}
	res, err := oned.NewCode128Reader().Decode(bmp, hints)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotFound, err)
	}

	var points []Point
	for _, p := range res.GetResultPoints() {
		points = append(points, Point{X: int(p.GetX()), Y: int(p.GetY())})
	}
	return []Result{{
		Type:   mapFormatFromZXing(res.GetBarcodeFormat()),
		Value:  res.GetText(),
		Points: points,
		BBox:   rectFromPoints(points),
	}}, nil
}

// DecodeBytes decodes an encoded image (JPEG, PNG, BMP or TIFF) and scans it.
func (r *Reader) DecodeBytes(ctx context.Context, data []byte, opts Options) ([]Result, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	return r.Decode(ctx, img, opts)
}

// DecodeOutcome scans the artifact of a generation, whatever its mode.
func (r *Reader) DecodeOutcome(ctx context.Context, out Outcome, opts Options) ([]Result, error) {
	switch out.Kind {
	case ModeImage:
		return r.Decode(ctx, out.Image, opts)
	case ModeBytes:
		return r.DecodeBytes(ctx, out.Bytes, opts)
	case ModeBase64:
		data, err := base64.StdEncoding.DecodeString(out.Text)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
		}
		return r.DecodeBytes(ctx, data, opts)
	default:
		return nil, ErrNullResult
	}
}

func mapFormatFromZXing(bf gozxing.BarcodeFormat) Format {
	if bf == gozxing.BarcodeFormat_CODE_128 {
		return FormatCode128
	}
	return FormatUnknown
}

func rectFromPoints(pts []Point) image.Rectangle {
	if len(pts) == 0 {
		return image.Rectangle{}
	}
	minX, minY := pts[0].X, pts[0].Y
	maxX, maxY := pts[0].X, pts[0].Y
	for _, p := range pts[1:] {
		minX = min(minX, p.X)
		minY = min(minY, p.Y)
		maxX = max(maxX, p.X)
		maxY = max(maxY, p.Y)
	}
	return image.Rect(minX, minY, maxX+1, maxY+1)
}

// subImage returns the part of img inside r, copying when img cannot share pixels.
func subImage(img image.Image, r image.Rectangle) (image.Image, bool) {
	rb := r.Intersect(img.Bounds())
	if rb.Empty() {
		return nil, false
	}
	type subImager interface{ SubImage(r image.Rectangle) image.Image }
	if s, ok := img.(subImager); ok {
		return s.SubImage(rb), true
	}
	dst := image.NewRGBA(image.Rect(0, 0, rb.Dx(), rb.Dy()))
	draw.Draw(dst, dst.Bounds(), img, rb.Min, draw.Src)
	return dst, true
}
