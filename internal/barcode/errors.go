package barcode

import (
	"context"
	"errors"
	"fmt"
)

// ErrNullResult is returned when the formatter receives no raster to convert.
var ErrNullResult = errors.New("cannot convert barcode")

// Reader failures.
var (
	ErrNotFound     = errors.New("no readable barcode found")
	ErrInvalidImage = errors.New("invalid image data")
)

// EncodingError reports that the encoder rejected the input or the symbol does
// not fit into the raster.
type EncodingError struct {
	Text string
	Err  error
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("barcode encoding failed for %q: %v", e.Text, e.Err)
}

func (e *EncodingError) Unwrap() error { return e.Err }

// FormatterError reports a failure while compressing or encoding a raster.
type FormatterError struct {
	Mode Mode
	Err  error
}

func (e *FormatterError) Error() string {
	return fmt.Sprintf("barcode formatting failed (%s): %v", e.Mode, e.Err)
}

func (e *FormatterError) Unwrap() error { return e.Err }

// ErrorType returns a short machine-readable classification of err.
func ErrorType(err error) string {
	var encErr *EncodingError
	var fmtErr *FormatterError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &encErr):
		return "encoding_error"
	case errors.Is(err, ErrNullResult):
		return "null_result"
	case errors.As(err, &fmtErr):
		return "formatter_error"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "internal_error"
	}
}
