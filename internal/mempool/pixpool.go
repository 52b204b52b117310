// Package mempool pools pixel buffers for barcode rasters to reduce
// allocations on the generation hot path.
package mempool

import (
	"image"
	"sync"
)

var pixPools sync.Map // key: size class (int), value: *sync.Pool

// sizeClass rounds n up to the next multiple of 1024 bytes.
func sizeClass(n int) int {
	if n <= 1024 {
		return 1024
	}
	const step = 1024
	r := (n + step - 1) / step
	return r * step
}

func poolFor(cls int) *sync.Pool {
	pAny, _ := pixPools.LoadOrStore(cls, &sync.Pool{New: func() any {
		buf := make([]uint8, cls)
		return &buf
	}})
	return pAny.(*sync.Pool) //nolint:forcetypeassert // only *sync.Pool is stored
}

// GetPix retrieves a []uint8 buffer of length n. Contents are not cleared;
// callers must overwrite every byte they read back.
func GetPix(n int) []uint8 {
	cls := sizeClass(n)
	bufPtr, ok := poolFor(cls).Get().(*[]uint8)
	if !ok || cap(*bufPtr) < cls {
		buf := make([]uint8, cls)
		return buf[:n]
	}
	return (*bufPtr)[:n]
}

// PutPix returns a buffer to the pool. It is safe to pass a nil slice.
func PutPix(buf []uint8) {
	if buf == nil {
		return
	}
	// Buffers are filed under the largest class they can fully serve.
	c := cap(buf)
	if c < 1024 {
		return
	}
	cls := c - c%1024
	buf = buf[:cap(buf)]
	poolFor(cls).Put(&buf)
}

// GetRGBA returns a w x h RGBA image backed by a pooled buffer. Pixel
// contents are undefined.
func GetRGBA(w, h int) *image.RGBA {
	return &image.RGBA{
		Pix:    GetPix(4 * w * h),
		Stride: 4 * w,
		Rect:   image.Rect(0, 0, w, h),
	}
}

// PutRGBA releases img's buffer. img must not be used afterwards.
func PutRGBA(img *image.RGBA) {
	if img == nil {
		return
	}
	PutPix(img.Pix)
	img.Pix = nil
}
