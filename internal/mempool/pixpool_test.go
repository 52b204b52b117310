package mempool

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSizeClass(t *testing.T) {
	tests := []struct {
		name     string
		input    int
		expected int
	}{
		{"small size gets minimum", 1, 1024},
		{"exactly 1024", 1024, 1024},
		{"just over 1024", 1025, 2048},
		{"odd number", 1500, 2048},
		{"barcode raster", 4 * 512 * 256, 4 * 512 * 256},
		{"zero size", 0, 1024},
		{"negative size", -1, 1024},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, sizeClass(tt.input))
		})
	}
}

func TestGetPix(t *testing.T) {
	for _, n := range []int{0, 10, 1024, 5000} {
		buf := GetPix(n)
		assert.Len(t, buf, n)
		assert.GreaterOrEqual(t, cap(buf), sizeClass(n))
		PutPix(buf)
	}
}

func TestPutPix_IgnoresSmallAndNil(t *testing.T) {
	assert.NotPanics(t, func() {
		PutPix(nil)
		PutPix(make([]uint8, 10))
	})
}

func TestGetRGBA(t *testing.T) {
	img := GetRGBA(512, 256)
	require.NotNil(t, img)
	assert.Equal(t, 512, img.Bounds().Dx())
	assert.Equal(t, 256, img.Bounds().Dy())
	assert.Equal(t, 4*512, img.Stride)
	assert.Len(t, img.Pix, 4*512*256)

	img.Pix[0] = 0xab
	PutRGBA(img)
	assert.Nil(t, img.Pix)
	assert.NotPanics(t, func() { PutRGBA(nil) })
}

func TestPixPool_Concurrent(t *testing.T) {
	var wg sync.WaitGroup
	for i := range 16 {
		wg.Add(1)
		go func(seed int) {
			defer wg.Done()
			for j := range 50 {
				img := GetRGBA(64+seed, 32+j%8)
				for k := range img.Pix {
					img.Pix[k] = uint8(seed)
				}
				assert.Equal(t, uint8(seed), img.Pix[len(img.Pix)-1])
				PutRGBA(img)
			}
		}(i)
	}
	wg.Wait()
}
