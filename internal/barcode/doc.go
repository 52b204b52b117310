// Package barcode renders Code 128 barcodes into fixed-size raster images and
// formats them as raw rasters, JPEG bytes or base64 text.
//
// Encoding is delegated to a pluggable Encoder. The default encoder wraps
// gozxing's Code 128 writer; an alternative backed by boombuler/barcode can be
// selected by name:
//
//	enc, _ := barcode.NewEncoder("boombuler")
//	r := barcode.NewRasterizer(enc)
//	img, err := r.Rasterize("123456")
package barcode
