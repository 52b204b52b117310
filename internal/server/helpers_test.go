package server

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/MeKo-Tech/gobar/internal/barcode"
	"github.com/MeKo-Tech/gobar/internal/generator"
	"github.com/MeKo-Tech/gobar/internal/testutil"
	"github.com/stretchr/testify/require"
)

// newTestServer returns a server backed by a real generator.
func newTestServer(t *testing.T, cfg Config) *Server {
	t.Helper()
	gen, err := generator.New(generator.Config{Workers: 2, QueueSize: 8})
	require.NoError(t, err)
	s, err := NewServer(cfg, gen)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// stubGenerator rejects every submission with err.
type stubGenerator struct {
	err    error
	closed bool
}

func (g *stubGenerator) TrySubmit(context.Context, barcode.Request, generator.Listener) (*generator.Task, error) {
	return nil, g.err
}

func (g *stubGenerator) Stats() generator.PoolStats {
	return generator.PoolStats{Workers: 3, QueueSize: 6, Queued: 6, Active: 3}
}

func (g *stubGenerator) EncoderName() string { return "stub" }

func (g *stubGenerator) Close() error {
	g.closed = true
	return nil
}

// rasterPNG renders text with the default encoder and encodes it as PNG.
func rasterPNG(t *testing.T, text string) []byte {
	t.Helper()
	img, err := barcode.NewRasterizer(nil).Rasterize(text)
	require.NoError(t, err)
	return testutil.EncodePNG(t, img)
}

// createMultipartRequest creates a multipart form request with an image file.
func createMultipartRequest(t *testing.T, field, filename string, data []byte) *http.Request {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/decode", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

// textPNG is an image with printed text but no symbol.
func textPNG(t *testing.T) []byte {
	t.Helper()
	return testutil.EncodePNG(t, testutil.CreateTestImageWithText("NO BARCODE HERE", 300, 100))
}
