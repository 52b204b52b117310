package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/MeKo-Tech/gobar/internal/barcode"
	"github.com/MeKo-Tech/gobar/internal/generator"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// barcodeGenerator is the part of *generator.Generator the server needs.
type barcodeGenerator interface {
	TrySubmit(ctx context.Context, req barcode.Request, l generator.Listener) (*generator.Task, error)
	Stats() generator.PoolStats
	EncoderName() string
	Close() error
}

// Server holds the HTTP server state and dependencies.
type Server struct {
	gen         barcodeGenerator
	reader      *barcode.Reader
	defaultMode barcode.Mode
	corsOrigin  string
	maxUploadMB int64
	timeout     time.Duration
	rateLimiter *RateLimiter
	version     string
	logger      *slog.Logger
}

// Config holds server configuration.
type Config struct {
	Host        string
	Port        int
	CORSOrigin  string
	MaxUploadMB int64
	TimeoutSec  int
	DefaultMode barcode.Mode
	Version     string
	RateLimit   RateLimitConfig
	Logger      *slog.Logger
}

// RateLimitConfig holds per-client request limits. Zero disables a limit.
type RateLimitConfig struct {
	Enabled           bool
	RequestsPerMinute int
	RequestsPerHour   int
	MaxRequestsPerDay int
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Time    string `json:"time"`
	Encoder string `json:"encoder,omitempty"`
	Workers int    `json:"workers"`
	Queued  int    `json:"queued"`
	Active  int    `json:"active"`
}

// BarcodeRequest is the body of POST /barcode.
type BarcodeRequest struct {
	Text   string `json:"text"`
	Mode   string `json:"mode,omitempty"`
	Verify bool   `json:"verify,omitempty"`
}

// BarcodeResponse is the JSON answer for base64 output.
type BarcodeResponse struct {
	Success   bool   `json:"success"`
	RequestID string `json:"request_id,omitempty"`
	Mode      string `json:"mode"`
	Data      string `json:"data"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	Verified  *bool  `json:"verified,omitempty"`
}

// DecodeResponse is returned by POST /decode.
type DecodeResponse struct {
	Success bool            `json:"success"`
	Results []DecodedSymbol `json:"results"`
}

// DecodedSymbol is one symbol found by POST /decode.
type DecodedSymbol struct {
	Format string `json:"format"`
	Text   string `json:"text"`
	X      int    `json:"x"`
	Y      int    `json:"y"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// ErrorResponse is the JSON body of every failed request.
type ErrorResponse struct {
	Success   bool   `json:"success"`
	Error     string `json:"error"`
	ErrorType string `json:"error_type"`
}

// NewServer creates a barcode server around gen. The server owns gen and
// closes it in Close.
func NewServer(config Config, gen *generator.Generator) (*Server, error) {
	if gen == nil {
		return nil, errors.New("server: generator is required")
	}
	return newServer(config, gen), nil
}

func newServer(config Config, gen barcodeGenerator) *Server {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	maxUpload := config.MaxUploadMB
	if maxUpload <= 0 {
		maxUpload = 10
	}
	timeout := time.Duration(config.TimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	s := &Server{
		gen:         gen,
		reader:      barcode.NewReader(),
		defaultMode: config.DefaultMode,
		corsOrigin:  config.CORSOrigin,
		maxUploadMB: maxUpload,
		timeout:     timeout,
		version:     config.Version,
		logger:      logger,
	}
	if rl := config.RateLimit; rl.Enabled {
		s.rateLimiter = NewRateLimiter(rl.RequestsPerMinute, rl.RequestsPerHour, rl.MaxRequestsPerDay)
	}
	return s
}

// Close releases server resources and waits for queued generations.
func (s *Server) Close() error {
	if s.gen != nil {
		return s.gen.Close()
	}
	return nil
}

// SetupRoutes configures the HTTP routes.
func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", s.instrument("/health", s.corsMiddleware(s.healthHandler)))
	mux.HandleFunc("/barcode", s.instrument("/barcode", s.corsMiddleware(s.rateLimitMiddleware(s.barcodeHandler))))
	mux.HandleFunc("/decode", s.instrument("/decode", s.corsMiddleware(s.rateLimitMiddleware(s.decodeHandler))))
	// The upgrade needs the raw ResponseWriter (http.Hijacker), so /ws is not instrumented.
	mux.HandleFunc("/ws", s.rateLimitMiddleware(s.barcodeWebSocketHandler))
	mux.Handle("/metrics", promhttp.Handler())
}

// PruneRateLimits drops rate limit state of clients idle for longer than maxIdle.
func (s *Server) PruneRateLimits(maxIdle time.Duration) int {
	if s.rateLimiter == nil {
		return 0
	}
	return s.rateLimiter.Prune(maxIdle)
}
