package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/MeKo-Tech/gobar/internal/barcode"
	"github.com/MeKo-Tech/gobar/internal/generator"
	"github.com/disintegration/imaging"
)

const maxJSONBody = 64 * 1024

// healthHandler returns server health status.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := HealthResponse{
		Status:  "healthy",
		Version: s.version,
		Time:    time.Now().UTC().Format(time.RFC3339),
	}
	if s.gen != nil {
		stats := s.gen.Stats()
		response.Encoder = s.gen.EncoderName()
		response.Workers = stats.Workers
		response.Queued = stats.Queued
		response.Active = stats.Active
	}

	s.writeJSON(w, http.StatusOK, response)
}

// barcodeHandler generates a barcode from GET query parameters or a POST JSON body.
func (s *Server) barcodeHandler(w http.ResponseWriter, r *http.Request) {
	var (
		body BarcodeRequest
		err  error
	)
	switch r.Method {
	case http.MethodGet:
		body, err = barcodeRequestFromQuery(r)
	case http.MethodPost:
		body, err = s.barcodeRequestFromBody(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err != nil {
		s.writeErrorResponse(w, err.Error(), "bad_request", http.StatusBadRequest)
		return
	}

	req, err := s.toRequest(body)
	if err != nil {
		s.writeErrorResponse(w, err.Error(), "bad_request", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	start := time.Now()
	task, out, err := s.run(ctx, req)
	barcodeRequestDuration.WithLabelValues(req.Mode.String()).Observe(time.Since(start).Seconds())
	if err != nil {
		barcodeRequestsTotal.WithLabelValues(req.Mode.String(), errorType(err)).Inc()
		s.logger.Debug("Barcode request failed", "mode", req.Mode.String(), "error", err)
		s.writeError(w, err)
		return
	}
	barcodeRequestsTotal.WithLabelValues(req.Mode.String(), "success").Inc()

	var verified *bool
	if body.Verify {
		ok, err := s.verify(ctx, out, req.Text)
		if err != nil {
			s.writeError(w, err)
			return
		}
		verified = &ok
		w.Header().Set("X-Barcode-Verified", strconv.FormatBool(ok))
	}

	w.Header().Set("X-Request-ID", task.ID())
	s.writeOutcome(w, task.ID(), out, verified)
}

// run submits req to the worker pool and waits for the outcome. The task is
// cancelled when ctx ends first.
func (s *Server) run(ctx context.Context, req barcode.Request) (*generator.Task, barcode.Outcome, error) {
	if s.gen == nil {
		return nil, barcode.Outcome{}, generator.ErrPoolClosed
	}
	task, err := s.gen.TrySubmit(ctx, req, nil)
	if err != nil {
		return nil, barcode.Outcome{}, err
	}
	out, err := task.Wait(ctx)
	if err != nil && ctx.Err() != nil {
		task.Cancel()
	}
	return task, out, err
}

func (s *Server) writeOutcome(w http.ResponseWriter, id string, out barcode.Outcome, verified *bool) {
	switch out.Kind {
	case barcode.ModeBase64:
		s.writeJSON(w, http.StatusOK, BarcodeResponse{
			Success:   true,
			RequestID: id,
			Mode:      out.Kind.String(),
			Data:      out.Text,
			Width:     out.Width(),
			Height:    out.Height(),
			Verified:  verified,
		})
	case barcode.ModeBytes:
		w.Header().Set("Content-Type", "image/jpeg")
		w.Header().Set("Content-Length", strconv.Itoa(len(out.Bytes)))
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write(out.Bytes); err != nil {
			s.logger.Error("Failed to write barcode response", "error", err)
		}
	case barcode.ModeImage:
		var buf bytes.Buffer
		if err := imaging.Encode(&buf, out.Image, imaging.PNG); err != nil {
			s.writeError(w, &barcode.FormatterError{Mode: out.Kind, Err: err})
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write(buf.Bytes()); err != nil {
			s.logger.Error("Failed to write barcode response", "error", err)
		}
	default:
		s.writeError(w, barcode.ErrNullResult)
	}
}

// verify scans the generated artifact and reports whether it decodes back to text.
func (s *Server) verify(ctx context.Context, out barcode.Outcome, text string) (bool, error) {
	results, err := s.reader.DecodeOutcome(ctx, out, barcode.Options{})

	ok := err == nil && len(results) > 0 && results[0].Value == text
	switch {
	case errors.Is(err, barcode.ErrNotFound), err == nil:
		verificationsTotal.WithLabelValues(strconv.FormatBool(ok)).Inc()
		return ok, nil
	default:
		return false, err
	}
}

// decodeHandler scans an uploaded image for a Code 128 symbol.
func (s *Server) decodeHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	limit := s.maxUploadMB * 1024 * 1024
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	if err := r.ParseMultipartForm(limit); err != nil {
		s.writeErrorResponse(w, "Failed to parse form data", "bad_request", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		s.writeErrorResponse(w, "No image file provided", "bad_request", http.StatusBadRequest)
		return
	}
	defer func() { _ = file.Close() }()

	if header.Size > limit {
		s.writeErrorResponse(w, "File too large", "bad_request", http.StatusRequestEntityTooLarge)
		return
	}
	uploadSizeBytes.Observe(float64(header.Size))

	data, err := io.ReadAll(file)
	if err != nil {
		s.writeErrorResponse(w, "Failed to read image data", "internal_error", http.StatusInternalServerError)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	results, err := s.reader.DecodeBytes(ctx, data, barcode.Options{TryHarder: true})
	if err != nil {
		s.writeError(w, err)
		return
	}

	response := DecodeResponse{Success: true, Results: make([]DecodedSymbol, 0, len(results))}
	for _, res := range results {
		response.Results = append(response.Results, DecodedSymbol{
			Format: res.Type.String(),
			Text:   res.Value,
			X:      res.BBox.Min.X,
			Y:      res.BBox.Min.Y,
			Width:  res.BBox.Dx(),
			Height: res.BBox.Dy(),
		})
	}
	s.writeJSON(w, http.StatusOK, response)
}

func barcodeRequestFromQuery(r *http.Request) (BarcodeRequest, error) {
	q := r.URL.Query()
	req := BarcodeRequest{Text: q.Get("text"), Mode: q.Get("mode")}
	if v := q.Get("verify"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return req, fmt.Errorf("invalid verify value %q", v)
		}
		req.Verify = b
	}
	return req, nil
}

func (s *Server) barcodeRequestFromBody(w http.ResponseWriter, r *http.Request) (BarcodeRequest, error) {
	var req BarcodeRequest
	if ct := r.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "application/json") {
		return req, fmt.Errorf("unsupported content type %q", ct)
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		return req, fmt.Errorf("invalid JSON body: %w", err)
	}
	return req, nil
}

// toRequest resolves the output mode, falling back to the server default.
func (s *Server) toRequest(body BarcodeRequest) (barcode.Request, error) {
	mode := s.defaultMode
	if body.Mode != "" {
		m, err := barcode.ParseMode(body.Mode)
		if err != nil {
			return barcode.Request{}, err
		}
		mode = m
	}
	return barcode.Request{Text: body.Text, Mode: mode}, nil
}

// statusForError maps generation and decoding failures to HTTP status codes.
func statusForError(err error) int {
	var encErr *barcode.EncodingError
	switch {
	case errors.As(err, &encErr), errors.Is(err, barcode.ErrNotFound):
		return http.StatusUnprocessableEntity
	case errors.Is(err, barcode.ErrInvalidImage):
		return http.StatusBadRequest
	case errors.Is(err, generator.ErrPoolFull), errors.Is(err, generator.ErrPoolClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// errorType extends barcode.ErrorType with transport-level classifications.
func errorType(err error) string {
	switch {
	case errors.Is(err, generator.ErrPoolFull), errors.Is(err, generator.ErrPoolClosed):
		return "unavailable"
	case errors.Is(err, barcode.ErrNotFound):
		return "not_found"
	case errors.Is(err, barcode.ErrInvalidImage):
		return "bad_request"
	default:
		return barcode.ErrorType(err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusForError(err)
	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", "1")
	}
	s.writeErrorResponse(w, err.Error(), errorType(err), status)
}

// writeErrorResponse writes a JSON error response.
func (s *Server) writeErrorResponse(w http.ResponseWriter, message, errType string, statusCode int) {
	s.writeJSON(w, statusCode, ErrorResponse{
		Success:   false,
		Error:     message,
		ErrorType: errType,
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// Headers are gone; nothing left to tell the client.
		s.logger.Error("Error encoding response", "error", err)
	}
}
