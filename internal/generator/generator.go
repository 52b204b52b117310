// Package generator runs barcode generation requests on a bounded worker pool
// and reports their lifecycle to listeners.
package generator

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/MeKo-Tech/gobar/internal/barcode"
	"github.com/google/uuid"
)

// Config holds generator settings.
type Config struct {
	Encoder   string // encoder backend name, see barcode.EncoderNames
	Normalize bool   // NFKC-normalize input text before encoding
	Workers   int    // worker goroutines (0 = runtime.NumCPU())
	QueueSize int    // pending request slots (0 = 4 per worker)
	Logger    *slog.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Encoder:   barcode.EncoderZXing,
		Workers:   runtime.NumCPU(),
		QueueSize: 0,
	}
}

// Generator turns requests into barcode outcomes.
type Generator struct {
	rasterizer *barcode.Rasterizer
	formatter  *barcode.Formatter
	pool       *Pool
	logger     *slog.Logger
}

// New builds a Generator and starts its worker pool.
func New(cfg Config) (*Generator, error) {
	enc, err := barcode.NewEncoder(cfg.Encoder)
	if err != nil {
		return nil, err
	}
	if cfg.Normalize {
		enc = barcode.Normalizing(enc)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Generator{
		rasterizer: barcode.NewRasterizer(enc),
		formatter:  barcode.NewFormatter(),
		pool:       NewPool(cfg.Workers, cfg.QueueSize),
		logger:     logger,
	}, nil
}

// EncoderName reports the encoder backend in use.
func (g *Generator) EncoderName() string { return g.rasterizer.Encoder().Name() }

// Stats returns worker pool occupancy.
func (g *Generator) Stats() PoolStats { return g.pool.Stats() }

// Close stops accepting requests and waits for queued ones to finish. A
// second Close returns ErrPoolClosed.
func (g *Generator) Close() error {
	return g.pool.Close()
}

// Generate runs the request on the calling goroutine.
func (g *Generator) Generate(ctx context.Context, req barcode.Request) (barcode.Outcome, error) {
	start := time.Now()
	out, err := g.generate(ctx, req)
	duration := time.Since(start)

	status := "success"
	if err != nil {
		status = barcode.ErrorType(err)
		g.logger.Debug("Barcode generation failed", "mode", req.Mode.String(), "error", err)
	} else {
		observeOutput(out)
	}
	generationsTotal.WithLabelValues(req.Mode.String(), status).Inc()
	generationDuration.WithLabelValues(req.Mode.String()).Observe(duration.Seconds())
	return out, err
}

func (g *Generator) generate(ctx context.Context, req barcode.Request) (barcode.Outcome, error) {
	if err := ctx.Err(); err != nil {
		return barcode.Outcome{}, fmt.Errorf("generation cancelled: %w", err)
	}
	img, err := g.rasterizer.Rasterize(req.Text)
	if err != nil {
		return barcode.Outcome{}, err
	}
	if err := ctx.Err(); err != nil {
		g.rasterizer.Release(img)
		return barcode.Outcome{}, fmt.Errorf("generation cancelled: %w", err)
	}
	out, err := g.formatter.Format(img, req.Mode)
	if out.Image == nil {
		// Compressed outcomes no longer reference the raster.
		g.rasterizer.Release(img)
	}
	return out, err
}

// Submit queues req on the worker pool and returns its Task. It blocks while
// the queue is full. Listener notifications are only delivered for accepted
// tasks; l may be nil.
func (g *Generator) Submit(ctx context.Context, req barcode.Request, l Listener) (*Task, error) {
	t := g.newTask(ctx, req)
	if l == nil {
		l = NoOpListener{}
	}
	if err := g.pool.Submit(ctx, func() { t.run(g, l) }); err != nil {
		t.cancel()
		return nil, err
	}
	tasksSubmitted.Inc()
	return t, nil
}

// TrySubmit is Submit without blocking; it fails with ErrPoolFull when the
// queue has no free slot.
func (g *Generator) TrySubmit(ctx context.Context, req barcode.Request, l Listener) (*Task, error) {
	t := g.newTask(ctx, req)
	if l == nil {
		l = NoOpListener{}
	}
	if err := g.pool.TrySubmit(func() { t.run(g, l) }); err != nil {
		t.cancel()
		return nil, err
	}
	tasksSubmitted.Inc()
	return t, nil
}

func (g *Generator) newTask(ctx context.Context, req barcode.Request) *Task {
	// The task outlives the submitting call; only Cancel stops it.
	taskCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	return &Task{
		id:     uuid.NewString(),
		req:    req,
		ctx:    taskCtx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
}
