package generator

import (
	"github.com/MeKo-Tech/gobar/internal/barcode"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	generationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gobar_generations_total",
			Help: "Total number of barcode generations",
		},
		[]string{"mode", "status"}, // status: success, encoding_error, formatter_error, null_result, cancelled
	)

	generationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gobar_generation_duration_seconds",
			Help:    "Barcode generation duration in seconds",
			Buckets: []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"mode"},
	)

	outputSizeBytes = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gobar_output_size_bytes",
			Help:    "Size of compressed barcode output in bytes",
			Buckets: []float64{1024, 4 * 1024, 16 * 1024, 64 * 1024, 256 * 1024, 1024 * 1024},
		},
		[]string{"mode"},
	)

	tasksSubmitted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gobar_tasks_submitted_total",
			Help: "Total number of generation tasks accepted by the worker pool",
		},
	)
)

func observeOutput(out barcode.Outcome) {
	switch out.Kind {
	case barcode.ModeBase64:
		outputSizeBytes.WithLabelValues(out.Kind.String()).Observe(float64(len(out.Text)))
	case barcode.ModeBytes:
		outputSizeBytes.WithLabelValues(out.Kind.String()).Observe(float64(len(out.Bytes)))
	}
}
