package generator

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/MeKo-Tech/gobar/internal/barcode"
)

// BatchItem is the result for one input of a batch.
type BatchItem struct {
	Index   int
	Text    string
	TaskID  string
	Outcome barcode.Outcome
	Err     error
}

// BatchStats summarizes a finished batch.
type BatchStats struct {
	Total            int           `json:"total"`
	Succeeded        int           `json:"succeeded"`
	Failed           int           `json:"failed"`
	Workers          int           `json:"workers"`
	TotalDuration    time.Duration `json:"total_duration_ns"`
	ThroughputPerSec float64       `json:"throughput_per_sec"`
}

// GenerateBatch runs every text through the worker pool and returns one item
// per input, in input order. Per-item failures are reported on the item; the
// returned error is only set when the batch could not be run to completion.
func (g *Generator) GenerateBatch(
	ctx context.Context,
	texts []string,
	mode barcode.Mode,
	progress ProgressCallback,
) ([]BatchItem, error) {
	if len(texts) == 0 {
		return nil, errors.New("no inputs provided")
	}
	if progress == nil {
		progress = NoOpProgressCallback{}
	}

	progress.OnStart(len(texts))
	defer progress.OnComplete()

	items := make([]BatchItem, len(texts))
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		processed int
	)

	for i, text := range texts {
		items[i] = BatchItem{Index: i, Text: text}

		idx := i
		wg.Add(1)
		listener := ListenerFuncs{
			Success: func(out barcode.Outcome) { items[idx].Outcome = out },
			Failure: func(err error) {
				items[idx].Err = err
				progress.OnError(idx, err)
			},
			Finish: func() {
				mu.Lock()
				processed++
				current := processed
				mu.Unlock()
				progress.OnProgress(current, len(texts))
				wg.Done()
			},
		}

		task, err := g.Submit(ctx, barcode.Request{Text: text, Mode: mode}, listener)
		if err != nil {
			wg.Done()
			wg.Wait()
			for j := i; j < len(texts); j++ {
				items[j] = BatchItem{Index: j, Text: texts[j], Err: err}
			}
			return items, err
		}
		items[i].TaskID = task.ID()
	}

	wg.Wait()
	return items, ctx.Err()
}

// CalculateBatchStats calculates statistics for a finished batch.
func CalculateBatchStats(items []BatchItem, duration time.Duration, workers int) BatchStats {
	stats := BatchStats{Total: len(items), Workers: workers, TotalDuration: duration}
	for _, it := range items {
		if it.Err != nil {
			stats.Failed++
		} else {
			stats.Succeeded++
		}
	}
	if duration > 0 {
		stats.ThroughputPerSec = float64(stats.Succeeded) / duration.Seconds()
	}
	return stats
}
