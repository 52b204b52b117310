package generator

import (
	"context"
	"fmt"
	"testing"

	"github.com/MeKo-Tech/gobar/internal/barcode"
)

func BenchmarkGenerate(b *testing.B) {
	for _, enc := range barcode.EncoderNames() {
		for _, mode := range []barcode.Mode{barcode.ModeImage, barcode.ModeBase64, barcode.ModeBytes} {
			b.Run(fmt.Sprintf("%s/%s", enc, mode), func(b *testing.B) {
				g, err := New(Config{Encoder: enc, Workers: 1, QueueSize: 1})
				if err != nil {
					b.Fatal(err)
				}
				b.Cleanup(func() { _ = g.Close() })

				req := barcode.Request{Text: "BENCH-0123456789", Mode: mode}
				b.ReportAllocs()
				b.ResetTimer()
				for b.Loop() {
					if _, err := g.Generate(context.Background(), req); err != nil {
						b.Fatal(err)
					}
				}
			})
		}
	}
}

func BenchmarkGenerateBatch(b *testing.B) {
	texts := make([]string, 64)
	for i := range texts {
		texts[i] = fmt.Sprintf("ITEM-%05d", i)
	}

	for _, workers := range []int{1, 4} {
		b.Run(fmt.Sprintf("workers=%d", workers), func(b *testing.B) {
			g, err := New(Config{Workers: workers, QueueSize: len(texts)})
			if err != nil {
				b.Fatal(err)
			}
			b.Cleanup(func() { _ = g.Close() })

			b.ReportAllocs()
			b.ResetTimer()
			for b.Loop() {
				items, err := g.GenerateBatch(context.Background(), texts, barcode.ModeBytes, nil)
				if err != nil {
					b.Fatal(err)
				}
				if stats := CalculateBatchStats(items, 0, workers); stats.Failed != 0 {
					b.Fatalf("%d items failed", stats.Failed)
				}
			}
		})
	}
}
