package feed

import (
	"context"
	"fmt"
	"testing"

	"go.uber.org/zap"

	"github.com/ajitpratap0/facilityfeed/internal/sink"
	"github.com/ajitpratap0/facilityfeed/internal/source"
	"github.com/ajitpratap0/facilityfeed/pkg/compression"
	"github.com/ajitpratap0/facilityfeed/pkg/testutil"
)

// BenchmarkExecute measures a full run over 10K records into memory
func BenchmarkExecute(b *testing.B) {
	records := testutil.Facilities(10000)
	for i, r := range records {
		r["latitude"] = 40.0 + float64(i)/1e4
		r["longitude"] = -74.0
		r["street_address"] = fmt.Sprintf("%d Main St", i)
	}

	for _, algorithm := range []compression.Algorithm{compression.Gzip, compression.Zstd, compression.LZ4} {
		comp, err := compression.NewCompressor(&compression.Config{Algorithm: algorithm, Level: compression.Default})
		if err != nil {
			b.Fatal(err)
		}

		b.Run(string(algorithm), func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				g := New(source.NewStatic(records...), sink.NewMemory(),
					Options{ChunkSize: 100, MaxConcurrentUploads: 10, StrictIDs: true},
					WithClock(fixedClock), WithLogger(zap.NewNop()), WithCompressor(comp))
				if _, err := g.Execute(context.Background()); err != nil {
					b.Fatal(err)
				}
			}
			b.ReportMetric(float64(len(records)*b.N)/b.Elapsed().Seconds(), "records/s")
		})
	}
}

// BenchmarkEncodeChunk measures transform and serialization of one chunk
func BenchmarkEncodeChunk(b *testing.B) {
	chunk := testutil.Facilities(100)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := EncodeChunk(chunk, true); err != nil {
			b.Fatal(err)
		}
	}
}
