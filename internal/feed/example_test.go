package feed_test

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ajitpratap0/facilityfeed/internal/facility"
	"github.com/ajitpratap0/facilityfeed/internal/feed"
	"github.com/ajitpratap0/facilityfeed/internal/sink"
	"github.com/ajitpratap0/facilityfeed/internal/source"
)

func ExampleGenerator_Execute() {
	reader := source.NewStatic(
		facility.RawRecord{"id": 1, "name": "North Clinic"},
		facility.RawRecord{"id": 2, "name": "South Clinic"},
		facility.RawRecord{"id": 3, "name": "East Clinic"},
	)
	store := sink.NewMemory()

	generator := feed.New(reader, store,
		feed.Options{ChunkSize: 2, MaxConcurrentUploads: 4, StrictIDs: true},
		feed.WithClock(func() time.Time { return time.Unix(1700000000, 0) }),
		feed.WithLogger(zap.NewNop()),
	)

	result, err := generator.Execute(context.Background())
	if err != nil {
		fmt.Println("failed:", err)
		return
	}

	manifest, _ := store.Get(result.ManifestKey)
	fmt.Println(string(manifest.Body))
	// Output:
	// {"generation_timestamp":1700000000,"data_file":["facility_feed_1700000000_1.json.gz","facility_feed_1700000000_2.json.gz"]}
}
