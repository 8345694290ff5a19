package config_test

import (
	"fmt"

	"github.com/ajitpratap0/facilityfeed/pkg/config"
)

// ExampleDefault shows the values used when nothing is overridden.
func ExampleDefault() {
	cfg := config.Default()

	fmt.Printf("Chunk Size: %d\n", cfg.Feed.ChunkSize)
	fmt.Printf("Max Concurrent Uploads: %d\n", cfg.Feed.MaxConcurrentUploads)
	fmt.Printf("Request Timeout: %s\n", cfg.Storage.RequestTimeout)

	// Output:
	// Chunk Size: 100
	// Max Concurrent Uploads: 10
	// Request Timeout: 1m0s
}

// ExampleConfig_Validate shows a local dry run configuration: a JSON-lines
// input written to a directory.
func ExampleConfig_Validate() {
	cfg := config.Default()
	cfg.Source.Backend = config.SourceJSONL
	cfg.Source.Path = "testdata/facilities.jsonl"
	cfg.Storage.Backend = config.StorageFile
	cfg.Storage.File.OutputDir = "out"

	if err := cfg.Validate(); err != nil {
		fmt.Println("invalid:", err)
		return
	}
	fmt.Println("Configuration is valid!")

	// Output:
	// Configuration is valid!
}
