// Package testutil provides testing utilities for facilityfeed
package testutil

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ajitpratap0/facilityfeed/internal/facility"
	"github.com/ajitpratap0/facilityfeed/pkg/json"
)

// TestContext returns a context with a 30-second timeout that is cancelled
// when the test completes.
func TestContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// Facilities returns n raw records with ids 1..n and a matching name.
func Facilities(n int) []facility.RawRecord {
	records := make([]facility.RawRecord, n)
	for i := range records {
		records[i] = facility.RawRecord{
			"id":   i + 1,
			"name": fmt.Sprintf("Facility %d", i+1),
		}
	}
	return records
}

// WriteJSONL writes records as one JSON object per line into a file under a
// fresh temporary directory and returns its path.
func WriteJSONL(t *testing.T, records ...facility.RawRecord) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "facilities.jsonl")
	var data []byte
	for _, r := range records {
		line, err := json.MarshalCompact(r)
		if err != nil {
			t.Fatalf("failed to encode record: %v", err)
		}
		data = append(data, line...)
		data = append(data, '\n')
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
	return path
}

// AssertEventually asserts that a condition becomes true within the specified timeout.
// It checks the condition every 10ms until it succeeds or the timeout expires.
func AssertEventually(t *testing.T, condition func() bool, timeout time.Duration, msg string) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}

	t.Fatalf("condition not met within %v: %s", timeout, msg)
}
