package feed

import (
	"fmt"
	"strings"
	"time"

	"github.com/ajitpratap0/facilityfeed/pkg/errors"
	"github.com/ajitpratap0/facilityfeed/pkg/metrics"
)

// Status is the resolution of one unit of work
type Status string

// Chunk statuses
const (
	StatusUploaded Status = metrics.StatusUploaded
	StatusSkipped  Status = metrics.StatusSkipped
	StatusFailed   Status = metrics.StatusFailed
)

// ChunkOutcome records how one chunk resolved. Each outcome is written only
// by the unit that owns it.
type ChunkOutcome struct {
	Index    int
	Status   Status
	FileName string // set when Uploaded
	Records  int
	Bytes    int // compressed size
	Err      error
}

func (o *ChunkOutcome) fail(err error) {
	o.Status = StatusFailed
	o.FileName = ""
	o.Err = err
}

// RunResult summarizes a run. Execute always returns one, filled in as far as
// the run progressed.
type RunResult struct {
	GenerationTimestamp int64
	// Files are the uploaded feed files in lexical order
	Files []string
	// ManifestKey is set only when the manifest was written
	ManifestKey string
	// Chunks counts scheduled chunks, Records the records in uploaded ones
	Chunks   int
	Records  int
	Failed   []int
	Duration time.Duration
}

// Succeeded reports whether the run wrote a manifest
func (r *RunResult) Succeeded() bool {
	return r.ManifestKey != ""
}

// AggregateError reports the chunks that failed in a run.
type AggregateError struct {
	Total  int     // scheduled chunks
	Failed []int   // indices of failed chunks, ascending
	Errs   []error // causes, aligned with Failed
}

func (e *AggregateError) Error() string {
	indices := make([]string, len(e.Failed))
	for i, idx := range e.Failed {
		indices[i] = fmt.Sprint(idx)
	}
	msg := fmt.Sprintf("feed generation failed: %d of %d chunks failed (chunks %s)",
		len(e.Failed), e.Total, strings.Join(indices, ", "))
	if len(e.Errs) > 0 {
		msg += ": " + e.Errs[0].Error()
	}
	return msg
}

// ErrorType places the aggregate in the errors.ErrorTypeAggregate category
func (e *AggregateError) ErrorType() errors.ErrorType {
	return errors.ErrorTypeAggregate
}

// Unwrap exposes the per-chunk causes to errors.Is and errors.As
func (e *AggregateError) Unwrap() []error {
	return e.Errs
}

// aggregate folds the outcomes in chunk order. It returns the uploaded file
// names and, when any chunk failed, an AggregateError.
func aggregate(outcomes []*ChunkOutcome) ([]string, int, *AggregateError) {
	var (
		files   []string
		records int
		failed  *AggregateError
	)
	for _, o := range outcomes {
		switch o.Status {
		case StatusUploaded:
			files = append(files, o.FileName)
			records += o.Records
		case StatusFailed:
			if failed == nil {
				failed = &AggregateError{Total: len(outcomes)}
			}
			failed.Failed = append(failed.Failed, o.Index)
			failed.Errs = append(failed.Errs, o.Err)
		}
	}
	return files, records, failed
}
