// Package jsonl reads facility records from a JSON-lines file, one object per
// line. It backs local dry runs and fixtures.
package jsonl

import (
	"context"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/ajitpratap0/facilityfeed/internal/facility"
	"github.com/ajitpratap0/facilityfeed/internal/source"
	"github.com/ajitpratap0/facilityfeed/pkg/errors"
	"github.com/ajitpratap0/facilityfeed/pkg/json"
)

// Reader streams records from a file
type Reader struct {
	path   string
	logger *zap.Logger
}

// New returns a reader for path. The file is opened per stream.
func New(path string, logger *zap.Logger) (*Reader, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to stat input file")
	}
	if info.IsDir() {
		return nil, errors.Newf(errors.ErrorTypeConfig, "input %s is a directory", path)
	}
	return &Reader{path: path, logger: logger}, nil
}

// StreamChunks opens the file and decodes records lazily.
func (r *Reader) StreamChunks(ctx context.Context, chunkSize int) (source.ChunkStream, error) {
	f, err := os.Open(r.path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeExtraction, "failed to open input file")
	}
	r.logger.Debug("reading records", zap.String("path", r.path))
	return NewStream(f, chunkSize), nil
}

// Close implements source.Reader
func (r *Reader) Close() error { return nil }

// NewStream decodes records from rc. Numbers are kept as json.Number so ids
// render exactly as written. rc is closed by the stream's Close.
func NewStream(rc io.ReadCloser, chunkSize int) source.ChunkStream {
	dec := json.NewDecoder(rc)
	line := 0

	next := func(context.Context) (facility.RawRecord, error) {
		var rec map[string]any
		if err := dec.Decode(&rec); err != nil {
			if err == io.EOF {
				return nil, io.EOF
			}
			return nil, errors.Wrap(err, errors.ErrorTypeExtraction,
				fmt.Sprintf("failed to decode record %d", line+1))
		}
		line++
		if rec == nil {
			return nil, errors.Newf(errors.ErrorTypeExtraction, "record %d is not an object", line)
		}
		return facility.RawRecord(rec), nil
	}

	return source.NewRowStream(chunkSize, next, rc.Close)
}
