// Package source defines how facility rows are pulled for a feed run.
//
// A Reader opens one ChunkStream per run. The stream yields chunks in a
// stable order and is consumed by a single goroutine; implementations need
// not be safe for concurrent use. The iteration follows the bufio.Scanner
// pattern:
//
//	stream, err := reader.StreamChunks(ctx, 100)
//	if err != nil {
//		return err
//	}
//	defer stream.Close()
//	for stream.Next(ctx) {
//		process(stream.Chunk())
//	}
//	if err := stream.Err(); err != nil {
//		return err
//	}
//
// Adapters live in subpackages: postgres, mysql and jsonl. Static serves
// tests and examples.
package source

import (
	"context"
	"errors"
	"io"

	"github.com/ajitpratap0/facilityfeed/internal/facility"
)

// Reader opens ordered chunk streams over the facility dataset.
type Reader interface {
	// StreamChunks starts a read. Chunks hold at most chunkSize records.
	StreamChunks(ctx context.Context, chunkSize int) (ChunkStream, error)
	// Close releases connections held by the reader.
	Close() error
}

// ChunkStream is a lazy, ordered sequence of chunks.
type ChunkStream interface {
	// Next advances to the next chunk. It returns false at the end of the
	// sequence or on a read fault; Err tells them apart.
	Next(ctx context.Context) bool
	// Chunk returns the chunk loaded by the last successful Next. The chunk
	// is not reused, so it stays valid after later calls to Next.
	Chunk() facility.Chunk
	// Err returns the fault that stopped iteration, nil at a clean end.
	Err() error
	// Close ends the read early and releases its resources.
	Close() error
}

// RowFunc returns the next row of a row-at-a-time read, or io.EOF when the
// read is exhausted.
type RowFunc func(ctx context.Context) (facility.RawRecord, error)

// NewRowStream groups the rows produced by next into chunks of chunkSize.
// closeFn, if not nil, is called once by Close.
func NewRowStream(chunkSize int, next RowFunc, closeFn func() error) ChunkStream {
	if chunkSize <= 0 {
		chunkSize = 1
	}
	return &rowStream{size: chunkSize, next: next, closeFn: closeFn}
}

type rowStream struct {
	size    int
	next    RowFunc
	closeFn func() error

	chunk  facility.Chunk
	err    error
	done   bool
	closed bool
}

func (s *rowStream) Next(ctx context.Context) bool {
	if s.done || s.closed {
		return false
	}

	chunk := make(facility.Chunk, 0, s.size)
	for len(chunk) < s.size {
		if err := ctx.Err(); err != nil {
			s.fail(err)
			return false
		}
		row, err := s.next(ctx)
		if errors.Is(err, io.EOF) {
			s.done = true
			break
		}
		if err != nil {
			s.fail(err)
			return false
		}
		chunk = append(chunk, row)
	}

	if len(chunk) == 0 {
		return false
	}
	s.chunk = chunk
	return true
}

func (s *rowStream) fail(err error) {
	s.err = err
	s.done = true
	s.chunk = nil
}

func (s *rowStream) Chunk() facility.Chunk { return s.chunk }
func (s *rowStream) Err() error            { return s.err }

func (s *rowStream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if s.closeFn != nil {
		return s.closeFn()
	}
	return nil
}
