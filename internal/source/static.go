package source

import (
	"context"

	"github.com/ajitpratap0/facilityfeed/internal/facility"
)

// Static serves records from memory.
type Static struct {
	records []facility.RawRecord
	chunks  []facility.Chunk
	err     error
}

// NewStatic returns a reader that chunks records by the requested size.
func NewStatic(records ...facility.RawRecord) *Static {
	return &Static{records: records}
}

// NewStaticChunks returns a reader that yields the given chunks as they are,
// ignoring the requested chunk size. Empty chunks are passed through.
func NewStaticChunks(chunks ...facility.Chunk) *Static {
	if chunks == nil {
		chunks = []facility.Chunk{}
	}
	return &Static{chunks: chunks}
}

// FailAfter makes streams report err once every chunk has been served.
func (s *Static) FailAfter(err error) *Static {
	s.err = err
	return s
}

// StreamChunks implements Reader
func (s *Static) StreamChunks(ctx context.Context, chunkSize int) (ChunkStream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	chunks := s.chunks
	if chunks == nil {
		if chunkSize <= 0 {
			chunkSize = 1
		}
		for start := 0; start < len(s.records); start += chunkSize {
			end := start + chunkSize
			if end > len(s.records) {
				end = len(s.records)
			}
			chunks = append(chunks, facility.Chunk(s.records[start:end]))
		}
	}

	return &staticStream{chunks: chunks, pos: -1, tail: s.err}, nil
}

// Close implements Reader
func (s *Static) Close() error { return nil }

type staticStream struct {
	chunks []facility.Chunk
	pos    int
	tail   error
	err    error
	closed bool
}

func (s *staticStream) Next(ctx context.Context) bool {
	if s.closed || s.err != nil {
		return false
	}
	if err := ctx.Err(); err != nil {
		s.err = err
		return false
	}
	if s.pos+1 >= len(s.chunks) {
		s.pos = len(s.chunks)
		s.err = s.tail
		return false
	}
	s.pos++
	return true
}

func (s *staticStream) Chunk() facility.Chunk {
	if s.pos < 0 || s.pos >= len(s.chunks) {
		return nil
	}
	return s.chunks[s.pos]
}

func (s *staticStream) Err() error { return s.err }

func (s *staticStream) Close() error {
	s.closed = true
	return nil
}
