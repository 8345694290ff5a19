// Package compression provides the byte compressors used for feed files.
//
// Each compressor also knows how its output is advertised to consumers: the
// HTTP Content-Encoding value stored alongside the object and the file name
// extension appended after ".json".
//
// # Basic Usage
//
//	comp, err := compression.NewCompressor(&compression.Config{
//	    Algorithm: compression.Gzip,
//	    Level:     compression.Default,
//	})
//	compressed, err := comp.Compress(payload)
//	key := "facility_feed_1700000000_1.json" + comp.Extension() // ".gz"
//
// Gzip output carries no modification time or file name in its header, so the
// same payload always compresses to the same bytes.
package compression

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Algorithm represents a compression algorithm.
type Algorithm string

const (
	// None represents no compression
	None Algorithm = "none"
	// Gzip represents gzip compression
	Gzip Algorithm = "gzip"
	// Zstd represents zstandard compression
	Zstd Algorithm = "zstd"
	// LZ4 represents lz4 frame compression
	LZ4 Algorithm = "lz4"
)

// Level represents compression level, controlling the trade-off between
// compression speed and compression ratio.
type Level int

const (
	// Fastest prioritizes speed over compression ratio.
	Fastest Level = 1
	// Default balances speed and compression.
	Default Level = 5
	// Better improves compression at cost of speed.
	Better Level = 7
	// Best maximizes compression ratio.
	Best Level = 9
)

// Compressor provides compression and decompression functionality.
// All implementations are safe for concurrent use.
type Compressor interface {
	// Compress compresses data and returns the compressed bytes.
	Compress(data []byte) ([]byte, error)

	// Decompress decompresses data and returns the original bytes.
	Decompress(data []byte) ([]byte, error)

	// Algorithm returns the compression algorithm used.
	Algorithm() Algorithm

	// ContentEncoding returns the Content-Encoding value for the output,
	// empty when the output is not encoded.
	ContentEncoding() string

	// Extension returns the file name suffix for the output, including the dot.
	Extension() string
}

// Config represents compressor configuration.
type Config struct {
	Algorithm Algorithm // Compression algorithm to use
	Level     Level     // Compression level
}

// DefaultConfig returns the configuration used for feed files: gzip at the
// default level.
func DefaultConfig() *Config {
	return &Config{
		Algorithm: Gzip,
		Level:     Default,
	}
}

// ParseAlgorithm maps a configuration value onto an Algorithm.
func ParseAlgorithm(name string) (Algorithm, error) {
	switch Algorithm(strings.ToLower(strings.TrimSpace(name))) {
	case "", Gzip:
		return Gzip, nil
	case None:
		return None, nil
	case Zstd:
		return Zstd, nil
	case LZ4:
		return LZ4, nil
	default:
		return "", fmt.Errorf("unsupported compression algorithm: %s", name)
	}
}

// NewCompressor creates a new compressor based on the provided configuration.
// If config is nil, default configuration is used.
func NewCompressor(config *Config) (Compressor, error) {
	if config == nil {
		config = DefaultConfig()
	}

	switch config.Algorithm {
	case None:
		return &noneCompressor{}, nil
	case Gzip:
		return newGzipCompressor(config)
	case Zstd:
		return newZstdCompressor(config)
	case LZ4:
		return newLZ4Compressor(config), nil
	default:
		return nil, fmt.Errorf("unsupported compression algorithm: %s", config.Algorithm)
	}
}

// None compressor (no compression)
type noneCompressor struct{}

func (nc *noneCompressor) Compress(data []byte) ([]byte, error)   { return data, nil }
func (nc *noneCompressor) Decompress(data []byte) ([]byte, error) { return data, nil }
func (nc *noneCompressor) Algorithm() Algorithm                   { return None }
func (nc *noneCompressor) ContentEncoding() string                { return "" }
func (nc *noneCompressor) Extension() string                      { return "" }

// Gzip compressor
type gzipCompressor struct {
	writerPool sync.Pool
	readerPool sync.Pool
}

func newGzipCompressor(config *Config) (*gzipCompressor, error) {
	level := mapGzipLevel(config.Level)

	// Surface an invalid level here rather than inside the pool.
	if _, err := gzip.NewWriterLevel(io.Discard, level); err != nil {
		return nil, err
	}

	gc := &gzipCompressor{}
	gc.writerPool.New = func() interface{} {
		w, _ := gzip.NewWriterLevel(nil, level)
		return w
	}
	gc.readerPool.New = func() interface{} {
		return new(gzip.Reader)
	}

	return gc, nil
}

func (gc *gzipCompressor) Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(len(data) / 4)

	w := gc.writerPool.Get().(*gzip.Writer)
	defer gc.writerPool.Put(w)

	w.Reset(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func (gc *gzipCompressor) Decompress(data []byte) ([]byte, error) {
	r := gc.readerPool.Get().(*gzip.Reader)
	defer gc.readerPool.Put(r)

	if err := r.Reset(bytes.NewReader(data)); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil { //nolint:gosec // G110: inputs are our own feed files
		return nil, err
	}
	return buf.Bytes(), nil
}

func (gc *gzipCompressor) Algorithm() Algorithm    { return Gzip }
func (gc *gzipCompressor) ContentEncoding() string { return "gzip" }
func (gc *gzipCompressor) Extension() string       { return ".gz" }

// Zstd compressor
type zstdCompressor struct {
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

func newZstdCompressor(config *Config) (*zstdCompressor, error) {
	// EncodeAll and DecodeAll are safe for concurrent use on a shared instance.
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(mapZstdLevel(config.Level)))
	if err != nil {
		return nil, err
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	return &zstdCompressor{encoder: enc, decoder: dec}, nil
}

func (zc *zstdCompressor) Compress(data []byte) ([]byte, error) {
	return zc.encoder.EncodeAll(data, nil), nil
}

func (zc *zstdCompressor) Decompress(data []byte) ([]byte, error) {
	return zc.decoder.DecodeAll(data, nil)
}

func (zc *zstdCompressor) Algorithm() Algorithm    { return Zstd }
func (zc *zstdCompressor) ContentEncoding() string { return "zstd" }
func (zc *zstdCompressor) Extension() string       { return ".zst" }

// LZ4 compressor
type lz4Compressor struct {
	compressionLevel lz4.CompressionLevel
}

func newLZ4Compressor(config *Config) *lz4Compressor {
	return &lz4Compressor{compressionLevel: mapLZ4Level(config.Level)}
}

func (lc *lz4Compressor) Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := lz4.NewWriter(&buf)

	if err := w.Apply(lz4.CompressionLevelOption(lc.compressionLevel)); err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func (lc *lz4Compressor) Decompress(data []byte) ([]byte, error) {
	r := lz4.NewReader(bytes.NewReader(data))

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil { //nolint:gosec // G110: inputs are our own feed files
		return nil, err
	}
	return buf.Bytes(), nil
}

func (lc *lz4Compressor) Algorithm() Algorithm    { return LZ4 }
func (lc *lz4Compressor) ContentEncoding() string { return "lz4" }
func (lc *lz4Compressor) Extension() string       { return ".lz4" }

func mapGzipLevel(level Level) int {
	switch level {
	case Fastest:
		return gzip.BestSpeed
	case Best:
		return gzip.BestCompression
	default:
		return gzip.DefaultCompression
	}
}

func mapLZ4Level(level Level) lz4.CompressionLevel {
	switch level {
	case Fastest:
		return lz4.Fast
	case Best:
		return lz4.Level9
	default:
		return lz4.Level5
	}
}

func mapZstdLevel(level Level) zstd.EncoderLevel {
	switch level {
	case Fastest:
		return zstd.SpeedFastest
	case Better:
		return zstd.SpeedBetterCompression
	case Best:
		return zstd.SpeedBestCompression
	default:
		return zstd.SpeedDefault
	}
}
