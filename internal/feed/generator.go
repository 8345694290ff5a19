package feed

import (
	"context"
	"fmt"
	"runtime/debug"
	"strconv"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/ajitpratap0/facilityfeed/internal/facility"
	"github.com/ajitpratap0/facilityfeed/internal/sink"
	"github.com/ajitpratap0/facilityfeed/internal/source"
	"github.com/ajitpratap0/facilityfeed/pkg/compression"
	"github.com/ajitpratap0/facilityfeed/pkg/errors"
	"github.com/ajitpratap0/facilityfeed/pkg/logger"
	"github.com/ajitpratap0/facilityfeed/pkg/metrics"
	"github.com/ajitpratap0/facilityfeed/pkg/observability"
)

// Options are the run parameters of a Generator
type Options struct {
	// ChunkSize is the number of records requested per chunk
	ChunkSize int
	// MaxConcurrentUploads caps the units of work in flight
	MaxConcurrentUploads int
	// StrictIDs fails chunks holding a record without an id
	StrictIDs bool
}

// Option customizes a Generator
type Option func(*Generator)

// WithClock replaces time.Now as the source of the generation timestamp
func WithClock(clock func() time.Time) Option {
	return func(g *Generator) { g.clock = clock }
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(g *Generator) { g.logger = l }
}

// WithMetrics records chunk and run metrics on c
func WithMetrics(c *metrics.Collector) Option {
	return func(g *Generator) { g.metrics = c }
}

// WithTracer sets the tracer used for run and chunk spans
func WithTracer(t trace.Tracer) Option {
	return func(g *Generator) { g.tracer = t }
}

// WithCompressor replaces the default gzip compressor
func WithCompressor(c compression.Compressor) Option {
	return func(g *Generator) { g.compressor = c }
}

// Generator runs feed generation from a reader into a writer
type Generator struct {
	reader source.Reader
	writer sink.Writer
	opts   Options

	clock      func() time.Time
	logger     *zap.Logger
	metrics    *metrics.Collector
	tracer     trace.Tracer
	compressor compression.Compressor
}

// New creates a Generator. Without options it logs to the global logger,
// compresses with gzip and traces with the global tracer provider.
func New(reader source.Reader, writer sink.Writer, opts Options, options ...Option) *Generator {
	g := &Generator{
		reader: reader,
		writer: writer,
		opts:   opts,
		clock:  time.Now,
	}
	for _, opt := range options {
		opt(g)
	}

	if g.logger == nil {
		g.logger = logger.Get()
	}
	if g.tracer == nil {
		g.tracer = observability.Tracer()
	}
	if g.compressor == nil {
		// gzip at the default level always constructs
		g.compressor, _ = compression.NewCompressor(compression.DefaultConfig())
	}
	return g
}

// Execute performs one run. The returned error is nil on success and on a
// run without records. Otherwise it is an extraction error, an
// *AggregateError, or both combined.
func (g *Generator) Execute(ctx context.Context) (*RunResult, error) {
	start := time.Now()
	ts := g.clock().Unix()
	result := &RunResult{GenerationTimestamp: ts}

	if err := g.validate(); err != nil {
		return result, err
	}

	ctx, span := g.tracer.Start(ctx, "feed.Execute", trace.WithAttributes(
		attribute.Int64("feed.generation_timestamp", ts),
		attribute.Int("feed.chunk_size", g.opts.ChunkSize),
		attribute.Int("feed.max_concurrent_uploads", g.opts.MaxConcurrentUploads),
	))

	ctx = logger.ContextWithRunID(ctx, strconv.FormatInt(ts, 10))
	log := logger.FromContext(ctx, g.logger)
	log.Info("starting facility feed generation",
		zap.Int("chunk_size", g.opts.ChunkSize),
		zap.Int("max_concurrent_uploads", g.opts.MaxConcurrentUploads),
		zap.String("compression", string(g.compressor.Algorithm())))

	err := g.run(ctx, ts, result, log)

	result.Duration = time.Since(start)
	g.metrics.RunFinished(ts, result.Duration, err == nil)
	span.SetAttributes(
		attribute.Int("feed.chunks", result.Chunks),
		attribute.Int("feed.files", len(result.Files)),
	)
	observability.EndSpan(span, err)

	if err != nil {
		log.Error("facility feed generation failed",
			zap.Ints("failed_chunks", result.Failed),
			zap.Duration("duration", result.Duration),
			zap.Error(err))
		return result, err
	}

	log.Info("facility feed generation finished",
		zap.Int("files", len(result.Files)),
		zap.Int("records", result.Records),
		zap.String("manifest", result.ManifestKey),
		zap.Duration("duration", result.Duration))
	return result, nil
}

func (g *Generator) validate() error {
	if g.opts.ChunkSize <= 0 {
		return errors.Newf(errors.ErrorTypeConfig, "chunk size must be positive, got %d", g.opts.ChunkSize)
	}
	if g.opts.MaxConcurrentUploads <= 0 {
		return errors.Newf(errors.ErrorTypeConfig,
			"max concurrent uploads must be positive, got %d", g.opts.MaxConcurrentUploads)
	}
	if g.reader == nil || g.writer == nil {
		return errors.New(errors.ErrorTypeConfig, "generator needs a reader and a writer")
	}
	return nil
}

func (g *Generator) run(ctx context.Context, ts int64, result *RunResult, log *zap.Logger) error {
	outcomes, extractErr := g.schedule(ctx, ts, log)

	files, records, failed := aggregate(outcomes)
	result.Chunks = len(outcomes)
	result.Records = records
	result.Files = NewManifest(ts, files).DataFile
	if failed != nil {
		result.Failed = failed.Failed
		for i, idx := range failed.Failed {
			log.Error("chunk failed", zap.Int("chunk", idx), zap.Error(failed.Errs[i]))
		}
	}

	if extractErr != nil || failed != nil {
		var err error
		if extractErr != nil {
			err = multierr.Append(err, errors.Wrap(extractErr, errors.ErrorTypeExtraction, "failed to read source"))
		}
		if failed != nil {
			err = multierr.Append(err, failed)
		}
		log.Error("one or more chunks failed or the source broke off; skipping manifest")
		return err
	}

	if len(files) == 0 {
		log.Warn("no feed files were generated; skipping manifest")
		return nil
	}

	manifest := NewManifest(ts, files)
	body, err := manifest.Encode()
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeData, "failed to serialize manifest")
	}

	log.Info("writing manifest", zap.Int("files", len(files)))
	if err := g.writer.Put(ctx, ManifestFileName, body, sink.PutOptions{ContentType: ContentTypeJSON}); err != nil {
		return errors.Wrap(err, errors.ErrorTypeUpload, "failed to upload manifest")
	}
	result.ManifestKey = ManifestFileName
	return nil
}

// schedule drains the source, starting one unit per non-empty chunk, and
// returns once every unit has resolved.
func (g *Generator) schedule(ctx context.Context, ts int64, log *zap.Logger) ([]*ChunkOutcome, error) {
	stream, err := g.reader.StreamChunks(ctx, g.opts.ChunkSize)
	if err != nil {
		return nil, err
	}

	var (
		sem      = semaphore.NewWeighted(int64(g.opts.MaxConcurrentUploads))
		wg       sync.WaitGroup
		outcomes []*ChunkOutcome
		readErr  error
		index    int
	)

	for stream.Next(ctx) {
		chunk := stream.Chunk()
		if len(chunk) == 0 {
			log.Debug("received empty chunk, continuing")
			continue
		}

		// Blocks while every slot is busy, which keeps extraction at most
		// one chunk ahead of the units.
		if err := sem.Acquire(ctx, 1); err != nil {
			readErr = err
			break
		}

		index++
		outcome := &ChunkOutcome{Index: index, Records: len(chunk)}
		outcomes = append(outcomes, outcome)

		log.Debug("scheduling chunk", zap.Int("chunk", index), zap.Int("records", len(chunk)))
		wg.Add(1)
		go func(chunk facility.Chunk) {
			defer wg.Done()
			defer sem.Release(1)
			g.unit(ctx, ts, chunk, outcome)
		}(chunk)
	}
	if readErr == nil {
		readErr = stream.Err()
	}
	if err := stream.Close(); err != nil {
		log.Warn("failed to close source stream", zap.Error(err))
	}

	log.Info("all source data fetched; waiting for chunks to finish", zap.Int("chunks", len(outcomes)))
	wg.Wait()

	return outcomes, readErr
}

// unit processes one chunk and records its outcome. Panics are converted
// into a failed outcome.
func (g *Generator) unit(ctx context.Context, ts int64, chunk facility.Chunk, out *ChunkOutcome) {
	ctx, span := g.tracer.Start(ctx, "feed.chunk", trace.WithAttributes(
		attribute.Int("feed.chunk", out.Index),
		attribute.Int("feed.records", len(chunk)),
	))
	ctx = logger.ContextWithChunk(ctx, out.Index)
	log := logger.FromContext(ctx, g.logger)

	defer func() {
		if r := recover(); r != nil {
			out.fail(errors.Newf(errors.ErrorTypeInternal, "chunk %d panicked: %v", out.Index, r).
				WithDetail("stack", string(debug.Stack())))
		}
		g.metrics.ChunkResolved(string(out.Status), out.Records)
		observability.EndSpan(span, out.Err)

		if out.Status == StatusFailed {
			log.Error("failed to process chunk", zap.Error(out.Err))
		}
	}()

	if len(chunk) == 0 {
		out.Status = StatusSkipped
		log.Info("chunk is empty, skipping")
		return
	}

	log.Info("processing chunk", zap.Int("records", len(chunk)))

	body, err := EncodeChunk(chunk, g.opts.StrictIDs)
	if err != nil {
		out.fail(err)
		return
	}

	compressed, err := g.compressor.Compress(body)
	if err != nil {
		out.fail(errors.Wrap(err, errors.ErrorTypeData, "failed to compress chunk"))
		return
	}

	name := FileName(ts, out.Index, g.compressor.Extension())
	opts := sink.PutOptions{ContentType: ContentTypeJSON, ContentEncoding: g.compressor.ContentEncoding()}
	if err := g.writer.Put(ctx, name, compressed, opts); err != nil {
		out.fail(errors.Wrap(err, errors.ErrorTypeUpload, fmt.Sprintf("failed to upload %s", name)))
		return
	}

	out.Status = StatusUploaded
	out.FileName = name
	out.Bytes = len(compressed)
	log.Info("chunk uploaded", zap.String("file", name), zap.Int("bytes", len(compressed)))
}
