// Package registry maps configured backend names onto source and sink
// adapters.
package registry

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/ajitpratap0/facilityfeed/internal/feed"
	"github.com/ajitpratap0/facilityfeed/internal/sink"
	"github.com/ajitpratap0/facilityfeed/internal/sink/file"
	"github.com/ajitpratap0/facilityfeed/internal/sink/gcs"
	"github.com/ajitpratap0/facilityfeed/internal/sink/s3"
	"github.com/ajitpratap0/facilityfeed/internal/source"
	"github.com/ajitpratap0/facilityfeed/internal/source/jsonl"
	"github.com/ajitpratap0/facilityfeed/internal/source/mysql"
	"github.com/ajitpratap0/facilityfeed/internal/source/postgres"
	"github.com/ajitpratap0/facilityfeed/pkg/config"
	"github.com/ajitpratap0/facilityfeed/pkg/errors"
	"github.com/ajitpratap0/facilityfeed/pkg/metrics"
)

// SourceFactory creates a source reader from the run configuration
type SourceFactory func(ctx context.Context, cfg *config.Config, logger *zap.Logger) (source.Reader, error)

// SinkFactory creates a sink writer from the run configuration
type SinkFactory func(ctx context.Context, cfg *config.Config, logger *zap.Logger) (sink.Writer, error)

// Registry holds the known adapters by backend name
type Registry struct {
	mu      sync.RWMutex
	sources map[string]SourceFactory
	sinks   map[string]SinkFactory
}

// New returns an empty registry
func New() *Registry {
	return &Registry{
		sources: make(map[string]SourceFactory),
		sinks:   make(map[string]SinkFactory),
	}
}

// Default returns a registry with every built-in adapter
func Default() *Registry {
	r := New()
	r.sources[config.SourcePostgres] = newPostgres
	r.sources[config.SourceMySQL] = newMySQL
	r.sources[config.SourceJSONL] = newJSONL
	r.sinks[config.StorageS3] = newS3
	r.sinks[config.StorageGCS] = newGCS
	r.sinks[config.StorageFile] = newFile
	return r
}

// RegisterSource adds a source factory. Names must be unique.
func (r *Registry) RegisterSource(name string, factory SourceFactory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sources[name]; exists {
		return errors.New(errors.ErrorTypeConfig, fmt.Sprintf("source backend %s already registered", name))
	}
	r.sources[name] = factory
	return nil
}

// RegisterSink adds a sink factory. Names must be unique.
func (r *Registry) RegisterSink(name string, factory SinkFactory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sinks[name]; exists {
		return errors.New(errors.ErrorTypeConfig, fmt.Sprintf("storage backend %s already registered", name))
	}
	r.sinks[name] = factory
	return nil
}

// Sources lists the registered source backends
func (r *Registry) Sources() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.sources)
}

// Sinks lists the registered storage backends
func (r *Registry) Sinks() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.sinks)
}

// NewSource creates the reader named by cfg.Source.Backend
func (r *Registry) NewSource(ctx context.Context, cfg *config.Config, logger *zap.Logger) (source.Reader, error) {
	r.mu.RLock()
	factory, exists := r.sources[cfg.Source.Backend]
	r.mu.RUnlock()

	if !exists {
		return nil, errors.New(errors.ErrorTypeConfig, fmt.Sprintf("source backend %s not found", cfg.Source.Backend))
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	reader, err := factory(ctx, cfg, logger.With(zap.String("source", cfg.Source.Backend)))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection,
			fmt.Sprintf("failed to create %s source", cfg.Source.Backend))
	}
	return reader, nil
}

// NewSink creates the writer named by cfg.Storage.Backend and decorates it
// with the configured key prefix, request timeout and upload metrics. The
// returned close function releases the adapter's client.
func (r *Registry) NewSink(ctx context.Context, cfg *config.Config, logger *zap.Logger, collector *metrics.Collector) (sink.Writer, func() error, error) {
	r.mu.RLock()
	factory, exists := r.sinks[cfg.Storage.Backend]
	r.mu.RUnlock()

	if !exists {
		return nil, nil, errors.New(errors.ErrorTypeConfig, fmt.Sprintf("storage backend %s not found", cfg.Storage.Backend))
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	raw, err := factory(ctx, cfg, logger.With(zap.String("storage", cfg.Storage.Backend)))
	if err != nil {
		return nil, nil, errors.Wrap(err, errors.ErrorTypeConnection,
			fmt.Sprintf("failed to create %s storage", cfg.Storage.Backend))
	}

	closeFn := func() error { return nil }
	if c, ok := raw.(io.Closer); ok {
		closeFn = c.Close
	}

	w := sink.Instrument(raw, collector, feed.UploadKind)
	w = sink.WithTimeout(w, cfg.Storage.RequestTimeout)
	w = sink.WithPrefix(w, cfg.Storage.Prefix)
	return w, closeFn, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func newPostgres(ctx context.Context, cfg *config.Config, logger *zap.Logger) (source.Reader, error) {
	return postgres.New(ctx, postgres.Config{
		URL:      cfg.Database.URL,
		Table:    cfg.Source.Table,
		Query:    cfg.Source.Query,
		MaxConns: cfg.Database.MaxConns,
		MinConns: cfg.Database.MinConns,
	}, logger)
}

func newMySQL(ctx context.Context, cfg *config.Config, logger *zap.Logger) (source.Reader, error) {
	return mysql.New(ctx, mysql.Config{
		DSN:      cfg.Database.URL,
		Table:    cfg.Source.Table,
		Query:    cfg.Source.Query,
		MaxConns: int(cfg.Database.MaxConns),
	}, logger)
}

func newJSONL(_ context.Context, cfg *config.Config, logger *zap.Logger) (source.Reader, error) {
	return jsonl.New(cfg.Source.Path, logger)
}

func newS3(ctx context.Context, cfg *config.Config, logger *zap.Logger) (sink.Writer, error) {
	return s3.New(ctx, s3.Config{
		Bucket:          cfg.Storage.S3.Bucket,
		Region:          cfg.Storage.S3.Region,
		EndpointURL:     cfg.Storage.S3.EndpointURL,
		AccessKeyID:     cfg.Storage.S3.AccessKeyID,
		SecretAccessKey: cfg.Storage.S3.SecretAccessKey,
		CheckBucket:     cfg.Storage.S3.CheckBucket,
	}, logger)
}

func newGCS(ctx context.Context, cfg *config.Config, logger *zap.Logger) (sink.Writer, error) {
	return gcs.New(ctx, gcs.Config{
		Bucket:          cfg.Storage.GCS.Bucket,
		ProjectID:       cfg.Storage.GCS.ProjectID,
		CredentialsFile: cfg.Storage.GCS.CredentialsFile,
		EndpointURL:     cfg.Storage.GCS.EndpointURL,
	}, logger)
}

func newFile(_ context.Context, cfg *config.Config, logger *zap.Logger) (sink.Writer, error) {
	return file.New(cfg.Storage.File.OutputDir, logger)
}
