// Package gcs stores feed artifacts in Google Cloud Storage.
package gcs

import (
	"bytes"
	"context"
	"io"

	"cloud.google.com/go/storage"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/ajitpratap0/facilityfeed/internal/sink"
	"github.com/ajitpratap0/facilityfeed/pkg/errors"
)

// Config configures the GCS writer
type Config struct {
	Bucket          string
	ProjectID       string // billed for requests when set
	CredentialsFile string // application default credentials when empty
	EndpointURL     string // emulator or private endpoint
}

// Writer writes objects into one bucket
type Writer struct {
	client *storage.Client
	bucket *storage.BucketHandle
	name   string
	logger *zap.Logger
}

// New creates the storage client. Extra client options are appended after
// the ones derived from cfg.
func New(ctx context.Context, cfg Config, logger *zap.Logger, extra ...option.ClientOption) (*Writer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Bucket == "" {
		return nil, errors.New(errors.ErrorTypeConfig, "bucket is required")
	}

	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	if cfg.EndpointURL != "" {
		opts = append(opts, option.WithEndpoint(cfg.EndpointURL))
	}
	if cfg.ProjectID != "" {
		opts = append(opts, option.WithQuotaProject(cfg.ProjectID))
	}
	opts = append(opts, extra...)

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to create GCS client")
	}

	logger.Info("gcs sink ready", zap.String("bucket", cfg.Bucket))

	return &Writer{
		client: client,
		bucket: client.Bucket(cfg.Bucket),
		name:   cfg.Bucket,
		logger: logger.With(zap.String("bucket", cfg.Bucket)),
	}, nil
}

// Put implements sink.Writer. The object is written in a single request.
func (w *Writer) Put(ctx context.Context, key string, body []byte, opts sink.PutOptions) error {
	writer := w.bucket.Object(key).NewWriter(ctx)
	writer.ContentType = opts.ContentType
	writer.ContentEncoding = opts.ContentEncoding
	writer.ChunkSize = 0

	if _, err := io.Copy(writer, bytes.NewReader(body)); err != nil {
		_ = writer.Close()
		return w.uploadError(err, key)
	}
	if err := writer.Close(); err != nil {
		return w.uploadError(err, key)
	}

	w.logger.Debug("object stored", zap.String("key", key), zap.Int("bytes", len(body)))
	return nil
}

// Close releases the client
func (w *Writer) Close() error {
	return w.client.Close()
}

func (w *Writer) uploadError(err error, key string) error {
	return errors.Wrap(err, errors.ErrorTypeUpload, "failed to write object").
		WithDetail("bucket", w.name).
		WithDetail("key", key)
}
