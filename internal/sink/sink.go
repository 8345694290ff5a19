// Package sink defines where feed artifacts are stored.
//
// A Writer stores one named blob per Put. Puts of the same key overwrite, and
// implementations must be safe for concurrent use because a run uploads many
// chunks at once. Adapters live in the s3, gcs and file subpackages; the
// decorators in this package add key prefixes, per-call deadlines and
// metrics to any of them.
package sink

import (
	"context"
	"path"
	"strings"
	"time"

	"github.com/ajitpratap0/facilityfeed/pkg/metrics"
)

// PutOptions carries the object metadata stored with a blob
type PutOptions struct {
	ContentType     string
	ContentEncoding string // empty when the body is not encoded
}

// Writer stores named blobs
type Writer interface {
	Put(ctx context.Context, key string, body []byte, opts PutOptions) error
}

// WriterFunc adapts a function to the Writer interface
type WriterFunc func(ctx context.Context, key string, body []byte, opts PutOptions) error

// Put implements Writer
func (f WriterFunc) Put(ctx context.Context, key string, body []byte, opts PutOptions) error {
	return f(ctx, key, body, opts)
}

// WithPrefix stores every key under prefix. An empty prefix returns w.
func WithPrefix(w Writer, prefix string) Writer {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return w
	}
	return WriterFunc(func(ctx context.Context, key string, body []byte, opts PutOptions) error {
		return w.Put(ctx, path.Join(prefix, key), body, opts)
	})
}

// WithTimeout bounds every Put by d. A non-positive d returns w.
func WithTimeout(w Writer, d time.Duration) Writer {
	if d <= 0 {
		return w
	}
	return WriterFunc(func(ctx context.Context, key string, body []byte, opts PutOptions) error {
		ctx, cancel := context.WithTimeout(ctx, d)
		defer cancel()
		return w.Put(ctx, key, body, opts)
	})
}

// Instrument records put latency, stored bytes, failures and in-flight puts
// on c. kindOf labels each key; nil labels everything as a feed upload.
func Instrument(w Writer, c *metrics.Collector, kindOf func(key string) string) Writer {
	if c == nil {
		return w
	}
	return WriterFunc(func(ctx context.Context, key string, body []byte, opts PutOptions) error {
		kind := metrics.KindFeed
		if kindOf != nil {
			kind = kindOf(key)
		}

		c.UploadStarted()
		defer c.UploadFinished()

		timer := metrics.NewTimer(kind)
		if err := w.Put(ctx, key, body, opts); err != nil {
			c.UploadFailed(kind)
			return err
		}
		c.ObserveUpload(kind, len(body), timer.Stop())
		return nil
	})
}
