package s3

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ajitpratap0/facilityfeed/internal/sink"
	"github.com/ajitpratap0/facilityfeed/pkg/errors"
)

type capturedRequest struct {
	method          string
	path            string
	contentType     string
	contentEncoding string
	body            []byte
}

type fakeS3 struct {
	mu       sync.Mutex
	requests []capturedRequest
	status   int
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	f.mu.Lock()
	f.requests = append(f.requests, capturedRequest{
		method:          r.Method,
		path:            r.URL.Path,
		contentType:     r.Header.Get("Content-Type"),
		contentEncoding: r.Header.Get("Content-Encoding"),
		body:            body,
	})
	status := f.status
	f.mu.Unlock()

	if status == 0 {
		status = http.StatusOK
	}
	if status != http.StatusOK {
		w.Header().Set("Content-Type", "application/xml")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?>`+
			`<Error><Code>AccessDenied</Code><Message>Access Denied</Message></Error>`)
		return
	}
	w.Header().Set("ETag", `"d41d8cd98f00b204e9800998ecf8427e"`)
	w.WriteHeader(http.StatusOK)
}

func (f *fakeS3) last() capturedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

func newTestWriter(t *testing.T, fake *fakeS3, cfg Config) *Writer {
	t.Helper()
	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)

	cfg.Bucket = "feeds"
	cfg.Region = "us-east-1"
	cfg.EndpointURL = server.URL
	cfg.AccessKeyID = "test"
	cfg.SecretAccessKey = "test"

	w, err := New(context.Background(), cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	return w
}

func TestPutFeedFile(t *testing.T) {
	fake := &fakeS3{}
	w := newTestWriter(t, fake, Config{})

	body := []byte{0x1f, 0x8b, 0x08, 0x00}
	err := w.Put(context.Background(), "facility_feed_1700000000_1.json.gz", body,
		sink.PutOptions{ContentType: "application/json", ContentEncoding: "gzip"})
	require.NoError(t, err)

	req := fake.last()
	assert.Equal(t, http.MethodPut, req.method)
	assert.Equal(t, "/feeds/facility_feed_1700000000_1.json.gz", req.path)
	assert.Equal(t, "application/json", req.contentType)
	assert.Contains(t, req.contentEncoding, "gzip")
	assert.Equal(t, body, req.body)
}

func TestPutManifestHasNoEncoding(t *testing.T) {
	fake := &fakeS3{}
	w := newTestWriter(t, fake, Config{})

	manifest := []byte(`{"generation_timestamp":1700000000,"data_file":["a"]}`)
	require.NoError(t, w.Put(context.Background(), "metadata.json", manifest,
		sink.PutOptions{ContentType: "application/json"}))

	req := fake.last()
	assert.Equal(t, "/feeds/metadata.json", req.path)
	assert.Equal(t, "application/json", req.contentType)
	assert.Empty(t, req.contentEncoding)
	assert.Equal(t, manifest, req.body)
}

func TestPutThroughUploader(t *testing.T) {
	fake := &fakeS3{}
	// bodies above the threshold but below one part are sent as a single put
	w := newTestWriter(t, fake, Config{MultipartThreshold: 8})

	body := []byte("0123456789abcdef")
	require.NoError(t, w.Put(context.Background(), "big.json.gz", body,
		sink.PutOptions{ContentType: "application/json", ContentEncoding: "gzip"}))

	req := fake.last()
	assert.Equal(t, http.MethodPut, req.method)
	assert.Equal(t, "/feeds/big.json.gz", req.path)
	assert.Equal(t, body, req.body)
}

func TestPutFailure(t *testing.T) {
	fake := &fakeS3{status: http.StatusForbidden}
	w := newTestWriter(t, fake, Config{})

	err := w.Put(context.Background(), "metadata.json", []byte("{}"), sink.PutOptions{})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeUpload))
}

func TestCheckBucket(t *testing.T) {
	fake := &fakeS3{}
	w := newTestWriter(t, fake, Config{})

	require.NoError(t, w.CheckBucket(context.Background()))
	assert.Equal(t, http.MethodHead, fake.last().method)

	fake.mu.Lock()
	fake.status = http.StatusNotFound
	fake.mu.Unlock()

	err := w.CheckBucket(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConnection))
}

func TestNewRequiresBucket(t *testing.T) {
	_, err := New(context.Background(), Config{Region: "us-east-1"}, nil)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}
