package sink

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/facilityfeed/pkg/metrics"
)

var jsonOpts = PutOptions{ContentType: "application/json", ContentEncoding: "gzip"}

func TestMemory(t *testing.T) {
	m := NewMemory()
	body := []byte("payload")

	require.NoError(t, m.Put(context.Background(), "b", body, jsonOpts))
	require.NoError(t, m.Put(context.Background(), "a", []byte("x"), PutOptions{}))
	body[0] = 'P'

	obj, ok := m.Get("b")
	require.True(t, ok)
	assert.Equal(t, "payload", string(obj.Body))
	assert.Equal(t, jsonOpts, obj.Options)
	assert.Equal(t, []string{"a", "b"}, m.Keys())

	require.NoError(t, m.Put(context.Background(), "a", []byte("y"), PutOptions{}))
	assert.Equal(t, 3, m.Puts())
	obj, _ = m.Get("a")
	assert.Equal(t, "y", string(obj.Body))
}

func TestMemoryCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	m := NewMemory()
	assert.ErrorIs(t, m.Put(ctx, "k", nil, PutOptions{}), context.Canceled)
	assert.Empty(t, m.Keys())
}

func TestWithPrefix(t *testing.T) {
	m := NewMemory()

	w := WithPrefix(m, "/feeds/facility/")
	require.NoError(t, w.Put(context.Background(), "metadata.json", []byte("{}"), PutOptions{}))
	assert.Equal(t, []string{"feeds/facility/metadata.json"}, m.Keys())

	assert.Same(t, m, WithPrefix(m, "").(*Memory))
}

func TestWithTimeout(t *testing.T) {
	slow := WriterFunc(func(ctx context.Context, key string, body []byte, opts PutOptions) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Second):
			return nil
		}
	})

	err := WithTimeout(slow, 10*time.Millisecond).Put(context.Background(), "k", nil, PutOptions{})
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	var deadline bool
	probe := WriterFunc(func(ctx context.Context, key string, body []byte, opts PutOptions) error {
		_, deadline = ctx.Deadline()
		return nil
	})
	require.NoError(t, WithTimeout(probe, 0).Put(context.Background(), "k", nil, PutOptions{}))
	assert.False(t, deadline)
}

func gauge(t *testing.T, c *metrics.Collector, name string) float64 {
	t.Helper()
	families, err := c.Registry().Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() == name {
			return mf.GetMetric()[0].GetGauge().GetValue()
		}
	}
	t.Fatalf("metric %s not found", name)
	return 0
}

func TestInstrument(t *testing.T) {
	c := metrics.NewCollector("test")
	boom := errors.New("denied")

	var inFlight float64
	w := WriterFunc(func(ctx context.Context, key string, body []byte, opts PutOptions) error {
		inFlight = gauge(t, c, "facilityfeed_uploads_in_flight")
		if key == "bad" {
			return boom
		}
		return nil
	})

	kindOf := func(key string) string {
		if key == "metadata.json" {
			return metrics.KindManifest
		}
		return metrics.KindFeed
	}
	iw := Instrument(w, c, kindOf)

	require.NoError(t, iw.Put(context.Background(), "facility_feed_1_1.json.gz", make([]byte, 100), jsonOpts))
	assert.Equal(t, 1.0, inFlight)
	require.NoError(t, iw.Put(context.Background(), "metadata.json", make([]byte, 20), PutOptions{}))
	assert.ErrorIs(t, iw.Put(context.Background(), "bad", nil, jsonOpts), boom)
	assert.Equal(t, 0.0, gauge(t, c, "facilityfeed_uploads_in_flight"))

	count, err := testutil.GatherAndCount(c.Registry(),
		"facilityfeed_uploaded_bytes_total", "facilityfeed_upload_failures_total")
	require.NoError(t, err)
	// feed and manifest bytes, one feed failure
	assert.Equal(t, 3, count)

	expected := `
# HELP facilityfeed_uploaded_bytes_total Bytes stored in the object store
# TYPE facilityfeed_uploaded_bytes_total counter
facilityfeed_uploaded_bytes_total{kind="feed"} 100
facilityfeed_uploaded_bytes_total{kind="manifest"} 20
`
	assert.NoError(t, testutil.GatherAndCompare(c.Registry(), strings.NewReader(expected),
		"facilityfeed_uploaded_bytes_total"))
}

func TestInstrumentNilCollector(t *testing.T) {
	m := NewMemory()
	assert.Same(t, m, Instrument(m, nil, nil).(*Memory))
}
