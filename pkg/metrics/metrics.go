// Package metrics provides run metrics for facilityfeed using Prometheus.
//
// A generation run is a short-lived batch job, so metrics are collected into a
// private registry and, when a Pushgateway is configured, pushed once at the
// end of the run.
//
// # Basic Usage
//
//	collector := metrics.NewCollector("facilityfeed")
//	collector.ChunkResolved(metrics.StatusUploaded, 100)
//	timer := metrics.NewTimer("upload")
//	// ... upload ...
//	collector.ObserveUpload(metrics.KindFeed, 2048, timer.Stop())
//	_ = collector.Push(ctx, "http://pushgateway:9091")
//
// A nil *Collector is valid and records nothing, so components can accept an
// optional collector without nil checks at every call site.
package metrics

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"
)

const namespace = "facilityfeed"

// Chunk outcome labels
const (
	StatusUploaded = "uploaded"
	StatusSkipped  = "skipped"
	StatusFailed   = "failed"
)

// Upload kind labels
const (
	KindFeed     = "feed"
	KindManifest = "manifest"
)

// Collector groups the metrics of one process. Each collector owns its own
// registry so tests and repeated runs never collide on registration.
type Collector struct {
	job      string
	registry *prometheus.Registry

	chunks          *prometheus.CounterVec   // Resolved chunks by status
	records         prometheus.Counter       // Records written to feed files
	uploadDuration  *prometheus.HistogramVec // Put latency by kind
	uploadedBytes   *prometheus.CounterVec   // Bytes stored by kind
	uploadFailures  *prometheus.CounterVec   // Failed puts by kind
	uploadsInFlight prometheus.Gauge         // Concurrent puts
	runDuration     prometheus.Gauge         // Seconds the last run took
	lastRun         prometheus.Gauge         // Generation timestamp of last run
	lastSuccess     prometheus.Gauge         // Generation timestamp of last successful run

	mu        sync.Mutex
	startTime time.Time
}

// NewCollector creates a new metrics collector. The job name is used as the
// Pushgateway grouping key.
func NewCollector(job string) *Collector {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Collector{
		job:      job,
		registry: registry,
		chunks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunks_total",
			Help:      "Chunks resolved by the generation pipeline",
		}, []string{"status"}),
		records: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_total",
			Help:      "Records written into feed files",
		}),
		uploadDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upload_duration_seconds",
			Help:      "Object store put latency",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms .. ~20s
		}, []string{"kind"}),
		uploadedBytes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uploaded_bytes_total",
			Help:      "Bytes stored in the object store",
		}, []string{"kind"}),
		uploadFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upload_failures_total",
			Help:      "Failed object store puts",
		}, []string{"kind"}),
		uploadsInFlight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "uploads_in_flight",
			Help:      "Object store puts currently in flight",
		}),
		runDuration: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of the last generation run",
		}),
		lastRun: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Generation timestamp of the last run",
		}),
		lastSuccess: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Generation timestamp of the last successful run",
		}),
		startTime: time.Now(),
	}
}

// Registry exposes the underlying registry, mainly for tests.
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// ChunkResolved records the outcome of one unit of work.
func (c *Collector) ChunkResolved(status string, records int) {
	if c == nil {
		return
	}
	c.chunks.WithLabelValues(status).Inc()
	if status == StatusUploaded {
		c.records.Add(float64(records))
	}
}

// UploadStarted marks a put as in flight. Pair with UploadFinished.
func (c *Collector) UploadStarted() {
	if c == nil {
		return
	}
	c.uploadsInFlight.Inc()
}

// UploadFinished clears the in-flight mark set by UploadStarted.
func (c *Collector) UploadFinished() {
	if c == nil {
		return
	}
	c.uploadsInFlight.Dec()
}

// ObserveUpload records a successful put.
func (c *Collector) ObserveUpload(kind string, bytes int, d time.Duration) {
	if c == nil {
		return
	}
	c.uploadDuration.WithLabelValues(kind).Observe(d.Seconds())
	c.uploadedBytes.WithLabelValues(kind).Add(float64(bytes))
}

// UploadFailed records a failed put.
func (c *Collector) UploadFailed(kind string) {
	if c == nil {
		return
	}
	c.uploadFailures.WithLabelValues(kind).Inc()
}

// RunFinished records the run-level gauges.
func (c *Collector) RunFinished(generationTimestamp int64, d time.Duration, success bool) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.runDuration.Set(d.Seconds())
	c.lastRun.Set(float64(generationTimestamp))
	if success {
		c.lastSuccess.Set(float64(generationTimestamp))
	}
}

// Push sends the collected metrics to a Pushgateway.
func (c *Collector) Push(ctx context.Context, url string) error {
	if c == nil || url == "" {
		return nil
	}
	return push.New(url, c.job).Gatherer(c.registry).PushContext(ctx)
}

// StartTime returns when the collector was created
func (c *Collector) StartTime() time.Time {
	return c.startTime
}

// Timer provides a simple timing mechanism for measuring operation durations.
// It captures the start time on creation and calculates elapsed time on stop.
type Timer struct {
	start time.Time
	name  string
}

// NewTimer creates a new timer and starts timing immediately.
// The name parameter is for identification in logs or metrics.
func NewTimer(name string) *Timer {
	return &Timer{
		start: time.Now(),
		name:  name,
	}
}

// Name returns the timer's name
func (t *Timer) Name() string {
	return t.name
}

// Stop returns the elapsed duration since creation. It can be called
// multiple times.
func (t *Timer) Stop() time.Duration {
	return time.Since(t.start)
}
