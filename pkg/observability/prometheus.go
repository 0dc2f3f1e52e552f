package observability

import (
	"context"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "postcard"

// Metrics exports hook events as Prometheus collectors. A single value
// implements [PipelineHooks], [CacheHooks] and [HTTPHooks].
type Metrics struct {
	stageTotal    *prometheus.CounterVec
	stageDuration *prometheus.HistogramVec
	artifactBytes *prometheus.HistogramVec
	svgFailures   prometheus.Counter
	uploadRetries prometheus.Counter

	cacheOps *prometheus.CounterVec

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
	httpErrors   *prometheus.CounterVec
}

// NewMetrics registers the postcard collectors with reg. Passing nil uses
// [prometheus.DefaultRegisterer].
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Metrics{
		stageTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_total",
			Help:      "Pipeline stages executed, by stage, label and outcome",
		}, []string{"stage", "label", "status"}),
		stageDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Pipeline stage duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"stage"}),
		artifactBytes: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "artifact_bytes",
			Help:      "Encoded postcard size in bytes",
			Buckets:   prometheus.ExponentialBuckets(10_000, 2, 10),
		}, []string{"format"}),
		svgFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "svg_failures_total",
			Help:      "Postcards composed with the sketch failure notice",
		}),
		uploadRetries: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upload_retries_total",
			Help:      "Extra upload attempts beyond the first",
		}),
		cacheOps: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_operations_total",
			Help:      "Cache lookups and writes, by key type and result",
		}, []string{"key_type", "result"}),
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_client_requests_total",
			Help:      "Outbound HTTP responses, by host and status",
		}, []string{"method", "host", "status"}),
		httpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_client_duration_seconds",
			Help:      "Outbound HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"host"}),
		httpErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_client_errors_total",
			Help:      "Outbound HTTP transport failures",
		}, []string{"method", "host"}),
	}
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func (m *Metrics) observeStage(stage, label string, d time.Duration, err error) {
	m.stageTotal.WithLabelValues(stage, label, status(err)).Inc()
	m.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (m *Metrics) OnFetchStart(context.Context, string) {}

func (m *Metrics) OnFetchComplete(_ context.Context, _ string, _ int, d time.Duration, err error) {
	m.observeStage("fetch", "", d, err)
}

func (m *Metrics) OnCaptionStart(context.Context, string, string) {}

func (m *Metrics) OnCaptionComplete(_ context.Context, provider, style string, d time.Duration, err error) {
	m.observeStage("caption", provider+"/"+style, d, err)
}

func (m *Metrics) OnComposeStart(context.Context, string, string) {}

func (m *Metrics) OnComposeComplete(_ context.Context, layout, format string, size int, svgFailed bool, d time.Duration, err error) {
	m.observeStage("compose", layout, d, err)
	if err != nil {
		return
	}
	m.artifactBytes.WithLabelValues(format).Observe(float64(size))
	if svgFailed {
		m.svgFailures.Inc()
	}
}

func (m *Metrics) OnUploadComplete(_ context.Context, host string, attempts int, d time.Duration, err error) {
	m.observeStage("upload", host, d, err)
	if attempts > 1 {
		m.uploadRetries.Add(float64(attempts - 1))
	}
}

func (m *Metrics) OnCacheHit(_ context.Context, keyType string) {
	m.cacheOps.WithLabelValues(keyType, "hit").Inc()
}

func (m *Metrics) OnCacheMiss(_ context.Context, keyType string) {
	m.cacheOps.WithLabelValues(keyType, "miss").Inc()
}

func (m *Metrics) OnCacheSet(_ context.Context, keyType string, _ int) {
	m.cacheOps.WithLabelValues(keyType, "set").Inc()
}

func (m *Metrics) OnRequest(context.Context, string, string, string) {}

func (m *Metrics) OnResponse(_ context.Context, method, host, _ string, code int, d time.Duration) {
	m.httpRequests.WithLabelValues(method, host, strconv.Itoa(code)).Inc()
	m.httpDuration.WithLabelValues(host).Observe(d.Seconds())
}

func (m *Metrics) OnError(_ context.Context, method, host, _ string, _ error) {
	m.httpErrors.WithLabelValues(method, host).Inc()
}

var (
	_ PipelineHooks = (*Metrics)(nil)
	_ CacheHooks    = (*Metrics)(nil)
	_ HTTPHooks     = (*Metrics)(nil)
)
