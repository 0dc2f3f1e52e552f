package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsStages(t *testing.T) {
	ctx := context.Background()
	m := NewMetrics(prometheus.NewRegistry())

	m.OnFetchComplete(ctx, "https://example.com/a.jpg", 100, time.Millisecond, nil)
	m.OnCaptionComplete(ctx, "coze", "mood", time.Second, nil)
	m.OnCaptionComplete(ctx, "coze", "mood", time.Second, errors.New("boom"))
	m.OnComposeComplete(ctx, "postcard", "jpeg", 50_000, true, time.Millisecond, nil)
	m.OnUploadComplete(ctx, "imgbb", 3, time.Second, nil)

	if got := testutil.ToFloat64(m.stageTotal.WithLabelValues("caption", "coze/mood", "ok")); got != 1 {
		t.Errorf("caption ok = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.stageTotal.WithLabelValues("caption", "coze/mood", "error")); got != 1 {
		t.Errorf("caption error = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.svgFailures); got != 1 {
		t.Errorf("svg failures = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.uploadRetries); got != 2 {
		t.Errorf("upload retries = %v, want 2", got)
	}
}

func TestMetricsFailedComposeSkipsArtifact(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	m.OnComposeComplete(context.Background(), "card", "png", 0, true, time.Millisecond, errors.New("encode"))

	if got := testutil.ToFloat64(m.svgFailures); got != 0 {
		t.Errorf("svg failures = %v, want 0 for failed compose", got)
	}
	if n := testutil.CollectAndCount(m.artifactBytes); n != 0 {
		t.Errorf("artifact histogram series = %d, want 0", n)
	}
}

func TestMetricsCacheAndHTTP(t *testing.T) {
	ctx := context.Background()
	m := NewMetrics(prometheus.NewRegistry())

	m.OnCacheHit(ctx, "image")
	m.OnCacheHit(ctx, "image")
	m.OnCacheMiss(ctx, "image")
	m.OnCacheSet(ctx, "artifact", 10)
	m.OnResponse(ctx, "POST", "api.imgbb.com", "/1/upload", 503, time.Second)
	m.OnError(ctx, "GET", "example.com", "/a.jpg", errors.New("reset"))

	if got := testutil.ToFloat64(m.cacheOps.WithLabelValues("image", "hit")); got != 2 {
		t.Errorf("image hits = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.httpRequests.WithLabelValues("POST", "api.imgbb.com", "503")); got != 1 {
		t.Errorf("imgbb 503 = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.httpErrors.WithLabelValues("GET", "example.com")); got != 1 {
		t.Errorf("http errors = %v, want 1", got)
	}
}

func TestMetricsRegisterAsHooks(t *testing.T) {
	Reset()
	defer Reset()

	m := NewMetrics(prometheus.NewRegistry())
	SetPipelineHooks(m)
	SetCacheHooks(m)
	SetHTTPHooks(m)

	if Pipeline() != PipelineHooks(m) || Cache() != CacheHooks(m) || HTTP() != HTTPHooks(m) {
		t.Error("Metrics should be installable as every hook type")
	}
}
