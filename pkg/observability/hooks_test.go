package observability

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestNoopHooksDoNotPanic(t *testing.T) {
	ctx := context.Background()

	// Pipeline hooks
	p := NoopPipelineHooks{}
	p.OnFetchStart(ctx, "https://example.com/a.jpg")
	p.OnFetchComplete(ctx, "https://example.com/a.jpg", 2048, time.Second, nil)
	p.OnCaptionStart(ctx, "coze", "mood")
	p.OnCaptionComplete(ctx, "coze", "mood", time.Second, nil)
	p.OnComposeStart(ctx, "postcard", "jpeg")
	p.OnComposeComplete(ctx, "postcard", "jpeg", 4096, false, time.Second, nil)
	p.OnUploadComplete(ctx, "imgbb", 1, time.Second, nil)

	// Cache hooks
	c := NoopCacheHooks{}
	c.OnCacheHit(ctx, "image")
	c.OnCacheMiss(ctx, "caption")
	c.OnCacheSet(ctx, "artifact", 1024)

	// HTTP hooks
	h := NoopHTTPHooks{}
	h.OnRequest(ctx, "POST", "api.imgbb.com", "/1/upload")
	h.OnResponse(ctx, "POST", "api.imgbb.com", "/1/upload", 200, time.Second)
	h.OnError(ctx, "POST", "api.imgbb.com", "/1/upload", nil)
}

func TestGlobalHooksRegistry(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	if _, ok := Pipeline().(NoopPipelineHooks); !ok {
		t.Errorf("default pipeline hooks = %T", Pipeline())
	}
	if _, ok := Cache().(NoopCacheHooks); !ok {
		t.Errorf("default cache hooks = %T", Cache())
	}
	if _, ok := HTTP().(NoopHTTPHooks); !ok {
		t.Errorf("default http hooks = %T", HTTP())
	}

	rec := &recordingHooks{}
	SetPipelineHooks(rec)
	SetCacheHooks(rec)
	SetHTTPHooks(rec)

	ctx := context.Background()
	Pipeline().OnCaptionStart(ctx, "coze", "sarcastic")
	Cache().OnCacheHit(ctx, "artifact")
	HTTP().OnResponse(ctx, "GET", "example.com", "/a.jpg", 200, time.Millisecond)

	want := []string{"caption:sarcastic", "hit:artifact", "response:example.com:200"}
	if len(rec.events) != len(want) {
		t.Fatalf("events = %v, want %v", rec.events, want)
	}
	for i := range want {
		if rec.events[i] != want[i] {
			t.Errorf("event %d = %q, want %q", i, rec.events[i], want[i])
		}
	}

	Reset()
	if _, ok := Pipeline().(NoopPipelineHooks); !ok {
		t.Error("Reset() should restore NoopPipelineHooks")
	}
}

func TestSetNilHooksIsIgnored(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	rec := &recordingHooks{}
	SetPipelineHooks(rec)
	SetPipelineHooks(nil)
	SetCacheHooks(nil)
	SetHTTPHooks(nil)

	if Pipeline() != rec {
		t.Error("SetPipelineHooks(nil) should be ignored")
	}
	if _, ok := Cache().(NoopCacheHooks); !ok {
		t.Error("SetCacheHooks(nil) should keep the noop hooks")
	}
}

func TestHooksConcurrentAccess(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			SetCacheHooks(NoopCacheHooks{})
		}()
		go func() {
			defer wg.Done()
			Cache().OnCacheMiss(context.Background(), "image")
		}()
	}
	wg.Wait()
}

// recordingHooks keeps a log of the events it receives.
type recordingHooks struct {
	NoopPipelineHooks
	NoopCacheHooks
	NoopHTTPHooks
	events []string
}

func (r *recordingHooks) OnCaptionStart(_ context.Context, _, style string) {
	r.events = append(r.events, "caption:"+style)
}

func (r *recordingHooks) OnCacheHit(_ context.Context, keyType string) {
	r.events = append(r.events, "hit:"+keyType)
}

func (r *recordingHooks) OnResponse(_ context.Context, _, host, _ string, code int, _ time.Duration) {
	r.events = append(r.events, fmt.Sprintf("response:%s:%d", host, code))
}
