package cli

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/matzehuels/postcard/pkg/pipeline"
)

func captureUI(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := uiOut
	uiOut = &buf
	t.Cleanup(func() { uiOut = prev })
	return &buf
}

func TestHumanBytes(t *testing.T) {
	tests := []struct {
		n    int
		want string
	}{
		{0, "0 B"},
		{512, "512 B"},
		{2048, "2.0 KB"},
		{3 << 20, "3.0 MB"},
	}
	for _, tt := range tests {
		if got := humanBytes(tt.n); got != tt.want {
			t.Errorf("humanBytes(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}

func TestPrintStats(t *testing.T) {
	buf := captureUI(t)

	printStats(pipeline.Stats{
		ImageBytes:  4096,
		CaptionTime: time.Second,
		OutputBytes: 2 << 20,
		UploadTries: 2,
		TotalTime:   1500 * time.Millisecond,
	}, pipeline.CacheInfo{FetchHit: true})

	out := buf.String()
	for _, want := range []string{"photo 4.0 KB cached", "caption fresh", "postcard 2.0 MB fresh", "upload 2 tries", "1.5s"} {
		if !strings.Contains(out, want) {
			t.Errorf("stats line missing %q: %q", want, out)
		}
	}
}

func TestPrintStatsSuppliedCaption(t *testing.T) {
	buf := captureUI(t)
	printStats(pipeline.Stats{OutputBytes: 100}, pipeline.CacheInfo{ComposeHit: true})

	out := buf.String()
	if strings.Contains(out, "caption") || strings.Contains(out, "photo") {
		t.Errorf("stages that did not run should be omitted: %q", out)
	}
	if !strings.Contains(out, "postcard 100 B cached") {
		t.Errorf("compose stage missing: %q", out)
	}
}

func TestPrintKeyValueMultiline(t *testing.T) {
	buf := captureUI(t)
	printKeyValue("Caption", "第一行\n第二行")

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("lines = %q", lines)
	}
	if !strings.HasPrefix(lines[1], strings.Repeat(" ", keyWidth+1)) || !strings.HasSuffix(lines[1], "第二行") {
		t.Errorf("continuation not aligned: %q", lines[1])
	}
}
