package imagefetch

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	perrors "github.com/matzehuels/postcard/pkg/errors"
	"github.com/matzehuels/postcard/pkg/httputil"
	"github.com/matzehuels/postcard/pkg/integrations"
)

func testClient(t *testing.T) *Client {
	t.Helper()
	p := httputil.DefaultPolicy()
	p.Backoff = time.Millisecond
	return NewClient(integrations.WithPolicy(p))
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(1, 1, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestFetch(t *testing.T) {
	data := pngBytes(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/photo.png" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "image/png")
		w.Write(data)
	}))
	defer server.Close()

	img, err := testClient(t).Fetch(context.Background(), server.URL+"/photo.png")
	if err != nil {
		t.Fatalf("Fetch() error: %v", err)
	}
	if !bytes.Equal(img.Data, data) {
		t.Error("Fetch() returned different bytes")
	}
	if img.ContentType != "image/png" {
		t.Errorf("ContentType = %q", img.ContentType)
	}
}

func TestFetchSniffsOctetStream(t *testing.T) {
	data := pngBytes(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Write(data)
	}))
	defer server.Close()

	img, err := testClient(t).Fetch(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Fetch() error: %v", err)
	}
	if img.ContentType != "image/png" {
		t.Errorf("ContentType = %q, want sniffed image/png", img.ContentType)
	}
}

func TestFetchRejectsHTML(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html><body>login</body></html>"))
	}))
	defer server.Close()

	_, err := testClient(t).Fetch(context.Background(), server.URL)
	if !perrors.Is(err, perrors.ErrCodeFetchFailed) {
		t.Errorf("error = %v, want FETCH_FAILED", err)
	}
}

func TestFetchErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   perrors.Code
	}{
		{"not found", http.StatusNotFound, perrors.ErrCodeFetchFailed},
		{"server error", http.StatusInternalServerError, perrors.ErrCodeFetchFailed},
		{"gateway timeout", http.StatusGatewayTimeout, perrors.ErrCodeTimeout},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			_, err := testClient(t).Fetch(context.Background(), server.URL)
			if got := perrors.GetCode(err); got != tt.want {
				t.Errorf("code = %s, want %s (%v)", got, tt.want, err)
			}
		})
	}
}

func TestFetchRetriesTransientFailures(t *testing.T) {
	data := pngBytes(t)
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Write(data)
	}))
	defer server.Close()

	if _, err := testClient(t).Fetch(context.Background(), server.URL); err != nil {
		t.Fatalf("Fetch() error: %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("calls = %d, want 2", calls.Load())
	}
}

func TestFetchInvalidURL(t *testing.T) {
	for _, u := range []string{"", "ftp://example.com/a.png", "not a url"} {
		if _, err := testClient(t).Fetch(context.Background(), u); !perrors.Is(err, perrors.ErrCodeFetchFailed) {
			t.Errorf("Fetch(%q) error = %v, want FETCH_FAILED", u, err)
		}
	}
}

func TestContentType(t *testing.T) {
	if got := ContentType("image/JPEG; charset=binary", nil); got != "image/jpeg" {
		t.Errorf("ContentType() = %q", got)
	}
	if got := ContentType("", []byte("GIF89a......")); got != "image/gif" {
		t.Errorf("ContentType() sniffed = %q", got)
	}
}
