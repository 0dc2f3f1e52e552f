package cli

import (
	"context"
	"testing"
	"time"

	"github.com/matzehuels/postcard/pkg/observability"
)

func TestSpinnerBasic(t *testing.T) {
	s := newSpinner("Testing...")
	s.Start()
	time.Sleep(100 * time.Millisecond)
	s.Stop()
}

func TestSpinnerSetMessage(t *testing.T) {
	s := newSpinner("Fetching image...")
	s.Start()
	defer s.Stop()

	s.SetMessage("Composing")
	if got := s.Message(); got != "Composing" {
		t.Errorf("Message() = %q", got)
	}
	if s.width != len("Fetching image...") {
		t.Errorf("width = %d, should keep the longest message", s.width)
	}
}

func TestFollowStages(t *testing.T) {
	s := newSpinner("Preparing...")
	restore := followStages(s)

	ctx := context.Background()
	observability.Pipeline().OnFetchStart(ctx, "https://example.com/a.jpg")
	if got := s.Message(); got != "Fetching image..." {
		t.Errorf("after fetch start: %q", got)
	}
	observability.Pipeline().OnCaptionStart(ctx, "coze", "mood")
	if got := s.Message(); got != "Writing mood caption..." {
		t.Errorf("after caption start: %q", got)
	}
	observability.Pipeline().OnComposeStart(ctx, "card", "jpeg")
	if got := s.Message(); got != "Composing card postcard..." {
		t.Errorf("after compose start: %q", got)
	}

	restore()
	if _, ok := observability.Pipeline().(stageHooks); ok {
		t.Error("restore should reinstate the previous hooks")
	}
}

func TestSpinnerWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	s := newSpinnerWithContext(ctx, "Testing with context...")
	s.Start()

	// Cancel the context
	cancel()

	// Give goroutine time to notice cancellation
	time.Sleep(100 * time.Millisecond)

	// Spinner should be cancelled
	if !s.Cancelled() {
		t.Error("Spinner should be cancelled after context cancellation")
	}
}

func TestSpinnerWithTimeout(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	s := newSpinnerWithContext(ctx, "Testing with timeout...")
	s.Start()

	// Wait for timeout
	time.Sleep(100 * time.Millisecond)

	// Spinner should be cancelled due to timeout
	if !s.Cancelled() {
		t.Error("Spinner should be cancelled after context timeout")
	}
}

func TestSpinnerStopIsIdempotent(t *testing.T) {
	s := newSpinner("Testing idempotent stop...")
	s.Start()

	// Stop multiple times should not panic
	s.Stop()
	s.Stop()
	s.Stop()
}

func TestSpinnerStopWithSuccess(t *testing.T) {
	s := newSpinner("Testing success...")
	s.Start()
	time.Sleep(50 * time.Millisecond)
	s.StopWithSuccess("Done!")
}

func TestSpinnerStopWithError(t *testing.T) {
	s := newSpinner("Testing error...")
	s.Start()
	time.Sleep(50 * time.Millisecond)
	s.StopWithError("Failed!")
}
