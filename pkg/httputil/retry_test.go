package httputil

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errTransient = errors.New("transient")

func TestRetrySucceedsFirstTry(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), 3, time.Millisecond, func() error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("Retry() error = %v", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestRetryStopsOnPermanentError(t *testing.T) {
	permanent := errors.New("bad request")
	calls := 0
	err := Retry(context.Background(), 3, time.Millisecond, func() error {
		calls++
		return permanent
	})
	if !errors.Is(err, permanent) {
		t.Errorf("Retry() error = %v, want %v", err, permanent)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestRetryExhaustsAttempts(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), 3, time.Millisecond, func() error {
		calls++
		return Retryable(errTransient)
	})
	if !errors.Is(err, errTransient) {
		t.Errorf("Retry() error = %v, want %v", err, errTransient)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestRetryZeroAttemptsRunsOnce(t *testing.T) {
	calls := 0
	_ = Retry(context.Background(), 0, time.Millisecond, func() error {
		calls++
		return Retryable(errTransient)
	})
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestRetryContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Retry(ctx, 3, time.Hour, func() error {
		return Retryable(errTransient)
	})
	if err != context.Canceled {
		t.Errorf("Retry() error = %v, want context.Canceled", err)
	}
}

func TestRetryableNil(t *testing.T) {
	if Retryable(nil) != nil {
		t.Error("Retryable(nil) should return nil")
	}
	if IsRetryable(errTransient) {
		t.Error("unwrapped error should not be retryable")
	}
	if !IsRetryable(Retryable(errTransient)) {
		t.Error("wrapped error should be retryable")
	}
}

func TestPolicyDelay(t *testing.T) {
	p := Policy{MaxAttempts: 3, Backoff: time.Second}
	tests := []struct {
		retry int
		want  time.Duration
	}{
		{0, 0},
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
	}
	for _, tt := range tests {
		if got := p.Delay(tt.retry); got != tt.want {
			t.Errorf("Delay(%d) = %v, want %v", tt.retry, got, tt.want)
		}
	}
}

func TestPolicyClassify(t *testing.T) {
	p := DefaultPolicy()
	base := errors.New("upload")

	tests := []struct {
		code      int
		wantErr   bool
		retryable bool
	}{
		{200, false, false},
		{201, false, false},
		{400, true, false},
		{404, true, false},
		{429, true, true},
		{500, true, true},
		{502, true, true},
		{503, true, true},
		{504, true, true},
		{501, true, false},
	}

	for _, tt := range tests {
		err := p.Classify(tt.code, base)
		if (err != nil) != tt.wantErr {
			t.Errorf("Classify(%d) error = %v, wantErr %v", tt.code, err, tt.wantErr)
			continue
		}
		if err == nil {
			continue
		}
		if IsRetryable(err) != tt.retryable {
			t.Errorf("Classify(%d) retryable = %v, want %v", tt.code, IsRetryable(err), tt.retryable)
		}
		if !errors.Is(err, base) {
			t.Errorf("Classify(%d) should wrap the base error", tt.code)
		}
	}
}

func TestPolicyDoNotify(t *testing.T) {
	p := Policy{MaxAttempts: 3, Backoff: time.Millisecond}
	var retries []int
	calls := 0

	err := p.DoNotify(context.Background(), func() error {
		calls++
		return Retryable(errTransient)
	}, func(retry int, err error, wait time.Duration) {
		retries = append(retries, retry)
	})

	if !errors.Is(err, errTransient) {
		t.Fatalf("DoNotify() error = %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
	// The final failure is not followed by a retry.
	if len(retries) != 2 || retries[0] != 1 || retries[1] != 2 {
		t.Errorf("retries = %v, want [1 2]", retries)
	}
}
