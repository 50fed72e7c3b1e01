package admanager

import (
	"context"
	"errors"
	"testing"
	"time"
)

// fastRetryConfig keeps test backoffs in the millisecond range.
func fastRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       3,
		InitialBackoff:    time.Millisecond,
		MaxBackoff:        5 * time.Millisecond,
		BackoffMultiplier: 2.0,
	}
}

func TestRetrySucceedsFirstAttempt(t *testing.T) {
	calls := 0
	err := retryWithConfig(context.Background(), fastRetryConfig(), func() error {
		calls++
		return nil
	})

	if err != nil {
		t.Fatalf("retryWithConfig() error = %v", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestRetrySucceedsAfterTransientFault(t *testing.T) {
	calls := 0
	err := retryWithConfig(context.Background(), fastRetryConfig(), func() error {
		calls++
		if calls < 3 {
			return &APIError{StatusCode: 503, ErrorClass: ErrorClassServer, Message: "unavailable"}
		}
		return nil
	})

	if err != nil {
		t.Fatalf("retryWithConfig() error = %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestRetryExhausted(t *testing.T) {
	calls := 0
	err := retryWithConfig(context.Background(), fastRetryConfig(), func() error {
		calls++
		return &APIError{StatusCode: 500, ErrorClass: ErrorClassServer, Message: "boom"}
	})

	if !errors.Is(err, ErrRetryExhausted) {
		t.Fatalf("retryWithConfig() error = %v, want ErrRetryExhausted", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3 (retry budget)", calls)
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Error("exhausted error should carry the last APIError")
	}
}

func TestRetryClientErrorNotRetried(t *testing.T) {
	calls := 0
	cause := &APIError{StatusCode: 400, ErrorClass: ErrorClassClient, Message: "bad statement"}
	err := retryWithConfig(context.Background(), fastRetryConfig(), func() error {
		calls++
		return cause
	})

	if calls != 1 {
		t.Errorf("calls = %d, want 1 (client errors surface immediately)", calls)
	}
	if !errors.Is(err, error(cause)) {
		t.Errorf("retryWithConfig() error = %v, want the client error unchanged", err)
	}
	if errors.Is(err, ErrRetryExhausted) {
		t.Error("client errors must not be reported as exhausted retries")
	}
}

func TestRetryContextCancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0

	config := RetryConfig{
		MaxAttempts:       3,
		InitialBackoff:    time.Hour,
		MaxBackoff:        time.Hour,
		BackoffMultiplier: 2.0,
	}
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	err := retryWithConfig(ctx, config, func() error {
		calls++
		return &APIError{StatusCode: 500, ErrorClass: ErrorClassServer, Message: "boom"}
	})

	if !errors.Is(err, ErrContextCancelled) {
		t.Fatalf("retryWithConfig() error = %v, want ErrContextCancelled", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1 (cancelled during first backoff)", calls)
	}
}

func TestRetryWithBackoffClientError(t *testing.T) {
	calls := 0
	err := retryWithBackoff(context.Background(), func() error {
		calls++
		return &APIError{StatusCode: 404, ErrorClass: ErrorClassClient, Message: "not found"}
	})

	if err == nil || calls != 1 {
		t.Errorf("retryWithBackoff() = (%v, %d calls), want client error after 1 call", err, calls)
	}
}

func TestRetryConfigForErrorClass(t *testing.T) {
	tests := []struct {
		class       ErrorClass
		wantInitial time.Duration
		wantMax     time.Duration
	}{
		{class: ErrorClassServer, wantInitial: 1 * time.Second, wantMax: 10 * time.Second},
		{class: ErrorClassRateLimit, wantInitial: 5 * time.Second, wantMax: 60 * time.Second},
		{class: ErrorClassNetwork, wantInitial: 2 * time.Second, wantMax: 30 * time.Second},
		{class: ErrorClassClient, wantInitial: 1 * time.Second, wantMax: 30 * time.Second},
	}

	for _, tt := range tests {
		t.Run(string(tt.class), func(t *testing.T) {
			config := RetryConfigForErrorClass(tt.class)
			if config.MaxAttempts != 3 {
				t.Errorf("MaxAttempts = %d, want 3", config.MaxAttempts)
			}
			if config.InitialBackoff != tt.wantInitial {
				t.Errorf("InitialBackoff = %v, want %v", config.InitialBackoff, tt.wantInitial)
			}
			if config.MaxBackoff != tt.wantMax {
				t.Errorf("MaxBackoff = %v, want %v", config.MaxBackoff, tt.wantMax)
			}
		})
	}
}
