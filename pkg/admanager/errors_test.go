package admanager

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
)

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   ErrorClass
	}{
		{name: "bad request", status: http.StatusBadRequest, want: ErrorClassClient},
		{name: "unauthorized", status: http.StatusUnauthorized, want: ErrorClassClient},
		{name: "not found", status: http.StatusNotFound, want: ErrorClassClient},
		{name: "rate limited", status: http.StatusTooManyRequests, want: ErrorClassRateLimit},
		{name: "internal error", status: http.StatusInternalServerError, want: ErrorClassServer},
		{name: "bad gateway", status: http.StatusBadGateway, want: ErrorClassServer},
		{name: "service unavailable", status: http.StatusServiceUnavailable, want: ErrorClassServer},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classifyStatus(tt.status); got != tt.want {
				t.Errorf("classifyStatus(%d) = %v, want %v", tt.status, got, tt.want)
			}
		})
	}
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorClass
	}{
		{
			name: "api error direct",
			err:  &APIError{ErrorClass: ErrorClassServer},
			want: ErrorClassServer,
		},
		{
			name: "api error wrapped",
			err:  fmt.Errorf("page offset 100: %w", &APIError{ErrorClass: ErrorClassRateLimit}),
			want: ErrorClassRateLimit,
		},
		{
			name: "plain error",
			err:  errors.New("connection reset"),
			want: ErrorClassNetwork,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classifyError(tt.err); got != tt.want {
				t.Errorf("classifyError() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestShouldRetry(t *testing.T) {
	tests := []struct {
		class ErrorClass
		want  bool
	}{
		{class: ErrorClassClient, want: false},
		{class: ErrorClassServer, want: true},
		{class: ErrorClassRateLimit, want: true},
		{class: ErrorClassNetwork, want: true},
		{class: ErrorClass("bogus"), want: false},
	}

	for _, tt := range tests {
		if got := shouldRetry(tt.class); got != tt.want {
			t.Errorf("shouldRetry(%q) = %v, want %v", tt.class, got, tt.want)
		}
	}
}

func TestAPIErrorUnwrap(t *testing.T) {
	inner := errors.New("dial tcp: connection refused")
	err := &APIError{ErrorClass: ErrorClassNetwork, Message: "request failed", Err: inner}

	if !errors.Is(err, inner) {
		t.Error("errors.Is() should find the wrapped error")
	}
	if !strings.Contains(err.Error(), "connection refused") {
		t.Errorf("Error() = %q, want wrapped cause included", err.Error())
	}

	var apiErr *APIError
	wrapped := fmt.Errorf("fetch: %w", err)
	if !errors.As(wrapped, &apiErr) {
		t.Fatal("errors.As() should find the APIError")
	}
	if apiErr.ErrorClass != ErrorClassNetwork {
		t.Errorf("ErrorClass = %v, want network", apiErr.ErrorClass)
	}
}
