// Fieldport - Field Service Customer Portal Sync Engine
// Copyright 2026 Fieldport Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fieldport/fieldport

package upstream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fieldport/fieldport/internal/config"
)

// newTestClient builds a client with sub-millisecond backoff so retry
// tests finish quickly.
func newTestClient(baseURL string, maxAttempts int) *Client {
	return NewClient(&config.UpstreamConfig{
		BaseURL:        baseURL,
		APIKey:         "test-key",
		Timeout:        2 * time.Second,
		MaxAttempts:    maxAttempts,
		RetryBaseDelay: time.Millisecond,
		RetryMaxDelay:  5 * time.Millisecond,
		PaceRPS:        1000,
	})
}

func TestStatusToKind(t *testing.T) {
	tests := []struct {
		status int
		want   Kind
	}{
		{http.StatusBadRequest, KindBadRequest},
		{http.StatusUnauthorized, KindUnauthorized},
		{http.StatusForbidden, KindForbidden},
		{http.StatusNotFound, KindNotFound},
		{http.StatusTooManyRequests, KindRateLimited},
		{http.StatusInternalServerError, KindServerError},
		{http.StatusBadGateway, KindServerError},
		{http.StatusServiceUnavailable, KindServiceUnavailable},
	}

	for _, tt := range tests {
		if got := statusToKind(tt.status); got != tt.want {
			t.Errorf("statusToKind(%d) = %q, want %q", tt.status, got, tt.want)
		}
	}
}

func TestErrorRetryable(t *testing.T) {
	retryable := []Kind{KindRateLimited, KindServerError, KindServiceUnavailable, KindTimeout, KindNetwork}
	permanent := []Kind{KindBadRequest, KindUnauthorized, KindForbidden, KindNotFound}

	for _, kind := range retryable {
		if !(&Error{Kind: kind}).Retryable() {
			t.Errorf("%s should be retryable", kind)
		}
	}
	for _, kind := range permanent {
		if (&Error{Kind: kind}).Retryable() {
			t.Errorf("%s should not be retryable", kind)
		}
	}
}

func TestCallSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("X-API-Key"); got != "test-key" {
			t.Errorf("X-API-Key = %q, want test-key", got)
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"uuid":"abc"}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL, 3)
	body, err := client.Call(context.Background(), http.MethodGet, "/api/1.0/job/abc.json", nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(body) != `{"uuid":"abc"}` {
		t.Errorf("unexpected body: %s", body)
	}
}

func TestCallRetriesRateLimitThenSucceeds(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) <= 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL, 3)
	if _, err := client.Call(context.Background(), http.MethodGet, "/path", nil, nil); err != nil {
		t.Fatalf("expected success on third attempt: %v", err)
	}
	if got := hits.Load(); got != 3 {
		t.Errorf("server hits = %d, want 3", got)
	}
}

func TestCallExhaustsRetryBudget(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := newTestClient(server.URL, 3)
	_, err := client.Call(context.Background(), http.MethodGet, "/path", nil, nil)
	if err == nil {
		t.Fatal("expected error after exhausting the retry budget")
	}
	if !IsRateLimited(err) {
		t.Errorf("expected rate-limited kind in chain, got: %v", err)
	}
	if got := hits.Load(); got != 3 {
		t.Errorf("server hits = %d, want exactly the attempt budget of 3", got)
	}
}

func TestCallNonRetryableFailsImmediately(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   Kind
	}{
		{"bad request", http.StatusBadRequest, KindBadRequest},
		{"unauthorized", http.StatusUnauthorized, KindUnauthorized},
		{"forbidden", http.StatusForbidden, KindForbidden},
		{"not found", http.StatusNotFound, KindNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var hits atomic.Int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				hits.Add(1)
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			client := newTestClient(server.URL, 3)
			_, err := client.Call(context.Background(), http.MethodGet, "/path", nil, nil)
			if err == nil {
				t.Fatal("expected error")
			}
			if kind, ok := ErrorKind(err); !ok || kind != tt.want {
				t.Errorf("kind = %q, want %q", kind, tt.want)
			}
			if got := hits.Load(); got != 1 {
				t.Errorf("server hits = %d, want 1 (no retries for permanent errors)", got)
			}
		})
	}
}

func TestCallServerErrorRetries(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL, 3)
	if _, err := client.Call(context.Background(), http.MethodGet, "/path", nil, nil); err != nil {
		t.Fatalf("5xx should be retried: %v", err)
	}
	if got := hits.Load(); got != 2 {
		t.Errorf("server hits = %d, want 2", got)
	}
}

func TestCallIdempotencyKeyReusedAcrossRetries(t *testing.T) {
	var keys []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		keys = append(keys, r.Header.Get("Idempotency-Key"))
		if len(keys) < 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL, 3)
	_, err := client.Call(context.Background(), http.MethodPost, "/approve", map[string]bool{"approved": true}, &CallOptions{
		IdempotencyKey: "approve:job-1:42",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(keys) != 2 {
		t.Fatalf("server hits = %d, want 2", len(keys))
	}
	for i, key := range keys {
		if key != "approve:job-1:42" {
			t.Errorf("attempt %d sent key %q, want approve:job-1:42", i+1, key)
		}
	}
}

func TestCallPerAttemptTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := newTestClient(server.URL, 1)
	_, err := client.Call(context.Background(), http.MethodGet, "/slow", nil, &CallOptions{
		Timeout: 20 * time.Millisecond,
	})
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if kind, _ := ErrorKind(err); kind != KindTimeout {
		t.Errorf("kind = %q, want %q", kind, KindTimeout)
	}
}

func TestCallCallerCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	client := newTestClient(server.URL, 3)
	_, err := client.Call(ctx, http.MethodGet, "/slow", nil, nil)
	if err == nil {
		t.Fatal("expected cancellation error")
	}
	if _, isUpstream := ErrorKind(err); isUpstream {
		t.Errorf("caller cancellation should surface the context error, got: %v", err)
	}
}

func TestBackoffCapAndRetryAfter(t *testing.T) {
	client := newTestClient("http://example.invalid", 3)
	client.baseDelay = time.Second
	client.maxDelay = 10 * time.Second

	// Deep attempts must cap at maxDelay even with jitter.
	for attempt := 0; attempt < 12; attempt++ {
		if d := client.backoff(attempt, 0); d > client.maxDelay {
			t.Errorf("backoff(%d) = %v, exceeds cap %v", attempt, d, client.maxDelay)
		}
	}

	// A server Retry-After hint overrides the schedule.
	if d := client.backoff(0, 4*time.Second); d != 4*time.Second {
		t.Errorf("backoff with Retry-After = %v, want 4s", d)
	}

	// But it too is capped.
	if d := client.backoff(0, time.Minute); d != client.maxDelay {
		t.Errorf("backoff with huge Retry-After = %v, want cap %v", d, client.maxDelay)
	}
}

func TestParseRetryAfter(t *testing.T) {
	tests := []struct {
		value string
		want  time.Duration
	}{
		{"", 0},
		{"5", 5 * time.Second},
		{"0", 0},
		{"-3", 0},
		{"Wed, 21 Oct 2026 07:28:00 GMT", 0}, // HTTP-date form ignored
	}

	for _, tt := range tests {
		if got := parseRetryAfter(tt.value); got != tt.want {
			t.Errorf("parseRetryAfter(%q) = %v, want %v", tt.value, got, tt.want)
		}
	}
}
