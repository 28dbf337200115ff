// Fieldport - Field Service Customer Portal Sync Engine
// Copyright 2026 Fieldport Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fieldport/fieldport

package upstream

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/fieldport/fieldport/internal/config"
	"github.com/fieldport/fieldport/internal/logging"
	"github.com/fieldport/fieldport/internal/metrics"
)

// maxErrorBodySize caps how much of an error response body is read for
// diagnostics, preventing unbounded allocation on large error pages.
const maxErrorBodySize = 64 * 1024 // 64KB

// maxJitter is the upper bound on the random component added to each
// backoff delay so concurrent retries do not synchronize.
const maxJitter = time.Second

// CallOptions tunes a single upstream call.
type CallOptions struct {
	// Timeout overrides the client's per-attempt timeout when positive.
	Timeout time.Duration
	// IdempotencyKey is sent on the wire for non-idempotent operations so
	// the vendor can dedupe retried writes. Retries of one logical call
	// always reuse the same key.
	IdempotencyKey string
}

// Client talks to the field-service vendor API with per-attempt timeouts,
// bounded retry with exponential backoff, and request pacing.
//
// Retry policy: up to MaxAttempts total attempts for retryable errors only.
// Delay for attempt n is base_delay * 2^n plus random jitter (at most 1s),
// capped at the configured maximum. Non-retryable errors propagate
// immediately. A Retry-After header on 429/503 responses overrides the
// computed delay.
//
// Thread safety: safe for concurrent use.
type Client struct {
	baseURL     string
	apiKey      string
	httpClient  *http.Client
	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration
	limiter     *rate.Limiter
}

// NewClient creates an upstream client from configuration.
func NewClient(cfg *config.UpstreamConfig) *Client {
	burst := int(cfg.PaceRPS)
	if burst < 1 {
		burst = 1
	}

	return &Client{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		maxAttempts: cfg.MaxAttempts,
		baseDelay:   cfg.RetryBaseDelay,
		maxDelay:    cfg.RetryMaxDelay,
		limiter:     rate.NewLimiter(rate.Limit(cfg.PaceRPS), burst),
	}
}

// Call performs one logical upstream request and returns the response body.
// body, when non-nil, is serialized as JSON. Retries happen inside this
// method; the caller sees only the final outcome.
func (c *Client) Call(ctx context.Context, method, path string, body interface{}, opts *CallOptions) ([]byte, error) {
	if opts == nil {
		opts = &CallOptions{}
	}

	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
	}

	start := time.Now()
	var lastErr error

	for attempt := 0; attempt < c.maxAttempts; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		// Pace outgoing requests so a burst of syncs does not hammer the
		// vendor even before the quota governor kicks in.
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		respBody, retryAfter, err := c.attempt(ctx, method, path, payload, opts)
		if err == nil {
			metrics.RecordUpstreamRequest(path, method, "success", time.Since(start))
			return respBody, nil
		}
		lastErr = err

		var ue *Error
		if !errors.As(err, &ue) || !ue.Retryable() {
			metrics.RecordUpstreamRequest(path, method, "fatal", time.Since(start))
			return nil, err
		}

		if attempt == c.maxAttempts-1 {
			break
		}

		delay := c.backoff(attempt, retryAfter)
		metrics.UpstreamRetriesTotal.WithLabelValues(path, string(ue.Kind)).Inc()
		logging.Warn().
			Str("method", method).
			Str("path", path).
			Int("attempt", attempt+1).
			Dur("delay", delay).
			Str("kind", string(ue.Kind)).
			Msg("Upstream call failed, retrying")

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	metrics.RecordUpstreamRequest(path, method, "retryable", time.Since(start))
	return nil, fmt.Errorf("upstream call %s %s failed after %d attempts: %w",
		method, path, c.maxAttempts, lastErr)
}

// attempt performs a single HTTP round trip. The returned duration is the
// parsed Retry-After hint, zero when absent.
func (c *Client) attempt(ctx context.Context, method, path string, payload []byte, opts *CallOptions) ([]byte, time.Duration, error) {
	timeout := c.httpClient.Timeout
	if opts.Timeout > 0 {
		timeout = opts.Timeout
	}
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var bodyReader io.Reader = http.NoBody
	if payload != nil {
		bodyReader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(attemptCtx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("X-API-Key", c.apiKey)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if opts.IdempotencyKey != "" {
		req.Header.Set("Idempotency-Key", opts.IdempotencyKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if attemptCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
			return nil, 0, &Error{Kind: KindTimeout, Message: err.Error()}
		}
		if ctx.Err() != nil {
			return nil, 0, ctx.Err()
		}
		return nil, 0, &Error{Kind: KindNetwork, Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, 0, &Error{Kind: KindNetwork, Message: "failed to read response body: " + err.Error()}
		}
		return respBody, 0, nil
	}

	errBody := readBodyForError(resp.Body)
	return nil, parseRetryAfter(resp.Header.Get("Retry-After")), &Error{
		Kind:    statusToKind(resp.StatusCode),
		Status:  resp.StatusCode,
		Message: string(errBody),
	}
}

// backoff computes the delay before the next attempt. A positive
// retryAfter from the server takes precedence over the exponential
// schedule; both are capped at maxDelay.
func (c *Client) backoff(attempt int, retryAfter time.Duration) time.Duration {
	delay := c.baseDelay << uint(attempt)
	delay += time.Duration(rand.Int63n(int64(maxJitter)))

	if retryAfter > 0 {
		delay = retryAfter
	}
	if delay > c.maxDelay {
		delay = c.maxDelay
	}
	return delay
}

// parseRetryAfter parses the Retry-After header's delay-seconds form.
func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	return 0
}

// readBodyForError reads at most maxErrorBodySize of a response body for
// diagnostics, marking truncation when the limit is hit.
func readBodyForError(r io.Reader) []byte {
	limitedReader := io.LimitReader(r, maxErrorBodySize)
	body, err := io.ReadAll(limitedReader)
	if err != nil {
		return []byte("(failed to read response body)")
	}
	if len(body) == maxErrorBodySize {
		return append(body, []byte("\n... (truncated)")...)
	}
	return body
}
