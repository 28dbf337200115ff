// Fieldport - Field Service Customer Portal Sync Engine
// Copyright 2026 Fieldport Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fieldport/fieldport

package upstream

import (
	"context"
	"errors"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/fieldport/fieldport/internal/logging"
	"github.com/fieldport/fieldport/internal/metrics"
)

// BreakerClient wraps a Client with circuit breaker protection so a hard
// vendor outage fails fast instead of burning the retry budget and the
// daily quota on every call.
//
// The breaker uses real time for its interval and timeout calculations;
// tests should exercise the wrapped client directly.
type BreakerClient struct {
	client *Client
	cb     *gobreaker.CircuitBreaker[[]byte]
	name   string
}

// NewBreakerClient wraps the client with a circuit breaker.
// Configuration:
//   - Opens at a 60% failure rate with at least 10 requests observed
//   - Counts reset every minute while closed
//   - 2 minutes open before probing half-open
//   - At most 3 concurrent probes in half-open state
func NewBreakerClient(client *Client) *BreakerClient {
	cbName := "upstream-api"

	metrics.CircuitBreakerState.WithLabelValues(cbName).Set(0) // 0 = closed
	metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(cbName).Set(0)

	cb := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        cbName,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,

		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}

			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			shouldTrip := failureRatio >= 0.6

			if shouldTrip {
				logging.Warn().
					Uint32("failures", counts.TotalFailures).
					Float64("failure_rate", failureRatio*100).
					Msg("[CIRCUIT BREAKER] Opening circuit")
			}

			return shouldTrip
		},

		OnStateChange: func(name string, from, to gobreaker.State) {
			fromStr := stateToString(from)
			toStr := stateToString(to)

			logging.Info().Str("from", fromStr).Str("to", toStr).Msg("[CIRCUIT BREAKER] State transition")

			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, fromStr, toStr).Inc()

			if to == gobreaker.StateClosed {
				metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(name).Set(0)
			}
		},

		// Permanent client errors (400/401/403/404) say nothing about
		// vendor health; only transient failures count toward tripping.
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			return !IsRetryable(err)
		},
	})

	return &BreakerClient{
		client: client,
		cb:     cb,
		name:   cbName,
	}
}

// Call routes the request through the circuit breaker. An open circuit is
// surfaced as a retryable ServiceUnavailable error so callers degrade the
// same way they would for a vendor 503.
func (bc *BreakerClient) Call(ctx context.Context, method, path string, body interface{}, opts *CallOptions) ([]byte, error) {
	result, err := bc.cb.Execute(func() ([]byte, error) {
		return bc.client.Call(ctx, method, path, body, opts)
	})

	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.CircuitBreakerRequests.WithLabelValues(bc.name, "rejected").Inc()
			logging.Warn().Err(err).Str("path", path).Msg("[CIRCUIT BREAKER] Request rejected")
			return nil, &Error{
				Kind:    KindServiceUnavailable,
				Message: "circuit breaker open: " + err.Error(),
			}
		}

		metrics.CircuitBreakerRequests.WithLabelValues(bc.name, "failure").Inc()
		counts := bc.cb.Counts()
		metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(bc.name).Set(float64(counts.ConsecutiveFailures))
		return nil, err
	}

	metrics.CircuitBreakerRequests.WithLabelValues(bc.name, "success").Inc()
	metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(bc.name).Set(0)

	return result, nil
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

func stateToString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}
