// Fieldport - Field Service Customer Portal Sync Engine
// Copyright 2026 Fieldport Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fieldport/fieldport

package upstream

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is the normalized error taxonomy for upstream failures. Every
// non-2xx response and transport failure maps to exactly one kind, which
// determines retryability.
type Kind string

const (
	KindBadRequest         Kind = "bad_request"
	KindUnauthorized       Kind = "unauthorized"
	KindForbidden          Kind = "forbidden"
	KindNotFound           Kind = "not_found"
	KindRateLimited        Kind = "rate_limited"
	KindServerError        Kind = "server_error"
	KindServiceUnavailable Kind = "service_unavailable"
	KindTimeout            Kind = "timeout"
	KindNetwork            Kind = "network"
)

// Error is a normalized upstream failure.
type Error struct {
	Kind    Kind
	Status  int // HTTP status, 0 for transport-level failures
	Message string
}

func (e *Error) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("upstream %s (HTTP %d): %s", e.Kind, e.Status, e.Message)
	}
	return fmt.Sprintf("upstream %s: %s", e.Kind, e.Message)
}

// Retryable reports whether the failure is worth retrying. Client errors
// (4xx except 429) are permanent; throttling, server errors, timeouts and
// network failures are transient.
func (e *Error) Retryable() bool {
	switch e.Kind {
	case KindRateLimited, KindServerError, KindServiceUnavailable, KindTimeout, KindNetwork:
		return true
	default:
		return false
	}
}

// statusToKind maps an HTTP status code to the normalized error taxonomy.
func statusToKind(status int) Kind {
	switch {
	case status == http.StatusBadRequest:
		return KindBadRequest
	case status == http.StatusUnauthorized:
		return KindUnauthorized
	case status == http.StatusForbidden:
		return KindForbidden
	case status == http.StatusNotFound:
		return KindNotFound
	case status == http.StatusTooManyRequests:
		return KindRateLimited
	case status == http.StatusServiceUnavailable:
		return KindServiceUnavailable
	case status >= 500:
		return KindServerError
	default:
		return KindBadRequest
	}
}

// ErrorKind extracts the normalized kind from any error chain. Returns
// false when the chain carries no *Error.
func ErrorKind(err error) (Kind, bool) {
	var ue *Error
	if errors.As(err, &ue) {
		return ue.Kind, true
	}
	return "", false
}

// IsRetryable reports whether the error chain carries a retryable upstream
// failure. Unknown errors are treated as non-retryable.
func IsRetryable(err error) bool {
	var ue *Error
	if errors.As(err, &ue) {
		return ue.Retryable()
	}
	return false
}

// IsNotFound reports whether the error chain is an upstream 404.
func IsNotFound(err error) bool {
	kind, ok := ErrorKind(err)
	return ok && kind == KindNotFound
}

// IsRateLimited reports whether the error chain is an upstream 429 or a
// local quota denial surfaced as the same kind.
func IsRateLimited(err error) bool {
	kind, ok := ErrorKind(err)
	return ok && kind == KindRateLimited
}
