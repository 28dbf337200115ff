// Fieldport - Field Service Customer Portal Sync Engine
// Copyright 2026 Fieldport Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fieldport/fieldport

package api

import (
	"errors"
	"fmt"
	"hash/fnv"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/fieldport/fieldport/internal/database"
	"github.com/fieldport/fieldport/internal/logging"
	"github.com/fieldport/fieldport/internal/middleware"
	"github.com/fieldport/fieldport/internal/models"
	"github.com/fieldport/fieldport/internal/portal"
	"github.com/fieldport/fieldport/internal/upstream"
	"github.com/fieldport/fieldport/internal/validation"
	"github.com/fieldport/fieldport/internal/webhook"
)

// Machine-readable error codes.
const (
	ErrCodeBadRequest         = "BAD_REQUEST"
	ErrCodeNotFound           = "NOT_FOUND"
	ErrCodeConflict           = "CONFLICT"
	ErrCodeTooManyRequests    = "TOO_MANY_REQUESTS"
	ErrCodeValidationFailed   = "VALIDATION_FAILED"
	ErrCodeInternalError      = "INTERNAL_ERROR"
	ErrCodeServiceUnavailable = "SERVICE_UNAVAILABLE"
	ErrCodeUpstreamError      = "UPSTREAM_ERROR"
)

func respondJSON(w http.ResponseWriter, r *http.Request, status int, data interface{}, meta models.Metadata) {
	meta.Timestamp = time.Now().UTC()
	resp := models.APIResponse{
		Status:   "ok",
		Data:     data,
		Metadata: meta,
	}

	body, err := json.Marshal(resp)
	if err != nil {
		logging.Error().Err(err).Str("path", r.URL.Path).Msg("Marshal response")
		http.Error(w, `{"status":"error"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	// The ETag covers only the data payload; metadata carries a
	// per-request timestamp that must not defeat conditional requests.
	if status == http.StatusOK && data != nil {
		if dataBody, err := json.Marshal(data); err == nil {
			etag := computeETag(dataBody)
			w.Header().Set("ETag", etag)
			if r.Header.Get("If-None-Match") == etag {
				w.WriteHeader(http.StatusNotModified)
				return
			}
		}
	}
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func respondError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	resp := models.APIResponse{
		Status:   "error",
		Metadata: models.Metadata{Timestamp: time.Now().UTC()},
		Error: &models.APIError{
			Code:    code,
			Message: message,
		},
	}
	if id := middleware.GetRequestID(r.Context()); id != "" {
		resp.Error.Details = map[string]interface{}{"request_id": id}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logging.Error().Err(err).Str("path", r.URL.Path).Msg("Encode error response")
	}
}

// respondMappedError translates internal errors into API responses.
func respondMappedError(w http.ResponseWriter, r *http.Request, err error) {
	var validationErr *validation.StructValidationError
	switch {
	case errors.Is(err, database.ErrCustomerNotCached),
		errors.Is(err, database.ErrJobNotCached),
		errors.Is(err, database.ErrApprovalNotFound):
		respondError(w, r, http.StatusNotFound, ErrCodeNotFound, err.Error())

	case errors.Is(err, portal.ErrAlreadyApproved),
		errors.Is(err, portal.ErrNotApprovable):
		respondError(w, r, http.StatusConflict, ErrCodeConflict, err.Error())

	case errors.Is(err, webhook.ErrUnknownEventType):
		respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, err.Error())

	case errors.As(err, &validationErr):
		respondError(w, r, http.StatusUnprocessableEntity, ErrCodeValidationFailed, validationErr.Error())

	default:
		respondUpstreamError(w, r, err)
	}
}

func respondUpstreamError(w http.ResponseWriter, r *http.Request, err error) {
	kind, ok := upstream.ErrorKind(err)
	if !ok {
		logging.Error().Err(err).Str("path", r.URL.Path).Msg("Unhandled error")
		respondError(w, r, http.StatusInternalServerError, ErrCodeInternalError, "internal error")
		return
	}
	switch kind {
	case upstream.KindRateLimited:
		respondError(w, r, http.StatusTooManyRequests, ErrCodeTooManyRequests, err.Error())
	case upstream.KindNotFound:
		respondError(w, r, http.StatusNotFound, ErrCodeNotFound, err.Error())
	case upstream.KindBadRequest:
		respondError(w, r, http.StatusBadGateway, ErrCodeUpstreamError, err.Error())
	case upstream.KindUnauthorized, upstream.KindForbidden:
		// Misconfigured credentials are our fault, not the portal user's.
		logging.Error().Err(err).Msg("Upstream rejected configured credentials")
		respondError(w, r, http.StatusBadGateway, ErrCodeUpstreamError, "upstream authorization failed")
	default:
		respondError(w, r, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, err.Error())
	}
}

// computeETag produces a weak ETag over the serialized response body.
func computeETag(body []byte) string {
	h := fnv.New64a()
	_, _ = h.Write(body)
	return fmt.Sprintf(`W/"%x"`, h.Sum64())
}
