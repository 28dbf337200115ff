// Fieldport - Field Service Customer Portal Sync Engine
// Copyright 2026 Fieldport Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fieldport/fieldport

package api

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/fieldport/fieldport/internal/database"
	"github.com/fieldport/fieldport/internal/models"
	"github.com/fieldport/fieldport/internal/portal"
	"github.com/fieldport/fieldport/internal/validation"
	"github.com/fieldport/fieldport/internal/webhook"
)

const maxWebhookBodySize = 256 * 1024

// QuotaReporter exposes daily-quota usage for the health endpoint.
type QuotaReporter interface {
	Used() int
	Remaining() int
	Quota() int
}

// Pinger is the database health-check surface.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler holds the portal endpoints' dependencies.
type Handler struct {
	accessor    *portal.Accessor
	coordinator *portal.Coordinator
	invalidator *webhook.Invalidator
	db          Pinger
	governor    QuotaReporter
	startTime   time.Time
}

func NewHandler(accessor *portal.Accessor, coordinator *portal.Coordinator, invalidator *webhook.Invalidator, db Pinger, governor QuotaReporter) *Handler {
	return &Handler{
		accessor:    accessor,
		coordinator: coordinator,
		invalidator: invalidator,
		db:          db,
		governor:    governor,
		startTime:   time.Now(),
	}
}

// refreshMode maps the optional ?refresh= query parameter.
func refreshMode(r *http.Request) portal.RefreshMode {
	switch r.URL.Query().Get("refresh") {
	case "force":
		return portal.RefreshForce
	case "skip":
		return portal.RefreshSkip
	default:
		return portal.RefreshAuto
	}
}

func freshnessMeta(meta portal.Meta, start time.Time) models.Metadata {
	return models.Metadata{
		QueryTimeMS: time.Since(start).Milliseconds(),
		Stale:       meta.Stale,
	}
}

// Dashboard serves the aggregated per-customer dashboard.
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	customerUUID := chi.URLParam(r, "customerUUID")

	dashboard, meta, err := h.accessor.Dashboard(r.Context(), customerUUID, refreshMode(r))
	if err != nil {
		respondMappedError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, dashboard, freshnessMeta(meta, start))
}

// Jobs lists a customer's jobs, most recently updated first. Supports
// status and creation-date-range filters.
func (h *Handler) Jobs(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	customerUUID := chi.URLParam(r, "customerUUID")

	filter, err := parseJobFilter(r)
	if err != nil {
		respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		return
	}

	jobs, meta, err := h.accessor.Jobs(r.Context(), customerUUID, filter, refreshMode(r))
	if err != nil {
		respondMappedError(w, r, err)
		return
	}
	if jobs == nil {
		jobs = []models.Job{}
	}
	respondJSON(w, r, http.StatusOK, jobs, freshnessMeta(meta, start))
}

// JobDetail serves one job with its materials and attachments.
func (h *Handler) JobDetail(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	customerUUID := chi.URLParam(r, "customerUUID")
	jobUUID := chi.URLParam(r, "jobUUID")

	detail, meta, err := h.accessor.JobDetail(r.Context(), customerUUID, jobUUID, refreshMode(r))
	if err != nil {
		respondMappedError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, detail, freshnessMeta(meta, start))
}

// Documents lists a customer's attachments, optionally scoped to one job
// via ?job_uuid=.
func (h *Handler) Documents(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	customerUUID := chi.URLParam(r, "customerUUID")
	jobUUID := r.URL.Query().Get("job_uuid")

	docs, meta, err := h.accessor.Documents(r.Context(), customerUUID, jobUUID, refreshMode(r))
	if err != nil {
		respondMappedError(w, r, err)
		return
	}
	if docs == nil {
		docs = []models.Attachment{}
	}
	respondJSON(w, r, http.StatusOK, docs, freshnessMeta(meta, start))
}

// Payments lists the customer's jobs in billing states.
func (h *Handler) Payments(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	customerUUID := chi.URLParam(r, "customerUUID")

	jobs, meta, err := h.accessor.PaymentHistory(r.Context(), customerUUID, refreshMode(r))
	if err != nil {
		respondMappedError(w, r, err)
		return
	}
	if jobs == nil {
		jobs = []models.Job{}
	}
	respondJSON(w, r, http.StatusOK, jobs, freshnessMeta(meta, start))
}

// ApproveQuote accepts a customer's quote approval and writes it back to
// the vendor.
func (h *Handler) ApproveQuote(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	jobUUID := chi.URLParam(r, "jobUUID")

	var req models.ApproveQuoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, "invalid request body")
		return
	}
	if err := validation.ValidateStruct(&req); err != nil {
		respondMappedError(w, r, err)
		return
	}
	if !req.Approved {
		respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, "approved must be true")
		return
	}

	record, err := h.coordinator.ApproveQuote(r.Context(), jobUUID, &req)
	if err != nil {
		respondMappedError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, record, models.Metadata{
		QueryTimeMS: time.Since(start).Milliseconds(),
	})
}

// Webhook receives upstream change notifications.
func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBodySize))
	if err != nil {
		respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, "unreadable body")
		return
	}

	if !h.invalidator.VerifySignature(body, r.Header.Get("X-Webhook-Signature")) {
		respondError(w, r, http.StatusUnauthorized, "INVALID_SIGNATURE", "webhook signature verification failed")
		return
	}

	var event models.WebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, "invalid event payload")
		return
	}
	if err := validation.ValidateStruct(&event); err != nil {
		respondMappedError(w, r, err)
		return
	}

	if err := h.invalidator.Process(r.Context(), &event); err != nil {
		respondMappedError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusAccepted, map[string]string{"result": "accepted"}, models.Metadata{})
}

// HealthLive answers as soon as the process serves traffic.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, r, http.StatusOK, map[string]string{"status": "alive"}, models.Metadata{})
}

// HealthReady answers once the database responds to a ping.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	if err := h.db.Ping(ctx); err != nil {
		respondError(w, r, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "database not ready")
		return
	}
	respondJSON(w, r, http.StatusOK, map[string]string{"status": "ready"}, models.Metadata{})
}

// Health reports overall status including daily-quota headroom.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "healthy"
	dbStatus := "up"
	if err := h.db.Ping(ctx); err != nil {
		status = "degraded"
		dbStatus = "down"
	}

	data := map[string]interface{}{
		"status":         status,
		"database":       dbStatus,
		"uptime_seconds": int64(time.Since(h.startTime).Seconds()),
	}
	if h.governor != nil {
		data["quota"] = map[string]int{
			"used":      h.governor.Used(),
			"remaining": h.governor.Remaining(),
			"limit":     h.governor.Quota(),
		}
	}

	code := http.StatusOK
	if status != "healthy" {
		code = http.StatusServiceUnavailable
	}
	respondJSON(w, r, code, data, models.Metadata{})
}

// parseJobFilter reads status/from/to query parameters.
func parseJobFilter(r *http.Request) (*database.JobFilter, error) {
	q := r.URL.Query()
	filter := &database.JobFilter{}
	empty := true

	if status := q.Get("status"); status != "" {
		s := models.JobStatus(status)
		if !s.Valid() {
			return nil, &badParamError{param: "status", value: status}
		}
		filter.Statuses = []models.JobStatus{s}
		empty = false
	}
	if from := q.Get("from"); from != "" {
		t, err := time.Parse("2006-01-02", from)
		if err != nil {
			return nil, &badParamError{param: "from", value: from}
		}
		filter.CreatedFrom = &t
		empty = false
	}
	if to := q.Get("to"); to != "" {
		t, err := time.Parse("2006-01-02", to)
		if err != nil {
			return nil, &badParamError{param: "to", value: to}
		}
		// Inclusive end of day.
		t = t.Add(24*time.Hour - time.Nanosecond)
		filter.CreatedTo = &t
		empty = false
	}

	if empty {
		return nil, nil
	}
	return filter, nil
}

type badParamError struct {
	param string
	value string
}

func (e *badParamError) Error() string {
	return "invalid " + e.param + " parameter: " + e.value
}
