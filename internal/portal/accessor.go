// Fieldport - Field Service Customer Portal Sync Engine
// Copyright 2026 Fieldport Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fieldport/fieldport

package portal

import (
	"context"
	"time"

	"github.com/fieldport/fieldport/internal/config"
	"github.com/fieldport/fieldport/internal/database"
	"github.com/fieldport/fieldport/internal/logging"
	"github.com/fieldport/fieldport/internal/metrics"
	"github.com/fieldport/fieldport/internal/models"
	"github.com/fieldport/fieldport/internal/sync"
)

// DefaultMaxAge is the staleness threshold when none is configured.
const DefaultMaxAge = 5 * time.Minute

// RefreshMode overrides the default staleness policy per request.
type RefreshMode int

const (
	// RefreshAuto refreshes only when the cached data is stale.
	RefreshAuto RefreshMode = iota
	// RefreshForce always refreshes before serving.
	RefreshForce
	// RefreshSkip serves whatever is cached without a staleness check.
	RefreshSkip
)

// Meta describes the freshness of a served response.
type Meta struct {
	LastSyncedAt time.Time
	// Stale is set when a needed refresh failed and cached data was
	// served anyway.
	Stale bool
}

// ReadStore is the query surface of the cache store.
type ReadStore interface {
	GetCustomer(ctx context.Context, uuid string) (*models.Customer, error)
	GetJob(ctx context.Context, uuid string) (*models.Job, error)
	JobsForCustomer(ctx context.Context, customerUUID string, filter *database.JobFilter) ([]models.Job, error)
	MaterialsForJob(ctx context.Context, jobUUID string) ([]models.JobMaterial, error)
	AttachmentsForJob(ctx context.Context, jobUUID string) ([]models.Attachment, error)
	DocumentsForCustomer(ctx context.Context, customerUUID, jobUUID string) ([]models.Attachment, error)
	PaymentJobs(ctx context.Context, customerUUID string) ([]models.Job, error)
	LastSyncedAt(ctx context.Context, customerUUID string) (time.Time, bool, error)
}

// Syncer triggers a refresh run for one customer.
type Syncer interface {
	SyncCustomer(ctx context.Context, customerUUID string) (*sync.Result, error)
}

// JobDetail is one job with its line items and documents.
type JobDetail struct {
	Job         models.Job          `json:"job"`
	Materials   []models.JobMaterial `json:"materials"`
	Attachments []models.Attachment  `json:"attachments"`
}

// Accessor serves portal reads through the staleness policy.
type Accessor struct {
	store  ReadStore
	syncer Syncer
	maxAge time.Duration

	now func() time.Time
}

func NewAccessor(store ReadStore, syncer Syncer, cfg *config.SyncConfig) *Accessor {
	maxAge := DefaultMaxAge
	if cfg != nil && cfg.MaxAge > 0 {
		maxAge = cfg.MaxAge
	}
	return &Accessor{store: store, syncer: syncer, maxAge: maxAge, now: time.Now}
}

// Jobs returns a customer's cached jobs, most recently updated first.
func (a *Accessor) Jobs(ctx context.Context, customerUUID string, filter *database.JobFilter, mode RefreshMode) ([]models.Job, Meta, error) {
	meta, err := a.ensureFresh(ctx, customerUUID, mode, "jobs")
	if err != nil {
		return nil, meta, err
	}
	jobs, err := a.store.JobsForCustomer(ctx, customerUUID, filter)
	return jobs, meta, err
}

// JobDetail returns one of the customer's jobs with materials and
// attachments. A job belonging to a different customer reports not cached.
func (a *Accessor) JobDetail(ctx context.Context, customerUUID, jobUUID string, mode RefreshMode) (*JobDetail, Meta, error) {
	meta, err := a.ensureFresh(ctx, customerUUID, mode, "job_detail")
	if err != nil {
		return nil, meta, err
	}
	job, err := a.store.GetJob(ctx, jobUUID)
	if err != nil {
		return nil, meta, err
	}
	if job.CustomerUUID != customerUUID {
		return nil, meta, database.ErrJobNotCached
	}
	materials, err := a.store.MaterialsForJob(ctx, jobUUID)
	if err != nil {
		return nil, meta, err
	}
	attachments, err := a.store.AttachmentsForJob(ctx, jobUUID)
	if err != nil {
		return nil, meta, err
	}
	return &JobDetail{Job: *job, Materials: materials, Attachments: attachments}, meta, nil
}

// Documents returns a customer's attachments, optionally scoped to one job.
func (a *Accessor) Documents(ctx context.Context, customerUUID, jobUUID string, mode RefreshMode) ([]models.Attachment, Meta, error) {
	meta, err := a.ensureFresh(ctx, customerUUID, mode, "documents")
	if err != nil {
		return nil, meta, err
	}
	docs, err := a.store.DocumentsForCustomer(ctx, customerUUID, jobUUID)
	return docs, meta, err
}

// PaymentHistory returns the customer's jobs in billing states.
func (a *Accessor) PaymentHistory(ctx context.Context, customerUUID string, mode RefreshMode) ([]models.Job, Meta, error) {
	meta, err := a.ensureFresh(ctx, customerUUID, mode, "payments")
	if err != nil {
		return nil, meta, err
	}
	jobs, err := a.store.PaymentJobs(ctx, customerUUID)
	return jobs, meta, err
}

const dashboardRecentJobs = 5

// Dashboard aggregates a customer's cached jobs and documents. It is pure
// derived data, recomputed per request.
func (a *Accessor) Dashboard(ctx context.Context, customerUUID string, mode RefreshMode) (*models.Dashboard, Meta, error) {
	meta, err := a.ensureFresh(ctx, customerUUID, mode, "dashboard")
	if err != nil {
		return nil, meta, err
	}
	jobs, err := a.store.JobsForCustomer(ctx, customerUUID, nil)
	if err != nil {
		return nil, meta, err
	}
	docs, err := a.store.DocumentsForCustomer(ctx, customerUUID, "")
	if err != nil {
		return nil, meta, err
	}

	d := &models.Dashboard{
		CustomerUUID:  customerUUID,
		JobCounts:     make(map[models.JobStatus]int),
		TotalJobs:     len(jobs),
		DocumentCount: len(docs),
	}
	for _, j := range jobs {
		d.JobCounts[j.Status]++
		switch j.Status {
		case models.JobStatusQuote:
			d.OpenQuotes++
		case models.JobStatusInvoice, models.JobStatusComplete:
			d.TotalInvoiced += j.Total
		}
	}
	if len(jobs) > dashboardRecentJobs {
		jobs = jobs[:dashboardRecentJobs]
	}
	d.RecentJobs = jobs
	if !meta.LastSyncedAt.IsZero() {
		t := meta.LastSyncedAt
		d.LastSyncedAt = &t
	}
	return d, meta, nil
}

// ensureFresh applies the staleness policy for one read. When a needed
// refresh fails, cached data is served stale; an empty cache propagates
// the refresh failure since there is nothing to degrade to.
func (a *Accessor) ensureFresh(ctx context.Context, customerUUID string, mode RefreshMode, endpoint string) (Meta, error) {
	syncedAt, stale, err := a.store.LastSyncedAt(ctx, customerUUID)
	if err != nil {
		return Meta{}, err
	}
	meta := Meta{LastSyncedAt: syncedAt}

	if mode == RefreshSkip {
		return meta, nil
	}
	needsRefresh := mode == RefreshForce || stale || a.now().Sub(syncedAt) > a.maxAge
	if !needsRefresh {
		return meta, nil
	}

	// Detached from the caller: an impatient client hanging up must not
	// abort a refresh other callers may be waiting on.
	if _, err := a.syncer.SyncCustomer(context.WithoutCancel(ctx), customerUUID); err != nil {
		if _, cacheErr := a.store.GetCustomer(ctx, customerUUID); cacheErr != nil {
			return Meta{}, err
		}
		logging.Warn().Err(err).
			Str("customer", customerUUID).
			Str("endpoint", endpoint).
			Msg("Refresh failed, serving stale cache")
		metrics.APIStaleResponses.WithLabelValues(endpoint).Inc()
		meta.Stale = true
		return meta, nil
	}

	if syncedAt, _, err := a.store.LastSyncedAt(ctx, customerUUID); err == nil {
		meta.LastSyncedAt = syncedAt
	}
	return meta, nil
}
