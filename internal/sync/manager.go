// Fieldport - Field Service Customer Portal Sync Engine
// Copyright 2026 Fieldport Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fieldport/fieldport

package sync

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/fieldport/fieldport/internal/config"
	"github.com/fieldport/fieldport/internal/logging"
	"github.com/fieldport/fieldport/internal/metrics"
	"github.com/fieldport/fieldport/internal/models"
	"github.com/fieldport/fieldport/internal/validation"
)

const (
	defaultJobConcurrency = 6
	maxJobConcurrency     = 8
	minJobConcurrency     = 4
)

// Store is the cache-store surface the orchestrator writes through.
type Store interface {
	UpsertCustomer(ctx context.Context, c *models.Customer) error
	UpsertJob(ctx context.Context, j *models.Job) error
	UpsertMaterial(ctx context.Context, m *models.JobMaterial) error
	UpsertAttachment(ctx context.Context, a *models.Attachment) error
	MarkSynced(ctx context.Context, customerUUID string, syncedAt time.Time) error
}

// Vendor is the read surface of the upstream API a sync run consumes.
type Vendor interface {
	GetCompany(ctx context.Context, companyUUID string) (*models.CompanyPayload, error)
	ListJobs(ctx context.Context, companyUUID string) ([]models.JobPayload, error)
	ListJobMaterials(ctx context.Context, jobUUID string) ([]models.MaterialPayload, error)
	ListAttachments(ctx context.Context, jobUUID string) ([]models.AttachmentPayload, error)
}

// Result summarizes one sync run.
type Result struct {
	CustomerUUID string        `json:"customer_uuid"`
	Jobs         int           `json:"jobs"`
	Materials    int           `json:"materials"`
	Attachments  int           `json:"attachments"`
	Skipped      int           `json:"skipped"`
	JobErrors    int           `json:"job_errors"`
	Duration     time.Duration `json:"duration"`
}

// Partial reports whether any job failed or any record was skipped.
func (r *Result) Partial() bool {
	return r.Skipped > 0 || r.JobErrors > 0
}

// Manager coordinates sync runs. Concurrent requests for the same customer
// coalesce into a single run; distinct customers run independently.
type Manager struct {
	store       Store
	vendor      Vendor
	concurrency int
	group       singleflight.Group
}

func NewManager(store Store, vendor Vendor, cfg *config.SyncConfig) *Manager {
	concurrency := defaultJobConcurrency
	if cfg != nil && cfg.JobConcurrency != 0 {
		concurrency = cfg.JobConcurrency
	}
	if concurrency < minJobConcurrency {
		concurrency = minJobConcurrency
	}
	if concurrency > maxJobConcurrency {
		concurrency = maxJobConcurrency
	}
	return &Manager{store: store, vendor: vendor, concurrency: concurrency}
}

// SyncCustomer refreshes one customer's cached data from the vendor API.
// Concurrent calls for the same customer share one underlying run and all
// receive its result.
func (m *Manager) SyncCustomer(ctx context.Context, customerUUID string) (*Result, error) {
	v, err, _ := m.group.Do(customerUUID, func() (interface{}, error) {
		return m.run(ctx, customerUUID)
	})
	if v == nil {
		return nil, err
	}
	return v.(*Result), err
}

func (m *Manager) run(ctx context.Context, customerUUID string) (*Result, error) {
	start := time.Now()
	result := &Result{CustomerUUID: customerUUID}

	logging.Debug().Str("customer", customerUUID).Msg("Starting sync run")

	customer, err := m.fetchCustomer(ctx, customerUUID)
	if err != nil {
		metrics.RecordSyncRun("fatal", time.Since(start))
		return nil, err
	}
	if err := m.store.UpsertCustomer(ctx, customer); err != nil {
		metrics.RecordSyncRun("fatal", time.Since(start))
		return nil, fmt.Errorf("store customer %s: %w", customerUUID, err)
	}

	jobPayloads, err := m.vendor.ListJobs(ctx, customerUUID)
	if err != nil {
		metrics.RecordSyncRun("fatal", time.Since(start))
		return nil, fmt.Errorf("list jobs for customer %s: %w", customerUUID, err)
	}

	var storedJobs, materials, attachments, skipped, jobErrors int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.concurrency)
	for i := range jobPayloads {
		payload := jobPayloads[i]
		g.Go(func() error {
			job, res := validation.Job(payload)
			logValidation("job", payload.UUID, res)
			if !res.Valid {
				metrics.SyncRecordsSkipped.WithLabelValues("job", "invalid").Inc()
				atomic.AddInt64(&skipped, 1)
				return nil
			}
			if err := m.store.UpsertJob(gctx, &job); err != nil {
				logging.Error().Err(err).Str("job", job.UUID).Msg("Store job")
				atomic.AddInt64(&jobErrors, 1)
				return nil
			}
			metrics.SyncRecordsProcessed.WithLabelValues("job").Inc()
			atomic.AddInt64(&storedJobs, 1)

			mats, skips, err := m.syncMaterials(gctx, job.UUID)
			atomic.AddInt64(&materials, int64(mats))
			atomic.AddInt64(&skipped, int64(skips))
			if err != nil {
				logging.Warn().Err(err).Str("job", job.UUID).Msg("Sync job materials")
				atomic.AddInt64(&jobErrors, 1)
			}

			atts, skips, err := m.syncAttachments(gctx, job.UUID)
			atomic.AddInt64(&attachments, int64(atts))
			atomic.AddInt64(&skipped, int64(skips))
			if err != nil {
				logging.Warn().Err(err).Str("job", job.UUID).Msg("Sync job attachments")
				atomic.AddInt64(&jobErrors, 1)
			}
			return nil
		})
	}
	// Goroutines always return nil; per-job failures are counted, not fatal.
	_ = g.Wait()

	result.Jobs = int(storedJobs)
	result.Materials = int(materials)
	result.Attachments = int(attachments)
	result.Skipped = int(skipped)
	result.JobErrors = int(jobErrors)
	result.Duration = time.Since(start)

	if err := m.store.MarkSynced(ctx, customerUUID, time.Now().UTC()); err != nil {
		logging.Error().Err(err).Str("customer", customerUUID).Msg("Update sync marker")
	}

	outcome := "success"
	if result.Partial() {
		outcome = "partial"
	}
	metrics.RecordSyncRun(outcome, result.Duration)

	logging.Info().
		Str("customer", customerUUID).
		Int("jobs", result.Jobs).
		Int("materials", result.Materials).
		Int("attachments", result.Attachments).
		Int("skipped", result.Skipped).
		Int("job_errors", result.JobErrors).
		Dur("duration", result.Duration).
		Msg("Sync run complete")

	return result, nil
}

func (m *Manager) fetchCustomer(ctx context.Context, customerUUID string) (*models.Customer, error) {
	payload, err := m.vendor.GetCompany(ctx, customerUUID)
	if err != nil {
		return nil, fmt.Errorf("fetch customer %s: %w", customerUUID, err)
	}
	customer, res := validation.Customer(*payload)
	logValidation("customer", customerUUID, res)
	if !res.Valid {
		metrics.SyncRecordsSkipped.WithLabelValues("customer", "invalid").Inc()
		return nil, fmt.Errorf("customer %s failed validation: %v", customerUUID, res.Errors)
	}
	metrics.SyncRecordsProcessed.WithLabelValues("customer").Inc()
	return &customer, nil
}

func (m *Manager) syncMaterials(ctx context.Context, jobUUID string) (stored, skipped int, err error) {
	payloads, err := m.vendor.ListJobMaterials(ctx, jobUUID)
	if err != nil {
		return 0, 0, fmt.Errorf("list materials: %w", err)
	}
	for i := range payloads {
		material, res := validation.Material(payloads[i])
		logValidation("material", payloads[i].UUID, res)
		if !res.Valid {
			metrics.SyncRecordsSkipped.WithLabelValues("material", "invalid").Inc()
			skipped++
			continue
		}
		if err := m.store.UpsertMaterial(ctx, &material); err != nil {
			logging.Error().Err(err).Str("material", material.UUID).Msg("Store material")
			metrics.SyncRecordsSkipped.WithLabelValues("material", "store_error").Inc()
			skipped++
			continue
		}
		metrics.SyncRecordsProcessed.WithLabelValues("material").Inc()
		stored++
	}
	return stored, skipped, nil
}

func (m *Manager) syncAttachments(ctx context.Context, jobUUID string) (stored, skipped int, err error) {
	payloads, err := m.vendor.ListAttachments(ctx, jobUUID)
	if err != nil {
		return 0, 0, fmt.Errorf("list attachments: %w", err)
	}
	for i := range payloads {
		attachment, res := validation.Attachment(payloads[i])
		logValidation("attachment", payloads[i].UUID, res)
		if !res.Valid {
			metrics.SyncRecordsSkipped.WithLabelValues("attachment", "invalid").Inc()
			skipped++
			continue
		}
		if err := m.store.UpsertAttachment(ctx, &attachment); err != nil {
			logging.Error().Err(err).Str("attachment", attachment.UUID).Msg("Store attachment")
			metrics.SyncRecordsSkipped.WithLabelValues("attachment", "store_error").Inc()
			skipped++
			continue
		}
		metrics.SyncRecordsProcessed.WithLabelValues("attachment").Inc()
		stored++
	}
	return stored, skipped, nil
}

func logValidation(entity, uuid string, res validation.Result) {
	for _, w := range res.Warnings {
		logging.Warn().Str(entity, uuid).Str("warning", w).Msg("Record validation warning")
	}
	if !res.Valid {
		logging.Warn().Str(entity, uuid).Strs("errors", res.Errors).Msg("Record failed validation, skipping")
	}
}
