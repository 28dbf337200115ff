// Fieldport - Field Service Customer Portal Sync Engine
// Copyright 2026 Fieldport Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fieldport/fieldport

package portal

import (
	"context"
	"errors"
	"fmt"

	"github.com/fieldport/fieldport/internal/logging"
	"github.com/fieldport/fieldport/internal/metrics"
	"github.com/fieldport/fieldport/internal/models"
)

var (
	// ErrNotApprovable means the job is not in a state that accepts an
	// approval (only quotes can be approved).
	ErrNotApprovable = errors.New("job is not an open quote")

	// ErrAlreadyApproved means a confirmed approval already exists.
	ErrAlreadyApproved = errors.New("quote already approved")
)

// WriteStore is the cache-store surface the coordinator writes through.
type WriteStore interface {
	GetJob(ctx context.Context, uuid string) (*models.Job, error)
	SetJobStatus(ctx context.Context, uuid string, status models.JobStatus) error
	InsertApproval(ctx context.Context, jobUUID string, req *models.ApproveQuoteRequest) (*models.QuoteApproval, error)
	PendingApproval(ctx context.Context, jobUUID string) (*models.QuoteApproval, error)
	ConfirmedApproval(ctx context.Context, jobUUID string) (*models.QuoteApproval, error)
	SetApprovalStatus(ctx context.Context, id string, status models.ApprovalStatus) error
}

// WriteVendor is the vendor surface write-backs go to.
type WriteVendor interface {
	ApproveQuote(ctx context.Context, jobUUID, idempotencyKey string, req models.ApproveQuoteRequest) error
}

// Coordinator handles portal-originated writes to the vendor. Every write
// records a durable local intent before touching the network, then marks it
// confirmed or failed once the vendor answers.
type Coordinator struct {
	store  WriteStore
	vendor WriteVendor
}

func NewCoordinator(store WriteStore, vendor WriteVendor) *Coordinator {
	return &Coordinator{store: store, vendor: vendor}
}

// ApproveQuote approves a quoted job on the customer's behalf.
//
// A retry after an upstream failure re-enters through the existing record,
// so the vendor sees the same idempotency key on every attempt and a
// delivered-but-unacknowledged approval is never duplicated.
func (c *Coordinator) ApproveQuote(ctx context.Context, jobUUID string, req *models.ApproveQuoteRequest) (*models.QuoteApproval, error) {
	job, err := c.store.GetJob(ctx, jobUUID)
	if err != nil {
		return nil, err
	}

	confirmed, err := c.store.ConfirmedApproval(ctx, jobUUID)
	if err != nil {
		return nil, err
	}
	if confirmed != nil {
		return confirmed, ErrAlreadyApproved
	}
	if job.Status != models.JobStatusQuote {
		return nil, fmt.Errorf("job %s has status %s: %w", jobUUID, job.Status, ErrNotApprovable)
	}

	record, err := c.store.PendingApproval(ctx, jobUUID)
	if err != nil {
		return nil, err
	}
	if record == nil {
		record, err = c.store.InsertApproval(ctx, jobUUID, req)
		if err != nil {
			return nil, err
		}
	}

	key := fmt.Sprintf("approve:%s:%s", jobUUID, record.ID)
	if err := c.vendor.ApproveQuote(ctx, jobUUID, key, *req); err != nil {
		if statusErr := c.store.SetApprovalStatus(ctx, record.ID, models.ApprovalFailed); statusErr != nil {
			logging.Error().Err(statusErr).Str("approval", record.ID).Msg("Mark approval failed")
		}
		record.Status = models.ApprovalFailed
		metrics.WriteBackTotal.WithLabelValues("approve_quote", "failed").Inc()
		return record, fmt.Errorf("approve job %s upstream: %w", jobUUID, err)
	}

	if err := c.store.SetApprovalStatus(ctx, record.ID, models.ApprovalConfirmed); err != nil {
		return record, err
	}
	record.Status = models.ApprovalConfirmed

	// Reflect the approval locally so the portal shows the new state
	// before the next sync run lands.
	if err := c.store.SetJobStatus(ctx, jobUUID, models.JobStatusWorkOrder); err != nil {
		logging.Error().Err(err).Str("job", jobUUID).Msg("Update cached job status after approval")
	}

	metrics.WriteBackTotal.WithLabelValues("approve_quote", "confirmed").Inc()
	logging.Info().Str("job", jobUUID).Str("approval", record.ID).Msg("Quote approved")
	return record, nil
}
