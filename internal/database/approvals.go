// Fieldport - Field Service Customer Portal Sync Engine
// Copyright 2026 Fieldport Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fieldport/fieldport

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/fieldport/fieldport/internal/metrics"
	"github.com/fieldport/fieldport/internal/models"
)

// InsertApproval records a new pending approval intent and returns the
// populated record. The durable insert happens before any upstream call so
// a crash mid-write leaves a resumable pending row behind.
func (db *DB) InsertApproval(ctx context.Context, jobUUID string, req *models.ApproveQuoteRequest) (*models.QuoteApproval, error) {
	start := time.Now()

	query := `INSERT INTO quote_approvals (job_uuid, approved, signature, notes, status)
		VALUES (?, ?, ?, ?, ?)
		RETURNING id, created_at, updated_at`

	var id int64
	var createdAt, updatedAt time.Time
	err := db.conn.QueryRowContext(ctx, query,
		jobUUID, req.Approved, req.Signature, req.Notes, string(models.ApprovalPending)).
		Scan(&id, &createdAt, &updatedAt)
	metrics.RecordDBQuery("INSERT", "quote_approvals", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("failed to insert approval for job %s: %w", jobUUID, err)
	}

	return &models.QuoteApproval{
		ID:        strconv.FormatInt(id, 10),
		JobUUID:   jobUUID,
		Approved:  req.Approved,
		Signature: req.Signature,
		Notes:     req.Notes,
		Status:    models.ApprovalPending,
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
	}, nil
}

// GetApproval fetches one approval record by id.
func (db *DB) GetApproval(ctx context.Context, id string) (*models.QuoteApproval, error) {
	numericID, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid approval id %q: %w", id, ErrApprovalNotFound)
	}

	start := time.Now()
	query := `SELECT id, job_uuid, approved, signature, notes, status, created_at, updated_at
		FROM quote_approvals WHERE id = ?`

	a, err := scanApproval(db.conn.QueryRowContext(ctx, query, numericID))
	metrics.RecordDBQuery("SELECT", "quote_approvals", time.Since(start), err)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrApprovalNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get approval %s: %w", id, err)
	}
	return a, nil
}

// PendingApproval returns a job's most recent non-confirmed approval record,
// if any. Retried approvals re-enter through this record so the same
// idempotency key reaches upstream on every attempt.
func (db *DB) PendingApproval(ctx context.Context, jobUUID string) (*models.QuoteApproval, error) {
	start := time.Now()

	query := `SELECT id, job_uuid, approved, signature, notes, status, created_at, updated_at
		FROM quote_approvals
		WHERE job_uuid = ? AND status IN (?, ?)
		ORDER BY id DESC LIMIT 1`

	a, err := scanApproval(db.conn.QueryRowContext(ctx, query, jobUUID,
		string(models.ApprovalPending), string(models.ApprovalFailed)))
	metrics.RecordDBQuery("SELECT", "quote_approvals", time.Since(start), err)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query pending approval for job %s: %w", jobUUID, err)
	}
	return a, nil
}

// ConfirmedApproval returns a job's confirmed approval record, if any.
func (db *DB) ConfirmedApproval(ctx context.Context, jobUUID string) (*models.QuoteApproval, error) {
	start := time.Now()

	query := `SELECT id, job_uuid, approved, signature, notes, status, created_at, updated_at
		FROM quote_approvals
		WHERE job_uuid = ? AND status = ?
		ORDER BY id DESC LIMIT 1`

	a, err := scanApproval(db.conn.QueryRowContext(ctx, query, jobUUID, string(models.ApprovalConfirmed)))
	metrics.RecordDBQuery("SELECT", "quote_approvals", time.Since(start), err)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query confirmed approval for job %s: %w", jobUUID, err)
	}
	return a, nil
}

// SetApprovalStatus transitions an approval record to confirmed or failed.
func (db *DB) SetApprovalStatus(ctx context.Context, id string, status models.ApprovalStatus) error {
	numericID, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid approval id %q: %w", id, ErrApprovalNotFound)
	}

	start := time.Now()
	result, err := db.conn.ExecContext(ctx,
		`UPDATE quote_approvals SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		string(status), numericID)
	metrics.RecordDBQuery("UPDATE", "quote_approvals", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("failed to update approval %s: %w", id, err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return ErrApprovalNotFound
	}
	return nil
}

func scanApproval(row rowScanner) (*models.QuoteApproval, error) {
	var a models.QuoteApproval
	var id int64
	var status string
	err := row.Scan(&id, &a.JobUUID, &a.Approved, &a.Signature, &a.Notes,
		&status, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	a.ID = strconv.FormatInt(id, 10)
	a.Status = models.ApprovalStatus(status)
	return &a, nil
}
