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
	"time"

	"github.com/fieldport/fieldport/internal/database/query"
	"github.com/fieldport/fieldport/internal/metrics"
	"github.com/fieldport/fieldport/internal/models"
)

// JobFilter narrows JobsForCustomer results. Zero values mean "no filter".
type JobFilter struct {
	Statuses    []models.JobStatus
	CreatedFrom *time.Time
	CreatedTo   *time.Time
}

// UpsertJob inserts or updates a job row keyed by upstream UUID. The
// owning customer row must already exist (Customer-before-Jobs ordering);
// a missing customer returns ErrCustomerNotCached.
//
// The local updated_at watermark is derived from the upstream modification
// timestamp so re-syncing identical data does not churn read ordering.
func (db *DB) UpsertJob(ctx context.Context, j *models.Job) error {
	exists, err := db.CustomerExists(ctx, j.CustomerUUID)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("job %s references customer %s: %w", j.UUID, j.CustomerUUID, ErrCustomerNotCached)
	}

	watermark := j.ModifiedAt
	if watermark.IsZero() {
		watermark = j.CreatedAt
	}
	if watermark.IsZero() {
		watermark = time.Now().UTC()
	}

	start := time.Now()
	query := `INSERT INTO jobs (uuid, customer_uuid, number, description, status, total, address,
			created_at, modified_at, completed_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (uuid) DO UPDATE SET
			customer_uuid = EXCLUDED.customer_uuid,
			number = EXCLUDED.number,
			description = EXCLUDED.description,
			status = EXCLUDED.status,
			total = EXCLUDED.total,
			address = EXCLUDED.address,
			created_at = EXCLUDED.created_at,
			modified_at = EXCLUDED.modified_at,
			completed_at = EXCLUDED.completed_at,
			updated_at = EXCLUDED.updated_at`

	_, err = db.conn.ExecContext(ctx, query,
		j.UUID, j.CustomerUUID, j.Number, j.Description, string(j.Status), j.Total, j.Address,
		nullTime(j.CreatedAt), nullTime(j.ModifiedAt), j.CompletedAt, watermark)
	metrics.RecordDBQuery("UPSERT", "jobs", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("failed to upsert job %s: %w", j.UUID, err)
	}
	return nil
}

// GetJob fetches one job by upstream UUID.
func (db *DB) GetJob(ctx context.Context, uuid string) (*models.Job, error) {
	start := time.Now()

	query := `SELECT uuid, customer_uuid, number, description, status, total, address,
			created_at, modified_at, completed_at, updated_at
		FROM jobs WHERE uuid = ?`

	j, err := scanJob(db.conn.QueryRowContext(ctx, query, uuid))
	metrics.RecordDBQuery("SELECT", "jobs", time.Since(start), err)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrJobNotCached
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job %s: %w", uuid, err)
	}
	return j, nil
}

// JobExists reports whether a job row is present.
func (db *DB) JobExists(ctx context.Context, uuid string) (bool, error) {
	var one int
	err := db.conn.QueryRowContext(ctx, `SELECT 1 FROM jobs WHERE uuid = ?`, uuid).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check job %s: %w", uuid, err)
	}
	return true, nil
}

// JobsForCustomer returns a customer's jobs ordered most-recently-updated
// first, optionally narrowed by status and creation-date range.
func (db *DB) JobsForCustomer(ctx context.Context, customerUUID string, filter *JobFilter) ([]models.Job, error) {
	start := time.Now()

	wb := query.NewWhereBuilder()
	wb.AddClause("customer_uuid = ?", customerUUID)
	if filter != nil {
		wb.AddStatuses(filter.Statuses)
		wb.AddCreatedRange(filter.CreatedFrom, filter.CreatedTo)
	}
	whereClause, args := wb.BuildWithPrefix()

	stmt := fmt.Sprintf(`SELECT uuid, customer_uuid, number, description, status, total, address,
			created_at, modified_at, completed_at, updated_at
		FROM jobs %s ORDER BY updated_at DESC, uuid`, whereClause)

	rows, err := db.conn.QueryContext(ctx, stmt, args...)
	metrics.RecordDBQuery("SELECT", "jobs", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("failed to query jobs for customer %s: %w", customerUUID, err)
	}
	defer rows.Close()

	return collectJobs(rows)
}

// PaymentJobs returns a customer's jobs in the billing states (Invoice or
// Complete), used to derive payment history.
func (db *DB) PaymentJobs(ctx context.Context, customerUUID string) ([]models.Job, error) {
	return db.JobsForCustomer(ctx, customerUUID, &JobFilter{
		Statuses: []models.JobStatus{models.JobStatusInvoice, models.JobStatusComplete},
	})
}

// SetJobStatus updates one cached job's status locally, used by the
// write-back coordinator after a confirmed approval.
func (db *DB) SetJobStatus(ctx context.Context, uuid string, status models.JobStatus) error {
	start := time.Now()
	result, err := db.conn.ExecContext(ctx,
		`UPDATE jobs SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE uuid = ?`,
		string(status), uuid)
	metrics.RecordDBQuery("UPDATE", "jobs", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("failed to update job %s status: %w", uuid, err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return ErrJobNotCached
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanJob(row rowScanner) (*models.Job, error) {
	var j models.Job
	var status string
	var createdAt, modifiedAt, completedAt sql.NullTime
	err := row.Scan(&j.UUID, &j.CustomerUUID, &j.Number, &j.Description, &status,
		&j.Total, &j.Address, &createdAt, &modifiedAt, &completedAt, &j.UpdatedAt)
	if err != nil {
		return nil, err
	}
	j.Status = models.JobStatus(status)
	if createdAt.Valid {
		j.CreatedAt = createdAt.Time
	}
	if modifiedAt.Valid {
		j.ModifiedAt = modifiedAt.Time
	}
	if completedAt.Valid {
		t := completedAt.Time
		j.CompletedAt = &t
	}
	return &j, nil
}

func collectJobs(rows *sql.Rows) ([]models.Job, error) {
	var jobs []models.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job row: %w", err)
		}
		jobs = append(jobs, *j)
	}
	return jobs, rows.Err()
}

// nullTime converts a zero time to NULL for storage.
func nullTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t
}
