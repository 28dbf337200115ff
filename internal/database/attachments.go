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

	"github.com/fieldport/fieldport/internal/metrics"
	"github.com/fieldport/fieldport/internal/models"
)

// UpsertAttachment inserts or updates an attachment keyed by upstream UUID.
// The owning job row must already exist (Jobs-before-Attachments ordering);
// a missing job returns ErrJobNotCached.
func (db *DB) UpsertAttachment(ctx context.Context, a *models.Attachment) error {
	exists, err := db.JobExists(ctx, a.JobUUID)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("attachment %s references job %s: %w", a.UUID, a.JobUUID, ErrJobNotCached)
	}

	start := time.Now()
	query := `INSERT INTO attachments (uuid, job_uuid, file_name, file_type, size_bytes, source, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (uuid) DO UPDATE SET
			job_uuid = EXCLUDED.job_uuid,
			file_name = EXCLUDED.file_name,
			file_type = EXCLUDED.file_type,
			size_bytes = EXCLUDED.size_bytes,
			source = EXCLUDED.source,
			created_at = EXCLUDED.created_at`

	_, err = db.conn.ExecContext(ctx, query,
		a.UUID, a.JobUUID, a.FileName, a.FileType, a.SizeBytes, string(a.Source), nullTime(a.CreatedAt))
	metrics.RecordDBQuery("UPSERT", "attachments", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("failed to upsert attachment %s: %w", a.UUID, err)
	}
	return nil
}

// AttachmentsForJob returns a job's documents, newest first.
func (db *DB) AttachmentsForJob(ctx context.Context, jobUUID string) ([]models.Attachment, error) {
	start := time.Now()

	query := `SELECT uuid, job_uuid, file_name, file_type, size_bytes, source, created_at
		FROM attachments WHERE job_uuid = ? ORDER BY created_at DESC, uuid`

	rows, err := db.conn.QueryContext(ctx, query, jobUUID)
	metrics.RecordDBQuery("SELECT", "attachments", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("failed to query attachments for job %s: %w", jobUUID, err)
	}
	defer rows.Close()

	return collectAttachments(rows)
}

// DocumentsForCustomer returns attachments across a customer's jobs,
// newest first, optionally scoped to a single job.
func (db *DB) DocumentsForCustomer(ctx context.Context, customerUUID, jobUUID string) ([]models.Attachment, error) {
	start := time.Now()

	query := `SELECT a.uuid, a.job_uuid, a.file_name, a.file_type, a.size_bytes, a.source, a.created_at
		FROM attachments a
		JOIN jobs j ON j.uuid = a.job_uuid
		WHERE j.customer_uuid = ?`
	args := []interface{}{customerUUID}
	if jobUUID != "" {
		query += " AND a.job_uuid = ?"
		args = append(args, jobUUID)
	}
	query += " ORDER BY a.created_at DESC, a.uuid"

	rows, err := db.conn.QueryContext(ctx, query, args...)
	metrics.RecordDBQuery("SELECT", "attachments", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents for customer %s: %w", customerUUID, err)
	}
	defer rows.Close()

	return collectAttachments(rows)
}

// JobForAttachment resolves which job owns an attachment, for webhook
// owner resolution. Unknown attachments return ErrJobNotCached.
func (db *DB) JobForAttachment(ctx context.Context, attachmentUUID string) (string, error) {
	var jobUUID string
	err := db.conn.QueryRowContext(ctx,
		`SELECT job_uuid FROM attachments WHERE uuid = ?`, attachmentUUID).Scan(&jobUUID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrJobNotCached
	}
	if err != nil {
		return "", fmt.Errorf("failed to resolve attachment %s: %w", attachmentUUID, err)
	}
	return jobUUID, nil
}

func collectAttachments(rows *sql.Rows) ([]models.Attachment, error) {
	var attachments []models.Attachment
	for rows.Next() {
		var a models.Attachment
		var source string
		var createdAt sql.NullTime
		if err := rows.Scan(&a.UUID, &a.JobUUID, &a.FileName, &a.FileType,
			&a.SizeBytes, &source, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan attachment row: %w", err)
		}
		a.Source = models.AttachmentSource(source)
		if createdAt.Valid {
			a.CreatedAt = createdAt.Time
		}
		attachments = append(attachments, a)
	}
	return attachments, rows.Err()
}
