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

// UpsertMaterial inserts or updates a job material keyed by upstream UUID.
// The owning job row must already exist (Jobs-before-Materials ordering);
// a missing job returns ErrJobNotCached.
func (db *DB) UpsertMaterial(ctx context.Context, m *models.JobMaterial) error {
	exists, err := db.JobExists(ctx, m.JobUUID)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("material %s references job %s: %w", m.UUID, m.JobUUID, ErrJobNotCached)
	}

	start := time.Now()
	query := `INSERT INTO job_materials (uuid, job_uuid, name, quantity, unit_cost, total_ex_tax, total_inc_tax)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (uuid) DO UPDATE SET
			job_uuid = EXCLUDED.job_uuid,
			name = EXCLUDED.name,
			quantity = EXCLUDED.quantity,
			unit_cost = EXCLUDED.unit_cost,
			total_ex_tax = EXCLUDED.total_ex_tax,
			total_inc_tax = EXCLUDED.total_inc_tax`

	_, err = db.conn.ExecContext(ctx, query,
		m.UUID, m.JobUUID, m.Name, m.Quantity, m.UnitCost, m.TotalExTax, m.TotalIncTax)
	metrics.RecordDBQuery("UPSERT", "job_materials", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("failed to upsert material %s: %w", m.UUID, err)
	}
	return nil
}

// JobForMaterial resolves which job owns a material line item, for webhook
// owner resolution. Unknown materials return ErrJobNotCached.
func (db *DB) JobForMaterial(ctx context.Context, materialUUID string) (string, error) {
	var jobUUID string
	err := db.conn.QueryRowContext(ctx,
		`SELECT job_uuid FROM job_materials WHERE uuid = ?`, materialUUID).Scan(&jobUUID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrJobNotCached
	}
	if err != nil {
		return "", fmt.Errorf("failed to resolve material %s: %w", materialUUID, err)
	}
	return jobUUID, nil
}

// MaterialsForJob returns a job's line items in insertion order.
func (db *DB) MaterialsForJob(ctx context.Context, jobUUID string) ([]models.JobMaterial, error) {
	start := time.Now()

	query := `SELECT uuid, job_uuid, name, quantity, unit_cost, total_ex_tax, total_inc_tax
		FROM job_materials WHERE job_uuid = ? ORDER BY name, uuid`

	rows, err := db.conn.QueryContext(ctx, query, jobUUID)
	metrics.RecordDBQuery("SELECT", "job_materials", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("failed to query materials for job %s: %w", jobUUID, err)
	}
	defer rows.Close()

	var materials []models.JobMaterial
	for rows.Next() {
		var m models.JobMaterial
		if err := rows.Scan(&m.UUID, &m.JobUUID, &m.Name, &m.Quantity,
			&m.UnitCost, &m.TotalExTax, &m.TotalIncTax); err != nil {
			return nil, fmt.Errorf("failed to scan material row: %w", err)
		}
		materials = append(materials, m)
	}
	return materials, rows.Err()
}
