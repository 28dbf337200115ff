// Fieldport - Field Service Customer Portal Sync Engine
// Copyright 2026 Fieldport Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fieldport/fieldport

package database

import (
	"context"
	"fmt"
	"time"
)

// schemaStatements define the cache store tables. Entities mirrored from
// upstream are keyed by their upstream UUID; quote_approvals is the only
// locally-owned table and uses a local sequence ID.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS customers (
		uuid VARCHAR PRIMARY KEY,
		name VARCHAR NOT NULL,
		email VARCHAR DEFAULT '',
		phone VARCHAR DEFAULT '',
		address VARCHAR DEFAULT '',
		active BOOLEAN DEFAULT true,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`,

	`CREATE TABLE IF NOT EXISTS jobs (
		uuid VARCHAR PRIMARY KEY,
		customer_uuid VARCHAR NOT NULL,
		number VARCHAR DEFAULT '',
		description VARCHAR DEFAULT '',
		status VARCHAR NOT NULL,
		total DOUBLE DEFAULT 0,
		address VARCHAR DEFAULT '',
		created_at TIMESTAMP,
		modified_at TIMESTAMP,
		completed_at TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`,

	`CREATE TABLE IF NOT EXISTS job_materials (
		uuid VARCHAR PRIMARY KEY,
		job_uuid VARCHAR NOT NULL,
		name VARCHAR NOT NULL,
		quantity DOUBLE DEFAULT 0,
		unit_cost DOUBLE DEFAULT 0,
		total_ex_tax DOUBLE DEFAULT 0,
		total_inc_tax DOUBLE DEFAULT 0
	)`,

	`CREATE TABLE IF NOT EXISTS attachments (
		uuid VARCHAR PRIMARY KEY,
		job_uuid VARCHAR NOT NULL,
		file_name VARCHAR NOT NULL,
		file_type VARCHAR DEFAULT '',
		size_bytes BIGINT DEFAULT 0,
		source VARCHAR NOT NULL,
		created_at TIMESTAMP
	)`,

	`CREATE SEQUENCE IF NOT EXISTS quote_approval_seq START 1`,

	`CREATE TABLE IF NOT EXISTS quote_approvals (
		id BIGINT PRIMARY KEY DEFAULT nextval('quote_approval_seq'),
		job_uuid VARCHAR NOT NULL,
		approved BOOLEAN NOT NULL,
		signature VARCHAR DEFAULT '',
		notes VARCHAR DEFAULT '',
		status VARCHAR NOT NULL DEFAULT 'pending',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`,

	`CREATE TABLE IF NOT EXISTS sync_markers (
		customer_uuid VARCHAR PRIMARY KEY,
		last_synced_at TIMESTAMP NOT NULL,
		stale BOOLEAN DEFAULT false
	)`,
}

var indexStatements = []string{
	`CREATE INDEX IF NOT EXISTS idx_jobs_customer ON jobs (customer_uuid, updated_at)`,
	`CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs (customer_uuid, status)`,
	`CREATE INDEX IF NOT EXISTS idx_materials_job ON job_materials (job_uuid)`,
	`CREATE INDEX IF NOT EXISTS idx_attachments_job ON attachments (job_uuid)`,
	`CREATE INDEX IF NOT EXISTS idx_approvals_job ON quote_approvals (job_uuid, status)`,
}

// createTables creates all tables and indexes if they do not exist.
func (db *DB) createTables() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, stmt := range schemaStatements {
		if _, err := db.conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}
	for _, stmt := range indexStatements {
		if _, err := db.conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}
	return nil
}
