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

// UpsertCustomer inserts or updates a customer row keyed by upstream UUID.
// Re-running with identical data is a no-op in effect. Customers are never
// deleted by the engine; deactivation arrives as active=false from sync.
func (db *DB) UpsertCustomer(ctx context.Context, c *models.Customer) error {
	start := time.Now()

	query := `INSERT INTO customers (uuid, name, email, phone, address, active, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (uuid) DO UPDATE SET
			name = EXCLUDED.name,
			email = EXCLUDED.email,
			phone = EXCLUDED.phone,
			address = EXCLUDED.address,
			active = EXCLUDED.active,
			updated_at = now()`

	_, err := db.conn.ExecContext(ctx, query,
		c.UUID, c.Name, c.Email, c.Phone, c.Address, c.Active)
	metrics.RecordDBQuery("UPSERT", "customers", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("failed to upsert customer %s: %w", c.UUID, err)
	}
	return nil
}

// GetCustomer fetches a customer by upstream UUID.
func (db *DB) GetCustomer(ctx context.Context, uuid string) (*models.Customer, error) {
	start := time.Now()

	query := `SELECT uuid, name, email, phone, address, active, created_at, updated_at
		FROM customers WHERE uuid = ?`

	var c models.Customer
	err := db.conn.QueryRowContext(ctx, query, uuid).Scan(
		&c.UUID, &c.Name, &c.Email, &c.Phone, &c.Address, &c.Active, &c.CreatedAt, &c.UpdatedAt)
	metrics.RecordDBQuery("SELECT", "customers", time.Since(start), err)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCustomerNotCached
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get customer %s: %w", uuid, err)
	}
	return &c, nil
}

// CustomerExists reports whether a customer row is present.
func (db *DB) CustomerExists(ctx context.Context, uuid string) (bool, error) {
	var one int
	err := db.conn.QueryRowContext(ctx,
		`SELECT 1 FROM customers WHERE uuid = ?`, uuid).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check customer %s: %w", uuid, err)
	}
	return true, nil
}

// ListActiveCustomers returns the UUIDs of all active customers, used by
// the background refresh poller.
func (db *DB) ListActiveCustomers(ctx context.Context) ([]string, error) {
	start := time.Now()

	rows, err := db.conn.QueryContext(ctx,
		`SELECT uuid FROM customers WHERE active = true ORDER BY uuid`)
	metrics.RecordDBQuery("SELECT", "customers", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("failed to list active customers: %w", err)
	}
	defer rows.Close()

	var uuids []string
	for rows.Next() {
		var uuid string
		if err := rows.Scan(&uuid); err != nil {
			return nil, fmt.Errorf("failed to scan customer row: %w", err)
		}
		uuids = append(uuids, uuid)
	}
	return uuids, rows.Err()
}
