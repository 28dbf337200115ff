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
)

// MarkSynced records a completed sync for a customer and clears any
// staleness override. Concurrent writers resolve last-writer-wins by the
// maximum timestamp, so an older run finishing late never regresses the
// freshness marker.
func (db *DB) MarkSynced(ctx context.Context, customerUUID string, syncedAt time.Time) error {
	start := time.Now()

	query := `INSERT INTO sync_markers (customer_uuid, last_synced_at, stale)
		VALUES (?, ?, false)
		ON CONFLICT (customer_uuid) DO UPDATE SET
			last_synced_at = GREATEST(sync_markers.last_synced_at, EXCLUDED.last_synced_at),
			stale = false`

	_, err := db.conn.ExecContext(ctx, query, customerUUID, syncedAt.UTC())
	metrics.RecordDBQuery("UPSERT", "sync_markers", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("failed to mark customer %s synced: %w", customerUUID, err)
	}
	return nil
}

// MarkStale forces the next read-through access for a customer to refresh,
// regardless of marker age. Used when a webhook reports upstream changes.
// A customer with no marker yet is already treated as stale, so this is a
// no-op for unknown customers.
func (db *DB) MarkStale(ctx context.Context, customerUUID string) error {
	start := time.Now()
	_, err := db.conn.ExecContext(ctx,
		`UPDATE sync_markers SET stale = true WHERE customer_uuid = ?`, customerUUID)
	metrics.RecordDBQuery("UPDATE", "sync_markers", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("failed to mark customer %s stale: %w", customerUUID, err)
	}
	return nil
}

// LastSyncedAt returns a customer's freshness marker. A customer that has
// never synced returns a zero time with stale=true.
func (db *DB) LastSyncedAt(ctx context.Context, customerUUID string) (time.Time, bool, error) {
	start := time.Now()

	var syncedAt time.Time
	var stale bool
	err := db.conn.QueryRowContext(ctx,
		`SELECT last_synced_at, stale FROM sync_markers WHERE customer_uuid = ?`,
		customerUUID).Scan(&syncedAt, &stale)
	metrics.RecordDBQuery("SELECT", "sync_markers", time.Since(start), err)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, true, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to get sync marker for customer %s: %w", customerUUID, err)
	}
	return syncedAt, stale, nil
}
