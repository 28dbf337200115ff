// Fieldport - Field Service Customer Portal Sync Engine
// Copyright 2026 Fieldport Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fieldport/fieldport

// Package sync orchestrates per-customer refresh runs against the vendor
// API: fetch the customer record, its jobs, then each job's materials and
// attachments, validating and upserting into the local cache store in
// referential order.
//
// A run is fatal only when the customer record or the job list cannot be
// fetched. Per-job failures and invalid records are logged, counted, and
// skipped so one bad job never blocks the rest. The customer's freshness
// marker advances after every non-fatal run, including partial ones.
package sync
