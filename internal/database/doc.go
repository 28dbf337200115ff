// Fieldport - Field Service Customer Portal Sync Engine
// Copyright 2026 Fieldport Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fieldport/fieldport

// Package database is the cache store: a DuckDB-backed relational mirror
// of upstream entities (customers, jobs, materials, attachments) plus the
// locally-owned quote approval records and per-customer sync markers.
//
// Writes are idempotent upserts keyed by upstream UUID. Referential
// ordering is enforced in code: a job upsert requires its customer row, a
// material or attachment upsert requires its job row. Violations surface
// as ErrCustomerNotCached / ErrJobNotCached so the sync orchestrator can
// skip the item and continue.
package database
