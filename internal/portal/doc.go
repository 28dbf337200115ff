// Fieldport - Field Service Customer Portal Sync Engine
// Copyright 2026 Fieldport Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fieldport/fieldport

// Package portal is the customer-facing access layer over the cache store.
//
// Reads go through a staleness check: data older than the configured
// threshold triggers a refresh before serving. When the refresh fails but
// cached data exists the stale copy is served and flagged; only an empty
// cache propagates the failure. Writes (quote approvals) record a durable
// intent locally before calling the vendor, so a crash or upstream failure
// leaves a resumable record behind.
package portal
