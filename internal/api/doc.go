// Fieldport - Field Service Customer Portal Sync Engine
// Copyright 2026 Fieldport Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fieldport/fieldport

// Package api provides the portal's HTTP surface: customer-scoped reads
// over the cache store, the quote approval write-back endpoint, the
// upstream webhook receiver, and health and metrics endpoints. Routing
// uses Chi with per-group rate limiting and CORS.
package api
