// Fieldport - Field Service Customer Portal Sync Engine
// Copyright 2026 Fieldport Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fieldport/fieldport

// Package middleware provides HTTP middleware shared across the portal
// API: request ID propagation for tracing and Prometheus request
// instrumentation.
package middleware
