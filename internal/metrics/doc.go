// Fieldport - Field Service Customer Portal Sync Engine
// Copyright 2026 Fieldport Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fieldport/fieldport

// Package metrics provides Prometheus instrumentation for the sync engine:
// upstream request latency and retries, circuit breaker state, quota
// governor usage, sync run outcomes, response cache efficiency and API
// endpoint throughput.
package metrics
