// Fieldport - Field Service Customer Portal Sync Engine
// Copyright 2026 Fieldport Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fieldport/fieldport

// Package upstream is the resilient client for the field-service vendor
// API. It layers, bottom to top:
//
//   - Client: HTTP transport with per-attempt timeouts, bounded retry with
//     exponential backoff and jitter, request pacing, idempotency keys,
//     and a normalized error taxonomy.
//   - BreakerClient: circuit breaker over the transport so hard outages
//     fail fast instead of consuming the retry budget and daily quota.
//   - API: the typed endpoint surface (companies, jobs, materials,
//     attachments, approvals) with a short-TTL response cache on reads.
//
// The package holds no durable state; everything it returns flows through
// the entity validator before entering the cache store.
package upstream
