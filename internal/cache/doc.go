// Fieldport - Field Service Customer Portal Sync Engine
// Copyright 2026 Fieldport Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fieldport/fieldport

// Package cache provides a thread-safe in-memory TTL cache used for
// upstream response caching and webhook deduplication.
//
// Each cache instance carries a type label so hits, misses and evictions
// are attributed to the right consumer in Prometheus. Entries expire
// lazily on read and eagerly via a background cleanup loop.
package cache
