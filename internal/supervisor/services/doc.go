// Fieldport - Field Service Customer Portal Sync Engine
// Copyright 2026 Fieldport Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fieldport/fieldport

// Package services adapts Fieldport's long-running components to suture's
// context-aware Serve pattern: the HTTP server and the background refresh
// poller.
package services
