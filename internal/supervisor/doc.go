// Fieldport - Field Service Customer Portal Sync Engine
// Copyright 2026 Fieldport Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fieldport/fieldport

/*
Package supervisor provides process supervision for Fieldport using suture v4.

The tree organizes long-running services into two layers for failure
isolation:

	RootSupervisor ("fieldport")
	├── SyncSupervisor ("sync-layer")
	│   └── RefreshPollerService (if SYNC_POLL_ENABLED)
	└── APISupervisor ("api-layer")
	    └── HTTPServerService

A crash in the background refresh poller never takes down the HTTP API,
which keeps serving cached responses. Crashed services restart with
exponential backoff, and context cancellation triggers orderly shutdown
with a configurable timeout. Supervision events are logged through the
sutureslog adapter into the application's structured logger.
*/
package supervisor
