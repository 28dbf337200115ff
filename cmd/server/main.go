// Fieldport - Field Service Customer Portal Sync Engine
// Copyright 2026 Fieldport Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fieldport/fieldport

// Package main is the entry point for the Fieldport server.
//
// Fieldport mirrors a third-party field-service management API into a
// local DuckDB cache and serves a customer portal over it: dashboards,
// job lists, documents, payment history, and quote approvals that write
// back upstream. The local cache absorbs the vendor's strict daily API
// quota and keeps the portal responsive when the vendor is slow or down.
//
// Initialization order:
//
//  1. Configuration: Koanf v2 layered sources (defaults, config.yaml,
//     environment variables)
//  2. Logging: zerolog, structured JSON by default
//  3. Database: DuckDB cache store
//  4. Upstream client: retrying HTTP client wrapped in a circuit breaker
//     and the daily-quota governor
//  5. Sync orchestrator, portal accessor, write-back coordinator,
//     webhook invalidator
//  6. Supervisor tree: background refresh poller (optional) and the
//     HTTP API as supervised services
//
// The server handles graceful shutdown on SIGINT and SIGTERM: it stops
// accepting connections, drains in-flight requests, checkpoints and
// closes the database.
package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/fieldport/fieldport/internal/api"
	"github.com/fieldport/fieldport/internal/config"
	"github.com/fieldport/fieldport/internal/database"
	"github.com/fieldport/fieldport/internal/logging"
	"github.com/fieldport/fieldport/internal/metrics"
	"github.com/fieldport/fieldport/internal/portal"
	"github.com/fieldport/fieldport/internal/ratelimit"
	"github.com/fieldport/fieldport/internal/supervisor"
	"github.com/fieldport/fieldport/internal/supervisor/services"
	"github.com/fieldport/fieldport/internal/sync"
	"github.com/fieldport/fieldport/internal/upstream"
	"github.com/fieldport/fieldport/internal/webhook"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("version", version).
		Str("upstream_url", cfg.Upstream.BaseURL).
		Str("db_path", cfg.Database.Path).
		Msg("Starting Fieldport")
	metrics.AppInfo.WithLabelValues(version, runtime.Version()).Set(1)

	db, err := database.New(&cfg.Database)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing database")
		}
	}()
	logging.Info().Msg("Database initialized")

	// Upstream call stack, innermost first: HTTP client with retries,
	// circuit breaker, daily-quota governor.
	governor := ratelimit.NewGovernor(credentialID(&cfg.Upstream), cfg.Upstream.DailyQuota)
	client := upstream.NewClient(&cfg.Upstream)
	breaker := upstream.NewBreakerClient(client)
	governed := upstream.NewGovernedCaller(breaker, governor)
	vendorAPI := upstream.NewAPI(governed, &cfg.Cache)
	defer vendorAPI.Close()

	syncManager := sync.NewManager(db, vendorAPI, &cfg.Sync)
	accessor := portal.NewAccessor(db, syncManager, &cfg.Sync)
	coordinator := portal.NewCoordinator(db, vendorAPI)

	var webhookSyncer webhook.Syncer
	if cfg.Webhook.TriggerSync {
		webhookSyncer = &syncAdapter{manager: syncManager}
	}
	invalidator := webhook.NewInvalidator(db, vendorAPI, webhookSyncer, &cfg.Webhook)
	defer invalidator.Close()

	handler := api.NewHandler(accessor, coordinator, invalidator, db, governor)
	router := api.NewRouter(handler, &cfg.Server)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
		IdleTimeout:  2 * cfg.Server.Timeout,
	}

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))
	if cfg.Sync.PollEnabled {
		tree.AddSyncService(services.NewRefreshPollerService(db, syncManager, cfg.Sync.PollInterval))
		logging.Info().Dur("interval", cfg.Sync.PollInterval).Msg("Background refresh poller enabled")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go trackUptime(ctx)

	logging.Info().Str("addr", server.Addr).Msg("Serving portal API")
	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logging.Error().Err(err).Msg("Supervisor tree exited")
		os.Exit(1)
	}
	logging.Info().Msg("Shutdown complete")
}

// syncAdapter narrows the sync manager to the webhook package's interface.
type syncAdapter struct {
	manager *sync.Manager
}

func (a *syncAdapter) SyncCustomer(ctx context.Context, customerUUID string) error {
	_, err := a.manager.SyncCustomer(ctx, customerUUID)
	return err
}

// credentialID labels quota accounting. Falls back to a fingerprint of
// the API key so rotating keys resets the visible label but never leaks
// the key itself.
func credentialID(cfg *config.UpstreamConfig) string {
	if cfg.CredentialID != "" {
		return cfg.CredentialID
	}
	sum := sha256.Sum256([]byte(cfg.APIKey))
	return "key-" + hex.EncodeToString(sum[:4])
}

func trackUptime(ctx context.Context) {
	start := time.Now()
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			metrics.AppUptime.Set(time.Since(start).Seconds())
		}
	}
}
