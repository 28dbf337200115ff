// Fieldport - Field Service Customer Portal Sync Engine
// Copyright 2026 Fieldport Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fieldport/fieldport

package services

import (
	"context"
	"time"

	"github.com/fieldport/fieldport/internal/logging"
	"github.com/fieldport/fieldport/internal/sync"
)

const defaultPollInterval = 15 * time.Minute

// CustomerLister enumerates the customers the poller keeps warm.
type CustomerLister interface {
	ListActiveCustomers(ctx context.Context) ([]string, error)
}

// Refresher runs one sync for one customer.
type Refresher interface {
	SyncCustomer(ctx context.Context, customerUUID string) (*sync.Result, error)
}

// RefreshPollerService periodically re-syncs every active cached customer
// so portal reads rarely hit the staleness path. Daily-quota enforcement
// happens inside the upstream client, so an exhausted quota surfaces here
// as per-customer sync errors, not as a poller crash.
type RefreshPollerService struct {
	lister    CustomerLister
	refresher Refresher
	interval  time.Duration
}

func NewRefreshPollerService(lister CustomerLister, refresher Refresher, interval time.Duration) *RefreshPollerService {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	return &RefreshPollerService{lister: lister, refresher: refresher, interval: interval}
}

// Serve implements suture.Service.
func (s *RefreshPollerService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.pollOnce(ctx)
		}
	}
}

func (s *RefreshPollerService) pollOnce(ctx context.Context) {
	customers, err := s.lister.ListActiveCustomers(ctx)
	if err != nil {
		logging.Error().Err(err).Msg("List customers for refresh poll")
		return
	}

	var failed int
	for _, customerUUID := range customers {
		if ctx.Err() != nil {
			return
		}
		if _, err := s.refresher.SyncCustomer(ctx, customerUUID); err != nil {
			failed++
			logging.Warn().Err(err).Str("customer", customerUUID).Msg("Background refresh failed")
		}
	}
	logging.Info().
		Int("customers", len(customers)).
		Int("failed", failed).
		Msg("Refresh poll complete")
}

func (s *RefreshPollerService) String() string {
	return "refresh-poller"
}
