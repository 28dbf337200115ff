// Fieldport - Field Service Customer Portal Sync Engine
// Copyright 2026 Fieldport Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fieldport/fieldport

package ratelimit

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fieldport/fieldport/internal/metrics"
)

// ErrQuotaExhausted is returned when the rolling window has no budget left.
var ErrQuotaExhausted = errors.New("daily request quota exhausted")

// DefaultDailyQuota is the upstream vendor's per-credential daily request cap.
const DefaultDailyQuota = 20000

// numBuckets divides the 24h window into hourly buckets. Counts age out an
// hour at a time, which keeps memory constant and is granular enough for a
// quota measured in tens of thousands.
const numBuckets = 24

// Governor enforces a rolling 24-hour request quota for one upstream
// credential. It divides the window into hourly buckets held in a circular
// buffer and sums them to get the count inside the window.
//
// Safe for concurrent use. The clock is injectable for tests.
type Governor struct {
	mu         sync.Mutex
	credential string
	quota      int
	buckets    [numBuckets]int
	bucketSize time.Duration
	current    int
	lastUpdate time.Time
	now        func() time.Time
}

// NewGovernor creates a governor for the given credential. A quota of 0 or
// less falls back to DefaultDailyQuota.
func NewGovernor(credential string, quota int) *Governor {
	if quota <= 0 {
		quota = DefaultDailyQuota
	}
	g := &Governor{
		credential: credential,
		quota:      quota,
		bucketSize: 24 * time.Hour / numBuckets,
		now:        time.Now,
	}
	g.lastUpdate = g.now()
	return g
}

// CanProceed reports whether n more requests fit inside the quota. It does
// not consume budget; callers that go on to make the requests must Record
// them. Returns ErrQuotaExhausted with the wait hint when the budget is
// insufficient.
func (g *Governor) CanProceed(n int) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.advance()

	used := g.used()
	if used+n > g.quota {
		metrics.GovernorDenials.WithLabelValues(g.credential).Inc()
		return fmt.Errorf("%w: %d used of %d, %d requested, retry after %s",
			ErrQuotaExhausted, used, g.quota, n, g.bucketSize)
	}
	return nil
}

// Record consumes n requests from the current bucket.
func (g *Governor) Record(n int) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.advance()
	g.buckets[g.current] += n

	used := g.used()
	metrics.UpdateGovernorGauges(g.credential, used, g.quota-used)
}

// Remaining returns how many requests are left in the window.
func (g *Governor) Remaining() int {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.advance()

	remaining := g.quota - g.used()
	if remaining < 0 {
		remaining = 0
	}
	return remaining
}

// Used returns how many requests were consumed inside the window.
func (g *Governor) Used() int {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.advance()
	return g.used()
}

// Quota returns the configured window quota.
func (g *Governor) Quota() int {
	return g.quota
}

// used sums all buckets. Must be called with the lock held.
func (g *Governor) used() int {
	total := 0
	for _, count := range g.buckets {
		total += count
	}
	return total
}

// advance rotates the circular buffer forward by the number of whole
// buckets elapsed since the last update, zeroing expired buckets. Must be
// called with the lock held.
func (g *Governor) advance() {
	now := g.now()
	elapsed := now.Sub(g.lastUpdate)

	bucketsElapsed := int(elapsed / g.bucketSize)
	if bucketsElapsed <= 0 {
		return
	}

	if bucketsElapsed >= numBuckets {
		for i := range g.buckets {
			g.buckets[i] = 0
		}
		g.current = 0
	} else {
		for i := 0; i < bucketsElapsed; i++ {
			g.current = (g.current + 1) % numBuckets
			g.buckets[g.current] = 0
		}
	}

	g.lastUpdate = g.lastUpdate.Add(time.Duration(bucketsElapsed) * g.bucketSize)
}
