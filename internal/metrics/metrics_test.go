// Fieldport - Field Service Customer Portal Sync Engine
// Copyright 2026 Fieldport Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fieldport/fieldport

package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordUpstreamRequest(t *testing.T) {
	tests := []struct {
		name     string
		endpoint string
		method   string
		outcome  string
		duration time.Duration
	}{
		{
			name:     "successful job fetch",
			endpoint: "/job",
			method:   "GET",
			outcome:  "success",
			duration: 120 * time.Millisecond,
		},
		{
			name:     "rate limited company list",
			endpoint: "/company",
			method:   "GET",
			outcome:  "retryable",
			duration: 30 * time.Millisecond,
		},
		{
			name:     "fatal approval post",
			endpoint: "/job/approve",
			method:   "POST",
			outcome:  "fatal",
			duration: 250 * time.Millisecond,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := testutil.ToFloat64(UpstreamRequestsTotal.WithLabelValues(tt.endpoint, tt.method, tt.outcome))
			RecordUpstreamRequest(tt.endpoint, tt.method, tt.outcome, tt.duration)
			after := testutil.ToFloat64(UpstreamRequestsTotal.WithLabelValues(tt.endpoint, tt.method, tt.outcome))
			if after != before+1 {
				t.Errorf("expected counter to increment by 1, got %v -> %v", before, after)
			}
		})
	}
}

func TestRecordDBQuery(t *testing.T) {
	tests := []struct {
		name      string
		operation string
		table     string
		duration  time.Duration
		err       error
	}{
		{
			name:      "successful upsert",
			operation: "UPSERT",
			table:     "jobs",
			duration:  5 * time.Millisecond,
			err:       nil,
		},
		{
			name:      "failed select",
			operation: "SELECT",
			table:     "customers",
			duration:  100 * time.Millisecond,
			err:       errors.New("connection refused"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errBefore := testutil.ToFloat64(DBQueryErrors.WithLabelValues(tt.operation, tt.table))
			RecordDBQuery(tt.operation, tt.table, tt.duration, tt.err)
			errAfter := testutil.ToFloat64(DBQueryErrors.WithLabelValues(tt.operation, tt.table))

			wantDelta := float64(0)
			if tt.err != nil {
				wantDelta = 1
			}
			if errAfter != errBefore+wantDelta {
				t.Errorf("error counter delta = %v, want %v", errAfter-errBefore, wantDelta)
			}
		})
	}
}

func TestUpdateGovernorGauges(t *testing.T) {
	UpdateGovernorGauges("cred-1", 1500, 18500)

	used := testutil.ToFloat64(GovernorQuotaUsed.WithLabelValues("cred-1"))
	if used != 1500 {
		t.Errorf("quota used = %v, want 1500", used)
	}
	remaining := testutil.ToFloat64(GovernorQuotaRemaining.WithLabelValues("cred-1"))
	if remaining != 18500 {
		t.Errorf("quota remaining = %v, want 18500", remaining)
	}

	// Gauges track the latest window state, not cumulative totals.
	UpdateGovernorGauges("cred-1", 1501, 18499)
	if got := testutil.ToFloat64(GovernorQuotaUsed.WithLabelValues("cred-1")); got != 1501 {
		t.Errorf("quota used after update = %v, want 1501", got)
	}
}

func TestRecordSyncRun(t *testing.T) {
	for _, outcome := range []string{"success", "partial", "fatal"} {
		before := testutil.ToFloat64(SyncRunsTotal.WithLabelValues(outcome))
		RecordSyncRun(outcome, 2*time.Second)
		after := testutil.ToFloat64(SyncRunsTotal.WithLabelValues(outcome))
		if after != before+1 {
			t.Errorf("sync run counter for %q: %v -> %v, want +1", outcome, before, after)
		}
	}

	// Fatal runs must not advance the last-success timestamp.
	SyncLastSuccess.Set(0)
	RecordSyncRun("fatal", time.Second)
	if got := testutil.ToFloat64(SyncLastSuccess); got != 0 {
		t.Errorf("fatal run advanced last success timestamp to %v", got)
	}
	RecordSyncRun("partial", time.Second)
	if got := testutil.ToFloat64(SyncLastSuccess); got == 0 {
		t.Error("partial run should advance last success timestamp")
	}
}

func TestTrackActiveRequest(t *testing.T) {
	base := testutil.ToFloat64(APIActiveRequests)
	TrackActiveRequest(true)
	TrackActiveRequest(true)
	if got := testutil.ToFloat64(APIActiveRequests); got != base+2 {
		t.Errorf("active requests = %v, want %v", got, base+2)
	}
	TrackActiveRequest(false)
	TrackActiveRequest(false)
	if got := testutil.ToFloat64(APIActiveRequests); got != base {
		t.Errorf("active requests = %v, want %v", got, base)
	}
}
