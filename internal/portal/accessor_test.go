// Fieldport - Field Service Customer Portal Sync Engine
// Copyright 2026 Fieldport Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fieldport/fieldport

package portal

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fieldport/fieldport/internal/config"
	"github.com/fieldport/fieldport/internal/database"
	"github.com/fieldport/fieldport/internal/models"
	"github.com/fieldport/fieldport/internal/sync"
)

type fakeReadStore struct {
	customer    *models.Customer
	jobs        []models.Job
	materials   map[string][]models.JobMaterial
	attachments map[string][]models.Attachment
	lastSynced  time.Time
	stale       bool
}

func (s *fakeReadStore) GetCustomer(_ context.Context, _ string) (*models.Customer, error) {
	if s.customer == nil {
		return nil, database.ErrCustomerNotCached
	}
	return s.customer, nil
}

func (s *fakeReadStore) GetJob(_ context.Context, uuid string) (*models.Job, error) {
	for i := range s.jobs {
		if s.jobs[i].UUID == uuid {
			return &s.jobs[i], nil
		}
	}
	return nil, database.ErrJobNotCached
}

func (s *fakeReadStore) JobsForCustomer(_ context.Context, customerUUID string, filter *database.JobFilter) ([]models.Job, error) {
	var out []models.Job
	for _, j := range s.jobs {
		if j.CustomerUUID != customerUUID {
			continue
		}
		if filter != nil && len(filter.Statuses) > 0 {
			match := false
			for _, st := range filter.Statuses {
				if j.Status == st {
					match = true
				}
			}
			if !match {
				continue
			}
		}
		out = append(out, j)
	}
	return out, nil
}

func (s *fakeReadStore) MaterialsForJob(_ context.Context, jobUUID string) ([]models.JobMaterial, error) {
	return s.materials[jobUUID], nil
}

func (s *fakeReadStore) AttachmentsForJob(_ context.Context, jobUUID string) ([]models.Attachment, error) {
	return s.attachments[jobUUID], nil
}

func (s *fakeReadStore) DocumentsForCustomer(_ context.Context, customerUUID, jobUUID string) ([]models.Attachment, error) {
	var out []models.Attachment
	for _, atts := range s.attachments {
		for _, a := range atts {
			if jobUUID == "" || a.JobUUID == jobUUID {
				out = append(out, a)
			}
		}
	}
	return out, nil
}

func (s *fakeReadStore) PaymentJobs(_ context.Context, customerUUID string) ([]models.Job, error) {
	return s.JobsForCustomer(context.Background(), customerUUID, &database.JobFilter{
		Statuses: []models.JobStatus{models.JobStatusInvoice, models.JobStatusComplete},
	})
}

func (s *fakeReadStore) LastSyncedAt(_ context.Context, _ string) (time.Time, bool, error) {
	return s.lastSynced, s.stale, nil
}

type fakeSyncer struct {
	calls int
	err   error
}

func (f *fakeSyncer) SyncCustomer(_ context.Context, customerUUID string) (*sync.Result, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &sync.Result{CustomerUUID: customerUUID}, nil
}

func newTestAccessor(store *fakeReadStore, syncer *fakeSyncer, now time.Time) *Accessor {
	a := NewAccessor(store, syncer, &config.SyncConfig{MaxAge: 5 * time.Minute})
	a.now = func() time.Time { return now }
	return a
}

func freshStore(now time.Time) *fakeReadStore {
	return &fakeReadStore{
		customer:   &models.Customer{UUID: "cust-1", Name: "Acme"},
		lastSynced: now.Add(-4 * time.Minute),
	}
}

func TestFreshCacheServedWithoutRefresh(t *testing.T) {
	now := time.Now()
	store := freshStore(now)
	syncer := &fakeSyncer{}

	a := newTestAccessor(store, syncer, now)
	_, meta, err := a.Jobs(context.Background(), "cust-1", nil, RefreshAuto)
	if err != nil {
		t.Fatal(err)
	}
	if syncer.calls != 0 {
		t.Errorf("refresh triggered for 4-minute-old cache, threshold is 5m")
	}
	if meta.Stale {
		t.Error("fresh response flagged stale")
	}
}

func TestStaleCacheTriggersRefresh(t *testing.T) {
	now := time.Now()
	store := freshStore(now)
	store.lastSynced = now.Add(-6 * time.Minute)
	syncer := &fakeSyncer{}

	a := newTestAccessor(store, syncer, now)
	if _, _, err := a.Jobs(context.Background(), "cust-1", nil, RefreshAuto); err != nil {
		t.Fatal(err)
	}
	if syncer.calls != 1 {
		t.Errorf("refresh calls = %d, want 1 for 6-minute-old cache", syncer.calls)
	}
}

func TestStaleFlagForcesRefreshDespiteRecentMarker(t *testing.T) {
	now := time.Now()
	store := freshStore(now)
	store.stale = true
	syncer := &fakeSyncer{}

	a := newTestAccessor(store, syncer, now)
	if _, _, err := a.Jobs(context.Background(), "cust-1", nil, RefreshAuto); err != nil {
		t.Fatal(err)
	}
	if syncer.calls != 1 {
		t.Errorf("refresh calls = %d, want 1 when marker is flagged stale", syncer.calls)
	}
}

func TestRefreshModes(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name      string
		mode      RefreshMode
		age       time.Duration
		wantCalls int
	}{
		{"force refreshes fresh cache", RefreshForce, time.Minute, 1},
		{"skip ignores stale cache", RefreshSkip, time.Hour, 0},
		{"auto respects threshold", RefreshAuto, time.Minute, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := freshStore(now)
			store.lastSynced = now.Add(-tt.age)
			syncer := &fakeSyncer{}

			a := newTestAccessor(store, syncer, now)
			if _, _, err := a.Jobs(context.Background(), "cust-1", nil, tt.mode); err != nil {
				t.Fatal(err)
			}
			if syncer.calls != tt.wantCalls {
				t.Errorf("refresh calls = %d, want %d", syncer.calls, tt.wantCalls)
			}
		})
	}
}

func TestRefreshFailureServesStaleCache(t *testing.T) {
	now := time.Now()
	store := freshStore(now)
	store.lastSynced = now.Add(-time.Hour)
	store.jobs = []models.Job{{UUID: "job-1", CustomerUUID: "cust-1", Status: models.JobStatusQuote}}
	syncer := &fakeSyncer{err: errors.New("upstream down")}

	a := newTestAccessor(store, syncer, now)
	jobs, meta, err := a.Jobs(context.Background(), "cust-1", nil, RefreshAuto)
	if err != nil {
		t.Fatalf("stale cache not served: %v", err)
	}
	if !meta.Stale {
		t.Error("degraded response not flagged stale")
	}
	if len(jobs) != 1 {
		t.Errorf("got %d jobs, want cached job served", len(jobs))
	}
}

func TestRefreshFailureWithEmptyCachePropagates(t *testing.T) {
	now := time.Now()
	store := &fakeReadStore{lastSynced: time.Time{}, stale: true}
	syncErr := errors.New("upstream down")
	syncer := &fakeSyncer{err: syncErr}

	a := newTestAccessor(store, syncer, now)
	_, _, err := a.Jobs(context.Background(), "cust-1", nil, RefreshAuto)
	if !errors.Is(err, syncErr) {
		t.Errorf("err = %v, want the refresh failure propagated", err)
	}
}

func TestJobDetailRejectsForeignJob(t *testing.T) {
	now := time.Now()
	store := freshStore(now)
	store.jobs = []models.Job{{UUID: "job-1", CustomerUUID: "someone-else"}}

	a := newTestAccessor(store, &fakeSyncer{}, now)
	_, _, err := a.JobDetail(context.Background(), "cust-1", "job-1", RefreshSkip)
	if !errors.Is(err, database.ErrJobNotCached) {
		t.Errorf("err = %v, want ErrJobNotCached for another customer's job", err)
	}
}

func TestPaymentHistoryFiltersBillingStates(t *testing.T) {
	now := time.Now()
	store := freshStore(now)
	store.jobs = []models.Job{
		{UUID: "j1", CustomerUUID: "cust-1", Status: models.JobStatusQuote},
		{UUID: "j2", CustomerUUID: "cust-1", Status: models.JobStatusInvoice, Total: 100},
		{UUID: "j3", CustomerUUID: "cust-1", Status: models.JobStatusComplete, Total: 250},
	}

	a := newTestAccessor(store, &fakeSyncer{}, now)
	jobs, _, err := a.PaymentHistory(context.Background(), "cust-1", RefreshSkip)
	if err != nil {
		t.Fatal(err)
	}
	if len(jobs) != 2 {
		t.Fatalf("got %d payment jobs, want 2", len(jobs))
	}
}

func TestDashboardDerivation(t *testing.T) {
	now := time.Now()
	store := freshStore(now)
	store.jobs = []models.Job{
		{UUID: "j1", CustomerUUID: "cust-1", Status: models.JobStatusQuote, Total: 500},
		{UUID: "j2", CustomerUUID: "cust-1", Status: models.JobStatusQuote, Total: 300},
		{UUID: "j3", CustomerUUID: "cust-1", Status: models.JobStatusInvoice, Total: 100},
		{UUID: "j4", CustomerUUID: "cust-1", Status: models.JobStatusComplete, Total: 250},
	}
	store.attachments = map[string][]models.Attachment{
		"j1": {{UUID: "a1", JobUUID: "j1"}},
	}

	a := newTestAccessor(store, &fakeSyncer{}, now)
	d, _, err := a.Dashboard(context.Background(), "cust-1", RefreshSkip)
	if err != nil {
		t.Fatal(err)
	}

	if d.TotalJobs != 4 {
		t.Errorf("total jobs = %d, want 4", d.TotalJobs)
	}
	if d.OpenQuotes != 2 {
		t.Errorf("open quotes = %d, want 2", d.OpenQuotes)
	}
	if d.TotalInvoiced != 350 {
		t.Errorf("total invoiced = %v, want 350", d.TotalInvoiced)
	}
	if d.DocumentCount != 1 {
		t.Errorf("document count = %d, want 1", d.DocumentCount)
	}
	if d.JobCounts[models.JobStatusQuote] != 2 {
		t.Errorf("quote count = %d, want 2", d.JobCounts[models.JobStatusQuote])
	}
}
