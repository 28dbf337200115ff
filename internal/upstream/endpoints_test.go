// Fieldport - Field Service Customer Portal Sync Engine
// Copyright 2026 Fieldport Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fieldport/fieldport

package upstream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fieldport/fieldport/internal/config"
	"github.com/fieldport/fieldport/internal/models"
)

func cachingConfig() *config.CacheConfig {
	return &config.CacheConfig{
		Enabled:    true,
		JobTTL:     time.Minute,
		CompanyTTL: time.Minute,
	}
}

func TestGetJobUsesResponseCache(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(`{"uuid":"job-1","company_uuid":"cust-1","status":"Quote"}`))
	}))
	defer server.Close()

	api := NewAPI(newTestClient(server.URL, 1), cachingConfig())
	defer api.Close()

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		job, err := api.GetJob(ctx, "job-1")
		if err != nil {
			t.Fatalf("call %d: %v", i+1, err)
		}
		if job.UUID != "job-1" || job.Status != "Quote" {
			t.Errorf("call %d: unexpected payload %+v", i+1, job)
		}
	}

	if got := hits.Load(); got != 1 {
		t.Errorf("server hits = %d, want 1 (repeat reads served from cache)", got)
	}
}

func TestGetJobCacheDisabled(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(`{"uuid":"job-1"}`))
	}))
	defer server.Close()

	api := NewAPI(newTestClient(server.URL, 1), &config.CacheConfig{Enabled: false})
	defer api.Close()

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if _, err := api.GetJob(ctx, "job-1"); err != nil {
			t.Fatal(err)
		}
	}
	if got := hits.Load(); got != 2 {
		t.Errorf("server hits = %d, want 2 with caching disabled", got)
	}
}

func TestApproveQuoteInvalidatesJobCache(t *testing.T) {
	var jobHits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "/approve") {
			if got := r.Header.Get("Idempotency-Key"); got != "approve:job-1:7" {
				t.Errorf("Idempotency-Key = %q", got)
			}
			_, _ = w.Write([]byte(`{}`))
			return
		}
		jobHits.Add(1)
		_, _ = w.Write([]byte(`{"uuid":"job-1","status":"Quote"}`))
	}))
	defer server.Close()

	api := NewAPI(newTestClient(server.URL, 1), cachingConfig())
	defer api.Close()

	ctx := context.Background()
	if _, err := api.GetJob(ctx, "job-1"); err != nil {
		t.Fatal(err)
	}

	if err := api.ApproveQuote(ctx, "job-1", "approve:job-1:7", models.ApproveQuoteRequest{Approved: true}); err != nil {
		t.Fatal(err)
	}

	// Re-fetch must go back to the server after the approval write.
	if _, err := api.GetJob(ctx, "job-1"); err != nil {
		t.Fatal(err)
	}
	if got := jobHits.Load(); got != 2 {
		t.Errorf("job fetches = %d, want 2 (cache invalidated by write)", got)
	}
}

func TestListJobsFiltersByCompany(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		filter := r.URL.Query().Get("$filter")
		if !strings.Contains(filter, "cust-1") {
			t.Errorf("filter %q does not scope to company", filter)
		}
		_, _ = w.Write([]byte(`[{"uuid":"job-1","company_uuid":"cust-1","status":"Quote"},{"uuid":"job-2","company_uuid":"cust-1","status":"Invoice"}]`))
	}))
	defer server.Close()

	api := NewAPI(newTestClient(server.URL, 1), nil)
	defer api.Close()

	jobs, err := api.ListJobs(context.Background(), "cust-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(jobs) != 2 {
		t.Fatalf("jobs = %d, want 2", len(jobs))
	}
	if jobs[1].Status != "Invoice" {
		t.Errorf("second job status = %q, want Invoice", jobs[1].Status)
	}
}

func TestGetCompanyDecodeError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	}))
	defer server.Close()

	api := NewAPI(newTestClient(server.URL, 1), nil)
	defer api.Close()

	if _, err := api.GetCompany(context.Background(), "cust-1"); err == nil {
		t.Fatal("expected decode error")
	}
}
