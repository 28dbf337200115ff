// Fieldport - Field Service Customer Portal Sync Engine
// Copyright 2026 Fieldport Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fieldport/fieldport

package api

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/fieldport/fieldport/internal/config"
	"github.com/fieldport/fieldport/internal/database"
	"github.com/fieldport/fieldport/internal/models"
	"github.com/fieldport/fieldport/internal/portal"
	"github.com/fieldport/fieldport/internal/sync"
	"github.com/fieldport/fieldport/internal/webhook"
)

type stubStore struct {
	jobs        []models.Job
	attachments []models.Attachment
	approvals   []*models.QuoteApproval
	nextID      int
}

func (s *stubStore) GetCustomer(_ context.Context, uuid string) (*models.Customer, error) {
	return &models.Customer{UUID: uuid}, nil
}

func (s *stubStore) GetJob(_ context.Context, uuid string) (*models.Job, error) {
	for i := range s.jobs {
		if s.jobs[i].UUID == uuid {
			return &s.jobs[i], nil
		}
	}
	return nil, database.ErrJobNotCached
}

func (s *stubStore) JobsForCustomer(_ context.Context, customerUUID string, filter *database.JobFilter) ([]models.Job, error) {
	var out []models.Job
	for _, j := range s.jobs {
		if j.CustomerUUID == customerUUID {
			out = append(out, j)
		}
	}
	return out, nil
}

func (s *stubStore) MaterialsForJob(_ context.Context, _ string) ([]models.JobMaterial, error) {
	return nil, nil
}

func (s *stubStore) AttachmentsForJob(_ context.Context, _ string) ([]models.Attachment, error) {
	return s.attachments, nil
}

func (s *stubStore) DocumentsForCustomer(_ context.Context, _, _ string) ([]models.Attachment, error) {
	return s.attachments, nil
}

func (s *stubStore) PaymentJobs(_ context.Context, customerUUID string) ([]models.Job, error) {
	var out []models.Job
	for _, j := range s.jobs {
		if j.CustomerUUID == customerUUID &&
			(j.Status == models.JobStatusInvoice || j.Status == models.JobStatusComplete) {
			out = append(out, j)
		}
	}
	return out, nil
}

func (s *stubStore) LastSyncedAt(_ context.Context, _ string) (time.Time, bool, error) {
	return time.Now(), false, nil
}

func (s *stubStore) SetJobStatus(_ context.Context, uuid string, status models.JobStatus) error {
	for i := range s.jobs {
		if s.jobs[i].UUID == uuid {
			s.jobs[i].Status = status
			return nil
		}
	}
	return database.ErrJobNotCached
}

func (s *stubStore) InsertApproval(_ context.Context, jobUUID string, req *models.ApproveQuoteRequest) (*models.QuoteApproval, error) {
	s.nextID++
	a := &models.QuoteApproval{
		ID:      strconv.Itoa(s.nextID),
		JobUUID: jobUUID,
		Status:  models.ApprovalPending,
	}
	s.approvals = append(s.approvals, a)
	return a, nil
}

func (s *stubStore) PendingApproval(_ context.Context, jobUUID string) (*models.QuoteApproval, error) {
	for _, a := range s.approvals {
		if a.JobUUID == jobUUID && a.Status != models.ApprovalConfirmed {
			return a, nil
		}
	}
	return nil, nil
}

func (s *stubStore) ConfirmedApproval(_ context.Context, jobUUID string) (*models.QuoteApproval, error) {
	for _, a := range s.approvals {
		if a.JobUUID == jobUUID && a.Status == models.ApprovalConfirmed {
			return a, nil
		}
	}
	return nil, nil
}

func (s *stubStore) SetApprovalStatus(_ context.Context, id string, status models.ApprovalStatus) error {
	for _, a := range s.approvals {
		if a.ID == id {
			a.Status = status
			return nil
		}
	}
	return database.ErrApprovalNotFound
}

func (s *stubStore) JobForMaterial(_ context.Context, _ string) (string, error) {
	return "", database.ErrJobNotCached
}

func (s *stubStore) JobForAttachment(_ context.Context, _ string) (string, error) {
	return "", database.ErrJobNotCached
}

func (s *stubStore) MarkStale(_ context.Context, _ string) error { return nil }

type stubSyncer struct{}

func (stubSyncer) SyncCustomer(_ context.Context, customerUUID string) (*sync.Result, error) {
	return &sync.Result{CustomerUUID: customerUUID}, nil
}

type stubVendor struct{ err error }

func (v *stubVendor) ApproveQuote(_ context.Context, _, _ string, _ models.ApproveQuoteRequest) error {
	return v.err
}

type stubResponses struct{}

func (stubResponses) InvalidateJob(string)     {}
func (stubResponses) InvalidateCompany(string) {}

type stubPinger struct{ err error }

func (p *stubPinger) Ping(_ context.Context) error { return p.err }

type stubQuota struct{}

func (stubQuota) Used() int      { return 12 }
func (stubQuota) Remaining() int { return 19988 }
func (stubQuota) Quota() int     { return 20000 }

func newTestServer(t *testing.T, store *stubStore, pinger *stubPinger) *httptest.Server {
	t.Helper()

	accessor := portal.NewAccessor(store, stubSyncer{}, nil)
	coordinator := portal.NewCoordinator(store, &stubVendor{})
	invalidator := webhook.NewInvalidator(store, stubResponses{}, nil, &config.WebhookConfig{
		Secret: "test-secret",
	})
	t.Cleanup(invalidator.Close)

	handler := NewHandler(accessor, coordinator, invalidator, pinger, stubQuota{})
	srv := httptest.NewServer(NewRouter(handler, nil))
	t.Cleanup(srv.Close)
	return srv
}

func signBody(t *testing.T, secret, body string) string {
	t.Helper()
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(body))
	return hex.EncodeToString(mac.Sum(nil))
}

func decodeEnvelope(t *testing.T, resp *http.Response) models.APIResponse {
	t.Helper()
	defer resp.Body.Close()
	var env models.APIResponse
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	return env
}

func TestJobsEndpoint(t *testing.T) {
	store := &stubStore{jobs: []models.Job{
		{UUID: "job-1", CustomerUUID: "cust-1", Status: models.JobStatusQuote},
	}}
	srv := newTestServer(t, store, &stubPinger{})

	resp, err := http.Get(srv.URL + "/api/v1/customers/cust-1/jobs")
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	env := decodeEnvelope(t, resp)
	if env.Status != "ok" {
		t.Errorf("envelope status = %q, want ok", env.Status)
	}
	jobs, ok := env.Data.([]interface{})
	if !ok || len(jobs) != 1 {
		t.Errorf("data = %v, want one job", env.Data)
	}
}

func TestJobsInvalidStatusFilter(t *testing.T) {
	srv := newTestServer(t, &stubStore{}, &stubPinger{})

	resp, err := http.Get(srv.URL + "/api/v1/customers/cust-1/jobs?status=Bogus")
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
	env := decodeEnvelope(t, resp)
	if env.Error == nil || env.Error.Code != ErrCodeBadRequest {
		t.Errorf("error = %+v, want BAD_REQUEST", env.Error)
	}
}

func TestJobDetailNotFound(t *testing.T) {
	srv := newTestServer(t, &stubStore{}, &stubPinger{})

	resp, err := http.Get(srv.URL + "/api/v1/customers/cust-1/jobs/missing")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestETagConditionalRequest(t *testing.T) {
	store := &stubStore{jobs: []models.Job{
		{UUID: "job-1", CustomerUUID: "cust-1", Status: models.JobStatusQuote},
	}}
	srv := newTestServer(t, store, &stubPinger{})

	resp, err := http.Get(srv.URL + "/api/v1/customers/cust-1/jobs")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	etag := resp.Header.Get("ETag")
	if etag == "" {
		t.Fatal("no ETag on 200 response")
	}

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/api/v1/customers/cust-1/jobs", nil)
	req.Header.Set("If-None-Match", etag)
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotModified {
		t.Errorf("status = %d, want 304 for matching ETag", resp.StatusCode)
	}
}

func TestApproveQuoteEndpoint(t *testing.T) {
	store := &stubStore{jobs: []models.Job{
		{UUID: "job-1", CustomerUUID: "cust-1", Status: models.JobStatusQuote},
	}}
	srv := newTestServer(t, store, &stubPinger{})

	body := `{"approved":true,"signature":"A. Customer"}`
	resp, err := http.Post(srv.URL+"/api/v1/jobs/job-1/approve", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	env := decodeEnvelope(t, resp)
	record, ok := env.Data.(map[string]interface{})
	if !ok || record["status"] != string(models.ApprovalConfirmed) {
		t.Errorf("data = %v, want confirmed approval", env.Data)
	}

	// Second approval conflicts.
	resp, err = http.Post(srv.URL+"/api/v1/jobs/job-1/approve", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("second approval status = %d, want 409", resp.StatusCode)
	}
}

func TestApproveQuoteBadBody(t *testing.T) {
	srv := newTestServer(t, &stubStore{}, &stubPinger{})

	resp, err := http.Post(srv.URL+"/api/v1/jobs/job-1/approve", "application/json", strings.NewReader("{not json"))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	srv := newTestServer(t, &stubStore{}, &stubPinger{})

	body := `{"event_type":"job.updated","object_uuid":"7b1c8a52-3f4e-4d6a-9b2c-1e5f8a7d6c3b"}`
	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/api/v1/webhooks/upstream", strings.NewReader(body))
	req.Header.Set("X-Webhook-Signature", "deadbeef")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", resp.StatusCode)
	}
}

func TestWebhookAcceptsSignedEvent(t *testing.T) {
	store := &stubStore{jobs: []models.Job{
		{UUID: "7b1c8a52-3f4e-4d6a-9b2c-1e5f8a7d6c3b", CustomerUUID: "cust-1"},
	}}
	srv := newTestServer(t, store, &stubPinger{})

	body := `{"event_type":"job.updated","object_uuid":"7b1c8a52-3f4e-4d6a-9b2c-1e5f8a7d6c3b"}`
	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/api/v1/webhooks/upstream", strings.NewReader(body))
	req.Header.Set("X-Webhook-Signature", signBody(t, "test-secret", body))
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Errorf("status = %d, want 202", resp.StatusCode)
	}
}

func TestWebhookUnknownEventType(t *testing.T) {
	srv := newTestServer(t, &stubStore{}, &stubPinger{})

	body := `{"event_type":"invoice.minted","object_uuid":"7b1c8a52-3f4e-4d6a-9b2c-1e5f8a7d6c3b"}`
	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/api/v1/webhooks/upstream", strings.NewReader(body))
	req.Header.Set("X-Webhook-Signature", signBody(t, "test-secret", body))
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestHealthEndpoints(t *testing.T) {
	srv := newTestServer(t, &stubStore{}, &stubPinger{})

	for _, path := range []string{"/api/v1/health/live", "/api/v1/health/ready", "/api/v1/health/"} {
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("%s status = %d, want 200", path, resp.StatusCode)
		}
	}
}

func TestHealthDegradedWhenDatabaseDown(t *testing.T) {
	srv := newTestServer(t, &stubStore{}, &stubPinger{err: errors.New("io error")})

	resp, err := http.Get(srv.URL + "/api/v1/health/")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503 with database down", resp.StatusCode)
	}
}
