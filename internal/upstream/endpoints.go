// Fieldport - Field Service Customer Portal Sync Engine
// Copyright 2026 Fieldport Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fieldport/fieldport

package upstream

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/goccy/go-json"

	"github.com/fieldport/fieldport/internal/cache"
	"github.com/fieldport/fieldport/internal/config"
	"github.com/fieldport/fieldport/internal/models"
)

// Caller abstracts the transport so the API surface works over the plain
// client or the circuit-breaker wrapper.
type Caller interface {
	Call(ctx context.Context, method, path string, body interface{}, opts *CallOptions) ([]byte, error)
}

// API exposes the typed vendor endpoints the sync engine needs. Read
// endpoints for jobs and companies are layered with a short-TTL response
// cache to deduplicate fetches within one sync run; write endpoints are
// never cached.
type API struct {
	caller       Caller
	jobCache     *cache.Cache
	companyCache *cache.Cache
}

// NewAPI creates the typed endpoint surface. Caches may be nil to disable
// response caching.
func NewAPI(caller Caller, cfg *config.CacheConfig) *API {
	api := &API{caller: caller}
	if cfg != nil && cfg.Enabled {
		api.jobCache = cache.New(cfg.JobTTL, "job")
		api.companyCache = cache.New(cfg.CompanyTTL, "company")
	}
	return api
}

// Close releases the response caches' background goroutines.
func (a *API) Close() {
	if a.jobCache != nil {
		a.jobCache.Close()
	}
	if a.companyCache != nil {
		a.companyCache.Close()
	}
}

func getJSON[T any](ctx context.Context, c Caller, path string) (*T, error) {
	body, err := c.Call(ctx, http.MethodGet, path, nil, nil)
	if err != nil {
		return nil, err
	}
	var out T
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return &out, nil
}

// GetCompany fetches one company record, served from the response cache
// when fresh.
func (a *API) GetCompany(ctx context.Context, companyUUID string) (*models.CompanyPayload, error) {
	key := "company:" + companyUUID
	if a.companyCache != nil {
		if hit, ok := a.companyCache.Get(key); ok {
			return hit.(*models.CompanyPayload), nil
		}
	}

	company, err := getJSON[models.CompanyPayload](ctx, a.caller, "/api/1.0/company/"+companyUUID+".json")
	if err != nil {
		return nil, err
	}

	if a.companyCache != nil {
		a.companyCache.Set(key, company)
	}
	return company, nil
}

// ListCompanies fetches every company visible to the credential.
func (a *API) ListCompanies(ctx context.Context) ([]models.CompanyPayload, error) {
	companies, err := getJSON[[]models.CompanyPayload](ctx, a.caller, "/api/1.0/company.json")
	if err != nil {
		return nil, err
	}
	return *companies, nil
}

// GetJob fetches one job record, served from the response cache when fresh.
func (a *API) GetJob(ctx context.Context, jobUUID string) (*models.JobPayload, error) {
	key := "job:" + jobUUID
	if a.jobCache != nil {
		if hit, ok := a.jobCache.Get(key); ok {
			return hit.(*models.JobPayload), nil
		}
	}

	job, err := getJSON[models.JobPayload](ctx, a.caller, "/api/1.0/job/"+jobUUID+".json")
	if err != nil {
		return nil, err
	}

	if a.jobCache != nil {
		a.jobCache.Set(key, job)
	}
	return job, nil
}

// ListJobs fetches all jobs belonging to one company.
func (a *API) ListJobs(ctx context.Context, companyUUID string) ([]models.JobPayload, error) {
	filter := url.QueryEscape(fmt.Sprintf("company_uuid eq '%s'", companyUUID))
	jobs, err := getJSON[[]models.JobPayload](ctx, a.caller, "/api/1.0/job.json?$filter="+filter)
	if err != nil {
		return nil, err
	}
	return *jobs, nil
}

// ListJobMaterials fetches the line items of one job.
func (a *API) ListJobMaterials(ctx context.Context, jobUUID string) ([]models.MaterialPayload, error) {
	filter := url.QueryEscape(fmt.Sprintf("job_uuid eq '%s'", jobUUID))
	materials, err := getJSON[[]models.MaterialPayload](ctx, a.caller, "/api/1.0/jobmaterial.json?$filter="+filter)
	if err != nil {
		return nil, err
	}
	return *materials, nil
}

// ListAttachments fetches the attachments of one job.
func (a *API) ListAttachments(ctx context.Context, jobUUID string) ([]models.AttachmentPayload, error) {
	filter := url.QueryEscape(fmt.Sprintf("related_object_uuid eq '%s'", jobUUID))
	attachments, err := getJSON[[]models.AttachmentPayload](ctx, a.caller, "/api/1.0/attachment.json?$filter="+filter)
	if err != nil {
		return nil, err
	}
	return *attachments, nil
}

// DownloadAttachment streams one attachment's file content. Never cached;
// attachment blobs can be large and are fetched on demand.
func (a *API) DownloadAttachment(ctx context.Context, attachmentUUID string) ([]byte, error) {
	return a.caller.Call(ctx, http.MethodGet, "/api/1.0/attachment/"+attachmentUUID+".file", nil, &CallOptions{
		Timeout: 2 * time.Minute,
	})
}

// ApproveQuote performs the non-idempotent quote approval write. The
// idempotency key must be deterministic per approval record so a retried
// call is deduped by the vendor rather than double-approved.
func (a *API) ApproveQuote(ctx context.Context, jobUUID, idempotencyKey string, req models.ApproveQuoteRequest) error {
	_, err := a.caller.Call(ctx, http.MethodPost, "/api/1.0/job/"+jobUUID+"/approve.json", req, &CallOptions{
		IdempotencyKey: idempotencyKey,
	})
	if err == nil {
		a.InvalidateJob(jobUUID)
	}
	return err
}

// AddJobNote attaches a free-text note to a job.
func (a *API) AddJobNote(ctx context.Context, jobUUID, note, idempotencyKey string) error {
	_, err := a.caller.Call(ctx, http.MethodPost, "/api/1.0/note.json", models.JobNoteRequest{
		JobUUID: jobUUID,
		Note:    note,
	}, &CallOptions{IdempotencyKey: idempotencyKey})
	return err
}

// UpdateJobStatus transitions a job's upstream status.
func (a *API) UpdateJobStatus(ctx context.Context, jobUUID string, status models.JobStatus) error {
	_, err := a.caller.Call(ctx, http.MethodPost, "/api/1.0/job/"+jobUUID+".json", models.JobStatusRequest{
		Status: string(status),
	}, nil)
	if err == nil {
		a.InvalidateJob(jobUUID)
	}
	return err
}

// InvalidateJob drops one job from the response cache. Called by the
// webhook invalidator when upstream reports an out-of-band change.
func (a *API) InvalidateJob(jobUUID string) {
	if a.jobCache != nil {
		a.jobCache.Delete("job:" + jobUUID)
	}
}

// InvalidateCompany drops one company from the response cache.
func (a *API) InvalidateCompany(companyUUID string) {
	if a.companyCache != nil {
		a.companyCache.Delete("company:" + companyUUID)
	}
}
