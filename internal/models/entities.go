// Fieldport - Field Service Customer Portal Sync Engine
// Copyright 2026 Fieldport Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fieldport/fieldport

// Package models defines the cached entity types mirrored from the upstream
// field-service API, the raw upstream payload variants they are produced
// from, and the JSON envelope served by the HTTP API.
//
// Cached entities are keyed by upstream UUID. The upstream is authoritative
// for all mirrored data; the only locally-originated entity is QuoteApproval,
// the durable record of customer intent for the write-back path.
package models

import "time"

// JobStatus is the closed set of upstream job lifecycle states.
type JobStatus string

const (
	JobStatusQuote     JobStatus = "Quote"
	JobStatusWorkOrder JobStatus = "Work Order"
	JobStatusInvoice   JobStatus = "Invoice"
	JobStatusComplete  JobStatus = "Complete"
	JobStatusCancelled JobStatus = "Cancelled"
)

// JobStatuses lists all valid job statuses.
var JobStatuses = []JobStatus{
	JobStatusQuote,
	JobStatusWorkOrder,
	JobStatusInvoice,
	JobStatusComplete,
	JobStatusCancelled,
}

// Valid reports whether s is a member of the closed status set.
func (s JobStatus) Valid() bool {
	switch s {
	case JobStatusQuote, JobStatusWorkOrder, JobStatusInvoice, JobStatusComplete, JobStatusCancelled:
		return true
	}
	return false
}

// AttachmentSource is the closed set of document source categories.
type AttachmentSource string

const (
	AttachmentSourceQuote    AttachmentSource = "Quote"
	AttachmentSourceInvoice  AttachmentSource = "Invoice"
	AttachmentSourcePhoto    AttachmentSource = "Photo"
	AttachmentSourceDocument AttachmentSource = "Document"
)

// Valid reports whether s is a member of the closed source set.
func (s AttachmentSource) Valid() bool {
	switch s {
	case AttachmentSourceQuote, AttachmentSourceInvoice, AttachmentSourcePhoto, AttachmentSourceDocument:
		return true
	}
	return false
}

// Customer is a cached upstream company. One row per upstream company;
// never deleted by the engine, only soft-deactivated.
type Customer struct {
	UUID      string    `json:"uuid"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	Address   string    `json:"address"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Job is a cached upstream job. UpdatedAt is the local watermark used for
// most-recently-updated ordering, distinct from the upstream ModifiedAt.
type Job struct {
	UUID         string     `json:"uuid"`
	CustomerUUID string     `json:"customer_uuid"`
	Number       string     `json:"number"`
	Description  string     `json:"description"`
	Status       JobStatus  `json:"status"`
	Total        float64    `json:"total"`
	Address      string     `json:"address"`
	CreatedAt    time.Time  `json:"created_at"`
	ModifiedAt   time.Time  `json:"modified_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// JobMaterial is a cached line item belonging to a job.
type JobMaterial struct {
	UUID        string  `json:"uuid"`
	JobUUID     string  `json:"job_uuid"`
	Name        string  `json:"name"`
	Quantity    float64 `json:"quantity"`
	UnitCost    float64 `json:"unit_cost"`
	TotalExTax  float64 `json:"total_ex_tax"`
	TotalIncTax float64 `json:"total_inc_tax"`
}

// Attachment is a cached document belonging to a job.
type Attachment struct {
	UUID      string           `json:"uuid"`
	JobUUID   string           `json:"job_uuid"`
	FileName  string           `json:"file_name"`
	FileType  string           `json:"file_type"`
	SizeBytes int64            `json:"size_bytes"`
	Source    AttachmentSource `json:"source"`
	CreatedAt time.Time        `json:"created_at"`
}

// ApprovalStatus is the write-back lifecycle state of a quote approval.
// pending -> confirmed on upstream success, pending -> failed on upstream
// failure; confirmed and failed are terminal.
type ApprovalStatus string

const (
	ApprovalPending   ApprovalStatus = "pending"
	ApprovalConfirmed ApprovalStatus = "confirmed"
	ApprovalFailed    ApprovalStatus = "failed"
)

// QuoteApproval is the durable local record of a customer's approval intent.
// It is the system of record for "did the customer agree", independent of
// whether the upstream call ultimately succeeded.
type QuoteApproval struct {
	ID        string         `json:"id"`
	JobUUID   string         `json:"job_uuid"`
	Approved  bool           `json:"approved"`
	Signature string         `json:"signature"`
	Notes     string         `json:"notes"`
	Status    ApprovalStatus `json:"status"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Dashboard is derived data aggregated over a customer's cached jobs and
// documents. It is computed per request, never cached independently.
type Dashboard struct {
	CustomerUUID  string            `json:"customer_uuid"`
	JobCounts     map[JobStatus]int `json:"job_counts"`
	TotalJobs     int               `json:"total_jobs"`
	OpenQuotes    int               `json:"open_quotes"`
	TotalInvoiced float64           `json:"total_invoiced"`
	DocumentCount int               `json:"document_count"`
	RecentJobs    []Job             `json:"recent_jobs"`
	LastSyncedAt  *time.Time        `json:"last_synced_at,omitempty"`
}
