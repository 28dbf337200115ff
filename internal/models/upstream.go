// Fieldport - Field Service Customer Portal Sync Engine
// Copyright 2026 Fieldport Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fieldport/fieldport

package models

// Raw upstream payload variants. The upstream API is loosely typed, so every
// record is decoded into one of these tagged structs and must pass the entity
// validator before it is allowed into the cache store. The validate tags
// encode the shape rules; cross-field and enum checks live in
// internal/validation.

// CompanyPayload is the wire shape of an upstream company record.
type CompanyPayload struct {
	UUID    string `json:"uuid" validate:"required,uuid"`
	Name    string `json:"name" validate:"required"`
	Email   string `json:"email" validate:"omitempty,email"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
	Active  int    `json:"active" validate:"oneof=0 1"`
}

// JobPayload is the wire shape of an upstream job record.
type JobPayload struct {
	UUID          string  `json:"uuid" validate:"required,uuid"`
	CompanyUUID   string  `json:"company_uuid" validate:"required,uuid"`
	GeneratedID   string  `json:"generated_job_id"`
	Description   string  `json:"job_description"`
	Status        string  `json:"status" validate:"required"`
	Total         float64 `json:"total_invoice_amount" validate:"gte=0"`
	Address       string  `json:"job_address"`
	DateCreated   string  `json:"date_created"`
	DateModified  string  `json:"date_last_modified"`
	DateCompleted string  `json:"completion_date"`
}

// MaterialPayload is the wire shape of an upstream job material (line item).
type MaterialPayload struct {
	UUID        string  `json:"uuid" validate:"required,uuid"`
	JobUUID     string  `json:"job_uuid" validate:"required,uuid"`
	Name        string  `json:"name" validate:"required"`
	Quantity    float64 `json:"qty" validate:"gte=0"`
	UnitCost    float64 `json:"cost" validate:"gte=0"`
	TotalExTax  float64 `json:"total_ex_tax" validate:"gte=0"`
	TotalIncTax float64 `json:"total_inc_tax" validate:"gte=0"`
}

// AttachmentPayload is the wire shape of an upstream job attachment.
type AttachmentPayload struct {
	UUID        string `json:"uuid" validate:"required,uuid"`
	RelatedUUID string `json:"related_object_uuid" validate:"required,uuid"`
	FileName    string `json:"attachment_name" validate:"required"`
	FileType    string `json:"file_type"`
	SizeBytes   int64  `json:"file_size" validate:"gte=0"`
	Source      string `json:"attachment_source" validate:"required"`
	DateCreated string `json:"timestamp"`
}

// ApproveQuoteRequest is the wire body of the upstream approve-quote write.
type ApproveQuoteRequest struct {
	Approved  bool   `json:"approved"`
	Signature string `json:"signature,omitempty"`
	Notes     string `json:"notes,omitempty"`
}

// JobNoteRequest is the wire body of the upstream add-job-note write.
type JobNoteRequest struct {
	JobUUID string `json:"job_uuid"`
	Note    string `json:"note"`
}

// JobStatusRequest is the wire body of the upstream update-job-status write.
type JobStatusRequest struct {
	Status string `json:"status"`
}
