// Fieldport - Field Service Customer Portal Sync Engine
// Copyright 2026 Fieldport Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fieldport/fieldport

package validation

import (
	"fmt"
	"strings"
	"time"

	"github.com/fieldport/fieldport/internal/models"
)

// Result is the outcome of validating one upstream record. A record with a
// non-empty Errors slice must not enter the cache store; Warnings are
// informational (the record is still stored).
type Result struct {
	Valid    bool
	Errors   []string
	Warnings []string
}

func (r *Result) addError(format string, args ...interface{}) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
	r.Valid = false
}

func (r *Result) addWarning(format string, args ...interface{}) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// upstreamTimeLayouts are the timestamp formats the vendor emits, most
// common first.
var upstreamTimeLayouts = []string{
	"2006-01-02 15:04:05",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// parseUpstreamTime parses a vendor timestamp. The zero time and false are
// returned for empty or unparsable input.
func parseUpstreamTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" || s == "0000-00-00 00:00:00" {
		return time.Time{}, false
	}
	for _, layout := range upstreamTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Customer validates and sanitizes a company payload. Sanitization (trimmed
// strings, lower-cased email) is applied regardless of validity.
func Customer(p models.CompanyPayload) (models.Customer, Result) {
	result := Result{Valid: true}

	if verr := ValidateStruct(&p); verr != nil {
		for _, fe := range verr.Errors() {
			result.addError("customer %s: %s", p.UUID, fe.Error())
		}
	}

	customer := models.Customer{
		UUID:    strings.TrimSpace(p.UUID),
		Name:    strings.TrimSpace(p.Name),
		Email:   strings.ToLower(strings.TrimSpace(p.Email)),
		Phone:   strings.TrimSpace(p.Phone),
		Address: strings.TrimSpace(p.Address),
		Active:  p.Active == 1,
	}

	if customer.Name == "" && p.Name != "" {
		result.addWarning("customer %s: name is whitespace only", p.UUID)
	}

	return customer, result
}

// Job validates and sanitizes a job payload. Unknown status values are an
// error, never coerced.
func Job(p models.JobPayload) (models.Job, Result) {
	result := Result{Valid: true}

	if verr := ValidateStruct(&p); verr != nil {
		for _, fe := range verr.Errors() {
			result.addError("job %s: %s", p.UUID, fe.Error())
		}
	}

	status := models.JobStatus(strings.TrimSpace(p.Status))
	if p.Status != "" && !status.Valid() {
		result.addError("job %s: unknown status %q", p.UUID, p.Status)
	}

	job := models.Job{
		UUID:         strings.TrimSpace(p.UUID),
		CustomerUUID: strings.TrimSpace(p.CompanyUUID),
		Number:       strings.TrimSpace(p.GeneratedID),
		Description:  strings.TrimSpace(p.Description),
		Status:       status,
		Total:        p.Total,
		Address:      strings.TrimSpace(p.Address),
	}

	if t, ok := parseUpstreamTime(p.DateCreated); ok {
		job.CreatedAt = t
	} else if p.DateCreated != "" {
		result.addWarning("job %s: unparsable creation date %q", p.UUID, p.DateCreated)
	}
	if t, ok := parseUpstreamTime(p.DateModified); ok {
		job.ModifiedAt = t
	} else if p.DateModified != "" {
		result.addWarning("job %s: unparsable modification date %q", p.UUID, p.DateModified)
	}
	if t, ok := parseUpstreamTime(p.DateCompleted); ok {
		job.CompletedAt = &t
	}

	return job, result
}

// Material validates and sanitizes a job material payload.
func Material(p models.MaterialPayload) (models.JobMaterial, Result) {
	result := Result{Valid: true}

	if verr := ValidateStruct(&p); verr != nil {
		for _, fe := range verr.Errors() {
			result.addError("material %s: %s", p.UUID, fe.Error())
		}
	}

	material := models.JobMaterial{
		UUID:        strings.TrimSpace(p.UUID),
		JobUUID:     strings.TrimSpace(p.JobUUID),
		Name:        strings.TrimSpace(p.Name),
		Quantity:    p.Quantity,
		UnitCost:    p.UnitCost,
		TotalExTax:  p.TotalExTax,
		TotalIncTax: p.TotalIncTax,
	}

	if material.TotalIncTax != 0 && material.TotalIncTax < material.TotalExTax {
		result.addWarning("material %s: tax-inclusive total below tax-exclusive total", p.UUID)
	}

	return material, result
}

// Attachment validates and sanitizes an attachment payload. File type is
// lower-cased for storage; unknown source categories are an error.
func Attachment(p models.AttachmentPayload) (models.Attachment, Result) {
	result := Result{Valid: true}

	if verr := ValidateStruct(&p); verr != nil {
		for _, fe := range verr.Errors() {
			result.addError("attachment %s: %s", p.UUID, fe.Error())
		}
	}

	source := models.AttachmentSource(strings.TrimSpace(p.Source))
	if p.Source != "" && !source.Valid() {
		result.addError("attachment %s: unknown source %q", p.UUID, p.Source)
	}

	attachment := models.Attachment{
		UUID:      strings.TrimSpace(p.UUID),
		JobUUID:   strings.TrimSpace(p.RelatedUUID),
		FileName:  strings.TrimSpace(p.FileName),
		FileType:  strings.ToLower(strings.TrimSpace(p.FileType)),
		SizeBytes: p.SizeBytes,
		Source:    source,
	}

	if t, ok := parseUpstreamTime(p.DateCreated); ok {
		attachment.CreatedAt = t
	}

	return attachment, result
}
