// Fieldport - Field Service Customer Portal Sync Engine
// Copyright 2026 Fieldport Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fieldport/fieldport

// Package query provides SQL query building utilities for the database package.
// It reduces code duplication and provides type-safe query construction.
package query

import (
	"fmt"
	"strings"
	"time"

	"github.com/fieldport/fieldport/internal/models"
)

// WhereBuilder constructs SQL WHERE clauses with parameterized arguments.
// It ensures consistent parameter handling and reduces SQL injection risks.
//
// Example usage:
//
//	wb := query.NewWhereBuilder()
//	wb.AddClause("customer_uuid = ?", customerUUID)
//	wb.AddStatuses([]models.JobStatus{models.JobStatusInvoice})
//	whereClause, args := wb.Build()
//	// WHERE customer_uuid = ? AND status IN (?)
type WhereBuilder struct {
	clauses []string
	args    []interface{}
}

// NewWhereBuilder creates a new WhereBuilder instance.
func NewWhereBuilder() *WhereBuilder {
	return &WhereBuilder{
		clauses: []string{},
		args:    []interface{}{},
	}
}

// AddClause adds a raw WHERE clause with its arguments.
// This is useful for custom conditions not covered by helper methods.
//
// Parameters:
//   - clause: SQL condition fragment (e.g., "customer_uuid = ?")
//   - args: Arguments to bind to placeholders in the clause
func (wb *WhereBuilder) AddClause(clause string, args ...interface{}) *WhereBuilder {
	wb.clauses = append(wb.clauses, clause)
	wb.args = append(wb.args, args...)
	return wb
}

// AddCreatedRange adds lower and/or upper creation-date filters to the
// WHERE clause. Nil dates are skipped, allowing open-ended ranges.
//
// Generates:
//   - "created_at >= ?" if from is non-nil
//   - "created_at <= ?" if to is non-nil
func (wb *WhereBuilder) AddCreatedRange(from, to *time.Time) *WhereBuilder {
	if from != nil {
		wb.clauses = append(wb.clauses, "created_at >= ?")
		wb.args = append(wb.args, *from)
	}
	if to != nil {
		wb.clauses = append(wb.clauses, "created_at <= ?")
		wb.args = append(wb.args, *to)
	}
	return wb
}

// AddStatuses adds a job status filter using IN clause.
// Generates "status IN (?, ?, ...)" with proper parameterization.
// An empty slice is skipped so the filter stays optional.
func (wb *WhereBuilder) AddStatuses(statuses []models.JobStatus) *WhereBuilder {
	if len(statuses) > 0 {
		placeholders := make([]string, len(statuses))
		for i, status := range statuses {
			placeholders[i] = "?"
			wb.args = append(wb.args, string(status))
		}
		wb.clauses = append(wb.clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ", ")))
	}
	return wb
}

// AddUUIDs adds a UUID filter using IN clause, for scoping a query to a
// known set of entity identifiers.
func (wb *WhereBuilder) AddUUIDs(uuids []string) *WhereBuilder {
	if len(uuids) > 0 {
		placeholders := make([]string, len(uuids))
		for i, id := range uuids {
			placeholders[i] = "?"
			wb.args = append(wb.args, id)
		}
		wb.clauses = append(wb.clauses, fmt.Sprintf("uuid IN (%s)", strings.Join(placeholders, ", ")))
	}
	return wb
}

// Build constructs the final WHERE clause and returns it with arguments.
// Clauses are joined with "AND". Returns ("1=1", []) if no clauses were added.
//
// Returns:
//   - string: Complete WHERE clause (without "WHERE" keyword)
//   - []interface{}: Arguments to bind to placeholders
func (wb *WhereBuilder) Build() (string, []interface{}) {
	if len(wb.clauses) == 0 {
		return "1=1", []interface{}{}
	}
	return strings.Join(wb.clauses, " AND "), wb.args
}

// BuildWithPrefix returns the WHERE clause with "WHERE " prefix.
// Useful for direct SQL construction without manual prefix addition.
func (wb *WhereBuilder) BuildWithPrefix() (string, []interface{}) {
	whereClause, args := wb.Build()
	return "WHERE " + whereClause, args
}

// Count returns the number of clauses added to the builder.
func (wb *WhereBuilder) Count() int {
	return len(wb.clauses)
}

// IsEmpty returns true if no clauses have been added.
func (wb *WhereBuilder) IsEmpty() bool {
	return len(wb.clauses) == 0
}
