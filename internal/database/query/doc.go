// Fieldport - Field Service Customer Portal Sync Engine
// Copyright 2026 Fieldport Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fieldport/fieldport

// Package query provides SQL query building utilities for the database package.
//
// This package reduces code duplication and provides type-safe query construction
// for parameterized SQL WHERE clauses. It ensures consistent parameter handling
// and prevents SQL injection vulnerabilities.
//
// # Overview
//
// The WhereBuilder is the primary component, providing a fluent interface for
// constructing WHERE clauses with properly parameterized queries:
//
//	wb := query.NewWhereBuilder()
//	wb.AddClause("customer_uuid = ?", customerUUID)
//	wb.AddStatuses([]models.JobStatus{models.JobStatusInvoice, models.JobStatusComplete})
//	wb.AddCreatedRange(from, to)
//	whereClause, args := wb.Build()
//	// Result: "customer_uuid = ? AND status IN (?, ?) AND created_at >= ? AND created_at <= ?"
//
// # Usage Example
//
// Building a filtered job listing:
//
//	func JobsForCustomer(ctx context.Context, customerUUID string, filter *JobFilter) ([]models.Job, error) {
//	    wb := query.NewWhereBuilder()
//	    wb.AddClause("customer_uuid = ?", customerUUID)
//	    if filter != nil {
//	        wb.AddStatuses(filter.Statuses)
//	        wb.AddCreatedRange(filter.CreatedFrom, filter.CreatedTo)
//	    }
//	    whereClause, args := wb.BuildWithPrefix()
//
//	    sql := fmt.Sprintf("SELECT ... FROM jobs %s ORDER BY updated_at DESC", whereClause)
//	    rows, err := db.QueryContext(ctx, sql, args...)
//	    // ...
//	}
//
// # Available Filter Methods
//
// The WhereBuilder provides methods for common filter types:
//
//   - AddCreatedRange: Filters by created_at date range
//   - AddStatuses: Filters by job status list (IN clause)
//   - AddUUIDs: Filters by entity UUID list (IN clause)
//   - AddClause: Adds custom WHERE clause with parameters
//
// Helper methods skip zero-value inputs (nil dates, empty slices), so callers
// can pass optional filters through without branching at every call site.
//
// # SQL Injection Prevention
//
// All methods use parameterized queries with ? placeholders:
//
//	// Safe - parameters are properly escaped by the database driver
//	wb.AddUUIDs(userInput)  // Generates: "uuid IN (?, ?)"
//
//	// The generated SQL is safe regardless of input content
//	// Never concatenate user input directly into SQL strings
//
// # Thread Safety
//
// WhereBuilder instances are not thread-safe. Create a new instance per query
// or protect concurrent access with appropriate synchronization.
//
// # See Also
//
//   - internal/database: Main database package using this builder
//   - internal/models: Filter types used with the builder
package query
