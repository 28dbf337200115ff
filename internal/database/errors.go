// Fieldport - Field Service Customer Portal Sync Engine
// Copyright 2026 Fieldport Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fieldport/fieldport

package database

import "errors"

var (
	// ErrCustomerNotCached is returned when a write references a customer
	// row that does not exist yet. The sync orchestrator treats this as a
	// recoverable ordering violation and skips the item.
	ErrCustomerNotCached = errors.New("customer not present in cache store")

	// ErrJobNotCached is returned when a material or attachment references
	// a job row that does not exist yet.
	ErrJobNotCached = errors.New("job not present in cache store")

	// ErrApprovalNotFound is returned when a quote approval record lookup
	// matches nothing.
	ErrApprovalNotFound = errors.New("quote approval record not found")
)
