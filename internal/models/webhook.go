// Fieldport - Field Service Customer Portal Sync Engine
// Copyright 2026 Fieldport Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fieldport/fieldport

package models

import "time"

// WebhookEvent is the inbound upstream webhook payload. Delivery is
// at-least-once; WebhookID (when present) lets the receiver drop duplicates.
type WebhookEvent struct {
	EventType  string     `json:"event_type" validate:"required"`
	ObjectUUID string     `json:"object_uuid" validate:"required,uuid"`
	Timestamp  *time.Time `json:"timestamp,omitempty"`
	WebhookID  string     `json:"webhook_id,omitempty"`
}
