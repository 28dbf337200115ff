// Fieldport - Field Service Customer Portal Sync Engine
// Copyright 2026 Fieldport Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fieldport/fieldport

// Package webhook turns upstream change notifications into cache
// invalidation. Events mark the owning customer's sync marker stale so the
// next read-through access refreshes, and drop the affected entries from
// the short-TTL response cache. Delivery is at-least-once, so webhook IDs
// are remembered for a configurable window and duplicates dropped.
package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fieldport/fieldport/internal/cache"
	"github.com/fieldport/fieldport/internal/config"
	"github.com/fieldport/fieldport/internal/database"
	"github.com/fieldport/fieldport/internal/logging"
	"github.com/fieldport/fieldport/internal/metrics"
	"github.com/fieldport/fieldport/internal/models"
)

// ErrUnknownEventType means the event names a family or action the
// receiver does not recognize.
var ErrUnknownEventType = errors.New("unknown webhook event type")

const defaultDedupeWindow = 10 * time.Minute

var eventFamilies = map[string]bool{
	"company":     true,
	"job":         true,
	"jobmaterial": true,
	"attachment":  true,
	"payment":     true,
}

var eventActions = map[string]bool{
	"created": true,
	"updated": true,
	"deleted": true,
}

// Resolver maps an event's object back to the customer whose cache it
// affects.
type Resolver interface {
	GetJob(ctx context.Context, uuid string) (*models.Job, error)
	JobForMaterial(ctx context.Context, materialUUID string) (string, error)
	JobForAttachment(ctx context.Context, attachmentUUID string) (string, error)
	MarkStale(ctx context.Context, customerUUID string) error
}

// ResponseCache is the slice of the upstream response cache the
// invalidator clears.
type ResponseCache interface {
	InvalidateJob(jobUUID string)
	InvalidateCompany(companyUUID string)
}

// Syncer optionally refreshes a customer immediately after invalidation.
type Syncer interface {
	SyncCustomer(ctx context.Context, customerUUID string) error
}

// Invalidator processes verified webhook events.
type Invalidator struct {
	resolver  Resolver
	responses ResponseCache
	syncer    Syncer
	secret    []byte
	trigger   bool
	dedupe    *cache.Cache
}

func NewInvalidator(resolver Resolver, responses ResponseCache, syncer Syncer, cfg *config.WebhookConfig) *Invalidator {
	window := defaultDedupeWindow
	var secret []byte
	trigger := false
	if cfg != nil {
		if cfg.DedupeWindow > 0 {
			window = cfg.DedupeWindow
		}
		if cfg.Secret != "" {
			secret = []byte(cfg.Secret)
		}
		trigger = cfg.TriggerSync
	}
	return &Invalidator{
		resolver:  resolver,
		responses: responses,
		syncer:    syncer,
		secret:    secret,
		trigger:   trigger,
		dedupe:    cache.New(window, "webhook_dedupe"),
	}
}

// Close releases the dedupe cache.
func (inv *Invalidator) Close() {
	inv.dedupe.Close()
}

// VerifySignature checks the HMAC-SHA256 hex signature over the raw
// request body. Verification passes trivially when no secret is
// configured.
func (inv *Invalidator) VerifySignature(body []byte, signature string) bool {
	if len(inv.secret) == 0 {
		return true
	}
	mac := hmac.New(sha256.New, inv.secret)
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(strings.TrimSpace(signature))))
}

// Process invalidates cached data affected by one event. Unknown event
// types are rejected; events for objects not cached locally are harmless
// no-ops picked up by the next full sync.
func (inv *Invalidator) Process(ctx context.Context, event *models.WebhookEvent) error {
	family, action, err := splitEventType(event.EventType)
	if err != nil {
		metrics.WebhookEventsRejected.WithLabelValues("unknown_type").Inc()
		return err
	}

	if event.WebhookID != "" {
		if _, seen := inv.dedupe.Get(event.WebhookID); seen {
			metrics.WebhookEventsRejected.WithLabelValues("duplicate").Inc()
			logging.Debug().Str("webhook_id", event.WebhookID).Msg("Duplicate webhook delivery dropped")
			return nil
		}
		inv.dedupe.Set(event.WebhookID, struct{}{})
	}

	metrics.WebhookEventsTotal.WithLabelValues(family, action).Inc()

	customerUUID, err := inv.invalidate(ctx, family, event.ObjectUUID)
	if err != nil {
		return err
	}
	if customerUUID == "" {
		logging.Debug().
			Str("event_type", event.EventType).
			Str("object", event.ObjectUUID).
			Msg("Webhook object not cached, nothing to invalidate")
		return nil
	}

	if err := inv.resolver.MarkStale(ctx, customerUUID); err != nil {
		return fmt.Errorf("mark customer %s stale: %w", customerUUID, err)
	}
	logging.Info().
		Str("event_type", event.EventType).
		Str("customer", customerUUID).
		Msg("Cache invalidated by webhook")

	if inv.trigger && inv.syncer != nil {
		// Detached: the webhook response must not wait on a full run.
		go func() {
			syncCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Minute)
			defer cancel()
			if err := inv.syncer.SyncCustomer(syncCtx, customerUUID); err != nil {
				logging.Warn().Err(err).Str("customer", customerUUID).Msg("Webhook-triggered sync failed")
			}
		}()
	}
	return nil
}

// invalidate clears response-cache entries and resolves the owning
// customer. An empty customer UUID means the object is unknown locally.
func (inv *Invalidator) invalidate(ctx context.Context, family, objectUUID string) (string, error) {
	switch family {
	case "company":
		inv.responses.InvalidateCompany(objectUUID)
		return objectUUID, nil

	case "job", "payment":
		inv.responses.InvalidateJob(objectUUID)
		job, err := inv.resolver.GetJob(ctx, objectUUID)
		if errors.Is(err, database.ErrJobNotCached) {
			return "", nil
		}
		if err != nil {
			return "", err
		}
		return job.CustomerUUID, nil

	case "jobmaterial":
		jobUUID, err := inv.resolver.JobForMaterial(ctx, objectUUID)
		if errors.Is(err, database.ErrJobNotCached) {
			return "", nil
		}
		if err != nil {
			return "", err
		}
		return inv.customerForJob(ctx, jobUUID)

	case "attachment":
		jobUUID, err := inv.resolver.JobForAttachment(ctx, objectUUID)
		if errors.Is(err, database.ErrJobNotCached) {
			return "", nil
		}
		if err != nil {
			return "", err
		}
		return inv.customerForJob(ctx, jobUUID)
	}
	return "", nil
}

func (inv *Invalidator) customerForJob(ctx context.Context, jobUUID string) (string, error) {
	inv.responses.InvalidateJob(jobUUID)
	job, err := inv.resolver.GetJob(ctx, jobUUID)
	if errors.Is(err, database.ErrJobNotCached) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return job.CustomerUUID, nil
}

func splitEventType(eventType string) (family, action string, err error) {
	family, action, ok := strings.Cut(eventType, ".")
	if !ok || !eventFamilies[family] || !eventActions[action] {
		return "", "", fmt.Errorf("%w: %q", ErrUnknownEventType, eventType)
	}
	return family, action, nil
}
