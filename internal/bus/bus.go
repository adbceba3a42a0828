// Recommender - Engagement Platform Recommendation Service
// Copyright 2026 Loyaltyworks Engineering
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/loyaltyworks/recommender

// Package bus distributes application events to the recommendation engine.
//
// Events are named after the source application's domain ("friends.
// activityCompleted", "friends.badgeEarned") and carry entity references,
// not entity payloads: a handler re-reads the entity from the store before
// re-indexing, so a stale message can never write stale data over a newer
// document.
//
// The default transport is Watermill's in-process gochannel Pub/Sub; a
// NATS JetStream transport is available for multi-process deployments.
package bus

import (
	"context"
	"time"
)

// EntityRef identifies one source entity in an event payload.
type EntityRef struct {
	// Kind is the stable entity kind (matches store.Entity.EntityKind).
	Kind string `json:"kind"`

	// ID is the entity primary key.
	ID int64 `json:"id"`
}

// Event is one application event.
type Event struct {
	// ID uniquely identifies the event; Publish assigns one when empty.
	ID string `json:"id"`

	// Name is the event name, e.g. "friends.activityCompleted".
	Name string `json:"name"`

	// Refs are the entities the event concerns, in payload order.
	Refs []EntityRef `json:"refs"`

	// OccurredAt is when the event was emitted.
	OccurredAt time.Time `json:"occurred_at"`
}

// Handler consumes one event. A returned error is logged and the message
// is acknowledged anyway; event delivery to the index is best-effort and
// a full repopulate reconciles any loss.
type Handler func(ctx context.Context, evt Event) error

// Bus publishes and subscribes to application events.
type Bus interface {
	// Publish emits an event to all subscribers of its name.
	Publish(ctx context.Context, evt Event) error

	// Subscribe registers a handler for the named event. Multiple
	// handlers per name are allowed; each receives every event.
	Subscribe(name string, h Handler) error

	// Close stops delivery and releases transport resources.
	Close() error
}
