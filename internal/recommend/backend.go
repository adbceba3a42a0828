// Recommender - Engagement Platform Recommendation Service
// Copyright 2026 Loyaltyworks Engineering
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/loyaltyworks/recommender

package recommend

import (
	"context"
	"strconv"

	"github.com/loyaltyworks/recommender/internal/bus"
	"github.com/loyaltyworks/recommender/internal/store"
)

// Details carries admin-facing backend metadata.
type Details struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Result is an ordered mapping from item key to ranked source entities.
// The per-key order is the backend's relevance order and must survive
// hydration. Computed per request, never persisted.
type Result map[string][]store.Entity

// Backend is the capability set every search backend must implement.
//
// Exactly one backend is active per process. A backend receives the
// active item descriptors before Boot and holds references to them (not
// copies) for its lifetime.
type Backend interface {
	// Key is the unique backend identity.
	Key() string

	// Details returns admin-facing metadata.
	Details() Details

	// SettingsFields declares backend-specific configuration (index
	// name, host, ...) for admin surfaces.
	SettingsFields() []SettingField

	// PluginSettings returns SettingsFields with every key prefixed by
	// the lowercase backend key.
	PluginSettings() []SettingField

	// SetActiveItems hands the backend the active item descriptors.
	// Called by the manager before Boot.
	SetActiveItems(items map[string]*Descriptor)

	// Boot idempotently sets up the index schema for all active items.
	Boot(ctx context.Context) error

	// Update upserts the document of one source entity. Returns an
	// ItemNotFoundError when no active item matches the entity's kind.
	Update(ctx context.Context, e store.Entity) error

	// UpdateItemByID fetches the entity through the item's query scope
	// and delegates to Update.
	UpdateItemByID(ctx context.Context, itemKey string, id int64) error

	// Populate bulk (re)indexes all entities of the given items, or of
	// every active item when itemKeys is empty. Batch errors propagate
	// and abort the run.
	Populate(ctx context.Context, itemKeys []string) error

	// Clean deletes the whole index when itemKeys is empty, otherwise
	// only the named types. Connectivity errors surface hard here.
	Clean(ctx context.Context, itemKeys []string) error

	// Suggest runs the primary ranking algorithm per item key.
	// A per-key query failure degrades to an empty slice for that key.
	Suggest(ctx context.Context, user store.Entity, itemKeys []string, limit int) (Result, error)

	// TopItems ranks by popularity (breadth of the reverse user
	// relation) with weight as secondary key, excluding the user's
	// related entities when user is non-nil.
	TopItems(ctx context.Context, itemKeys []string, user store.Entity, limit int) (Result, error)

	// ItemsByWeight ranks by the configured weight field only.
	ItemsByWeight(ctx context.Context, itemKeys []string, user store.Entity, limit int) (Result, error)

	// BindUpdateEvents subscribes every active item's update triggers
	// on the event bus.
	BindUpdateEvents(b bus.Bus) error
}

// formatID renders an entity id the way documents and queries carry it.
func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}
