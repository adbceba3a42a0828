// Recommender - Engagement Platform Recommendation Service
// Copyright 2026 Loyaltyworks Engineering
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/loyaltyworks/recommender

package recommend

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/loyaltyworks/recommender/internal/bus"
	"github.com/loyaltyworks/recommender/internal/settings"
	"github.com/loyaltyworks/recommender/internal/store"
)

// Manager is the top-level orchestrator of the recommendation engine.
//
// It owns the item registry and the active backend reference, and is
// passed by dependency injection to every consumer (API handlers, CLI
// commands, jobs). Construct once during startup.
type Manager struct {
	registry *Registry
	settings settings.Store
	logger   zerolog.Logger

	backends     map[string]Backend
	backendOrder []string
	engine       Backend

	bindMu sync.Mutex
	bound  bool
}

// NewManager creates a manager with an empty registry.
func NewManager(s settings.Store, logger zerolog.Logger) *Manager {
	return &Manager{
		registry: NewRegistry(),
		settings: s,
		logger:   logger.With().Str("component", "recommend").Logger(),
		backends: make(map[string]Backend),
	}
}

// RegisterItems registers item descriptors. Must be called before
// RegisterBackends so the backend sees the full active set.
func (m *Manager) RegisterItems(descriptors ...*Descriptor) error {
	if err := m.registry.Register(m.settings, descriptors...); err != nil {
		return err
	}
	for _, d := range descriptors {
		m.logger.Debug().
			Str("item", d.Key).
			Bool("active", d.Active()).
			Msg("item registered")
	}
	return nil
}

// RegisterBackends registers backends and activates the last one
// registered, feeding it the active items and booting it.
//
// "Last registered wins" is a documented simplification, not a feature:
// only a single backend is ever configured in practice. Making the
// selection explicit configuration is the intended evolution.
func (m *Manager) RegisterBackends(ctx context.Context, backends ...Backend) error {
	for _, b := range backends {
		key := strings.ToLower(b.Key())
		m.backends[key] = b
		m.backendOrder = append(m.backendOrder, key)
		m.engine = b
	}
	if m.engine == nil {
		return nil
	}

	m.engine.SetActiveItems(m.registry.ActiveItems())
	if err := m.engine.Boot(ctx); err != nil {
		return fmt.Errorf("recommend: boot backend %q: %w", m.engine.Key(), err)
	}
	m.logger.Info().Str("backend", m.engine.Key()).Msg("backend activated")
	return nil
}

// RegisteredItems returns descriptors; excludeHidden filters to
// admin-editable items.
func (m *Manager) RegisteredItems(excludeHidden bool) []*Descriptor {
	return m.registry.Items(excludeHidden)
}

// RegisteredBackends returns all registered backends in registration order.
func (m *Manager) RegisteredBackends() []Backend {
	out := make([]Backend, 0, len(m.backendOrder))
	for _, key := range m.backendOrder {
		out = append(out, m.backends[key])
	}
	return out
}

// ActiveBackend returns the active backend, or nil when none registered.
func (m *Manager) ActiveBackend() Backend {
	return m.engine
}

// normalizeKeys resolves the requested item keys: nil or empty means all
// registered keys; keys are lowercased and unknown or inactive items are
// dropped.
func (m *Manager) normalizeKeys(itemKeys []string) []string {
	if len(itemKeys) == 0 {
		itemKeys = m.registry.Keys()
	}
	var out []string
	for _, key := range itemKeys {
		key = strings.ToLower(key)
		if d, ok := m.registry.Get(key); ok && d.Active() {
			out = append(out, key)
		}
	}
	return out
}

// Suggest returns ranked recommendations per item key for the user.
// Without an active backend it returns an empty result and no error;
// suggestions are best-effort by contract.
func (m *Manager) Suggest(ctx context.Context, user store.Entity, itemKeys []string, limit int) (Result, error) {
	if m.engine == nil {
		return Result{}, nil
	}
	return m.engine.Suggest(ctx, user, m.normalizeKeys(itemKeys), limit)
}

// TopItems returns the most popular entities per item key.
func (m *Manager) TopItems(ctx context.Context, itemKeys []string, user store.Entity, limit int) (Result, error) {
	if m.engine == nil {
		return Result{}, nil
	}
	return m.engine.TopItems(ctx, m.normalizeKeys(itemKeys), user, limit)
}

// ItemsByWeight returns entities ranked by their weight field per item key.
func (m *Manager) ItemsByWeight(ctx context.Context, itemKeys []string, user store.Entity, limit int) (Result, error) {
	if m.engine == nil {
		return Result{}, nil
	}
	return m.engine.ItemsByWeight(ctx, m.normalizeKeys(itemKeys), user, limit)
}

// BindEvents subscribes the active items' update triggers on the bus.
// Idempotent: subsequent calls are no-ops.
func (m *Manager) BindEvents(b bus.Bus) error {
	m.bindMu.Lock()
	defer m.bindMu.Unlock()
	if m.bound || m.engine == nil {
		return nil
	}
	if err := m.engine.BindUpdateEvents(b); err != nil {
		return err
	}
	m.bound = true
	return nil
}

// PopulateEngine bulk-indexes the given items (all active items when
// itemKeys is empty) into the active backend.
func (m *Manager) PopulateEngine(ctx context.Context, itemKeys []string) error {
	if m.engine == nil {
		return nil
	}
	return m.engine.Populate(ctx, itemKeys)
}

// CleanEngine deletes index data for the given items, or the whole index
// when itemKeys is empty.
func (m *Manager) CleanEngine(ctx context.Context, itemKeys []string) error {
	if m.engine == nil {
		return nil
	}
	return m.engine.Clean(ctx, itemKeys)
}

// UpdateItem re-indexes a single entity by item key and id.
func (m *Manager) UpdateItem(ctx context.Context, itemKey string, id int64) error {
	if m.engine == nil {
		return nil
	}
	return m.engine.UpdateItemByID(ctx, itemKey, id)
}
