// Recommender - Engagement Platform Recommendation Service
// Copyright 2026 Loyaltyworks Engineering
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/loyaltyworks/recommender

package store

import (
	"context"
	"fmt"
	"sync"
)

// Memory is an in-memory Query implementation.
//
// It keeps insertion order per kind so Page is deterministic, which the
// tests rely on. Safe for concurrent use.
type Memory struct {
	mu     sync.RWMutex
	byKind map[string]map[int64]Entity
	order  map[string][]int64
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		byKind: make(map[string]map[int64]Entity),
		order:  make(map[string][]int64),
	}
}

// Add inserts or replaces entities keyed by kind and id.
func (m *Memory) Add(entities ...Entity) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range entities {
		kind := e.EntityKind()
		if m.byKind[kind] == nil {
			m.byKind[kind] = make(map[int64]Entity)
		}
		if _, exists := m.byKind[kind][e.EntityID()]; !exists {
			m.order[kind] = append(m.order[kind], e.EntityID())
		}
		m.byKind[kind][e.EntityID()] = e
	}
}

// matches reports whether e satisfies every exact-match condition in where.
func matches(e Entity, where map[string]any) bool {
	for field, want := range where {
		got, ok := e.Attribute(field)
		if !ok {
			return false
		}
		if fmt.Sprintf("%v", got) != fmt.Sprintf("%v", want) {
			return false
		}
	}
	return true
}

// scoped returns entities of the scope's kind matching its conditions,
// in insertion order. Caller must hold at least a read lock.
func (m *Memory) scoped(scope Scope) []Entity {
	var out []Entity
	for _, id := range m.order[scope.Kind] {
		e := m.byKind[scope.Kind][id]
		if matches(e, scope.Where) {
			out = append(out, e)
		}
	}
	return out
}

// Count implements Query.
func (m *Memory) Count(_ context.Context, scope Scope) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.scoped(scope))), nil
}

// Page implements Query.
func (m *Memory) Page(_ context.Context, scope Scope, offset, size int) ([]Entity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	all := m.scoped(scope)
	if offset >= len(all) {
		return nil, nil
	}
	end := offset + size
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

// FindByID implements Query.
func (m *Memory) FindByID(_ context.Context, kind string, id int64) (Entity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.byKind[kind][id]
	if !ok {
		return nil, fmt.Errorf("%w: kind %q id %d", ErrNotFound, kind, id)
	}
	return e, nil
}

// FindByIDs implements Query. Missing ids are skipped, order not guaranteed.
func (m *Memory) FindByIDs(_ context.Context, kind string, ids []int64) ([]Entity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Entity
	for _, id := range ids {
		if e, ok := m.byKind[kind][id]; ok {
			out = append(out, e)
		}
	}
	return out, nil
}

// DistinctRelatedIDs implements Query. The in-memory store reads the
// relation field directly off the entity; it must hold []int64.
func (m *Memory) DistinctRelatedIDs(_ context.Context, e Entity, relationField string) ([]int64, error) {
	v, ok := e.Attribute(relationField)
	if !ok {
		return nil, fmt.Errorf("store: entity kind %q has no relation field %q", e.EntityKind(), relationField)
	}
	ids, ok := v.([]int64)
	if !ok {
		return nil, fmt.Errorf("store: relation field %q on kind %q is not an id list", relationField, e.EntityKind())
	}
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out, nil
}
