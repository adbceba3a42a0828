// Recommender - Engagement Platform Recommendation Service
// Copyright 2026 Loyaltyworks Engineering
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/loyaltyworks/recommender

// Package settings exposes the typed key/value configuration store the
// engine reads item and backend tuning from (activation flags, per-item
// recommendation limits, selected weight fields).
//
// Keys are flat lowercase strings prefixed by the owning item or backend
// key, e.g. "activity_active" or "activity_max_recommendations".
package settings

import (
	"strings"
	"sync"

	"github.com/knadh/koanf/v2"
)

// Store reads typed settings with a caller-supplied default for
// missing keys.
type Store interface {
	Bool(key string, def bool) bool
	Int(key string, def int) int
	String(key string, def string) string
	Strings(key string, def []string) []string
}

// Koanf adapts a koanf instance to the Store interface, usually the
// application configuration's "settings" subtree.
type Koanf struct {
	k *koanf.Koanf
}

// NewKoanf wraps a koanf instance. The instance is read-only here.
func NewKoanf(k *koanf.Koanf) *Koanf {
	return &Koanf{k: k}
}

// Bool implements Store.
func (s *Koanf) Bool(key string, def bool) bool {
	if !s.k.Exists(key) {
		return def
	}
	return s.k.Bool(key)
}

// Int implements Store.
func (s *Koanf) Int(key string, def int) int {
	if !s.k.Exists(key) {
		return def
	}
	return s.k.Int(key)
}

// String implements Store.
func (s *Koanf) String(key string, def string) string {
	if !s.k.Exists(key) {
		return def
	}
	return s.k.String(key)
}

// Strings implements Store.
func (s *Koanf) Strings(key string, def []string) []string {
	if !s.k.Exists(key) {
		return def
	}
	return s.k.Strings(key)
}

// Memory is a map-backed Store for tests and seed configurations.
// Safe for concurrent use.
type Memory struct {
	mu     sync.RWMutex
	values map[string]any
}

// NewMemory creates a Memory store from the given values (may be nil).
func NewMemory(values map[string]any) *Memory {
	if values == nil {
		values = make(map[string]any)
	}
	return &Memory{values: values}
}

// Set stores a value under a lowercased key.
func (m *Memory) Set(key string, value any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[strings.ToLower(key)] = value
}

// Bool implements Store.
func (m *Memory) Bool(key string, def bool) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if v, ok := m.values[key].(bool); ok {
		return v
	}
	return def
}

// Int implements Store.
func (m *Memory) Int(key string, def int) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	switch v := m.values[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return def
	}
}

// String implements Store.
func (m *Memory) String(key string, def string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if v, ok := m.values[key].(string); ok {
		return v
	}
	return def
}

// Strings implements Store.
func (m *Memory) Strings(key string, def []string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	switch v := m.values[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, e := range v {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return def
	}
}
