// Recommender - Engagement Platform Recommendation Service
// Copyright 2026 Loyaltyworks Engineering
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/loyaltyworks/recommender

package recommend

import (
	"fmt"
	"strings"

	"github.com/loyaltyworks/recommender/internal/settings"
)

// Registry holds the registered item descriptors keyed by lowercase key.
//
// Registration happens once during startup; the registry is read-only
// afterwards and safe for concurrent reads without locking.
type Registry struct {
	items map[string]*Descriptor
	order []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{items: make(map[string]*Descriptor)}
}

// Register adds descriptors, resolving their activation and active field
// subsets from settings. A key collision after lowercasing returns
// ErrDuplicateItemKey; startup must treat that as fatal.
func (r *Registry) Register(s settings.Store, descriptors ...*Descriptor) error {
	for _, d := range descriptors {
		key := strings.ToLower(d.Key)
		if key == "" {
			return fmt.Errorf("recommend: descriptor with empty key (source kind %q)", d.SourceKind)
		}
		if _, exists := r.items[key]; exists {
			return fmt.Errorf("%w: %q", ErrDuplicateItemKey, key)
		}
		d.Key = key
		resolveSettings(d, s)
		r.items[key] = d
		r.order = append(r.order, key)
	}
	return nil
}

// resolveSettings fixes the settings-derived state of a descriptor.
// Called exactly once per descriptor, at registration.
func resolveSettings(d *Descriptor, s settings.Store) {
	d.active = s.Bool(d.Key+"_active", true)
	if !d.AdminEditable {
		// Non-editable items cannot be switched off through settings.
		d.active = true
	}

	d.activeFeatures = s.Strings(d.Key+"_features", fieldNames(d.Features))
	d.activeFilters = s.Strings(d.Key+"_filters", fieldNames(d.Filters))

	defaultWeight := ""
	if names := fieldNames(d.WeightFeatures); len(names) > 0 {
		defaultWeight = names[0]
	}
	d.activeWeight = s.String(d.Key+"_weight_by", defaultWeight)

	d.maxRecommendations = s.Int(d.Key+"_max_recommendations", 0)
}

// Get returns the descriptor for a key (lowercased), active or not.
func (r *Registry) Get(key string) (*Descriptor, bool) {
	d, ok := r.items[strings.ToLower(key)]
	return d, ok
}

// Items returns registered descriptors in registration order. When
// excludeHidden is true only admin-editable items are returned; admin
// surfaces use that to build item lists.
func (r *Registry) Items(excludeHidden bool) []*Descriptor {
	out := make([]*Descriptor, 0, len(r.order))
	for _, key := range r.order {
		d := r.items[key]
		if excludeHidden && !d.AdminEditable {
			continue
		}
		out = append(out, d)
	}
	return out
}

// Keys returns all registered keys in registration order.
func (r *Registry) Keys() []string {
	return append([]string(nil), r.order...)
}

// ActiveItems returns the active descriptors keyed by item key. The
// returned map feeds the backend at registration; it is not retained by
// the registry.
func (r *Registry) ActiveItems() map[string]*Descriptor {
	out := make(map[string]*Descriptor)
	for key, d := range r.items {
		if d.active {
			out[key] = d
		}
	}
	return out
}
