// Recommender - Engagement Platform Recommendation Service
// Copyright 2026 Loyaltyworks Engineering
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/loyaltyworks/recommender

package recommend

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/loyaltyworks/recommender/internal/search"
	"github.com/loyaltyworks/recommender/internal/store"
)

// DefaultLimit is the global fallback for the number of recommendations
// per item when neither the caller nor the item settings specify one.
const DefaultLimit = 5

// Field declares one indexed document field of an item.
type Field struct {
	// Name is the document field name.
	Name string

	// Type is the index datatype. Empty means analyzed text; any other
	// value ("keyword", "integer", "object", ...) is indexed verbatim
	// without an analyzer.
	Type string
}

// ExtractorFunc produces the indexed value of one field from a source
// entity. Extractors read through the store when a field derives from
// related data.
type ExtractorFunc func(ctx context.Context, q store.Query, e store.Entity) (any, error)

// FilterBuilderFunc produces the query clause for one declared filter.
// The clause is ANDed into every candidate query of the item.
type FilterBuilderFunc func() search.Query

// Trigger binds an application event to index maintenance. A nil Handler
// selects the backend's default behavior: re-index every event ref whose
// kind matches the item's source kind.
type Trigger struct {
	// Event is the event name to subscribe to.
	Event string

	// Handler, when non-nil, replaces the default re-index behavior.
	// It receives the backend and the item it was registered for; no
	// implicit context is captured.
	Handler func(ctx context.Context, b Backend, item *Descriptor, refs []EventRef) error
}

// EventRef mirrors bus.EntityRef without importing the transport package
// into the core contract.
type EventRef struct {
	Kind string
	ID   int64
}

// Descriptor declares one recommendable entity type.
//
// A descriptor is constructed once when the application registers its
// items and is immutable afterwards; the activation flag and the active
// field subsets are resolved from settings at registration time and
// never mutated later.
type Descriptor struct {
	// Key is the unique item identity. Lowercased at registration;
	// every lookup normalizes to lowercase.
	Key string

	// Name and Description feed admin-facing listings.
	Name        string
	Description string

	// SourceKind is the entity kind this item represents
	// (store.Entity.EntityKind).
	SourceKind string

	// AdminEditable items can be deactivated through settings;
	// non-editable items are always active.
	AdminEditable bool

	// Scope selects the source rows indexed for this item.
	Scope store.Scope

	// Features, Filters and WeightFeatures declare the indexed fields,
	// in that order of precedence for document layout.
	Features       []Field
	Filters        []Field
	WeightFeatures []Field

	// Relations maps a local relation field name to the related item
	// key, e.g. {"users": "user"} on the activity item.
	Relations map[string]string

	// StickyRules force-include matching documents regardless of
	// similarity, e.g. {"priority": 11}.
	StickyRules map[string]any

	// UpdateTriggers keep the index consistent with source changes.
	UpdateTriggers []Trigger

	// FieldExtractors override value extraction per field name.
	FieldExtractors map[string]ExtractorFunc

	// FilterBuilders build the query clause per declared filter name.
	// A filter without a builder contributes no clause.
	FilterBuilders map[string]FilterBuilderFunc

	// MappingHook merges backend-specific structural hints into the
	// derived mapping before schema writes.
	MappingHook func(m *search.Mapping)

	// SettingsFields declares item-specific settings beyond the common
	// set, for admin surfaces.
	SettingsFields []SettingField

	// Resolved at registration from settings; immutable afterwards.
	active             bool
	activeFeatures     []string
	activeFilters      []string
	activeWeight       string
	maxRecommendations int

	dataFields []Field // memoized DataFields
}

// SettingField describes one settings entry for admin surfaces.
type SettingField struct {
	Key     string   `json:"key"`
	Label   string   `json:"label"`
	Type    string   `json:"type"` // "checkbox", "number", "dropdown", "checkboxlist"
	Default any      `json:"default,omitempty"`
	Options []string `json:"options,omitempty"`
}

// Active reports whether the item participates in recommendations.
func (d *Descriptor) Active() bool { return d.active }

// ActiveFeatures returns the feature field names enabled by settings
// (all declared features by default).
func (d *Descriptor) ActiveFeatures() []string { return d.activeFeatures }

// ActiveFilters returns the filter names enabled by settings.
func (d *Descriptor) ActiveFilters() []string { return d.activeFilters }

// ActiveWeightFeature returns the configured boost field, or "" when the
// item declares none.
func (d *Descriptor) ActiveWeightFeature() string { return d.activeWeight }

// MaxRecommendations returns the per-item result limit, or 0 when the
// global default applies.
func (d *Descriptor) MaxRecommendations() int { return d.maxRecommendations }

// HasActiveFeature reports whether name is among the active features.
func (d *Descriptor) HasActiveFeature(name string) bool {
	for _, f := range d.activeFeatures {
		if f == name {
			return true
		}
	}
	return false
}

// RelationFieldTo returns the local field relating this item to the given
// item key, or "" when no such edge is declared.
func (d *Descriptor) RelationFieldTo(toKey string) string {
	toKey = strings.ToLower(toKey)
	for field, key := range d.Relations {
		if strings.ToLower(key) == toKey {
			return field
		}
	}
	return ""
}

// DataFields returns all declared fields in fixed order (features, then
// filters, then weight features), de-duplicated by name. The order is
// part of the document layout contract and must stay stable.
func (d *Descriptor) DataFields() []Field {
	if d.dataFields != nil {
		return d.dataFields
	}
	seen := make(map[string]struct{})
	var out []Field
	for _, group := range [][]Field{d.Features, d.Filters, d.WeightFeatures} {
		for _, f := range group {
			if _, dup := seen[f.Name]; dup {
				continue
			}
			seen[f.Name] = struct{}{}
			out = append(out, f)
		}
	}
	d.dataFields = out
	return out
}

// ItemData extracts the indexed document for one source entity.
//
// Per field, in order: an explicit extractor wins; a declared relation
// yields the distinct related primary keys through a projection (related
// rows are never materialized); otherwise the plain attribute is read.
// An extraction failure is logged with item and field context and yields
// nil for that field; one bad field never aborts the rest of the
// document.
func (d *Descriptor) ItemData(ctx context.Context, q store.Query, e store.Entity, logger zerolog.Logger) map[string]any {
	data := make(map[string]any, len(d.DataFields()))
	for _, f := range d.DataFields() {
		value, err := d.extractField(ctx, q, e, f.Name)
		if err != nil {
			logger.Error().
				Err(err).
				Str("item", d.Key).
				Str("field", f.Name).
				Int64("entity_id", e.EntityID()).
				Msg("field extraction failed, indexing null")
			value = nil
		}
		data[f.Name] = value
	}
	return data
}

func (d *Descriptor) extractField(ctx context.Context, q store.Query, e store.Entity, field string) (any, error) {
	if ex, ok := d.FieldExtractors[field]; ok {
		return ex(ctx, q, e)
	}
	if _, isRelation := d.Relations[field]; isRelation {
		ids, err := q.DistinctRelatedIDs(ctx, e, field)
		if err != nil {
			return nil, err
		}
		return int64Strings(ids), nil
	}
	v, _ := e.Attribute(field)
	return v, nil
}

// int64Strings renders ids as strings, the form they take in documents
// and in id-based queries.
func int64Strings(ids []int64) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = formatID(id)
	}
	return out
}

// commonSettingsFields is the settings schema every admin-editable item
// shares, before prefixing.
func commonSettingsFields(d *Descriptor) []SettingField {
	fields := []SettingField{
		{Key: "max_recommendations", Label: "Maximum limit of recommendations", Type: "number", Default: DefaultLimit},
		{Key: "active", Label: "Is active", Type: "checkbox", Default: true},
	}
	if names := fieldNames(d.Features); len(names) > 0 {
		fields = append(fields, SettingField{Key: "features", Label: "Features", Type: "checkboxlist", Options: names})
	}
	if names := fieldNames(d.Filters); len(names) > 0 {
		fields = append(fields, SettingField{Key: "filters", Label: "Filters", Type: "checkboxlist", Options: names})
	}
	if names := fieldNames(d.WeightFeatures); len(names) > 0 {
		fields = append(fields, SettingField{Key: "weight_by", Label: "Weight", Type: "dropdown", Options: names})
	}
	return fields
}

// PluginSettings returns the item's full settings schema with every key
// prefixed by the lowercase item key.
func (d *Descriptor) PluginSettings() []SettingField {
	combined := append(commonSettingsFields(d), d.SettingsFields...)
	prefix := strings.ToLower(d.Key) + "_"
	out := make([]SettingField, len(combined))
	for i, f := range combined {
		f.Key = prefix + f.Key
		out[i] = f
	}
	return out
}

func fieldNames(fields []Field) []string {
	var out []string
	for _, f := range fields {
		// Names starting with underscore are internal and hidden from
		// admin surfaces.
		if strings.HasPrefix(f.Name, "_") {
			continue
		}
		out = append(out, f.Name)
	}
	return out
}
