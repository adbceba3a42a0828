// Recommender - Engagement Platform Recommendation Service
// Copyright 2026 Loyaltyworks Engineering
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/loyaltyworks/recommender

package searchengine

import (
	"github.com/loyaltyworks/recommender/internal/recommend"
	"github.com/loyaltyworks/recommender/internal/search"
)

// deriveMapping builds the document-type mapping from the item's declared
// data fields. Fields default to analyzed text; a declared non-text type
// is passed through without an analyzer. The item's mapping hook runs
// last and may override anything.
func deriveMapping(d *recommend.Descriptor) search.Mapping {
	m := search.Mapping{Properties: make(map[string]search.FieldMapping)}
	for _, f := range d.DataFields() {
		switch f.Type {
		case "", "text":
			m.Properties[f.Name] = search.FieldMapping{Type: "text", Analyzer: "standard"}
		default:
			m.Properties[f.Name] = search.FieldMapping{Type: f.Type}
		}
	}
	if d.MappingHook != nil {
		d.MappingHook(&m)
	}
	return m
}
