// Recommender - Engagement Platform Recommendation Service
// Copyright 2026 Loyaltyworks Engineering
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/loyaltyworks/recommender

package search

// FieldMapping describes how one document field is indexed.
type FieldMapping struct {
	// Type is the index datatype ("text", "keyword", "integer",
	// "object", ...). Defaults to analyzed text upstream.
	Type string `json:"type"`

	// Analyzer applies to text fields only.
	Analyzer string `json:"analyzer,omitempty"`
}

// Mapping is the schema of one document type.
type Mapping struct {
	Properties map[string]FieldMapping `json:"properties"`

	// Extra carries backend-specific structural hints merged in by item
	// mapping hooks (for example dynamic field-pattern rules). Compared
	// only by key presence.
	Extra map[string]any `json:"-"`
}

// PropertiesEqual reports whether both mappings index the same fields the
// same way. Extra hints are excluded: they are write-only advice to the
// backend, and comparing them would force spurious mapping updates.
func (m Mapping) PropertiesEqual(other Mapping) bool {
	if len(m.Properties) != len(other.Properties) {
		return false
	}
	for name, fm := range m.Properties {
		if other.Properties[name] != fm {
			return false
		}
	}
	return true
}
