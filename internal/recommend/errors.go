// Recommender - Engagement Platform Recommendation Service
// Copyright 2026 Loyaltyworks Engineering
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/loyaltyworks/recommender

package recommend

import (
	"errors"
	"fmt"
)

// ErrBackendUnavailable indicates the search service cannot be reached.
// Read paths degrade to empty results; destructive operations surface it.
var ErrBackendUnavailable = errors.New("recommend: backend unavailable")

// ErrDuplicateItemKey is returned when two descriptors collide on the
// same lowercase key. Registration fails fast; this is a wiring bug.
var ErrDuplicateItemKey = errors.New("recommend: duplicate item key")

// ItemNotFoundError indicates no active item is registered for a key or
// source entity kind.
type ItemNotFoundError struct {
	// Key is the item key that was looked up, if any.
	Key string

	// Kind is the source entity kind that was looked up, if any.
	Kind string
}

func (e *ItemNotFoundError) Error() string {
	if e.Kind != "" {
		return fmt.Sprintf("recommend: no active item for entity kind %q", e.Kind)
	}
	return fmt.Sprintf("recommend: no active item with key %q", e.Key)
}

// IsItemNotFound reports whether err is an ItemNotFoundError.
func IsItemNotFound(err error) bool {
	var infe *ItemNotFoundError
	return errors.As(err, &infe)
}

// RelationNotFoundError indicates the item graph lacks a declared relation
// edge between two items. This is a configuration bug, surfaced rather
// than silently defaulted.
type RelationNotFoundError struct {
	FromKey string
	ToKey   string
}

func (e *RelationNotFoundError) Error() string {
	return fmt.Sprintf("recommend: item %q declares no relation to item %q", e.FromKey, e.ToKey)
}

// SchemaConflictError indicates the search service rejected a mapping
// update. The existing index continues to serve; a populate into a fresh
// index is the remediation.
type SchemaConflictError struct {
	ItemKey string
	Err     error
}

func (e *SchemaConflictError) Error() string {
	return fmt.Sprintf("recommend: mapping update rejected for item %q: %v", e.ItemKey, e.Err)
}

func (e *SchemaConflictError) Unwrap() error { return e.Err }
