// Recommender - Engagement Platform Recommendation Service
// Copyright 2026 Loyaltyworks Engineering
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/loyaltyworks/recommender

// Package store defines the read-only boundary to source-of-truth data.
//
// The recommendation engine never owns persistence of source entities; it
// reads them through the Query interface to build index documents and to
// hydrate search results. Two implementations ship in this package: an
// in-memory store used by tests and local runs, and a SQL adapter backed
// by database/sql (DuckDB in the default deployment).
package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned when an entity does not exist in the store.
var ErrNotFound = errors.New("store: entity not found")

// Entity is implemented by every source model the engine can index.
//
// EntityKind returns a stable, process-independent kind string (for example
// "friends.activity") used to match entities to registered recommendation
// items. Attribute exposes declared fields by name without reflection.
type Entity interface {
	// EntityID returns the primary key of the entity.
	EntityID() int64

	// EntityKind returns the stable kind identifier of the entity.
	EntityKind() string

	// Attribute returns a named field value. The second return is false
	// when the entity does not declare the field.
	Attribute(name string) (any, bool)
}

// Scope narrows which rows of a kind a query touches.
//
// Where holds exact-match conditions applied by the adapter (for example
// {"is_published": true}). A zero Where matches all rows of the kind.
type Scope struct {
	Kind  string
	Where map[string]any
}

// Query is the read interface consumed by the recommendation engine.
//
// FindByIDs makes no ordering guarantee; callers that need a specific order
// (for example to preserve search relevance) must reorder the result.
type Query interface {
	// Count returns the number of entities matching the scope.
	Count(ctx context.Context, scope Scope) (int64, error)

	// Page returns a slice of entities matching the scope, starting at
	// offset with at most size rows.
	Page(ctx context.Context, scope Scope, offset, size int) ([]Entity, error)

	// FindByID returns the entity of the given kind and primary key,
	// or ErrNotFound.
	FindByID(ctx context.Context, kind string, id int64) (Entity, error)

	// FindByIDs returns all existing entities among the given ids.
	// Order is not guaranteed.
	FindByIDs(ctx context.Context, kind string, ids []int64) ([]Entity, error)

	// DistinctRelatedIDs returns the distinct primary keys of entities
	// related to e through the named relation field, without materializing
	// the related rows.
	DistinctRelatedIDs(ctx context.Context, e Entity, relationField string) ([]int64, error)
}
