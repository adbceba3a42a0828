// Recommender - Engagement Platform Recommendation Service
// Copyright 2026 Loyaltyworks Engineering
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/loyaltyworks/recommender

// Package search defines the abstract client for the inverted-index
// service the recommendation backend queries, together with a small
// declarative query DSL.
//
// The engine is written entirely against the Client interface; the wire
// protocol of any particular search service never leaks above this
// package. Two implementations ship here: an Elasticsearch adapter
// (production) and an in-memory engine (tests and local runs).
package search

import (
	"context"
	"errors"
)

// ErrUnavailable is returned when the search service cannot be reached.
// Read paths treat it as a soft failure; destructive operations surface it.
var ErrUnavailable = errors.New("search: service unavailable")

// Document is a single indexable document.
type Document struct {
	ID     string
	Fields map[string]any
}

// Hit is one search result.
type Hit struct {
	ID     string
	Type   string
	Score  float64
	Source map[string]any
}

// Client is the capability set the recommendation backend requires from a
// search service. Implementations must be safe for concurrent use.
type Client interface {
	// Ping verifies connectivity.
	Ping(ctx context.Context) error

	// EnsureIndex idempotently creates the named index.
	EnsureIndex(ctx context.Context, index string) error

	// GetMapping returns the current mapping for a document type. The
	// second return is false when no mapping exists yet.
	GetMapping(ctx context.Context, index, docType string) (Mapping, bool, error)

	// PutMapping writes the mapping for a document type.
	PutMapping(ctx context.Context, index, docType string, m Mapping) error

	// Upsert indexes a document, creating it when missing.
	Upsert(ctx context.Context, index, docType, id string, fields map[string]any) error

	// BulkIndex writes a batch of documents of one type in a single call.
	BulkIndex(ctx context.Context, index, docType string, docs []Document) error

	// Search executes a query and returns hits in relevance order.
	Search(ctx context.Context, index string, req Request) ([]Hit, error)

	// DeleteType removes all documents and the mapping of one type.
	DeleteType(ctx context.Context, index, docType string) error

	// DeleteIndex removes the whole index.
	DeleteIndex(ctx context.Context, index string) error
}
