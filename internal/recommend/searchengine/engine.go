// Recommender - Engagement Platform Recommendation Service
// Copyright 2026 Loyaltyworks Engineering
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/loyaltyworks/recommender

// Package searchengine implements the reference recommendation backend on
// top of an inverted-index search service.
//
// Every registered item is materialized as one document type in a single
// logical index. Documents carry only the item's declared data fields;
// ranking happens entirely inside the search service, hydration back to
// source entities happens here.
package searchengine

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/loyaltyworks/recommender/internal/bus"
	"github.com/loyaltyworks/recommender/internal/metrics"
	"github.com/loyaltyworks/recommender/internal/recommend"
	"github.com/loyaltyworks/recommender/internal/search"
	"github.com/loyaltyworks/recommender/internal/settings"
	"github.com/loyaltyworks/recommender/internal/store"
)

// BackendKey identifies this backend in settings and registration.
const BackendKey = "searchengine"

// defaultBatchSize is the page size used when bulk-populating the index.
const defaultBatchSize = 50

// Engine is the search-index recommendation backend.
type Engine struct {
	client   search.Client
	query    store.Query
	settings settings.Store
	logger   zerolog.Logger

	index     string
	batchSize int

	items  map[string]*recommend.Descriptor
	byKind map[string]*recommend.Descriptor
}

// Option customizes an Engine.
type Option func(*Engine)

// WithBatchSize overrides the populate page size.
func WithBatchSize(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.batchSize = n
		}
	}
}

// New creates the backend. The index name comes from the
// "searchengine_index" setting and defaults to "recommendations".
func New(client search.Client, query store.Query, s settings.Store, logger zerolog.Logger, opts ...Option) *Engine {
	e := &Engine{
		client:    client,
		query:     query,
		settings:  s,
		logger:    logger.With().Str("component", "searchengine").Logger(),
		index:     s.String(BackendKey+"_index", "recommendations"),
		batchSize: defaultBatchSize,
		items:     make(map[string]*recommend.Descriptor),
		byKind:    make(map[string]*recommend.Descriptor),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Key implements recommend.Backend.
func (e *Engine) Key() string { return BackendKey }

// Details implements recommend.Backend.
func (e *Engine) Details() recommend.Details {
	return recommend.Details{
		Name:        "Search Engine",
		Description: "Recommendations served from an inverted search index.",
	}
}

// SettingsFields implements recommend.Backend.
func (e *Engine) SettingsFields() []recommend.SettingField {
	return []recommend.SettingField{
		{Key: "index", Label: "Index name", Type: "text", Default: "recommendations"},
	}
}

// PluginSettings implements recommend.Backend.
func (e *Engine) PluginSettings() []recommend.SettingField {
	fields := e.SettingsFields()
	out := make([]recommend.SettingField, len(fields))
	for i, f := range fields {
		f.Key = BackendKey + "_" + f.Key
		out[i] = f
	}
	return out
}

// SetActiveItems implements recommend.Backend.
func (e *Engine) SetActiveItems(items map[string]*recommend.Descriptor) {
	e.items = items
	e.byKind = make(map[string]*recommend.Descriptor, len(items))
	for _, d := range items {
		e.byKind[d.SourceKind] = d
	}
}

// item resolves an item key, lowercased, against the active set.
func (e *Engine) item(key string) (*recommend.Descriptor, error) {
	d, ok := e.items[strings.ToLower(key)]
	if !ok {
		return nil, &recommend.ItemNotFoundError{Key: key}
	}
	return d, nil
}

// itemForKind resolves the active item whose source entities have the
// given kind.
func (e *Engine) itemForKind(kind string) (*recommend.Descriptor, error) {
	d, ok := e.byKind[kind]
	if !ok {
		return nil, &recommend.ItemNotFoundError{Kind: kind}
	}
	return d, nil
}

// Boot implements recommend.Backend. It verifies connectivity, creates
// the index and reconciles each item's mapping. A mapping that cannot be
// updated (live conflicting schema) is logged and skipped; the engine
// still serves the other items.
func (e *Engine) Boot(ctx context.Context) error {
	if err := e.client.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %v", recommend.ErrBackendUnavailable, err)
	}
	if err := e.client.EnsureIndex(ctx, e.index); err != nil {
		return fmt.Errorf("searchengine: ensure index %q: %w", e.index, err)
	}

	for key, d := range e.items {
		want := deriveMapping(d)
		current, exists, err := e.client.GetMapping(ctx, e.index, key)
		if err != nil {
			return fmt.Errorf("searchengine: get mapping for %q: %w", key, err)
		}
		if exists && current.PropertiesEqual(want) {
			continue
		}
		if err := e.client.PutMapping(ctx, e.index, key, want); err != nil {
			conflict := &recommend.SchemaConflictError{ItemKey: key, Err: err}
			e.logger.Warn().Err(conflict).Str("item", key).
				Msg("mapping update failed, item served with stale schema")
			continue
		}
		e.logger.Info().Str("item", key).Bool("created", !exists).Msg("mapping written")
	}
	return nil
}

// Update implements recommend.Backend.
func (e *Engine) Update(ctx context.Context, ent store.Entity) error {
	d, err := e.itemForKind(ent.EntityKind())
	if err != nil {
		return err
	}
	data := d.ItemData(ctx, e.query, ent, e.logger)
	if err := e.client.Upsert(ctx, e.index, d.Key, formatID(ent.EntityID()), data); err != nil {
		return fmt.Errorf("searchengine: upsert %s/%d: %w", d.Key, ent.EntityID(), err)
	}
	metrics.RecommendIndexUpdates.WithLabelValues(d.Key).Inc()
	return nil
}

// UpdateItemByID implements recommend.Backend.
func (e *Engine) UpdateItemByID(ctx context.Context, itemKey string, id int64) error {
	d, err := e.item(itemKey)
	if err != nil {
		return err
	}
	ent, err := e.query.FindByID(ctx, d.SourceKind, id)
	if err != nil {
		return fmt.Errorf("searchengine: load %s/%d: %w", d.Key, id, err)
	}
	return e.Update(ctx, ent)
}

// Populate implements recommend.Backend. Entities are read page by page
// through the item's scope and bulk-indexed; a batch failure aborts the
// run so partial populates are visible to the operator.
func (e *Engine) Populate(ctx context.Context, itemKeys []string) error {
	items, err := e.resolveItems(itemKeys)
	if err != nil {
		return err
	}

	for _, d := range items {
		total, err := e.query.Count(ctx, d.Scope)
		if err != nil {
			return fmt.Errorf("searchengine: count %q: %w", d.Key, err)
		}
		e.logger.Info().Str("item", d.Key).Int64("total", total).Msg("populate started")

		var indexed int64
		for offset := 0; int64(offset) < total; offset += e.batchSize {
			page, err := e.query.Page(ctx, d.Scope, offset, e.batchSize)
			if err != nil {
				return fmt.Errorf("searchengine: page %q offset %d: %w", d.Key, offset, err)
			}
			if len(page) == 0 {
				break
			}
			docs := make([]search.Document, 0, len(page))
			for _, ent := range page {
				docs = append(docs, search.Document{
					ID:     formatID(ent.EntityID()),
					Fields: d.ItemData(ctx, e.query, ent, e.logger),
				})
			}
			if err := e.client.BulkIndex(ctx, e.index, d.Key, docs); err != nil {
				return fmt.Errorf("searchengine: bulk index %q offset %d: %w", d.Key, offset, err)
			}
			indexed += int64(len(docs))
			metrics.RecommendDocsIndexed.WithLabelValues(d.Key).Add(float64(len(docs)))
		}
		e.logger.Info().Str("item", d.Key).Int64("indexed", indexed).Msg("populate finished")
	}
	return nil
}

// Clean implements recommend.Backend. With no keys the whole index is
// dropped; with keys only the named document types are.
func (e *Engine) Clean(ctx context.Context, itemKeys []string) error {
	if len(itemKeys) == 0 {
		e.logger.Warn().Str("index", e.index).Msg("deleting index")
		return e.client.DeleteIndex(ctx, e.index)
	}
	items, err := e.resolveItems(itemKeys)
	if err != nil {
		return err
	}
	for _, d := range items {
		if err := e.client.DeleteType(ctx, e.index, d.Key); err != nil {
			return fmt.Errorf("searchengine: delete type %q: %w", d.Key, err)
		}
		e.logger.Info().Str("item", d.Key).Msg("type deleted")
	}
	return nil
}

// BindUpdateEvents implements recommend.Backend. Every update trigger of
// every active item gets a subscription; triggers without an explicit
// handler fall back to re-indexing each referenced entity whose kind
// matches the item.
func (e *Engine) BindUpdateEvents(b bus.Bus) error {
	for _, d := range e.items {
		for _, t := range d.UpdateTriggers {
			d, t := d, t
			handler := func(ctx context.Context, evt bus.Event) error {
				refs := make([]recommend.EventRef, len(evt.Refs))
				for i, r := range evt.Refs {
					refs[i] = recommend.EventRef{Kind: r.Kind, ID: r.ID}
				}
				metrics.RecommendEventsHandled.WithLabelValues(evt.Name, d.Key).Inc()
				if t.Handler != nil {
					return t.Handler(ctx, e, d, refs)
				}
				return e.reindexMatching(ctx, d, refs)
			}
			if err := b.Subscribe(t.Event, handler); err != nil {
				return fmt.Errorf("searchengine: subscribe %q for %q: %w", t.Event, d.Key, err)
			}
			e.logger.Debug().Str("event", t.Event).Str("item", d.Key).Msg("update trigger bound")
		}
	}
	return nil
}

// reindexMatching is the default trigger behavior: re-index every
// referenced entity whose kind matches the item. A missing entity or an
// unmatched kind is not an error for event delivery.
func (e *Engine) reindexMatching(ctx context.Context, d *recommend.Descriptor, refs []recommend.EventRef) error {
	for _, ref := range refs {
		if ref.Kind != d.SourceKind {
			continue
		}
		if err := e.UpdateItemByID(ctx, d.Key, ref.ID); err != nil {
			e.logger.Warn().Err(err).
				Str("item", d.Key).Int64("id", ref.ID).
				Msg("event-driven reindex failed")
		}
	}
	return nil
}

// resolveItems maps item keys to active descriptors, or all active items
// when keys is empty.
func (e *Engine) resolveItems(itemKeys []string) ([]*recommend.Descriptor, error) {
	if len(itemKeys) == 0 {
		out := make([]*recommend.Descriptor, 0, len(e.items))
		for _, d := range e.items {
			out = append(out, d)
		}
		return out, nil
	}
	out := make([]*recommend.Descriptor, 0, len(itemKeys))
	for _, key := range itemKeys {
		d, err := e.item(key)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}
