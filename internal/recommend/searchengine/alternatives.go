// Recommender - Engagement Platform Recommendation Service
// Copyright 2026 Loyaltyworks Engineering
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/loyaltyworks/recommender

package searchengine

import (
	"context"
	"sort"
	"time"

	"github.com/loyaltyworks/recommender/internal/metrics"
	"github.com/loyaltyworks/recommender/internal/recommend"
	"github.com/loyaltyworks/recommender/internal/search"
	"github.com/loyaltyworks/recommender/internal/store"
)

// TopItems implements recommend.Backend. Popularity is the breadth of
// the item's relation to user entities, weight breaks ties.
func (e *Engine) TopItems(ctx context.Context, itemKeys []string, user store.Entity, limit int) (recommend.Result, error) {
	return e.rankAlternatives(ctx, "top", itemKeys, user, limit, true)
}

// ItemsByWeight implements recommend.Backend. Ordering is the item's
// configured weight feature only.
func (e *Engine) ItemsByWeight(ctx context.Context, itemKeys []string, user store.Entity, limit int) (recommend.Result, error) {
	return e.rankAlternatives(ctx, "by_weight", itemKeys, user, limit, false)
}

// rankAlternatives is the shared non-personalized ranking path. With a
// non-nil user the user's already-related entities are excluded; a nil
// user ranks the full candidate set.
func (e *Engine) rankAlternatives(ctx context.Context, operation string, itemKeys []string, user store.Entity, limit int, byPopularity bool) (recommend.Result, error) {
	result := make(recommend.Result, len(itemKeys))
	rels := newRelationCache(e.query, user)

	for _, key := range itemKeys {
		d, err := e.item(key)
		if err != nil {
			e.logger.Debug().Str("item", key).Str("op", operation).Msg("ranking for unknown item skipped")
			continue
		}

		start := time.Now()
		ents, err := e.alternativesForItem(ctx, user, d, limit, byPopularity, rels)
		metrics.RecommendQueryDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
		metrics.RecommendQueries.WithLabelValues(operation, d.Key).Inc()
		if err != nil {
			metrics.RecommendQueryErrors.WithLabelValues(operation, d.Key).Inc()
			e.logger.Warn().Err(err).Str("item", d.Key).Str("op", operation).
				Msg("ranking degraded to empty result")
			result[d.Key] = []store.Entity{}
			continue
		}
		result[d.Key] = ents
	}
	return result, nil
}

func (e *Engine) alternativesForItem(ctx context.Context, user store.Entity, d *recommend.Descriptor, limit int, byPopularity bool, rels *relationCache) ([]store.Entity, error) {
	b := &search.BoolQuery{
		Must:   []search.Query{{MatchAll: true}},
		Filter: filterClauses(d),
	}

	var userKey string
	if user != nil {
		if userItem, err := e.itemForKind(user.EntityKind()); err == nil {
			userKey = userItem.Key
			relOnUser := userItem.RelationFieldTo(d.Key)
			relOnTarget := d.RelationFieldTo(userItem.Key)
			if relOnUser != "" || relOnTarget != "" {
				ownIDs, err := e.userRelatedIDs(ctx, rels, user, d, relOnUser, relOnTarget)
				if err != nil {
					return nil, err
				}
				if len(ownIDs) > 0 {
					b.MustNot = append(b.MustNot, search.Query{IDs: ownIDs})
				}
			}
		}
	}

	relField := e.popularityField(d, userKey)

	var sorts []search.Sort
	if byPopularity && relField != "" {
		sorts = append(sorts, search.Sort{Field: relField, ByLength: true, Desc: true})
	}
	if w := d.ActiveWeightFeature(); w != "" {
		sorts = append(sorts, search.Sort{Field: w, Desc: true})
	}

	req := search.Request{
		Type:  d.Key,
		Query: search.Query{Bool: b},
		Sort:  sorts,
		Size:  resolveLimit(d, limit),
	}
	hits, err := e.client.Search(ctx, e.index, req)
	if err != nil {
		return nil, err
	}
	return e.entitiesForHits(ctx, hits)
}

// popularityField finds the relation field on d used as the popularity
// signal. The relation to the requesting user's item wins when known.
// Otherwise a relation whose target declares the reciprocal edge is
// preferred, since profile items relate back while plain cross-item
// links do not. Ties break on the lexicographically smallest target key.
func (e *Engine) popularityField(d *recommend.Descriptor, userKey string) string {
	if userKey != "" {
		if f := d.RelationFieldTo(userKey); f != "" {
			return f
		}
	}
	keys := make([]string, 0, len(e.items))
	for key := range e.items {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	var fallback string
	for _, key := range keys {
		if key == d.Key {
			continue
		}
		f := d.RelationFieldTo(key)
		if f == "" {
			continue
		}
		if fallback == "" {
			fallback = f
		}
		if other := e.items[key]; other != nil && other.RelationFieldTo(d.Key) != "" {
			return f
		}
	}
	return fallback
}
