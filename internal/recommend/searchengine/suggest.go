// Recommender - Engagement Platform Recommendation Service
// Copyright 2026 Loyaltyworks Engineering
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/loyaltyworks/recommender

package searchengine

import (
	"context"
	"time"

	"github.com/loyaltyworks/recommender/internal/metrics"
	"github.com/loyaltyworks/recommender/internal/recommend"
	"github.com/loyaltyworks/recommender/internal/search"
	"github.com/loyaltyworks/recommender/internal/store"
)

// similarUserCap bounds the "users like you" candidate pool per request.
const similarUserCap = 20

// mlt thresholds, tuned for short feature texts.
const (
	mltMinTermFreq   = 1
	mltMinDocFreq    = 1
	mltMaxQueryTerms = 12
)

// Suggest implements recommend.Backend.
//
// Each requested item is ranked independently; a failure for one item
// degrades that key to an empty slice and never fails the whole call.
func (e *Engine) Suggest(ctx context.Context, user store.Entity, itemKeys []string, limit int) (recommend.Result, error) {
	result := make(recommend.Result, len(itemKeys))
	rels := newRelationCache(e.query, user)

	for _, key := range itemKeys {
		d, err := e.item(key)
		if err != nil {
			e.logger.Debug().Str("item", key).Msg("suggest for unknown item skipped")
			continue
		}

		start := time.Now()
		ents, err := e.suggestForItem(ctx, user, d, limit, rels)
		metrics.RecommendQueryDuration.WithLabelValues("suggest").Observe(time.Since(start).Seconds())
		metrics.RecommendQueries.WithLabelValues("suggest", d.Key).Inc()
		if err != nil {
			metrics.RecommendQueryErrors.WithLabelValues("suggest", d.Key).Inc()
			e.logger.Warn().Err(err).Str("item", d.Key).Msg("suggest degraded to empty result")
			result[d.Key] = []store.Entity{}
			continue
		}
		result[d.Key] = ents
	}
	return result, nil
}

// suggestForItem runs the collaborative-filtering query for one item.
//
// The query is a bool over three optional should branches: entities
// related to users similar to this user, entities whose feature fields
// resemble the user's own, and sticky boosts. Entities the user is already
// related to are excluded, active filters gate the candidate set, and
// ordering is weight first, relation breadth second.
func (e *Engine) suggestForItem(ctx context.Context, user store.Entity, d *recommend.Descriptor, limit int, rels *relationCache) ([]store.Entity, error) {
	userItem, err := e.itemForKind(user.EntityKind())
	if err != nil {
		return nil, err
	}

	relOnTarget := d.RelationFieldTo(userItem.Key)
	relOnUser := userItem.RelationFieldTo(d.Key)
	if relOnTarget == "" && relOnUser == "" {
		return nil, &recommend.RelationNotFoundError{FromKey: d.Key, ToKey: userItem.Key}
	}

	ownIDs, err := e.userRelatedIDs(ctx, rels, user, d, relOnUser, relOnTarget)
	if err != nil {
		return nil, err
	}

	var should []search.Query

	if len(ownIDs) > 0 && relOnUser != "" && relOnTarget != "" && d.HasActiveFeature(relOnTarget) {
		similar, err := e.similarUsers(ctx, userItem, user, relOnUser, ownIDs)
		if err != nil {
			return nil, err
		}
		if len(similar) > 0 {
			should = append(should, search.Query{
				Terms: map[string][]string{relOnTarget: similar},
			})
		}
	}

	if fields := activeFeatureFields(d); len(ownIDs) > 0 && hasFeatureBesides(fields, relOnTarget) {
		like := make([]search.DocRef, len(ownIDs))
		for i, id := range ownIDs {
			like[i] = search.DocRef{Type: d.Key, ID: id}
		}
		should = append(should, search.Query{MoreLikeThis: &search.MoreLikeThis{
			Fields:        fields,
			Like:          like,
			MinTermFreq:   mltMinTermFreq,
			MinDocFreq:    mltMinDocFreq,
			MaxQueryTerms: mltMaxQueryTerms,
		}})
	}

	noBranches := len(should) == 0
	for field, value := range d.StickyRules {
		should = append(should, search.Query{Term: map[string]any{field: value}})
	}
	// Sticky rules alone must not gate the candidate set; pair them with
	// match-all so they only boost. Same for a cold start with no
	// branches at all: fall through to a weight-ordered match-all.
	if noBranches {
		should = append(should, search.Query{MatchAll: true})
	}

	// The branches live in a nested bool so at least one must match even
	// when filter clauses are present.
	b := &search.BoolQuery{
		Must:   []search.Query{{Bool: &search.BoolQuery{Should: should}}},
		Filter: filterClauses(d),
	}
	if len(ownIDs) > 0 {
		b.MustNot = append(b.MustNot, search.Query{IDs: ownIDs})
	}

	req := search.Request{
		Type:  d.Key,
		Query: search.Query{Bool: b},
		Sort:  rankingSort(d, relOnTarget),
		Size:  resolveLimit(d, limit),
	}
	hits, err := e.client.Search(ctx, e.index, req)
	if err != nil {
		return nil, err
	}
	return e.entitiesForHits(ctx, hits)
}

// similarUsers returns up to similarUserCap user document ids ranked by
// how many of the given entity ids they share with this user.
func (e *Engine) similarUsers(ctx context.Context, userItem *recommend.Descriptor, user store.Entity, relOnUser string, ownIDs []string) ([]string, error) {
	should := make([]search.Query, len(ownIDs))
	for i, id := range ownIDs {
		should[i] = search.Query{Term: map[string]any{relOnUser: id}}
	}
	req := search.Request{
		Type: userItem.Key,
		Query: search.Query{Bool: &search.BoolQuery{
			Should:  should,
			MustNot: []search.Query{{IDs: []string{formatID(user.EntityID())}}},
		}},
		Sort: []search.Sort{{ByScore: true, Desc: true}},
		Size: similarUserCap,
	}
	hits, err := e.client.Search(ctx, e.index, req)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(hits))
	for i, h := range hits {
		ids[i] = h.ID
	}
	return ids, nil
}

// userRelatedIDs returns the ids of target-kind entities the user is
// already related to, as document ids. The store-side edge is preferred;
// when only the target declares the edge the ids come from the index.
func (e *Engine) userRelatedIDs(ctx context.Context, rels *relationCache, user store.Entity, d *recommend.Descriptor, relOnUser, relOnTarget string) ([]string, error) {
	if relOnUser != "" {
		return rels.related(ctx, relOnUser)
	}
	req := search.Request{
		Type:  d.Key,
		Query: search.Query{Term: map[string]any{relOnTarget: formatID(user.EntityID())}},
		Size:  1000,
	}
	hits, err := e.client.Search(ctx, e.index, req)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(hits))
	for i, h := range hits {
		ids[i] = h.ID
	}
	return ids, nil
}

// resolveLimit picks the result size: explicit argument, then the item's
// configured maximum, then the engine-wide default.
func resolveLimit(d *recommend.Descriptor, limit int) int {
	if limit > 0 {
		return limit
	}
	if m := d.MaxRecommendations(); m > 0 {
		return m
	}
	return recommend.DefaultLimit
}

// rankingSort is the shared suggest ordering: configured weight feature
// descending, then popularity (relation breadth) descending, score last.
func rankingSort(d *recommend.Descriptor, relOnTarget string) []search.Sort {
	var sorts []search.Sort
	if w := d.ActiveWeightFeature(); w != "" {
		sorts = append(sorts, search.Sort{Field: w, Desc: true})
	}
	if relOnTarget != "" {
		sorts = append(sorts, search.Sort{Field: relOnTarget, ByLength: true, Desc: true})
	}
	sorts = append(sorts, search.Sort{ByScore: true, Desc: true})
	return sorts
}

// filterClauses builds the AND-ed filter set from the item's active
// filters that have a registered builder.
func filterClauses(d *recommend.Descriptor) []search.Query {
	var out []search.Query
	for _, name := range d.ActiveFilters() {
		if fb, ok := d.FilterBuilders[name]; ok && fb != nil {
			out = append(out, fb())
		}
	}
	return out
}

// activeFeatureFields lists the item's active feature fields in
// declaration order. Keyword features such as categories carry the
// content signal when titles and descriptions share no terms.
func activeFeatureFields(d *recommend.Descriptor) []string {
	var out []string
	for _, f := range d.Features {
		if d.HasActiveFeature(f.Name) {
			out = append(out, f.Name)
		}
	}
	return out
}

// hasFeatureBesides reports whether fields holds an entry other than the
// user-relation field. Content similarity over the relation alone would
// only restate the similar-users branch.
func hasFeatureBesides(fields []string, relation string) bool {
	for _, f := range fields {
		if f != relation {
			return true
		}
	}
	return false
}

// relationCache memoizes DistinctRelatedIDs per relation field for the
// duration of one recommendation request.
type relationCache struct {
	q    store.Query
	user store.Entity
	vals map[string][]string
}

func newRelationCache(q store.Query, user store.Entity) *relationCache {
	return &relationCache{q: q, user: user, vals: make(map[string][]string)}
}

func (c *relationCache) related(ctx context.Context, field string) ([]string, error) {
	if ids, ok := c.vals[field]; ok {
		return ids, nil
	}
	raw, err := c.q.DistinctRelatedIDs(ctx, c.user, field)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(raw))
	for i, id := range raw {
		ids[i] = formatID(id)
	}
	c.vals[field] = ids
	return ids, nil
}
