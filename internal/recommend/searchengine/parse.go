// Recommender - Engagement Platform Recommendation Service
// Copyright 2026 Loyaltyworks Engineering
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/loyaltyworks/recommender

package searchengine

import (
	"context"
	"strconv"

	"github.com/loyaltyworks/recommender/internal/search"
	"github.com/loyaltyworks/recommender/internal/store"
)

// entitiesForHits hydrates search hits back into source entities,
// preserving the hits' relevance order. Hits of unknown types, with
// unparseable ids, or whose entity no longer exists are dropped.
func (e *Engine) entitiesForHits(ctx context.Context, hits []search.Hit) ([]store.Entity, error) {
	if len(hits) == 0 {
		return nil, nil
	}

	byKind := make(map[string][]int64)
	for _, h := range hits {
		d, ok := e.items[h.Type]
		if !ok {
			continue
		}
		id, err := strconv.ParseInt(h.ID, 10, 64)
		if err != nil {
			e.logger.Warn().Str("type", h.Type).Str("id", h.ID).Msg("hit with non-numeric id dropped")
			continue
		}
		byKind[d.SourceKind] = append(byKind[d.SourceKind], id)
	}

	loaded := make(map[string]map[int64]store.Entity, len(byKind))
	for kind, ids := range byKind {
		ents, err := e.query.FindByIDs(ctx, kind, ids)
		if err != nil {
			return nil, err
		}
		m := make(map[int64]store.Entity, len(ents))
		for _, ent := range ents {
			m[ent.EntityID()] = ent
		}
		loaded[kind] = m
	}

	out := make([]store.Entity, 0, len(hits))
	for _, h := range hits {
		d, ok := e.items[h.Type]
		if !ok {
			continue
		}
		id, err := strconv.ParseInt(h.ID, 10, 64)
		if err != nil {
			continue
		}
		if ent, ok := loaded[d.SourceKind][id]; ok {
			out = append(out, ent)
		}
	}
	return out, nil
}

// formatID renders an entity primary key the way documents carry it.
func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}
