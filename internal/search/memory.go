// Recommender - Engagement Platform Recommendation Service
// Copyright 2026 Loyaltyworks Engineering
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/loyaltyworks/recommender

package search

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"unicode"
)

// MemoryClient is an in-memory Client implementation.
//
// It interprets the query DSL directly over stored documents, closely
// enough to the production adapter that the backend's ranking tests can
// run without a search service. Safe for concurrent use.
type MemoryClient struct {
	mu      sync.RWMutex
	indexes map[string]*memoryIndex
}

type memoryIndex struct {
	mappings map[string]Mapping
	docs     map[string]map[string]map[string]any // type -> id -> fields
	order    map[string][]string                  // type -> ids in insertion order
}

// NewMemoryClient creates an empty in-memory search engine.
func NewMemoryClient() *MemoryClient {
	return &MemoryClient{indexes: make(map[string]*memoryIndex)}
}

// Ping implements Client.
func (c *MemoryClient) Ping(context.Context) error { return nil }

// EnsureIndex implements Client.
func (c *MemoryClient) EnsureIndex(_ context.Context, index string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ensureLocked(index)
	return nil
}

func (c *MemoryClient) ensureLocked(index string) *memoryIndex {
	idx, ok := c.indexes[index]
	if !ok {
		idx = &memoryIndex{
			mappings: make(map[string]Mapping),
			docs:     make(map[string]map[string]map[string]any),
			order:    make(map[string][]string),
		}
		c.indexes[index] = idx
	}
	return idx
}

// GetMapping implements Client.
func (c *MemoryClient) GetMapping(_ context.Context, index, docType string) (Mapping, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	idx, ok := c.indexes[index]
	if !ok {
		return Mapping{}, false, nil
	}
	m, ok := idx.mappings[docType]
	return m, ok, nil
}

// PutMapping implements Client.
func (c *MemoryClient) PutMapping(_ context.Context, index, docType string, m Mapping) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ensureLocked(index).mappings[docType] = m
	return nil
}

// Upsert implements Client.
func (c *MemoryClient) Upsert(_ context.Context, index, docType, id string, fields map[string]any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	idx := c.ensureLocked(index)
	if idx.docs[docType] == nil {
		idx.docs[docType] = make(map[string]map[string]any)
	}
	if _, exists := idx.docs[docType][id]; !exists {
		idx.order[docType] = append(idx.order[docType], id)
	}
	idx.docs[docType][id] = fields
	return nil
}

// BulkIndex implements Client.
func (c *MemoryClient) BulkIndex(ctx context.Context, index, docType string, docs []Document) error {
	for _, d := range docs {
		if err := c.Upsert(ctx, index, docType, d.ID, d.Fields); err != nil {
			return err
		}
	}
	return nil
}

// DeleteType implements Client.
func (c *MemoryClient) DeleteType(_ context.Context, index, docType string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	idx, ok := c.indexes[index]
	if !ok {
		return nil
	}
	delete(idx.docs, docType)
	delete(idx.order, docType)
	delete(idx.mappings, docType)
	return nil
}

// DeleteIndex implements Client.
func (c *MemoryClient) DeleteIndex(_ context.Context, index string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.indexes, index)
	return nil
}

// Search implements Client.
func (c *MemoryClient) Search(_ context.Context, index string, req Request) ([]Hit, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	idx, ok := c.indexes[index]
	if !ok {
		return nil, nil
	}
	docs := idx.docs[req.Type]

	var hits []Hit
	for _, id := range idx.order[req.Type] {
		fields := docs[id]
		score, match := c.eval(idx, req.Query, req.Type, id, fields)
		if !match {
			continue
		}
		hits = append(hits, Hit{ID: id, Type: req.Type, Score: score, Source: fields})
	}

	sortHits(hits, req.Sort)

	if req.From >= len(hits) {
		return nil, nil
	}
	hits = hits[req.From:]
	if req.Size > 0 && req.Size < len(hits) {
		hits = hits[:req.Size]
	}
	return hits, nil
}

// eval scores a document against a query node. The boolean return is
// whether the document matches at all.
func (c *MemoryClient) eval(idx *memoryIndex, q Query, docType, id string, fields map[string]any) (float64, bool) {
	switch {
	case q.MatchAll:
		return 1, true

	case len(q.IDs) > 0:
		for _, want := range q.IDs {
			if id == want {
				return 1, true
			}
		}
		return 0, false

	case len(q.Term) > 0:
		for field, want := range q.Term {
			if !valueContains(fields[field], fmt.Sprintf("%v", want)) {
				return 0, false
			}
		}
		return 1, true

	case len(q.Terms) > 0:
		for field, wants := range q.Terms {
			matched := false
			for _, want := range wants {
				if valueContains(fields[field], want) {
					matched = true
					break
				}
			}
			if !matched {
				return 0, false
			}
		}
		return 1, true

	case q.MoreLikeThis != nil:
		return c.evalMoreLikeThis(idx, q.MoreLikeThis, fields)

	case q.Bool != nil:
		return c.evalBool(idx, q.Bool, docType, id, fields)
	}
	return 0, false
}

func (c *MemoryClient) evalBool(idx *memoryIndex, b *BoolQuery, docType, id string, fields map[string]any) (float64, bool) {
	var score float64

	for _, sub := range b.MustNot {
		if _, match := c.eval(idx, sub, docType, id, fields); match {
			return 0, false
		}
	}
	for _, sub := range b.Must {
		s, match := c.eval(idx, sub, docType, id, fields)
		if !match {
			return 0, false
		}
		score += s
	}
	for _, sub := range b.Filter {
		if _, match := c.eval(idx, sub, docType, id, fields); !match {
			return 0, false
		}
	}
	if len(b.Should) > 0 {
		any := false
		for _, sub := range b.Should {
			if s, match := c.eval(idx, sub, docType, id, fields); match {
				any = true
				score += s
			}
		}
		// Should is required only when no other positive clause exists.
		if !any && len(b.Must) == 0 && len(b.Filter) == 0 {
			return 0, false
		}
		if !any && len(b.Must)+len(b.Filter) > 0 {
			return score, true
		}
	}
	return score, true
}

// evalMoreLikeThis scores by term overlap between exemplar documents and
// the candidate, mirroring more_like_this at the fidelity the engine needs.
func (c *MemoryClient) evalMoreLikeThis(idx *memoryIndex, mlt *MoreLikeThis, fields map[string]any) (float64, bool) {
	exemplarTerms := make(map[string]struct{})
	for _, ref := range mlt.Like {
		src, ok := idx.docs[ref.Type][ref.ID]
		if !ok {
			continue
		}
		for _, f := range mlt.Fields {
			for _, term := range termsOf(src[f]) {
				exemplarTerms[term] = struct{}{}
			}
		}
	}
	if mlt.MaxQueryTerms > 0 && len(exemplarTerms) > mlt.MaxQueryTerms {
		// Deterministic truncation: keep the lexicographically smallest terms.
		all := make([]string, 0, len(exemplarTerms))
		for t := range exemplarTerms {
			all = append(all, t)
		}
		sort.Strings(all)
		exemplarTerms = make(map[string]struct{}, mlt.MaxQueryTerms)
		for _, t := range all[:mlt.MaxQueryTerms] {
			exemplarTerms[t] = struct{}{}
		}
	}

	var score float64
	for _, f := range mlt.Fields {
		for _, term := range termsOf(fields[f]) {
			if _, ok := exemplarTerms[term]; ok {
				score++
			}
		}
	}
	return score, score > 0
}

// termsOf tokenizes a document field value into lowercase terms. Array
// elements are tokenized individually.
func termsOf(v any) []string {
	var out []string
	switch vv := v.(type) {
	case nil:
		return nil
	case []string:
		for _, s := range vv {
			out = append(out, tokenize(s)...)
		}
	case []any:
		for _, e := range vv {
			out = append(out, tokenize(fmt.Sprintf("%v", e))...)
		}
	default:
		out = tokenize(fmt.Sprintf("%v", vv))
	}
	return out
}

func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// valueContains reports whether a field value equals, or as an array
// contains, the given scalar rendered as a string.
func valueContains(v any, want string) bool {
	switch vv := v.(type) {
	case nil:
		return false
	case []string:
		for _, s := range vv {
			if s == want {
				return true
			}
		}
	case []any:
		for _, e := range vv {
			if fmt.Sprintf("%v", e) == want {
				return true
			}
		}
	case []int64:
		for _, e := range vv {
			if fmt.Sprintf("%d", e) == want {
				return true
			}
		}
	default:
		return fmt.Sprintf("%v", vv) == want
	}
	return false
}

// valueLength returns the number of values in an array field (scalars
// count as one, missing fields as zero).
func valueLength(v any) int {
	switch vv := v.(type) {
	case nil:
		return 0
	case []string:
		return len(vv)
	case []any:
		return len(vv)
	case []int64:
		return len(vv)
	default:
		return 1
	}
}

// sortHits orders hits by the sort keys in precedence order; ties fall
// back to descending score, then id for stability.
func sortHits(hits []Hit, keys []Sort) {
	sort.SliceStable(hits, func(i, j int) bool {
		for _, k := range keys {
			var cmp int
			switch {
			case k.ByScore:
				cmp = compareFloat(hits[i].Score, hits[j].Score)
			case k.ByLength:
				cmp = compareFloat(float64(valueLength(hits[i].Source[k.Field])), float64(valueLength(hits[j].Source[k.Field])))
			default:
				cmp = compareValues(hits[i].Source[k.Field], hits[j].Source[k.Field])
			}
			if cmp == 0 {
				continue
			}
			if k.Desc {
				return cmp > 0
			}
			return cmp < 0
		}
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ID < hits[j].ID
	})
}

func compareFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// compareValues compares two field values, numerically when both are
// numbers, lexicographically otherwise.
func compareValues(a, b any) int {
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		return compareFloat(af, bf)
	}
	return strings.Compare(fmt.Sprintf("%v", a), fmt.Sprintf("%v", b))
}

func toFloat(v any) (float64, bool) {
	switch vv := v.(type) {
	case int:
		return float64(vv), true
	case int32:
		return float64(vv), true
	case int64:
		return float64(vv), true
	case float32:
		return float64(vv), true
	case float64:
		return vv, true
	default:
		return 0, false
	}
}
