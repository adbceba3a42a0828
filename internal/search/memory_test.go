// Recommender - Engagement Platform Recommendation Service
// Copyright 2026 Loyaltyworks Engineering
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/loyaltyworks/recommender

package search

import (
	"context"
	"testing"
)

const testIndex = "recs"

func seedClient(t *testing.T) *MemoryClient {
	t.Helper()
	c := NewMemoryClient()
	ctx := context.Background()

	docs := []struct {
		docType string
		id      string
		fields  map[string]any
	}{
		{"activity", "1", map[string]any{
			"title": "Morning run", "categories": []string{"fitness"},
			"priority": 5, "users": []string{"10", "11"},
		}},
		{"activity", "2", map[string]any{
			"title": "Evening run club", "categories": []string{"fitness", "social"},
			"priority": 9, "users": []string{"10"},
		}},
		{"activity", "3", map[string]any{
			"title": "Cooking class", "categories": []string{"food"},
			"priority": 1, "users": []string{},
		}},
		{"user", "10", map[string]any{"activities": []string{"1", "2"}}},
		{"user", "11", map[string]any{"activities": []string{"1"}}},
	}
	for _, d := range docs {
		if err := c.Upsert(ctx, testIndex, d.docType, d.id, d.fields); err != nil {
			t.Fatalf("Upsert %s/%s: %v", d.docType, d.id, err)
		}
	}
	return c
}

func hitIDs(hits []Hit) []string {
	out := make([]string, len(hits))
	for i, h := range hits {
		out[i] = h.ID
	}
	return out
}

func TestMemorySearchQueries(t *testing.T) {
	c := seedClient(t)
	ctx := context.Background()

	tests := []struct {
		name string
		req  Request
		want []string
	}{
		{
			"match all keeps insertion order",
			Request{Type: "activity", Query: Query{MatchAll: true}},
			[]string{"1", "2", "3"},
		},
		{
			"ids",
			Request{Type: "activity", Query: Query{IDs: []string{"3", "1"}}},
			[]string{"1", "3"},
		},
		{
			"term on array field",
			Request{Type: "activity", Query: Query{Term: map[string]any{"categories": "fitness"}}},
			[]string{"1", "2"},
		},
		{
			"terms any-of",
			Request{Type: "activity", Query: Query{Terms: map[string][]string{"categories": {"food", "social"}}}},
			[]string{"2", "3"},
		},
		{
			"zero query matches nothing",
			Request{Type: "activity"},
			nil,
		},
		{
			"bool must_not",
			Request{Type: "activity", Query: Query{Bool: &BoolQuery{
				Must:    []Query{{MatchAll: true}},
				MustNot: []Query{{IDs: []string{"1", "2"}}},
			}}},
			[]string{"3"},
		},
		{
			"filter gates without scoring",
			Request{Type: "activity", Query: Query{Bool: &BoolQuery{
				Should: []Query{{Term: map[string]any{"categories": "fitness"}}},
				Filter: []Query{{Term: map[string]any{"categories": "social"}}},
			}}},
			[]string{"2"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hits, err := c.Search(ctx, testIndex, tt.req)
			if err != nil {
				t.Fatalf("Search: %v", err)
			}
			got := hitIDs(hits)
			if len(got) != len(tt.want) {
				t.Fatalf("hits = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("hits = %v, want %v", got, tt.want)
				}
			}
		})
	}
}

func TestMemorySearchShouldScoresOverlap(t *testing.T) {
	c := seedClient(t)

	// Users sharing activities with user 10: user 11 shares one of two.
	hits, err := c.Search(context.Background(), testIndex, Request{
		Type: "user",
		Query: Query{Bool: &BoolQuery{
			Should: []Query{
				{Term: map[string]any{"activities": "1"}},
				{Term: map[string]any{"activities": "2"}},
			},
			MustNot: []Query{{IDs: []string{"10"}}},
		}},
		Sort: []Sort{{ByScore: true, Desc: true}},
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 1 || hits[0].ID != "11" {
		t.Fatalf("hits = %v, want only user 11", hitIDs(hits))
	}
	if hits[0].Score != 1 {
		t.Errorf("overlap score = %v, want 1", hits[0].Score)
	}
}

func TestMemorySearchMoreLikeThis(t *testing.T) {
	c := seedClient(t)

	// Activities similar to activity 1 ("Morning run"): 2 shares "run".
	hits, err := c.Search(context.Background(), testIndex, Request{
		Type: "activity",
		Query: Query{Bool: &BoolQuery{
			Should: []Query{{MoreLikeThis: &MoreLikeThis{
				Fields:        []string{"title"},
				Like:          []DocRef{{Type: "activity", ID: "1"}},
				MinTermFreq:   1,
				MinDocFreq:    1,
				MaxQueryTerms: 12,
			}}},
			MustNot: []Query{{IDs: []string{"1"}}},
		}},
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 1 || hits[0].ID != "2" {
		t.Fatalf("hits = %v, want only activity 2", hitIDs(hits))
	}
}

func TestMemorySearchSort(t *testing.T) {
	c := seedClient(t)
	ctx := context.Background()

	t.Run("field descending", func(t *testing.T) {
		hits, err := c.Search(ctx, testIndex, Request{
			Type:  "activity",
			Query: Query{MatchAll: true},
			Sort:  []Sort{{Field: "priority", Desc: true}},
		})
		if err != nil {
			t.Fatalf("Search: %v", err)
		}
		want := []string{"2", "1", "3"}
		for i, id := range hitIDs(hits) {
			if id != want[i] {
				t.Fatalf("order = %v, want %v", hitIDs(hits), want)
			}
		}
	})

	t.Run("by array length", func(t *testing.T) {
		hits, err := c.Search(ctx, testIndex, Request{
			Type:  "activity",
			Query: Query{MatchAll: true},
			Sort: []Sort{
				{Field: "users", ByLength: true, Desc: true},
				{Field: "priority", Desc: true},
			},
		})
		if err != nil {
			t.Fatalf("Search: %v", err)
		}
		want := []string{"1", "2", "3"}
		for i, id := range hitIDs(hits) {
			if id != want[i] {
				t.Fatalf("order = %v, want %v", hitIDs(hits), want)
			}
		}
	})
}

func TestMemorySearchPaging(t *testing.T) {
	c := seedClient(t)

	hits, err := c.Search(context.Background(), testIndex, Request{
		Type:  "activity",
		Query: Query{MatchAll: true},
		From:  1,
		Size:  1,
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 1 || hits[0].ID != "2" {
		t.Fatalf("page = %v, want [2]", hitIDs(hits))
	}
}

func TestMemoryClientLifecycle(t *testing.T) {
	c := seedClient(t)
	ctx := context.Background()

	m := Mapping{Properties: map[string]FieldMapping{"title": {Type: "text", Analyzer: "standard"}}}
	if err := c.PutMapping(ctx, testIndex, "activity", m); err != nil {
		t.Fatalf("PutMapping: %v", err)
	}
	got, ok, err := c.GetMapping(ctx, testIndex, "activity")
	if err != nil || !ok {
		t.Fatalf("GetMapping: ok=%v err=%v", ok, err)
	}
	if !got.PropertiesEqual(m) {
		t.Errorf("mapping round trip mismatch: %+v", got)
	}

	if err := c.DeleteType(ctx, testIndex, "activity"); err != nil {
		t.Fatalf("DeleteType: %v", err)
	}
	hits, _ := c.Search(ctx, testIndex, Request{Type: "activity", Query: Query{MatchAll: true}})
	if len(hits) != 0 {
		t.Errorf("activity docs survive DeleteType: %v", hitIDs(hits))
	}
	hits, _ = c.Search(ctx, testIndex, Request{Type: "user", Query: Query{MatchAll: true}})
	if len(hits) != 2 {
		t.Errorf("user docs affected by DeleteType: %v", hitIDs(hits))
	}

	if err := c.DeleteIndex(ctx, testIndex); err != nil {
		t.Fatalf("DeleteIndex: %v", err)
	}
	hits, _ = c.Search(ctx, testIndex, Request{Type: "user", Query: Query{MatchAll: true}})
	if len(hits) != 0 {
		t.Errorf("docs survive DeleteIndex: %v", hitIDs(hits))
	}
}

func TestPropertiesEqual(t *testing.T) {
	a := Mapping{Properties: map[string]FieldMapping{"title": {Type: "text", Analyzer: "standard"}}}
	b := Mapping{Properties: map[string]FieldMapping{"title": {Type: "text", Analyzer: "standard"}},
		Extra: map[string]any{"dynamic": false}}
	c := Mapping{Properties: map[string]FieldMapping{"title": {Type: "keyword"}}}

	if !a.PropertiesEqual(b) {
		t.Error("Extra must not affect equality")
	}
	if a.PropertiesEqual(c) {
		t.Error("differing property types reported equal")
	}
}
