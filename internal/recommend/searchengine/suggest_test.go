// Recommender - Engagement Platform Recommendation Service
// Copyright 2026 Loyaltyworks Engineering
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/loyaltyworks/recommender

package searchengine

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"github.com/loyaltyworks/recommender/internal/models"
	"github.com/loyaltyworks/recommender/internal/recommend"
	"github.com/loyaltyworks/recommender/internal/recommend/items"
	"github.com/loyaltyworks/recommender/internal/search"
	"github.com/loyaltyworks/recommender/internal/settings"
	"github.com/loyaltyworks/recommender/internal/store"
)

func TestSuggestCollaborativeFiltering(t *testing.T) {
	f := newFixture(t, nil)

	// User 10 completed activities 1 and 2. The only similar user is 11
	// (shares activity 1), who also completed activity 3; activity 4 has
	// no collaborative or textual signal and must not appear.
	res, err := f.engine.Suggest(context.Background(), f.user(t, 10), []string{"activity"}, 0)
	if err != nil {
		t.Fatalf("Suggest: %v", err)
	}
	got := entityIDs(res["activity"])
	if len(got) != 1 || got[0] != 3 {
		t.Fatalf("suggestions = %v, want [3]", got)
	}
}

func TestSuggestCategoryOverlap(t *testing.T) {
	s := settings.NewMemory(nil)
	reg := recommend.NewRegistry()
	if err := reg.Register(s, items.Activity(), items.User()); err != nil {
		t.Fatalf("Register: %v", err)
	}

	// No other user shares a completion and no titles share a term; the
	// shared category is the only signal left.
	st := store.NewMemory()
	st.Add(
		&models.Activity{ID: 101, Title: "Watercolor workshop", Categories: []string{"art"},
			Priority: 5, IsPublished: true, UserIDs: []int64{20}},
		&models.Activity{ID: 102, Title: "Sculpture studio", Categories: []string{"art"},
			Priority: 5, IsPublished: true},
		&models.Activity{ID: 103, Title: "Chess night", Categories: []string{"games"},
			Priority: 5, IsPublished: true},
		&models.User{ID: 20, ActivityIDs: []int64{101}},
	)
	client := search.NewMemoryClient()
	engine := New(client, st, s, zerolog.Nop())
	engine.SetActiveItems(reg.ActiveItems())

	ctx := context.Background()
	if err := engine.Boot(ctx); err != nil {
		t.Fatalf("Boot: %v", err)
	}
	if err := engine.Populate(ctx, nil); err != nil {
		t.Fatalf("Populate: %v", err)
	}

	u, _ := st.FindByID(ctx, models.KindUser, 20)
	res, err := engine.Suggest(ctx, u, []string{"activity"}, 0)
	if err != nil {
		t.Fatalf("Suggest: %v", err)
	}
	got := entityIDs(res["activity"])
	if len(got) != 1 || got[0] != 102 {
		t.Fatalf("suggestions = %v, want the category-sharing activity [102]", got)
	}
}

func TestSuggestExcludesOwnEntities(t *testing.T) {
	f := newFixture(t, nil)

	res, err := f.engine.Suggest(context.Background(), f.user(t, 11), []string{"activity"}, 0)
	if err != nil {
		t.Fatalf("Suggest: %v", err)
	}
	for _, id := range entityIDs(res["activity"]) {
		if id == 1 || id == 3 {
			t.Errorf("already-completed activity %d recommended", id)
		}
	}
}

func TestSuggestHonorsLimit(t *testing.T) {
	f := newFixture(t, nil)

	// User 12 is similar to user 11 (shares activity 3), surfacing
	// activities 1 and 3; 3 is excluded as already completed.
	res, err := f.engine.Suggest(context.Background(), f.user(t, 12), []string{"activity"}, 1)
	if err != nil {
		t.Fatalf("Suggest: %v", err)
	}
	if len(res["activity"]) > 1 {
		t.Errorf("limit ignored: %v", entityIDs(res["activity"]))
	}
}

func TestSuggestMaxRecommendationsSetting(t *testing.T) {
	f := newFixture(t, map[string]any{"activity_max_recommendations": 1})

	res, err := f.engine.TopItems(context.Background(), []string{"activity"}, nil, 0)
	if err != nil {
		t.Fatalf("TopItems: %v", err)
	}
	if len(res["activity"]) != 1 {
		t.Errorf("configured maximum ignored: %v", entityIDs(res["activity"]))
	}
}

func TestSuggestMultipleItems(t *testing.T) {
	f := newFixture(t, nil)

	res, err := f.engine.Suggest(context.Background(), f.user(t, 10), []string{"activity", "badge"}, 0)
	if err != nil {
		t.Fatalf("Suggest: %v", err)
	}
	if _, ok := res["activity"]; !ok {
		t.Error("activity key missing from result")
	}
	if _, ok := res["badge"]; !ok {
		t.Error("badge key missing from result")
	}
	// User 10's similar user (11) earned badge 2.
	badges := entityIDs(res["badge"])
	if len(badges) != 1 || badges[0] != 2 {
		t.Errorf("badge suggestions = %v, want [2]", badges)
	}
}

func TestSuggestUnknownItemSkipped(t *testing.T) {
	f := newFixture(t, nil)

	res, err := f.engine.Suggest(context.Background(), f.user(t, 10), []string{"reward"}, 0)
	if err != nil {
		t.Fatalf("Suggest: %v", err)
	}
	if _, ok := res["reward"]; ok {
		t.Error("unknown item present in result")
	}
}

// failingSearchClient fails every Search call.
type failingSearchClient struct {
	*search.MemoryClient
}

func (c *failingSearchClient) Search(context.Context, string, search.Request) ([]search.Hit, error) {
	return nil, search.ErrUnavailable
}

func TestSuggestDegradesPerItem(t *testing.T) {
	s := settings.NewMemory(nil)
	reg := recommend.NewRegistry()
	if err := reg.Register(s, items.All()...); err != nil {
		t.Fatalf("Register: %v", err)
	}

	client := &failingSearchClient{search.NewMemoryClient()}
	engine := New(client, seedStore(), s, zerolog.Nop())
	engine.SetActiveItems(reg.ActiveItems())

	st := seedStore()
	u, _ := st.FindByID(context.Background(), models.KindUser, 10)
	res, err := engine.Suggest(context.Background(), u, []string{"activity"}, 0)
	if err != nil {
		t.Fatalf("Suggest must not fail the whole call: %v", err)
	}
	if got, ok := res["activity"]; !ok || len(got) != 0 {
		t.Errorf("degraded key = %v, want present and empty", got)
	}
}

func TestSuggestStickyRules(t *testing.T) {
	s := settings.NewMemory(nil)
	reg := recommend.NewRegistry()

	sticky := items.Activity()
	sticky.StickyRules = map[string]any{"categories": "food"}
	if err := reg.Register(s, sticky, items.User()); err != nil {
		t.Fatalf("Register: %v", err)
	}

	st := store.NewMemory()
	st.Add(
		// Same priority so the sticky boost decides the order.
		&models.Activity{ID: 1, Title: "Cooking class", Categories: []string{"food"},
			Priority: 5, IsPublished: true},
		&models.Activity{ID: 2, Title: "Chess night", Categories: []string{"games"},
			Priority: 5, IsPublished: true},
		&models.User{ID: 10},
	)
	client := search.NewMemoryClient()
	engine := New(client, st, s, zerolog.Nop())
	engine.SetActiveItems(reg.ActiveItems())

	ctx := context.Background()
	if err := engine.Boot(ctx); err != nil {
		t.Fatalf("Boot: %v", err)
	}
	if err := engine.Populate(ctx, nil); err != nil {
		t.Fatalf("Populate: %v", err)
	}

	u, _ := st.FindByID(ctx, models.KindUser, 10)
	res, err := engine.Suggest(ctx, u, []string{"activity"}, 0)
	if err != nil {
		t.Fatalf("Suggest: %v", err)
	}
	got := entityIDs(res["activity"])
	// Sticky rules boost, never gate: both activities appear, the sticky
	// match first.
	if len(got) != 2 || got[0] != 1 {
		t.Fatalf("suggestions = %v, want sticky activity 1 first of 2", got)
	}
}

func TestTopItems(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	t.Run("anonymous ranks by popularity then weight", func(t *testing.T) {
		res, err := f.engine.TopItems(ctx, []string{"activity"}, nil, 0)
		if err != nil {
			t.Fatalf("TopItems: %v", err)
		}
		// Completions: a1=2, a3=2, a2=1, a4=0; the a1/a3 tie breaks on
		// priority (7 beats 5).
		got := entityIDs(res["activity"])
		want := []int64{3, 1, 2, 4}
		if len(got) != len(want) {
			t.Fatalf("top = %v, want %v", got, want)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Fatalf("top = %v, want %v", got, want)
			}
		}
	})

	t.Run("user exclusion", func(t *testing.T) {
		res, err := f.engine.TopItems(ctx, []string{"activity"}, f.user(t, 10), 0)
		if err != nil {
			t.Fatalf("TopItems: %v", err)
		}
		got := entityIDs(res["activity"])
		want := []int64{3, 4}
		if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
			t.Fatalf("top = %v, want %v", got, want)
		}
	})
}

func TestTopItemsPopularityPrefersUserRelation(t *testing.T) {
	s := settings.NewMemory(nil)
	reg := recommend.NewRegistry()

	// A second relation whose target key sorts before "user" must not
	// hijack the popularity signal.
	d := items.Activity()
	d.Relations["badges"] = "badge"
	if err := reg.Register(s, d, items.Badge(), items.User()); err != nil {
		t.Fatalf("Register: %v", err)
	}

	st := store.NewMemory()
	st.Add(
		&models.Activity{ID: 1, Title: "Morning run", Priority: 1, IsPublished: true, UserIDs: []int64{10, 11}},
		&models.Activity{ID: 2, Title: "Evening run", Priority: 9, IsPublished: true, UserIDs: []int64{10}},
		&models.User{ID: 10, ActivityIDs: []int64{1, 2}},
		&models.User{ID: 11, ActivityIDs: []int64{1}},
	)
	client := search.NewMemoryClient()
	engine := New(client, st, s, zerolog.Nop())
	engine.SetActiveItems(reg.ActiveItems())

	ctx := context.Background()
	if err := engine.Boot(ctx); err != nil {
		t.Fatalf("Boot: %v", err)
	}
	if err := engine.Populate(ctx, nil); err != nil {
		t.Fatalf("Populate: %v", err)
	}

	res, err := engine.TopItems(ctx, []string{"activity"}, nil, 0)
	if err != nil {
		t.Fatalf("TopItems: %v", err)
	}
	// Completion breadth (2 beats 1) must outrank weight.
	got := entityIDs(res["activity"])
	if len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Fatalf("top = %v, want [1 2]", got)
	}
}

func TestItemsByWeight(t *testing.T) {
	f := newFixture(t, nil)

	res, err := f.engine.ItemsByWeight(context.Background(), []string{"activity"}, nil, 0)
	if err != nil {
		t.Fatalf("ItemsByWeight: %v", err)
	}
	got := entityIDs(res["activity"])
	want := []int64{2, 3, 1, 4} // priority 9, 7, 5, 1
	if len(got) != len(want) {
		t.Fatalf("by weight = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("by weight = %v, want %v", got, want)
		}
	}
}

func TestHydrationPreservesOrderAndSkipsMissing(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	// Index a document whose source row no longer exists.
	if err := f.client.Upsert(ctx, f.engine.index, "activity", "99", map[string]any{
		"title": "Ghost", "priority": 100,
	}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	res, err := f.engine.ItemsByWeight(ctx, []string{"activity"}, nil, 0)
	if err != nil {
		t.Fatalf("ItemsByWeight: %v", err)
	}
	got := entityIDs(res["activity"])
	if len(got) == 0 || got[0] != 2 {
		t.Fatalf("by weight = %v, want ghost dropped and 2 first", got)
	}
	for _, id := range got {
		if id == 99 {
			t.Error("deleted source entity hydrated")
		}
	}
}
