// Recommender - Engagement Platform Recommendation Service
// Copyright 2026 Loyaltyworks Engineering
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/loyaltyworks/recommender

package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/loyaltyworks/recommender/internal/config"
	"github.com/loyaltyworks/recommender/internal/models"
	"github.com/loyaltyworks/recommender/internal/recommend"
	"github.com/loyaltyworks/recommender/internal/recommend/items"
	"github.com/loyaltyworks/recommender/internal/recommend/searchengine"
	"github.com/loyaltyworks/recommender/internal/search"
	"github.com/loyaltyworks/recommender/internal/settings"
	"github.com/loyaltyworks/recommender/internal/store"
)

func seedStore() *store.Memory {
	m := store.NewMemory()
	m.Add(
		&models.Activity{ID: 1, Title: "Morning run", Categories: []string{"fitness"},
			Priority: 5, IsPublished: true, UserIDs: []int64{10, 11}},
		&models.Activity{ID: 2, Title: "Evening run", Categories: []string{"fitness"},
			Priority: 9, IsPublished: true, UserIDs: []int64{10}},
		&models.Activity{ID: 3, Title: "Trail hike", Categories: []string{"outdoors"},
			Priority: 7, IsPublished: true, UserIDs: []int64{11, 12}},
		&models.Activity{ID: 4, Title: "Cooking class", Categories: []string{"food"},
			Priority: 1, IsPublished: true},

		&models.Badge{ID: 1, Title: "Early bird", Priority: 3, IsPublished: true, UserIDs: []int64{10}},

		&models.User{ID: 10, Name: "Ada", ActivityIDs: []int64{1, 2}, BadgeIDs: []int64{1}},
		&models.User{ID: 11, Name: "Grace", ActivityIDs: []int64{1, 3}},
		&models.User{ID: 12, Name: "Alan", ActivityIDs: []int64{3}},
	)
	return m
}

// newServer stands up the full stack on the in-memory store and search
// client and returns the router plus the manager behind it.
func newServer(t *testing.T) (http.Handler, *store.Memory) {
	t.Helper()

	st := seedStore()
	s := settings.NewMemory(nil)
	manager := recommend.NewManager(s, zerolog.Nop())
	if err := manager.RegisterItems(items.All()...); err != nil {
		t.Fatalf("RegisterItems: %v", err)
	}

	engine := searchengine.New(search.NewMemoryClient(), st, s, zerolog.Nop())
	ctx := context.Background()
	if err := manager.RegisterBackends(ctx, engine); err != nil {
		t.Fatalf("RegisterBackends: %v", err)
	}
	if err := manager.PopulateEngine(ctx, nil); err != nil {
		t.Fatalf("PopulateEngine: %v", err)
	}

	handler := NewHandler(manager, st, zerolog.Nop())
	handler.AddReadyCheck("store", func(context.Context) error { return nil })

	cfg := config.ServerConfig{CORSOrigins: []string{"*"}}
	return NewRouter(cfg, handler), st
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *APIError       `json:"error"`
}

func doRequest(t *testing.T, h http.Handler, method, path, body string) (int, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode %s %s: %v (body %q)", method, path, err, rec.Body.String())
	}
	return rec.Code, env
}

func resultIDs(t *testing.T, data json.RawMessage, key string) []int64 {
	t.Helper()
	var res map[string][]struct {
		ID int64 `json:"id"`
	}
	if err := json.Unmarshal(data, &res); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	out := make([]int64, 0, len(res[key]))
	for _, e := range res[key] {
		out = append(out, e.ID)
	}
	return out
}

func TestHealthEndpoints(t *testing.T) {
	h, _ := newServer(t)

	code, env := doRequest(t, h, http.MethodGet, "/api/v1/health/live", "")
	if code != http.StatusOK || !env.Success {
		t.Fatalf("live: code=%d success=%v", code, env.Success)
	}

	code, env = doRequest(t, h, http.MethodGet, "/api/v1/health/ready", "")
	if code != http.StatusOK || !env.Success {
		t.Fatalf("ready: code=%d success=%v", code, env.Success)
	}
}

func TestHealthReadyReportsFailure(t *testing.T) {
	st := seedStore()
	s := settings.NewMemory(nil)
	manager := recommend.NewManager(s, zerolog.Nop())
	handler := NewHandler(manager, st, zerolog.Nop())
	handler.AddReadyCheck("search", func(context.Context) error {
		return errors.New("connection refused")
	})
	h := NewRouter(config.ServerConfig{CORSOrigins: []string{"*"}}, handler)

	code, env := doRequest(t, h, http.MethodGet, "/api/v1/health/ready", "")
	if code != http.StatusServiceUnavailable {
		t.Fatalf("code = %d, want 503", code)
	}
	if env.Error == nil || env.Error.Code != ErrCodeServiceUnavailable {
		t.Fatalf("error = %+v", env.Error)
	}
}

func TestSuggestionsEndpoint(t *testing.T) {
	h, _ := newServer(t)

	code, env := doRequest(t, h, http.MethodGet, "/api/v1/users/10/suggestions?items=activity", "")
	if code != http.StatusOK {
		t.Fatalf("code = %d, body error %+v", code, env.Error)
	}
	ids := resultIDs(t, env.Data, "activity")
	if len(ids) == 0 || ids[0] != 3 {
		t.Errorf("activity suggestions = %v, want [3 ...]", ids)
	}
	for _, id := range ids {
		if id == 1 || id == 2 {
			t.Errorf("suggestions include completed activity %d", id)
		}
	}
}

func TestSuggestionsUserErrors(t *testing.T) {
	h, _ := newServer(t)

	code, env := doRequest(t, h, http.MethodGet, "/api/v1/users/999/suggestions", "")
	if code != http.StatusNotFound || env.Error == nil || env.Error.Code != ErrCodeNotFound {
		t.Fatalf("missing user: code=%d err=%+v", code, env.Error)
	}

	code, env = doRequest(t, h, http.MethodGet, "/api/v1/users/abc/suggestions", "")
	if code != http.StatusBadRequest || env.Error == nil || env.Error.Code != ErrCodeBadRequest {
		t.Fatalf("bad user id: code=%d err=%+v", code, env.Error)
	}
}

func TestTopItemsEndpoint(t *testing.T) {
	h, _ := newServer(t)

	code, env := doRequest(t, h, http.MethodGet, "/api/v1/recommendations/top?items=activity", "")
	if code != http.StatusOK {
		t.Fatalf("code = %d", code)
	}
	ids := resultIDs(t, env.Data, "activity")
	if len(ids) != 4 || ids[0] != 3 {
		t.Errorf("top activities = %v, want 4 entries led by 3", ids)
	}

	// Personalized: user 10 already completed activities 1 and 2.
	code, env = doRequest(t, h, http.MethodGet,
		"/api/v1/recommendations/top?items=activity&user_id=10", "")
	if code != http.StatusOK {
		t.Fatalf("code = %d", code)
	}
	for _, id := range resultIDs(t, env.Data, "activity") {
		if id == 1 || id == 2 {
			t.Errorf("personalized top includes completed activity %d", id)
		}
	}
}

func TestByWeightEndpointWithLimit(t *testing.T) {
	h, _ := newServer(t)

	code, env := doRequest(t, h, http.MethodGet,
		"/api/v1/recommendations/by-weight?items=activity&limit=2", "")
	if code != http.StatusOK {
		t.Fatalf("code = %d", code)
	}
	ids := resultIDs(t, env.Data, "activity")
	want := []int64{2, 3}
	if len(ids) != len(want) || ids[0] != want[0] || ids[1] != want[1] {
		t.Errorf("by-weight = %v, want %v", ids, want)
	}
}

func TestItemsEndpoint(t *testing.T) {
	h, _ := newServer(t)

	code, env := doRequest(t, h, http.MethodGet, "/api/v1/items", "")
	if code != http.StatusOK {
		t.Fatalf("code = %d", code)
	}
	var listed []itemSummary
	if err := json.Unmarshal(env.Data, &listed); err != nil {
		t.Fatalf("decode items: %v", err)
	}
	keys := make(map[string]bool, len(listed))
	for _, it := range listed {
		keys[it.Key] = true
	}
	if !keys["activity"] || !keys["badge"] {
		t.Errorf("items = %v, want activity and badge", keys)
	}
	if keys["user"] {
		t.Error("hidden user item listed without all=true")
	}

	code, env = doRequest(t, h, http.MethodGet, "/api/v1/items?all=true", "")
	if code != http.StatusOK {
		t.Fatalf("code = %d", code)
	}
	if err := json.Unmarshal(env.Data, &listed); err != nil {
		t.Fatalf("decode items: %v", err)
	}
	if len(listed) != 3 {
		t.Errorf("all items = %d, want 3", len(listed))
	}
}

func TestCleanRequiresConfirm(t *testing.T) {
	h, _ := newServer(t)

	code, env := doRequest(t, h, http.MethodPost, "/api/v1/admin/clean", `{}`)
	if code != http.StatusBadRequest || env.Error == nil {
		t.Fatalf("unconfirmed clean: code=%d err=%+v", code, env.Error)
	}

	code, _ = doRequest(t, h, http.MethodPost, "/api/v1/admin/clean", `{"confirm":true}`)
	if code != http.StatusOK {
		t.Fatalf("confirmed clean: code=%d", code)
	}

	// Scoped clean needs no confirm flag.
	code, _ = doRequest(t, h, http.MethodPost, "/api/v1/admin/clean", `{"items":["activity"]}`)
	if code != http.StatusOK {
		t.Fatalf("scoped clean: code=%d", code)
	}
}

func TestPopulateEndpoint(t *testing.T) {
	h, _ := newServer(t)

	code, _ := doRequest(t, h, http.MethodPost, "/api/v1/admin/populate", `{"items":["activity"]}`)
	if code != http.StatusOK {
		t.Fatalf("populate: code=%d", code)
	}

	code, env := doRequest(t, h, http.MethodPost, "/api/v1/admin/populate", `{"items":["bogus"]}`)
	if code != http.StatusNotFound || env.Error == nil || env.Error.Code != ErrCodeNotFound {
		t.Fatalf("unknown item: code=%d err=%+v", code, env.Error)
	}
}

func TestReindexEndpoint(t *testing.T) {
	h, st := newServer(t)

	// New activity added after populate only appears once reindexed.
	st.Add(&models.Activity{ID: 9, Title: "Bouldering", Priority: 4, IsPublished: true})

	code, _ := doRequest(t, h, http.MethodPost, "/api/v1/admin/items/activity/entities/9/reindex", "")
	if code != http.StatusOK {
		t.Fatalf("reindex: code=%d", code)
	}

	code, env := doRequest(t, h, http.MethodGet, "/api/v1/recommendations/top?items=activity", "")
	if code != http.StatusOK {
		t.Fatalf("top after reindex: code=%d", code)
	}
	found := false
	for _, id := range resultIDs(t, env.Data, "activity") {
		if id == 9 {
			found = true
		}
	}
	if !found {
		t.Error("reindexed activity 9 missing from results")
	}

	code, env = doRequest(t, h, http.MethodPost, "/api/v1/admin/items/activity/entities/abc/reindex", "")
	if code != http.StatusBadRequest {
		t.Fatalf("bad id: code=%d err=%+v", code, env.Error)
	}
}

func TestUnknownRouteReturns404(t *testing.T) {
	h, _ := newServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/nope", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("code = %d, want 404", rec.Code)
	}
}
