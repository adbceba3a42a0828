// Recommender - Engagement Platform Recommendation Service
// Copyright 2026 Loyaltyworks Engineering
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/loyaltyworks/recommender

package recommend

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/loyaltyworks/recommender/internal/settings"
	"github.com/loyaltyworks/recommender/internal/store"
)

type testEntity struct {
	id    int64
	kind  string
	attrs map[string]any
}

func (e *testEntity) EntityID() int64    { return e.id }
func (e *testEntity) EntityKind() string { return e.kind }
func (e *testEntity) Attribute(name string) (any, bool) {
	v, ok := e.attrs[name]
	return v, ok
}

// relQuery is a store.Query stub that only answers DistinctRelatedIDs.
type relQuery struct {
	store.Query
	related map[string][]int64
	err     error
}

func (q *relQuery) DistinctRelatedIDs(_ context.Context, _ store.Entity, field string) ([]int64, error) {
	if q.err != nil {
		return nil, q.err
	}
	return q.related[field], nil
}

func TestDataFieldsDeduplicates(t *testing.T) {
	d := &Descriptor{
		Key: "activity",
		Features: []Field{
			{Name: "title"},
			{Name: "priority", Type: "integer"},
		},
		Filters: []Field{
			{Name: "is_published", Type: "boolean"},
		},
		WeightFeatures: []Field{
			{Name: "priority", Type: "integer"}, // also a feature
		},
	}

	fields := d.DataFields()
	if len(fields) != 3 {
		t.Fatalf("DataFields = %v, want 3 unique fields", fields)
	}
	want := []string{"title", "priority", "is_published"}
	for i, f := range fields {
		if f.Name != want[i] {
			t.Errorf("DataFields[%d] = %q, want %q", i, f.Name, want[i])
		}
	}
}

func TestItemDataPrecedence(t *testing.T) {
	d := &Descriptor{
		Key:        "activity",
		SourceKind: "friends.activity",
		Features: []Field{
			{Name: "title"},
			{Name: "label", Type: "keyword"},
			{Name: "users", Type: "keyword"},
		},
		Relations: map[string]string{"users": "user"},
		FieldExtractors: map[string]ExtractorFunc{
			"label": func(context.Context, store.Query, store.Entity) (any, error) {
				return "custom", nil
			},
		},
	}
	e := &testEntity{id: 1, kind: "friends.activity", attrs: map[string]any{
		"title": "Morning run",
		"label": "attribute value, must lose to the extractor",
	}}
	q := &relQuery{related: map[string][]int64{"users": {10, 11, 10}}}

	data := d.ItemData(context.Background(), q, e, zerolog.Nop())

	if data["title"] != "Morning run" {
		t.Errorf("plain attribute = %v", data["title"])
	}
	if data["label"] != "custom" {
		t.Errorf("extractor value = %v, want custom", data["label"])
	}
	users, ok := data["users"].([]string)
	if !ok || len(users) != 2 || users[0] != "10" || users[1] != "11" {
		t.Errorf("relation ids = %v, want [10 11]", data["users"])
	}
}

func TestItemDataFieldErrorYieldsNil(t *testing.T) {
	d := &Descriptor{
		Key:        "activity",
		SourceKind: "friends.activity",
		Features: []Field{
			{Name: "title"},
			{Name: "users", Type: "keyword"},
		},
		Relations: map[string]string{"users": "user"},
	}
	e := &testEntity{id: 1, kind: "friends.activity", attrs: map[string]any{"title": "x"}}
	q := &relQuery{err: errors.New("connection reset")}

	data := d.ItemData(context.Background(), q, e, zerolog.Nop())
	if data["title"] != "x" {
		t.Errorf("healthy field lost: %v", data["title"])
	}
	if v, present := data["users"]; !present || v != nil {
		t.Errorf("failed field = %v, want present and nil", v)
	}
}

func TestRelationFieldTo(t *testing.T) {
	d := &Descriptor{
		Key: "user",
		Relations: map[string]string{
			"activities": "activity",
			"badges":     "badge",
		},
	}
	if got := d.RelationFieldTo("Activity"); got != "activities" {
		t.Errorf("RelationFieldTo(Activity) = %q, want activities", got)
	}
	if got := d.RelationFieldTo("reward"); got != "" {
		t.Errorf("RelationFieldTo(reward) = %q, want empty", got)
	}
}

func TestPluginSettingsPrefixing(t *testing.T) {
	d := activityDescriptor()
	r := NewRegistry()
	if err := r.Register(settings.NewMemory(nil), d); err != nil {
		t.Fatalf("Register: %v", err)
	}

	fields := d.PluginSettings()
	if len(fields) == 0 {
		t.Fatal("no settings fields")
	}
	keys := make(map[string]bool, len(fields))
	for _, f := range fields {
		keys[f.Key] = true
	}
	for _, want := range []string{
		"activity_active",
		"activity_max_recommendations",
		"activity_features",
		"activity_filters",
		"activity_weight_by",
	} {
		if !keys[want] {
			t.Errorf("missing settings field %q in %v", want, keys)
		}
	}
}
