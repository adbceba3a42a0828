// Recommender - Engagement Platform Recommendation Service
// Copyright 2026 Loyaltyworks Engineering
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/loyaltyworks/recommender

// Package items declares the recommendable item descriptors of the
// engagement platform: activities, badges and the user profile item that
// powers collaborative filtering.
package items

import (
	"context"
	"strings"
	"time"

	"github.com/loyaltyworks/recommender/internal/models"
	"github.com/loyaltyworks/recommender/internal/recommend"
	"github.com/loyaltyworks/recommender/internal/search"
	"github.com/loyaltyworks/recommender/internal/store"
)

// timeNow is swapped in tests exercising day-of-week filtering.
var timeNow = time.Now

// Events that drive index updates.
const (
	EventActivityCompleted = "friends.activityCompleted"
	EventBadgeEarned       = "friends.badgeEarned"
)

// All returns every descriptor the platform registers, in registration
// order.
func All() []*recommend.Descriptor {
	return []*recommend.Descriptor{Activity(), Badge(), User()}
}

// Activity describes the recommendable activity item.
func Activity() *recommend.Descriptor {
	return &recommend.Descriptor{
		Key:           "activity",
		Name:          "Activities",
		Description:   "Program activities the user has not completed yet.",
		SourceKind:    models.KindActivity,
		AdminEditable: true,
		Scope: store.Scope{
			Kind:  models.KindActivity,
			Where: map[string]any{"is_published": true, "is_archived": false},
		},
		Features: []recommend.Field{
			{Name: "title"},
			{Name: "description"},
			{Name: "categories", Type: "keyword"},
			{Name: "users", Type: "keyword"},
		},
		Filters: []recommend.Field{
			{Name: "time_restriction", Type: "keyword"},
			{Name: "time_restriction_days", Type: "keyword"},
		},
		WeightFeatures: []recommend.Field{
			{Name: "priority", Type: "integer"},
		},
		Relations: map[string]string{"users": "user"},
		FieldExtractors: map[string]recommend.ExtractorFunc{
			"time_restriction":      extractTimeRestriction,
			"time_restriction_days": extractTimeRestrictionDays,
		},
		FilterBuilders: map[string]recommend.FilterBuilderFunc{
			"time_restriction": timeRestrictionFilter,
		},
		UpdateTriggers: []recommend.Trigger{
			{Event: EventActivityCompleted},
		},
	}
}

// Badge describes the recommendable badge item.
func Badge() *recommend.Descriptor {
	return &recommend.Descriptor{
		Key:           "badge",
		Name:          "Badges",
		Description:   "Badges the user has not earned yet.",
		SourceKind:    models.KindBadge,
		AdminEditable: true,
		Scope: store.Scope{
			Kind:  models.KindBadge,
			Where: map[string]any{"is_published": true},
		},
		Features: []recommend.Field{
			{Name: "title"},
			{Name: "description"},
			{Name: "categories", Type: "keyword"},
			{Name: "users", Type: "keyword"},
		},
		WeightFeatures: []recommend.Field{
			{Name: "priority", Type: "integer"},
		},
		Relations: map[string]string{"users": "user"},
		UpdateTriggers: []recommend.Trigger{
			{Event: EventBadgeEarned},
		},
	}
}

// User describes the user profile item. It is never recommended itself
// and never admin-configurable; its documents exist so the engine can
// find users with similar completion histories.
func User() *recommend.Descriptor {
	return &recommend.Descriptor{
		Key:           "user",
		Name:          "Users",
		Description:   "User completion profiles powering collaborative filtering.",
		SourceKind:    models.KindUser,
		AdminEditable: false,
		Scope:         store.Scope{Kind: models.KindUser},
		Features: []recommend.Field{
			{Name: "activities", Type: "keyword"},
			{Name: "badges", Type: "keyword"},
		},
		Relations: map[string]string{
			"activities": "activity",
			"badges":     "badge",
		},
		UpdateTriggers: []recommend.Trigger{
			{Event: EventActivityCompleted},
			{Event: EventBadgeEarned},
		},
	}
}

// extractTimeRestriction normalizes the empty restriction to the literal
// "none" so it can be matched with a plain term clause.
func extractTimeRestriction(_ context.Context, _ store.Query, e store.Entity) (any, error) {
	v, _ := e.Attribute("time_restriction")
	s, _ := v.(string)
	if s == "" {
		return "none", nil
	}
	return s, nil
}

// extractTimeRestrictionDays flattens the weekday availability map into
// the list of allowed lowercase day names.
func extractTimeRestrictionDays(_ context.Context, _ store.Query, e store.Entity) (any, error) {
	a, ok := e.(*models.Activity)
	if !ok || len(a.TimeRestrictionDays) == 0 {
		return nil, nil
	}
	var days []string
	for day, allowed := range a.TimeRestrictionDays {
		if allowed {
			days = append(days, strings.ToLower(day))
		}
	}
	return days, nil
}

// timeRestrictionFilter keeps activities with no restriction or whose
// day-of-week restriction allows today.
//
// TODO: add a range clause to the query DSL so date_range restrictions
// filter server-side instead of passing through.
func timeRestrictionFilter() search.Query {
	today := strings.ToLower(timeNow().Weekday().String())
	return search.Query{Bool: &search.BoolQuery{
		Should: []search.Query{
			{Term: map[string]any{"time_restriction": "none"}},
			{Term: map[string]any{"time_restriction": "date_range"}},
			{Term: map[string]any{"time_restriction_days": today}},
		},
	}}
}
