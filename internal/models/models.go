// Recommender - Engagement Platform Recommendation Service
// Copyright 2026 Loyaltyworks Engineering
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/loyaltyworks/recommender

// Package models holds the source entities the engine recommends.
//
// These mirror the engagement platform's own models; the recommender only
// reads them. Each implements store.Entity with an explicit Attribute
// switch instead of reflection so a renamed field is a compile-time
// concern, not a runtime surprise.
package models

import (
	"time"
)

// Stable entity kind identifiers, matched against item descriptors.
const (
	KindActivity = "friends.activity"
	KindBadge    = "friends.badge"
	KindUser     = "friends.user"
)

// Activity is a program activity a user can complete.
type Activity struct {
	ID          int64      `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Categories  []string   `json:"categories"`
	Priority    int        `json:"priority"`
	IsPublished bool       `json:"is_published"`
	IsArchived  bool       `json:"is_archived"`
	DateBegin   *time.Time `json:"date_begin,omitempty"`
	DateEnd     *time.Time `json:"date_end,omitempty"`

	// TimeRestriction is "", "days_of_week" or "date_range".
	TimeRestriction string `json:"time_restriction,omitempty"`

	// TimeRestrictionDays maps weekday names to availability when
	// TimeRestriction is "days_of_week".
	TimeRestrictionDays map[string]bool `json:"time_restriction_days,omitempty"`

	// UserIDs are the users who completed this activity.
	UserIDs []int64 `json:"user_ids"`
}

// EntityID implements store.Entity.
func (a *Activity) EntityID() int64 { return a.ID }

// EntityKind implements store.Entity.
func (a *Activity) EntityKind() string { return KindActivity }

// Attribute implements store.Entity.
func (a *Activity) Attribute(name string) (any, bool) {
	switch name {
	case "title":
		return a.Title, true
	case "description":
		return a.Description, true
	case "categories":
		return a.Categories, true
	case "priority":
		return a.Priority, true
	case "is_published":
		return a.IsPublished, true
	case "is_archived":
		return a.IsArchived, true
	case "time_restriction":
		return a.TimeRestriction, true
	case "users":
		return a.UserIDs, true
	default:
		return nil, false
	}
}

// Badge is an award earned by completing activities.
type Badge struct {
	ID          int64    `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Categories  []string `json:"categories"`
	Priority    int      `json:"priority"`
	IsPublished bool     `json:"is_published"`

	// UserIDs are the users who earned this badge.
	UserIDs []int64 `json:"user_ids"`
}

// EntityID implements store.Entity.
func (b *Badge) EntityID() int64 { return b.ID }

// EntityKind implements store.Entity.
func (b *Badge) EntityKind() string { return KindBadge }

// Attribute implements store.Entity.
func (b *Badge) Attribute(name string) (any, bool) {
	switch name {
	case "title":
		return b.Title, true
	case "description":
		return b.Description, true
	case "categories":
		return b.Categories, true
	case "priority":
		return b.Priority, true
	case "is_published":
		return b.IsPublished, true
	case "users":
		return b.UserIDs, true
	default:
		return nil, false
	}
}

// User is a member of the engagement program.
type User struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`

	// ActivityIDs are activities the user has completed.
	ActivityIDs []int64 `json:"activity_ids"`

	// BadgeIDs are badges the user has earned.
	BadgeIDs []int64 `json:"badge_ids"`
}

// EntityID implements store.Entity.
func (u *User) EntityID() int64 { return u.ID }

// EntityKind implements store.Entity.
func (u *User) EntityKind() string { return KindUser }

// Attribute implements store.Entity.
func (u *User) Attribute(name string) (any, bool) {
	switch name {
	case "name":
		return u.Name, true
	case "email":
		return u.Email, true
	case "activities":
		return u.ActivityIDs, true
	case "badges":
		return u.BadgeIDs, true
	default:
		return nil, false
	}
}
