// Recommender - Engagement Platform Recommendation Service
// Copyright 2026 Loyaltyworks Engineering
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/loyaltyworks/recommender

package main

import (
	"database/sql"
	"fmt"

	"github.com/goccy/go-json"

	"github.com/loyaltyworks/recommender/internal/models"
	"github.com/loyaltyworks/recommender/internal/store"
)

// tableSpecs maps entity kinds onto the engagement platform's replica
// schema. List-valued columns arrive as JSON text; relations live in
// join tables so they can be projected without materializing rows.
func tableSpecs() map[string]store.TableSpec {
	return map[string]store.TableSpec{
		models.KindActivity: {
			Table:    "activities",
			IDColumn: "id",
			Columns: []string{
				"id", "title", "description", "categories", "priority",
				"is_published", "is_archived", "time_restriction", "time_restriction_days",
			},
			Scan: scanActivity,
			Relations: map[string]store.RelationSpec{
				"users": {Table: "activity_users", LocalColumn: "activity_id", RelatedColumn: "user_id"},
			},
		},
		models.KindBadge: {
			Table:    "badges",
			IDColumn: "id",
			Columns: []string{
				"id", "title", "description", "categories", "priority", "is_published",
			},
			Scan: scanBadge,
			Relations: map[string]store.RelationSpec{
				"users": {Table: "badge_users", LocalColumn: "badge_id", RelatedColumn: "user_id"},
			},
		},
		models.KindUser: {
			Table:    "users",
			IDColumn: "id",
			Columns:  []string{"id", "name", "email"},
			Scan:     scanUser,
			Relations: map[string]store.RelationSpec{
				"activities": {Table: "activity_users", LocalColumn: "user_id", RelatedColumn: "activity_id"},
				"badges":     {Table: "badge_users", LocalColumn: "user_id", RelatedColumn: "badge_id"},
			},
		},
	}
}

func scanActivity(rows *sql.Rows) (store.Entity, error) {
	var (
		a           models.Activity
		description sql.NullString
		categories  sql.NullString
		restriction sql.NullString
		days        sql.NullString
	)
	if err := rows.Scan(&a.ID, &a.Title, &description, &categories, &a.Priority,
		&a.IsPublished, &a.IsArchived, &restriction, &days); err != nil {
		return nil, err
	}
	a.Description = description.String
	a.TimeRestriction = restriction.String
	if err := decodeJSONColumn(categories, &a.Categories); err != nil {
		return nil, fmt.Errorf("activity %d: categories: %w", a.ID, err)
	}
	if err := decodeJSONColumn(days, &a.TimeRestrictionDays); err != nil {
		return nil, fmt.Errorf("activity %d: time_restriction_days: %w", a.ID, err)
	}
	return &a, nil
}

func scanBadge(rows *sql.Rows) (store.Entity, error) {
	var (
		b           models.Badge
		description sql.NullString
		categories  sql.NullString
	)
	if err := rows.Scan(&b.ID, &b.Title, &description, &categories,
		&b.Priority, &b.IsPublished); err != nil {
		return nil, err
	}
	b.Description = description.String
	if err := decodeJSONColumn(categories, &b.Categories); err != nil {
		return nil, fmt.Errorf("badge %d: categories: %w", b.ID, err)
	}
	return &b, nil
}

func scanUser(rows *sql.Rows) (store.Entity, error) {
	var (
		u     models.User
		email sql.NullString
	)
	if err := rows.Scan(&u.ID, &u.Name, &email); err != nil {
		return nil, err
	}
	u.Email = email.String
	return &u, nil
}

func decodeJSONColumn(col sql.NullString, dst any) error {
	if !col.Valid || col.String == "" {
		return nil
	}
	return json.Unmarshal([]byte(col.String), dst)
}
