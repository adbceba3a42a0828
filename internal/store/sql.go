// Recommender - Engagement Platform Recommendation Service
// Copyright 2026 Loyaltyworks Engineering
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/loyaltyworks/recommender

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/loyaltyworks/recommender/internal/metrics"
)

// RelationSpec describes how a relation field maps onto a join table.
type RelationSpec struct {
	// Table is the join table, e.g. "activity_user".
	Table string

	// LocalColumn references the owning entity's id, e.g. "activity_id".
	LocalColumn string

	// RelatedColumn references the related entity's id, e.g. "user_id".
	RelatedColumn string
}

// TableSpec describes how a kind maps onto a SQL table.
//
// Scan converts one result row into an Entity; its column order must match
// Columns with the id column first.
type TableSpec struct {
	Table     string
	IDColumn  string
	Columns   []string
	Scan      func(rows *sql.Rows) (Entity, error)
	Relations map[string]RelationSpec
}

// SQL is a Query implementation over database/sql.
//
// The engine consumes it read-only; schema ownership stays with the source
// application. The default deployment opens it against DuckDB, but any
// driver with positional placeholders works.
type SQL struct {
	db     *sql.DB
	specs  map[string]TableSpec
	logger zerolog.Logger
}

// NewSQL creates a SQL read adapter for the given kind-to-table specs.
func NewSQL(db *sql.DB, specs map[string]TableSpec, logger zerolog.Logger) *SQL {
	return &SQL{
		db:     db,
		specs:  specs,
		logger: logger.With().Str("component", "store").Logger(),
	}
}

func (s *SQL) spec(kind string) (TableSpec, error) {
	sp, ok := s.specs[kind]
	if !ok {
		return TableSpec{}, fmt.Errorf("store: no table spec for kind %q", kind)
	}
	return sp, nil
}

// whereClause renders the scope conditions as a deterministic WHERE clause.
func whereClause(where map[string]any) (string, []any) {
	if len(where) == 0 {
		return "", nil
	}
	fields := make([]string, 0, len(where))
	for f := range where {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	var (
		conds []string
		args  []any
	)
	for _, f := range fields {
		conds = append(conds, f+" = ?")
		args = append(args, where[f])
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// Count implements Query.
func (s *SQL) Count(ctx context.Context, scope Scope) (_ int64, err error) {
	defer recordQuery("count", scope.Kind, time.Now(), &err)
	sp, err := s.spec(scope.Kind)
	if err != nil {
		return 0, err
	}
	clause, args := whereClause(scope.Where)
	var n int64
	err = s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+sp.Table+clause, args...).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("store: count %s: %w", scope.Kind, err)
	}
	return n, nil
}

// Page implements Query. Rows are ordered by the id column so repeated
// pagination over an unchanged table visits every row exactly once.
func (s *SQL) Page(ctx context.Context, scope Scope, offset, size int) (_ []Entity, err error) {
	defer recordQuery("page", scope.Kind, time.Now(), &err)
	sp, err := s.spec(scope.Kind)
	if err != nil {
		return nil, err
	}
	clause, args := whereClause(scope.Where)
	query := fmt.Sprintf("SELECT %s FROM %s%s ORDER BY %s LIMIT %d OFFSET %d",
		strings.Join(sp.Columns, ", "), sp.Table, clause, sp.IDColumn, size, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: page %s: %w", scope.Kind, err)
	}
	defer rows.Close()

	var out []Entity
	for rows.Next() {
		e, err := sp.Scan(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan %s: %w", scope.Kind, err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// FindByID implements Query.
func (s *SQL) FindByID(ctx context.Context, kind string, id int64) (Entity, error) {
	entities, err := s.FindByIDs(ctx, kind, []int64{id})
	if err != nil {
		return nil, err
	}
	if len(entities) == 0 {
		return nil, fmt.Errorf("%w: kind %q id %d", ErrNotFound, kind, id)
	}
	return entities[0], nil
}

// FindByIDs implements Query. Order is not guaranteed.
func (s *SQL) FindByIDs(ctx context.Context, kind string, ids []int64) (_ []Entity, err error) {
	if len(ids) == 0 {
		return nil, nil
	}
	defer recordQuery("find_by_ids", kind, time.Now(), &err)
	sp, err := s.spec(kind)
	if err != nil {
		return nil, err
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s IN (%s)",
		strings.Join(sp.Columns, ", "), sp.Table, sp.IDColumn, placeholders)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: find %s by ids: %w", kind, err)
	}
	defer rows.Close()

	var out []Entity
	for rows.Next() {
		e, err := sp.Scan(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan %s: %w", kind, err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// DistinctRelatedIDs implements Query with a projection over the relation's
// join table. Related rows are never materialized; this keeps memory flat
// even when a relation spans hundreds of thousands of rows.
func (s *SQL) DistinctRelatedIDs(ctx context.Context, e Entity, relationField string) (_ []int64, err error) {
	defer recordQuery("related_ids", e.EntityKind(), time.Now(), &err)
	sp, err := s.spec(e.EntityKind())
	if err != nil {
		return nil, err
	}
	rel, ok := sp.Relations[relationField]
	if !ok {
		return nil, fmt.Errorf("store: kind %q has no relation %q", e.EntityKind(), relationField)
	}

	query := fmt.Sprintf("SELECT DISTINCT %s FROM %s WHERE %s = ?",
		rel.RelatedColumn, rel.Table, rel.LocalColumn)

	rows, err := s.db.QueryContext(ctx, query, e.EntityID())
	if err != nil {
		return nil, fmt.Errorf("store: related ids %s.%s: %w", e.EntityKind(), relationField, err)
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("store: scan related id: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// recordQuery observes one store query. Deferred, so the error pointer
// reads the named return after it settles.
func recordQuery(operation, kind string, start time.Time, err *error) {
	metrics.RecordDBQuery(operation, kind, time.Since(start), *err)
}

// Ping verifies the underlying connection is alive.
func (s *SQL) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return errors.Join(errors.New("store: database unreachable"), err)
	}
	return nil
}
