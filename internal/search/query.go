// Recommender - Engagement Platform Recommendation Service
// Copyright 2026 Loyaltyworks Engineering
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/loyaltyworks/recommender

package search

// Request is one search execution against a single document type.
type Request struct {
	// Type is the document type to search.
	Type string

	// Query is the root query. A zero Query matches nothing; use
	// MatchAll for an explicit match-everything query.
	Query Query

	// Sort lists sort keys in precedence order. When empty, hits are
	// ordered by descending score.
	Sort []Sort

	// From and Size page the result. Size 0 means the backend default.
	From, Size int
}

// Query is a node of the declarative query tree. Exactly one of the
// fields should be set; Bool composes sub-queries.
type Query struct {
	// MatchAll matches every document of the type.
	MatchAll bool

	// IDs matches documents by id.
	IDs []string

	// Term matches documents whose field equals the value, for every
	// listed field.
	Term map[string]any

	// Terms matches documents whose field contains any of the values.
	Terms map[string][]string

	// MoreLikeThis matches documents textually similar to exemplars.
	MoreLikeThis *MoreLikeThis

	// Bool composes sub-queries.
	Bool *BoolQuery
}

// BoolQuery combines sub-queries with boolean semantics: all of Must,
// none of MustNot. Filter behaves like Must without contributing to the
// score. Should clauses add score; at least one must match only when the
// query has no Must or Filter clause, mirroring minimum_should_match.
type BoolQuery struct {
	Must    []Query
	Should  []Query
	MustNot []Query
	Filter  []Query
}

// MoreLikeThis is a content-similarity query: candidates are scored by
// overlap between their listed fields and the exemplar documents.
type MoreLikeThis struct {
	// Fields are the document fields considered for similarity.
	Fields []string

	// Like are the exemplar documents.
	Like []DocRef

	// Thresholds mirror the classic more_like_this parameters.
	MinTermFreq   int
	MinDocFreq    int
	MaxQueryTerms int
}

// DocRef identifies an already-indexed document used as an exemplar.
type DocRef struct {
	Type string
	ID   string
}

// Sort is a single sort key.
type Sort struct {
	// Field is the document field to sort by. Ignored when ByScore.
	Field string

	// Desc sorts descending when true.
	Desc bool

	// ByLength sorts by the number of values in an array field rather
	// than the value itself (used for "breadth of relation" popularity).
	ByLength bool

	// ByScore sorts by the query score.
	ByScore bool
}

// zero reports whether q is the zero query.
func (q Query) zero() bool {
	return !q.MatchAll && len(q.IDs) == 0 && len(q.Term) == 0 &&
		len(q.Terms) == 0 && q.MoreLikeThis == nil && q.Bool == nil
}
