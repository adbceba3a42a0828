// Recommender - Engagement Platform Recommendation Service
// Copyright 2026 Loyaltyworks Engineering
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/loyaltyworks/recommender

// Package recommend is the core of the recommendation engine: the registry
// of recommendable item types, the backend engine contract, and the
// manager that routes suggestion, population and update traffic to the
// active backend.
//
// # Architecture
//
//   - Descriptor: declarative definition of one recommendable entity type
//     (source kind, feature/filter/weight fields, relations to other item
//     types, sticky rules, update triggers).
//   - Registry: active descriptors keyed by lowercase item key.
//   - Backend: the capability set any search backend must implement
//     (index lifecycle, update, bulk populate/clean, suggest, top items,
//     items by weight).
//   - Manager: top-level orchestrator, dependency-injected into API
//     handlers and CLI commands.
//
// The shipped backend lives in the searchengine subpackage; the shipped
// item descriptors in the items subpackage.
//
// # Item relations
//
// Descriptors reference each other through relation fields (a user relates
// to activities, an activity relates back to users). The relation graph is
// a directed edge list keyed by (item key, relation field) and may contain
// cycles. Lookups are always single-hop by construction; do not "fix"
// this into a recursive traversal, cycles are harmless precisely because
// nothing walks them transitively.
//
// # Thread safety
//
// The registry and the active backend reference are written once during
// startup and read-only afterwards, so concurrent suggest/update calls
// need no locking. Anything request-scoped (such as the backend's
// per-user relation lookups) stays local to the call.
package recommend
