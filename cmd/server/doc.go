// Recommender - Engagement Platform Recommendation Service
// Copyright 2026 Loyaltyworks Engineering
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/loyaltyworks/recommender

// Command server runs the recommendation service.
//
// Usage:
//
//	server [command] [flags]
//
// Commands:
//
//	serve        run the HTTP API with event-driven index updates (default)
//	populate     bulk index source entities (-items activity,badge)
//	clean        remove index data (-items activity; -yes for the whole index)
//	update-item  reindex one entity (-item activity -id 42)
//
// Configuration is loaded from built-in defaults, an optional YAML file
// (CONFIG_PATH or ./config.yaml), and RECOMMENDER_* environment
// variables, in that order.
package main
