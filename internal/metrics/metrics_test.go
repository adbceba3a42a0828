// Recommender - Engagement Platform Recommendation Service
// Copyright 2026 Loyaltyworks Engineering
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/loyaltyworks/recommender

package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordDBQuery(t *testing.T) {
	before := testutil.ToFloat64(DBQueryErrors.WithLabelValues("page", "activity"))

	RecordDBQuery("page", "activity", 5*time.Millisecond, nil)
	if got := testutil.ToFloat64(DBQueryErrors.WithLabelValues("page", "activity")); got != before {
		t.Errorf("error counter moved on success: %v -> %v", before, got)
	}

	RecordDBQuery("page", "activity", 5*time.Millisecond, errors.New("boom"))
	if got := testutil.ToFloat64(DBQueryErrors.WithLabelValues("page", "activity")); got != before+1 {
		t.Errorf("error counter = %v, want %v", got, before+1)
	}

	if testutil.CollectAndCount(DBQueryDuration) == 0 {
		t.Error("query duration not observed")
	}
}

func TestRecordSearchRequest(t *testing.T) {
	before := testutil.ToFloat64(SearchRequestErrors.WithLabelValues("upsert"))

	RecordSearchRequest("upsert", time.Millisecond, nil)
	if got := testutil.ToFloat64(SearchRequestErrors.WithLabelValues("upsert")); got != before {
		t.Errorf("error counter moved on success: %v -> %v", before, got)
	}

	RecordSearchRequest("upsert", time.Millisecond, errors.New("boom"))
	if got := testutil.ToFloat64(SearchRequestErrors.WithLabelValues("upsert")); got != before+1 {
		t.Errorf("error counter = %v, want %v", got, before+1)
	}
}

func TestSetCircuitBreakerState(t *testing.T) {
	for state, want := range map[string]float64{"closed": 0, "open": 1, "half-open": 2} {
		SetCircuitBreakerState("nats", state)
		if got := testutil.ToFloat64(CircuitBreakerState.WithLabelValues("nats")); got != want {
			t.Errorf("state %q gauge = %v, want %v", state, got, want)
		}
	}
}
