// Ludex - Personalized Game Catalog and Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ludex

package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

// TestRecordAPIRequest verifies API request counters increment with labels.
func TestRecordAPIRequest(t *testing.T) {
	before := testutil.ToFloat64(APIRequestsTotal.WithLabelValues("GET", "/api/v1/stats", "200"))

	RecordAPIRequest("GET", "/api/v1/stats", "200", 15*time.Millisecond)

	after := testutil.ToFloat64(APIRequestsTotal.WithLabelValues("GET", "/api/v1/stats", "200"))
	if after != before+1 {
		t.Errorf("APIRequestsTotal = %v, want %v", after, before+1)
	}
}

func TestTrackActiveRequest(t *testing.T) {
	before := testutil.ToFloat64(APIActiveRequests)

	TrackActiveRequest(true)
	if got := testutil.ToFloat64(APIActiveRequests); got != before+1 {
		t.Errorf("after increment = %v, want %v", got, before+1)
	}

	TrackActiveRequest(false)
	if got := testutil.ToFloat64(APIActiveRequests); got != before {
		t.Errorf("after decrement = %v, want %v", got, before)
	}
}

func TestRecordCatalogRequest(t *testing.T) {
	before := testutil.ToFloat64(CatalogRequestErrors.WithLabelValues("fetch", "unavailable"))

	RecordCatalogRequest("fetch", 20*time.Millisecond, "unavailable")

	after := testutil.ToFloat64(CatalogRequestErrors.WithLabelValues("fetch", "unavailable"))
	if after != before+1 {
		t.Errorf("CatalogRequestErrors = %v, want %v", after, before+1)
	}

	// A successful call records no error
	RecordCatalogRequest("fetch", 20*time.Millisecond, "")
	if got := testutil.ToFloat64(CatalogRequestErrors.WithLabelValues("fetch", "unavailable")); got != after {
		t.Errorf("CatalogRequestErrors after success = %v, want %v", got, after)
	}
}

func TestRecordInteraction(t *testing.T) {
	before := testutil.ToFloat64(InteractionsRecorded.WithLabelValues("wishlist"))

	RecordInteraction("wishlist", 2*time.Millisecond)

	after := testutil.ToFloat64(InteractionsRecorded.WithLabelValues("wishlist"))
	if after != before+1 {
		t.Errorf("InteractionsRecorded = %v, want %v", after, before+1)
	}
}

func TestRecordRecommendation(t *testing.T) {
	before := testutil.ToFloat64(RecommendationEmpty.WithLabelValues("no_candidates"))

	RecordRecommendation(50*time.Millisecond, 0, "no_candidates")

	after := testutil.ToFloat64(RecommendationEmpty.WithLabelValues("no_candidates"))
	if after != before+1 {
		t.Errorf("RecommendationEmpty = %v, want %v", after, before+1)
	}

	// Non-empty results don't touch the empty counter
	RecordRecommendation(50*time.Millisecond, 10, "")
	if got := testutil.ToFloat64(RecommendationEmpty.WithLabelValues("no_candidates")); got != after {
		t.Errorf("RecommendationEmpty after non-empty = %v, want %v", got, after)
	}
}

func TestRecordSweep(t *testing.T) {
	before := testutil.ToFloat64(SweepRemoved)

	RecordSweep(time.Second, 7, nil)

	after := testutil.ToFloat64(SweepRemoved)
	if after != before+7 {
		t.Errorf("SweepRemoved = %v, want %v", after, before+7)
	}

	if got := testutil.ToFloat64(SweepLastSuccess); got == 0 {
		t.Error("SweepLastSuccess should be set after successful sweep")
	}
}

func TestCircuitBreakerMetricLabels(t *testing.T) {
	CircuitBreakerState.WithLabelValues("catalog-api").Set(2)
	if got := testutil.ToFloat64(CircuitBreakerState.WithLabelValues("catalog-api")); got != 2 {
		t.Errorf("CircuitBreakerState = %v, want 2", got)
	}
	CircuitBreakerState.WithLabelValues("catalog-api").Set(0)
}
