// vaultkeep - Encrypted Incremental Backup Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vaultkeep

package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRunDurationRecordsObservation(t *testing.T) {
	RunDuration.WithLabelValues("nightly-db", "done").Observe(1.5)
	count := testutil.CollectAndCount(RunDuration)
	if count == 0 {
		t.Fatal("expected at least one RunDuration series after Observe")
	}
}

func TestBytesTransferredCounter(t *testing.T) {
	before := testutil.ToFloat64(BytesTransferred.WithLabelValues("nightly-db"))
	BytesTransferred.WithLabelValues("nightly-db").Add(1024)
	after := testutil.ToFloat64(BytesTransferred.WithLabelValues("nightly-db"))
	if after-before != 1024 {
		t.Errorf("BytesTransferred delta = %v, want 1024", after-before)
	}
}

func TestDedupeSkipsCounter(t *testing.T) {
	before := testutil.ToFloat64(DedupeSkips.WithLabelValues("library-backup"))
	DedupeSkips.WithLabelValues("library-backup").Inc()
	after := testutil.ToFloat64(DedupeSkips.WithLabelValues("library-backup"))
	if after-before != 1 {
		t.Errorf("DedupeSkips delta = %v, want 1", after-before)
	}
}

func TestStateToFloat(t *testing.T) {
	cases := map[string]float64{
		"closed":    0,
		"half-open": 1,
		"open":      2,
		"unknown":   -1,
	}
	for state, want := range cases {
		if got := StateToFloat(state); got != want {
			t.Errorf("StateToFloat(%q) = %v, want %v", state, got, want)
		}
	}
}

func TestCircuitBreakerStateGauge(t *testing.T) {
	CircuitBreakerState.WithLabelValues("local-fs").Set(StateToFloat("open"))
	if got := testutil.ToFloat64(CircuitBreakerState.WithLabelValues("local-fs")); got != 2 {
		t.Errorf("CircuitBreakerState = %v, want 2", got)
	}
}
