// vaultkeep - Encrypted Incremental Backup Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vaultkeep

/*
Package metrics exposes the Prometheus instrumentation for the backup
engine: per-run duration, bytes moved, dedupe skips, and destination
circuit breaker state.
*/
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RunDuration records how long each scheduler run takes, labeled by
	// the backup it ran for and its terminal status.
	RunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vaultkeep_run_duration_seconds",
			Help:    "Duration of a backup scheduler run",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 14),
		},
		[]string{"backup", "status"},
	)

	// BytesTransferred counts source (plaintext) bytes backed up to a
	// destination.
	BytesTransferred = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vaultkeep_bytes_transferred_total",
			Help: "Total source bytes backed up to a backup destination",
		},
		[]string{"backup"},
	)

	// ObjectsUpserted counts catalogue rows written per run.
	ObjectsUpserted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vaultkeep_objects_upserted_total",
			Help: "Total backup object catalogue rows upserted",
		},
		[]string{"backup"},
	)

	// DedupeSkips counts candidates skipped because their sourcehash
	// already matched the catalogue.
	DedupeSkips = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vaultkeep_dedupe_skips_total",
			Help: "Total candidates skipped due to an unchanged sourcehash",
		},
		[]string{"backup"},
	)

	// FileErrors counts per-file errors isolated during a run (a single
	// file's failure never aborts the run).
	FileErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vaultkeep_file_errors_total",
			Help: "Total per-file errors encountered during backup runs",
		},
		[]string{"backup", "error_kind"},
	)

	// CircuitBreakerState reports the gobreaker state of each destination
	// provider: 0 closed, 1 half-open, 2 open.
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "vaultkeep_destination_circuit_breaker_state",
			Help: "Destination provider circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"destination"},
	)

	// CircuitBreakerTransitions counts state transitions, for alerting on
	// flapping destinations.
	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vaultkeep_destination_circuit_breaker_transitions_total",
			Help: "Total circuit breaker state transitions per destination",
		},
		[]string{"destination", "from", "to"},
	)

	// ProgressSubscribers reports the number of active progress bus
	// subscribers.
	ProgressSubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "vaultkeep_progress_subscribers",
			Help: "Current number of active progress bus subscribers",
		},
	)
)

// StateToFloat maps a gobreaker state name to the numeric value used by
// CircuitBreakerState.
func StateToFloat(state string) float64 {
	switch state {
	case "closed":
		return 0
	case "half-open":
		return 1
	case "open":
		return 2
	default:
		return -1
	}
}
