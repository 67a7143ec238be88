// Package metrics exposes Prometheus collectors for the poll, record, and
// fan-out pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Poll outcomes used as the "outcome" label of [PollCyclesTotal].
const (
	OutcomeRecorded    = "recorded"
	OutcomeEmpty       = "empty"
	OutcomeFetchFailed = "fetch_failed"
)

// Poller Metrics
var (
	// PollCyclesTotal tracks completed poll cycles by outcome
	PollCyclesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "votewatch_poll_cycles_total",
			Help: "Completed poll cycles by outcome (recorded, empty, fetch_failed)",
		},
		[]string{"outcome"},
	)

	// FetchDuration tracks poll source request latency in seconds
	FetchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "votewatch_fetch_duration_seconds",
			Help:    "Poll source request duration in seconds",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
		},
	)

	// ExtractorPanicsTotal tracks recovered extractor panics
	ExtractorPanicsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "votewatch_extractor_panics_total",
			Help: "Total extractor panics recovered by the scheduler",
		},
	)
)

// History Metrics
var (
	// HistorySize tracks the number of snapshots held in memory
	HistorySize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "votewatch_history_snapshots",
			Help: "Number of snapshots currently held in the history buffer",
		},
	)

	// HistoryResetsTotal tracks administrative history clears
	HistoryResetsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "votewatch_history_resets_total",
			Help: "Total administrative history buffer clears",
		},
	)
)

// Broadcast Metrics
var (
	// ObserversConnected tracks currently registered observers by transport
	ObserversConnected = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "votewatch_observers_connected",
			Help: "Currently registered observers by transport (sse, ws)",
		},
		[]string{"transport"},
	)

	// BroadcastsTotal tracks update events fanned out
	BroadcastsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "votewatch_broadcasts_total",
			Help: "Total update events fanned out to observers",
		},
	)

	// BroadcastDroppedTotal tracks events dropped for observers with a full queue
	BroadcastDroppedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "votewatch_broadcast_dropped_total",
			Help: "Total events dropped because an observer queue was full",
		},
	)

	// DeliveryErrorsTotal tracks transport write failures by transport
	DeliveryErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "votewatch_delivery_errors_total",
			Help: "Total transport write failures by transport (sse, ws)",
		},
		[]string{"transport"},
	)
)

// Archive Metrics
var (
	// ArchiveRowsTotal tracks rows appended to the durable log
	ArchiveRowsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "votewatch_archive_rows_total",
			Help: "Total rows appended to the durable vote log",
		},
	)

	// ArchiveErrorsTotal tracks failed durable log appends
	ArchiveErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "votewatch_archive_errors_total",
			Help: "Total failed appends to the durable vote log",
		},
	)
)
