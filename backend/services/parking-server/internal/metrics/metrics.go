// Package metrics provides Prometheus collectors for the parking server.
// Labels stay low cardinality: no device ids.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Frame results.
const (
	FrameOK       = "ok"
	FrameChecksum = "checksum"
	FrameLength   = "length"
)

var (
	// FramesTotal counts inbound frames by decode result.
	FramesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "parking_frames_total",
		Help: "Total number of inbound frames, by decode result.",
	}, []string{"result"})

	// RepliesTotal counts replies written to devices by kind.
	RepliesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "parking_replies_total",
		Help: "Total number of replies sent, by kind (zone/close/error).",
	}, []string{"kind"})

	// ConnectionsTotal counts accepted connections.
	ConnectionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "parking_connections_total",
		Help: "Total number of accepted device connections.",
	})

	// LiveConnections tracks connections currently served by a handler.
	LiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "parking_live_connections",
		Help: "Current number of connections served by a session handler.",
	})

	// ActiveSessions tracks sessions currently counting time.
	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "parking_active_sessions",
		Help: "Current number of connected parking sessions.",
	})

	// SessionTransitionsTotal counts store transitions by kind.
	SessionTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "parking_session_transitions_total",
		Help: "Total number of session transitions, by kind (create/resume/finalize/disconnect).",
	}, []string{"kind"})

	// StorageErrorsTotal counts durable storage failures by operation.
	StorageErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "parking_storage_errors_total",
		Help: "Total number of durable storage failures, by operation.",
	}, []string{"op"})

	// ReconcileFlushesTotal counts per session flushes performed by the reconciliation job.
	ReconcileFlushesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "parking_reconcile_flushes_total",
		Help: "Total number of reconciliation flushes, by result.",
	}, []string{"result"})

	// ReconcileTicksTotal counts reconciliation passes.
	ReconcileTicksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "parking_reconcile_ticks_total",
		Help: "Total number of reconciliation passes, including the shutdown flush.",
	})
)
