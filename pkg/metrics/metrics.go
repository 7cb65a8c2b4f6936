// Package metrics exposes prometheus instrumentation for the network
// selection core. Collectors are registered on the default registry; the
// surrounding service decides whether to serve them.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ThresholdRegistrations tracks active consumer registrations per
	// transport.
	ThresholdRegistrations = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "qns",
		Subsystem: "qualmon",
		Name:      "threshold_registrations",
		Help:      "Active threshold registrations per transport.",
	}, []string{"transport"})

	// Notifications counts listener notifications delivered per transport.
	Notifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "qns",
		Subsystem: "qualmon",
		Name:      "notifications_total",
		Help:      "Threshold match notifications delivered to listeners.",
	}, []string{"transport"})

	// SignalEvents counts platform signal change events processed.
	SignalEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "qns",
		Subsystem: "qualmon",
		Name:      "signal_events_total",
		Help:      "Platform signal change events processed per transport.",
	}, []string{"transport"})

	// PolicyBuilds counts policy builder invocations.
	PolicyBuilds = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "qns",
		Subsystem: "policy",
		Name:      "builds_total",
		Help:      "Selection policy builds.",
	})

	// Evaluations counts evaluator decisions per outcome.
	Evaluations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "qns",
		Subsystem: "evaluator",
		Name:      "evaluations_total",
		Help:      "Evaluator condition evaluations per outcome.",
	}, []string{"outcome"})
)
