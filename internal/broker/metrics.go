// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package broker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	fsmTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tvbroker_binding_transitions_total",
		Help: "Provider binding state transitions.",
	}, []string{"state_from", "state_to"})

	sessionsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tvbroker_sessions_created_total",
		Help: "Session creations by outcome.",
	}, []string{"outcome"})

	sessionsReleased = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tvbroker_sessions_released_total",
		Help: "Sessions torn down.",
	})

	sessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tvbroker_sessions_active",
		Help: "Sessions currently tracked, pending or active.",
	})

	pendingOpsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tvbroker_pending_ops_total",
		Help: "Tracked input operations by resolution.",
	}, []string{"result"})

	eventsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tvbroker_events_dropped_total",
		Help: "Client notifications dropped by reason.",
	}, []string{"reason"})

	eventsDelivered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tvbroker_events_delivered_total",
		Help: "Client notifications delivered in order.",
	})

	bindAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tvbroker_bind_attempts_total",
		Help: "Backend bind attempts by outcome.",
	}, []string{"outcome"})

	backendDisconnects = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tvbroker_backend_disconnects_total",
		Help: "Unexpected backend disconnects observed.",
	})
)
