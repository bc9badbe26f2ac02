package sync

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	connectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "gridboard",
		Name:      "connections_active",
		Help:      "Live websocket connections.",
	})
	messagesReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gridboard",
		Name:      "messages_received_total",
		Help:      "Client messages received, by message type.",
	}, []string{"type"})
	broadcastsSent = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "gridboard",
		Name:      "broadcasts_sent_total",
		Help:      "Envelopes fanned out to non-originating connections.",
	})
	undoOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gridboard",
		Name:      "undo_operations_total",
		Help:      "Undo and redo attempts, by kind and outcome.",
	}, []string{"kind", "outcome"})
)
