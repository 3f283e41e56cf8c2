// Package metrics exposes process-level Prometheus counters.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// CallsPlaced counts outbound call placements by outcome (ok|error).
	CallsPlaced = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scheduler_calls_placed_total",
		Help: "Outbound voice calls placed, by outcome.",
	}, []string{"outcome"})

	// WebhooksReceived counts webhook deliveries by reported status.
	WebhooksReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scheduler_webhooks_received_total",
		Help: "Voice provider webhook deliveries, by reported call status.",
	}, []string{"status"})

	// Extractions counts transcript extraction runs by outcome (ok|sentinel).
	Extractions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scheduler_extractions_total",
		Help: "Transcript extraction runs, by outcome.",
	}, []string{"outcome"})

	// SlotLookups counts availability searches by outcome (ok|empty).
	SlotLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scheduler_slot_lookups_total",
		Help: "Calendar availability lookups, by outcome.",
	}, []string{"outcome"})
)

// Handler returns the Prometheus exposition handler for the /metrics route.
func Handler() http.Handler {
	return promhttp.Handler()
}
