// Package metrics exposes the server's Prometheus collectors. All
// collectors register against the default registry and are served by
// the API server's /metrics endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "animeduel"

var (
	// Joins counts join attempts partitioned by lobby outcome
	// (created, paired, rejected).
	Joins = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "joins_total",
		Help:      "Join attempts by lobby outcome.",
	}, []string{"outcome"})

	// Broadcasts counts room broadcasts partitioned by event name.
	Broadcasts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "room_broadcasts_total",
		Help:      "Events fanned out to game rooms, by event name.",
	}, []string{"event"})

	// CatalogFailures counts content-provider fetches that produced no
	// candidate, including network errors and empty responses.
	CatalogFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "catalog_fetch_failures_total",
		Help:      "Failed or empty catalog fetches during round start.",
	})

	// Connections counts accepted websocket connections.
	Connections = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "connections_total",
		Help:      "Accepted websocket connections.",
	})
)

// RegisterActiveGames registers a gauge that reports the number of
// currently open games. Call it once at startup with the lobby's
// counter.
func RegisterActiveGames(count func() int) {
	promauto.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "active_games",
		Help:      "Games currently open in the lobby.",
	}, func() float64 {
		return float64(count())
	})
}
