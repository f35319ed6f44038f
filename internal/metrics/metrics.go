// Package metrics exposes the Prometheus instrumentation for the HTTP
// surface and the broadcast layer.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestsTotal counts HTTP requests by method, route, and status.
	RequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tally_http_requests_total",
		Help: "HTTP requests processed, labeled by method, route, and status code.",
	}, []string{"method", "route", "status"})

	// RequestDuration observes request latency by route.
	RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tally_http_request_duration_seconds",
		Help:    "HTTP request latency by route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})

	// BroadcastsTotal counts full-state broadcasts to game rooms.
	BroadcastsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tally_game_broadcasts_total",
		Help: "Authoritative game-updated broadcasts emitted after committed mutations.",
	})

	// ConnectedClients gauges live websocket connections.
	ConnectedClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tally_ws_connected_clients",
		Help: "Currently connected websocket clients.",
	})
)
