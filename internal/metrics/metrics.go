// Package metrics exposes the bot's Prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ExchangeRequests counts REST calls to the exchange by final outcome.
	ExchangeRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "exchange_requests_total",
		Help: "Exchange REST requests by method, path and outcome.",
	}, []string{"method", "path", "outcome"})

	// ExchangeRetries counts request attempts beyond the first.
	ExchangeRetries = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "exchange_request_retries_total",
		Help: "Exchange request attempts beyond the first.",
	})

	// RateLimitWait observes time spent blocked on the per-credential pacer.
	RateLimitWait = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "exchange_rate_limit_wait_seconds",
		Help:    "Time requests spent waiting on the per-credential pacer.",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
	})

	// OrdersPlaced counts order submissions by order type and outcome.
	OrdersPlaced = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_placed_total",
		Help: "Orders submitted to the exchange by type and outcome.",
	}, []string{"type", "outcome"})

	// StraddlePartials counts straddles where one leg was placed and the
	// other failed.
	StraddlePartials = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "straddle_partial_failures_total",
		Help: "Straddles that left a single live leg behind.",
	})

	// ActiveSessions tracks how many chat sessions the bot currently holds.
	ActiveSessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "active_sessions",
		Help: "Chat sessions currently held in memory.",
	})
)

func init() {
	prometheus.MustRegister(
		ExchangeRequests,
		ExchangeRetries,
		RateLimitWait,
		OrdersPlaced,
		StraddlePartials,
		ActiveSessions,
	)
}

// Handler serves the default registry for the /metrics route.
func Handler() http.Handler {
	return promhttp.Handler()
}
