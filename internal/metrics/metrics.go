package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wallet_http_requests_total",
		Help: "Total HTTP requests processed, labeled by status code",
	}, []string{"method", "route", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "wallet_http_request_duration_seconds",
		Help:    "Latency distribution of HTTP requests",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 15},
	}, []string{"method", "route"})

	RechargeOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wallet_recharge_outcomes_total",
		Help: "Recharge submissions by business outcome",
	}, []string{"outcome"})

	AggregatorRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "wallet_aggregator_request_duration_seconds",
		Help:    "Latency of aggregator calls by endpoint and classified outcome",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15},
	}, []string{"endpoint", "outcome"})

	SweeperResolutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wallet_sweeper_resolutions_total",
		Help: "Pending recharges handled by the reconciliation sweeper, by result",
	}, []string{"result"})

	SweeperLastRun = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "wallet_sweeper_last_run_timestamp_seconds",
		Help: "Unix time of the last completed reconciliation pass",
	})
)
