// Package metrics provides Prometheus metrics for the portfolio tracker.
// Scrape these at /metrics for Grafana dashboards and alerting.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP Metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portfolio_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "portfolio_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// Quote Worker Metrics
	QuoteLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portfolio_quote_lookups_total",
			Help: "Total number of quote lookups by vendor and result",
		},
		[]string{"source", "result"}, // source: "fund", "yahoo", "tencent"; result: "success" or "failed"
	)

	QuoteBatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "portfolio_quote_batch_duration_seconds",
			Help:    "Time taken to refresh a batch of quotes",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60},
		},
	)

	HoldingsRefreshed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "portfolio_holdings_refreshed_total",
			Help: "Total number of holdings updated with a fresh quote",
		},
	)

	// FX Rate Metrics
	RateFetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portfolio_rate_fetches_total",
			Help: "Total number of FX rate fetches by provider and result",
		},
		[]string{"source", "result"},
	)

	// Portfolio Metrics
	PortfolioAssetsBase = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "portfolio_assets_base",
			Help: "Total portfolio value in the base currency",
		},
	)

	PortfolioPnlBase = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "portfolio_pnl_base",
			Help: "Total portfolio profit in the base currency",
		},
	)

	PortfolioHoldingsTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "portfolio_holdings_total",
			Help: "Number of holdings across all accounts",
		},
	)

	PortfolioValueByAccount = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "portfolio_value_by_account_base",
			Help: "Portfolio value in the base currency by account",
		},
		[]string{"account"},
	)

	// Snapshot Metrics
	SnapshotsRecorded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "portfolio_snapshots_recorded_total",
			Help: "Total number of daily snapshots recorded or overwritten",
		},
	)
)
