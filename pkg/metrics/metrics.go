package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/jordanlanch/bookworm/pkg/recommendations"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPResponseSize    *prometheus.HistogramVec

	// Engine metrics
	StrategyRuns       *prometheus.CounterVec
	StrategyDuration   *prometheus.HistogramVec
	StrategyCandidates *prometheus.HistogramVec

	// Business metrics
	ServedTotal     *prometheus.CounterVec
	EngagementTotal *prometheus.CounterVec
	ExpiredTotal    prometheus.Counter
	SweepRunsTotal  *prometheus.CounterVec
}

// New creates a new Metrics instance with all metrics registered on reg
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		// HTTP metrics
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path", "status"},
		),
		HTTPResponseSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: []float64{100, 1000, 5000, 10000, 50000, 100000, 500000, 1000000},
			},
			[]string{"method", "path"},
		),

		// Engine metrics
		StrategyRuns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "recommendation_strategy_runs_total",
				Help: "Total number of strategy runs",
			},
			[]string{"strategy", "outcome"}, // ok, failed
		),
		StrategyDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "recommendation_strategy_duration_seconds",
				Help:    "Strategy run time in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5},
			},
			[]string{"strategy"},
		),
		StrategyCandidates: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "recommendation_strategy_candidates",
				Help:    "Candidates returned per successful strategy run",
				Buckets: []float64{0, 1, 2, 4, 6, 9, 12, 18},
			},
			[]string{"strategy"},
		),

		// Business metrics
		ServedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "recommendations_served_total",
				Help: "Total number of recommendations returned to users",
			},
			[]string{"source"}, // cache, generated
		),
		EngagementTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "recommendation_engagement_total",
				Help: "Total number of engagement events on recommendations",
			},
			[]string{"kind"}, // viewed, clicked, added_to_shelf
		),
		ExpiredTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "recommendations_expired_deleted_total",
			Help: "Total number of expired recommendations deleted",
		}),
		SweepRunsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "recommendation_sweep_runs_total",
				Help: "Total number of scheduled expiry sweeps",
			},
			[]string{"outcome"}, // ok, failed, skipped
		),
	}
}

// Middleware creates an Echo middleware for Prometheus metrics
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			req := c.Request()
			path := c.Path() // route pattern, e.g. /api/v1/recommendations/:recommendationId/view

			err := next(c)

			status := c.Response().Status
			if err != nil {
				status = http.StatusInternalServerError
				if he, ok := err.(*echo.HTTPError); ok {
					status = he.Code
				}
			}
			duration := time.Since(start).Seconds()

			m.HTTPRequestsTotal.WithLabelValues(req.Method, path, strconv.Itoa(status)).Inc()
			m.HTTPRequestDuration.WithLabelValues(req.Method, path, strconv.Itoa(status)).Observe(duration)
			m.HTTPResponseSize.WithLabelValues(req.Method, path).Observe(float64(c.Response().Size))

			return err
		}
	}
}

// StrategyCompleted records one strategy run
func (m *Metrics) StrategyCompleted(t recommendations.Type, ok bool, candidates int, elapsed time.Duration) {
	outcome := "failed"
	if ok {
		outcome = "ok"
		m.StrategyCandidates.WithLabelValues(string(t)).Observe(float64(candidates))
	}
	m.StrategyRuns.WithLabelValues(string(t), outcome).Inc()
	m.StrategyDuration.WithLabelValues(string(t)).Observe(elapsed.Seconds())
}

// RecommendationsServed counts recommendations returned from source
func (m *Metrics) RecommendationsServed(source string, count int) {
	m.ServedTotal.WithLabelValues(source).Add(float64(count))
}

// EngagementRecorded increments the engagement counter for kind
func (m *Metrics) EngagementRecorded(kind string) {
	m.EngagementTotal.WithLabelValues(kind).Inc()
}

// ExpiredDeleted adds swept rows
func (m *Metrics) ExpiredDeleted(count int64) {
	m.ExpiredTotal.Add(float64(count))
}

// RecordSweep counts a scheduled sweep by outcome
func (m *Metrics) RecordSweep(outcome string) {
	m.SweepRunsTotal.WithLabelValues(outcome).Inc()
}

var _ recommendations.Observer = (*Metrics)(nil)
