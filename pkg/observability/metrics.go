package observability

import (
	"database/sql"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Auth metrics
	LoginsTotal        *prometheus.CounterVec
	TokenRefreshTotal  *prometheus.CounterVec
	SessionsRevoked    *prometheus.CounterVec
	PasswordOpsTotal   *prometheus.CounterVec
	ActiveSessionsHint prometheus.Gauge

	// Subscription feature cache metrics
	FeatureCacheHits      *prometheus.CounterVec
	FeatureCacheMisses    *prometheus.CounterVec
	FeatureCacheRefreshes *prometheus.CounterVec

	// Billing webhook metrics
	WebhookEventsTotal *prometheus.CounterVec

	// Database metrics
	DBConnectionsActive prometheus.Gauge
	DBConnectionsIdle   prometheus.Gauge

	registry *prometheus.Registry
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gatehouse_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gatehouse_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		LoginsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gatehouse_logins_total",
				Help: "Login attempts by outcome",
			},
			[]string{"outcome"},
		),
		TokenRefreshTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gatehouse_token_refresh_total",
				Help: "Session token rotations by outcome",
			},
			[]string{"outcome"},
		),
		SessionsRevoked: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gatehouse_sessions_revoked_total",
				Help: "Sessions revoked by reason",
			},
			[]string{"reason"},
		),
		PasswordOpsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gatehouse_password_operations_total",
				Help: "Password set/change/reset operations by outcome",
			},
			[]string{"operation", "outcome"},
		),
		ActiveSessionsHint: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "gatehouse_active_sessions_hint",
				Help: "Best-effort count of live sessions, sampled by the cleanup sweeper",
			},
		),
		FeatureCacheHits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gatehouse_feature_cache_hits_total",
				Help: "Subscription feature cache hits by tier (l1, l2)",
			},
			[]string{"tier"},
		),
		FeatureCacheMisses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gatehouse_feature_cache_misses_total",
				Help: "Subscription feature cache misses by tier (l1, l2)",
			},
			[]string{"tier"},
		),
		FeatureCacheRefreshes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gatehouse_feature_cache_refreshes_total",
				Help: "Subscription feature cache refreshes by trigger and outcome",
			},
			[]string{"trigger", "outcome"},
		),
		WebhookEventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gatehouse_billing_webhook_events_total",
				Help: "Billing webhook events by type and outcome",
			},
			[]string{"type", "outcome"},
		),
		DBConnectionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "gatehouse_db_connections_active",
				Help: "Number of active database connections",
			},
		),
		DBConnectionsIdle: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "gatehouse_db_connections_idle",
				Help: "Number of idle database connections",
			},
		),
		registry: registry,
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.LoginsTotal,
		m.TokenRefreshTotal,
		m.SessionsRevoked,
		m.PasswordOpsTotal,
		m.ActiveSessionsHint,
		m.FeatureCacheHits,
		m.FeatureCacheMisses,
		m.FeatureCacheRefreshes,
		m.WebhookEventsTotal,
		m.DBConnectionsActive,
		m.DBConnectionsIdle,
	)

	return m
}

// Handler returns an HTTP handler for the /metrics endpoint
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordHTTPRequest records metrics for a completed HTTP request
func (m *Metrics) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordLogin counts a login attempt by outcome
func (m *Metrics) RecordLogin(outcome string) {
	m.LoginsTotal.WithLabelValues(outcome).Inc()
}

// RecordTokenRefresh counts a session token rotation by outcome
func (m *Metrics) RecordTokenRefresh(outcome string) {
	m.TokenRefreshTotal.WithLabelValues(outcome).Inc()
}

// RecordSessionRevoked counts a revoked session by reason
func (m *Metrics) RecordSessionRevoked(reason string) {
	m.SessionsRevoked.WithLabelValues(reason).Inc()
}

// RecordPasswordOp counts a password operation by outcome
func (m *Metrics) RecordPasswordOp(operation, outcome string) {
	m.PasswordOpsTotal.WithLabelValues(operation, outcome).Inc()
}

// RecordFeatureCacheHit counts a feature cache hit for a tier (l1, l2)
func (m *Metrics) RecordFeatureCacheHit(tier string) {
	m.FeatureCacheHits.WithLabelValues(tier).Inc()
}

// RecordFeatureCacheMiss counts a feature cache miss for a tier (l1, l2)
func (m *Metrics) RecordFeatureCacheMiss(tier string) {
	m.FeatureCacheMisses.WithLabelValues(tier).Inc()
}

// RecordFeatureCacheRefresh counts a feature cache refresh by trigger and outcome
func (m *Metrics) RecordFeatureCacheRefresh(trigger, outcome string) {
	m.FeatureCacheRefreshes.WithLabelValues(trigger, outcome).Inc()
}

// RecordWebhookEvent counts a billing webhook event by type and outcome
func (m *Metrics) RecordWebhookEvent(eventType, outcome string) {
	m.WebhookEventsTotal.WithLabelValues(eventType, outcome).Inc()
}

// UpdateDBStats updates database pool gauges from sql.DBStats
func (m *Metrics) UpdateDBStats(stats sql.DBStats) {
	m.DBConnectionsActive.Set(float64(stats.InUse))
	m.DBConnectionsIdle.Set(float64(stats.Idle))
}

// HTTPMiddleware wraps an HTTP handler with request metrics
func (m *Metrics) HTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		m.RecordHTTPRequest(r.Method, r.URL.Path, rec.status, time.Since(start))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
