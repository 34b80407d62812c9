// Package observability provides structured logging, Prometheus metrics,
// health probes, and optional OpenTelemetry tracing for gatehouse.
//
// # Logging
//
// Logger wraps log/slog with a JSON handler. Request-scoped fields
// (request_id, user_id) are carried through context and attached via
// FromContext.
//
// # Metrics
//
// Metrics registers counters and histograms for HTTP traffic, authentication
// operations (login/refresh/logout outcomes), the subscription feature cache
// (hits, misses, refreshes), and database pool state.
//
// # Health
//
// HealthChecker exposes liveness and readiness probes. Readiness pings the
// primary database and, when configured, Redis; an unreachable database makes
// the instance unready, an unreachable Redis only degrades it.
package observability
