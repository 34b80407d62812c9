package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsEndpoint(t *testing.T) {
	m := NewMetrics()

	m.RecordHTTPRequest("POST", "/api/v1/auth/login", 200, 25*time.Millisecond)
	m.LoginsTotal.WithLabelValues("success").Inc()
	m.FeatureCacheHits.WithLabelValues("l1").Inc()
	m.FeatureCacheRefreshes.WithLabelValues("webhook", "success").Inc()

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "gatehouse_http_requests_total"))
	assert.True(t, strings.Contains(body, "gatehouse_logins_total"))
	assert.True(t, strings.Contains(body, "gatehouse_feature_cache_hits_total"))
}

func TestHTTPMiddlewareRecordsStatus(t *testing.T) {
	m := NewMetrics()

	handler := m.HTTPMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orgs", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)

	metricsReq := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	metricsRec := httptest.NewRecorder()
	m.Handler().ServeHTTP(metricsRec, metricsReq)
	assert.True(t, strings.Contains(metricsRec.Body.String(), `status="403"`))
}
