package observability

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsRegistered(t *testing.T) {
	RequestsTotal.WithLabelValues("GET", "/seed", "200").Inc()
	RequestDuration.WithLabelValues("GET", "/seed").Observe(0.1)
	AuthEventsTotal.WithLabelValues("login", "success").Inc()
	LoginThrottledTotal.Inc()

	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)

	expected := map[string]bool{
		"blogify_http_requests_total":           false,
		"blogify_http_request_duration_seconds": false,
		"blogify_auth_events_total":             false,
		"blogify_login_throttled_total":         false,
	}
	for _, mf := range families {
		if _, ok := expected[mf.GetName()]; ok {
			expected[mf.GetName()] = true
		}
	}
	for name, found := range expected {
		assert.True(t, found, "metric %q not found in registry", name)
	}
}

func TestMiddleware_RecordsRouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Middleware())
	r.GET("/api/posts/:id", func(c *gin.Context) { c.Status(http.StatusNotFound) })

	before := testutil.ToFloat64(RequestsTotal.WithLabelValues("GET", "/api/posts/:id", "404"))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/posts/abc", nil))
	require.Equal(t, http.StatusNotFound, w.Code)

	after := testutil.ToFloat64(RequestsTotal.WithLabelValues("GET", "/api/posts/:id", "404"))
	assert.Equal(t, before+1, after)
}

func TestMiddleware_UnmatchedRoute(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Middleware())

	before := testutil.ToFloat64(RequestsTotal.WithLabelValues("GET", "unmatched", "404"))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nope", nil))

	assert.Equal(t, before+1, testutil.ToFloat64(RequestsTotal.WithLabelValues("GET", "unmatched", "404")))
}

func TestRecordAuth(t *testing.T) {
	before := testutil.ToFloat64(AuthEventsTotal.WithLabelValues("refresh", "failure"))
	RecordAuth("refresh", errors.New("x"))
	assert.Equal(t, before+1, testutil.ToFloat64(AuthEventsTotal.WithLabelValues("refresh", "failure")))
}
