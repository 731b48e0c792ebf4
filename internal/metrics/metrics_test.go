package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	m := New()

	m.LoginAttempt("success")
	m.LoginAttempt("invalid_credentials")
	m.LoginAttempt("invalid_credentials")
	m.GuardRejected("forbidden")
	m.RateLimited()

	assert.InDelta(t, 1, testutil.ToFloat64(m.loginAttempts.WithLabelValues("success")), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(m.loginAttempts.WithLabelValues("invalid_credentials")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.guardRejections.WithLabelValues("forbidden")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.rateLimited), 0)
}

func TestMetrics_MiddlewareAndHandler(t *testing.T) {
	m := New()

	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/users/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	})
	r.Handle("/metrics", m.Handler())

	for _, id := range []string{"1", "2"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/users/"+id, nil))
	}

	assert.Equal(t, 1, testutil.CollectAndCount(m.requestDuration))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `quickflayer_http_request_duration_seconds_count{method="GET",route="/users/{id}",status="202"} 2`)
	assert.Contains(t, string(body), "go_goroutines")
}
