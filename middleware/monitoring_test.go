package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCountViewRefresh(t *testing.T) {
	before := testutil.ToFloat64(viewRefreshesTotal.WithLabelValues("ok"))
	CountViewRefresh("ok")
	CountViewRefresh("ok")
	assert.Equal(t, before+2, testutil.ToFloat64(viewRefreshesTotal.WithLabelValues("ok")))

	beforeRetired := testutil.ToFloat64(viewRefreshesTotal.WithLabelValues("retired"))
	CountViewRefresh("retired")
	assert.Equal(t, beforeRetired+1, testutil.ToFloat64(viewRefreshesTotal.WithLabelValues("retired")))
}

func TestCountCommand(t *testing.T) {
	before := testutil.ToFloat64(botCommandsTotal.WithLabelValues("leaderboard", "ok"))
	CountCommand("leaderboard", "ok")
	assert.Equal(t, before+1, testutil.ToFloat64(botCommandsTotal.WithLabelValues("leaderboard", "ok")))
}

func TestBasicAuthMiddleware(t *testing.T) {
	t.Setenv("METRICS_USER", "metrics")
	t.Setenv("METRICS_PASS", "secret")

	handler := BasicAuthMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Header().Get("WWW-Authenticate"), "Basic")

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.SetBasicAuth("metrics", "secret")
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
