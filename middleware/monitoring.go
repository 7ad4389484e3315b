package middleware

import (
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"path", "method", "status"},
	)
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)
	botCommandsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_commands_total",
			Help: "Total number of slash commands handled",
		},
		[]string{"command", "status"},
	)
	pointsUpdatesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "points_updates_total",
			Help: "Total number of ledger point changes",
		},
		[]string{"source"},
	)
	rewardDistributionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "reward_distributions_total",
			Help: "Total number of periodic reward runs",
		},
	)
	viewRefreshesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leaderboard_view_refreshes_total",
			Help: "Total number of live leaderboard view refreshes",
		},
		[]string{"result"},
	)
)

// InitPrometheus registers the metrics. Call this from main.go
func InitPrometheus() {
	prometheus.MustRegister(httpRequestsTotal)
	prometheus.MustRegister(httpRequestDuration)
	prometheus.MustRegister(botCommandsTotal)
	prometheus.MustRegister(pointsUpdatesTotal)
	prometheus.MustRegister(rewardDistributionsTotal)
	prometheus.MustRegister(viewRefreshesTotal)
}

// CountCommand records one handled slash command with its outcome.
func CountCommand(command, status string) {
	botCommandsTotal.WithLabelValues(command, status).Inc()
}

// CountPointsUpdate records one ledger change by its source (command,
// reward, event).
func CountPointsUpdate(source string) {
	pointsUpdatesTotal.WithLabelValues(source).Inc()
}

// CountRewardDistribution records one completed reward run.
func CountRewardDistribution() {
	rewardDistributionsTotal.Inc()
}

// CountViewRefresh records one live view refresh by result (ok, retired,
// error).
func CountViewRefresh(result string) {
	viewRefreshesTotal.WithLabelValues(result).Inc()
}

// MonitorMiddleware wraps the router to track all request stats
func MonitorMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Initialize with 200 OK in case WriteHeader isn't called explicitly
		ww := &responseWriter{w, http.StatusOK}

		next.ServeHTTP(ww, r)

		duration := time.Since(start).Seconds()

		httpRequestsTotal.WithLabelValues(r.URL.Path, r.Method, http.StatusText(ww.statusCode)).Inc()
		httpRequestDuration.WithLabelValues(r.URL.Path, r.Method).Observe(duration)
	})
}

// BasicAuthMiddleware protects /metrics
func BasicAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()

		metricsUser := os.Getenv("METRICS_USER")
		metricsPass := os.Getenv("METRICS_PASS")

		if !ok || user != metricsUser || pass != metricsPass {
			w.Header().Set("WWW-Authenticate", `Basic realm="Metrics"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
