package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"sectbot/services"
)

// StatusHandler serves the operational HTTP endpoints next to the bot: a
// liveness root, a status snapshot and the database health check.
type StatusHandler struct {
	db      *pgxpool.Pool
	views   *services.ViewRegistry
	feed    *services.FeedHub
	started time.Time
}

func NewStatusHandler(db *pgxpool.Pool, views *services.ViewRegistry, feed *services.FeedHub) *StatusHandler {
	return &StatusHandler{db: db, views: views, feed: feed, started: time.Now()}
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		log.Printf("Failed to marshal JSON response: %v", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

// Root answers platform liveness probes.
func (h *StatusHandler) Root(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{"service": "sectbot", "status": "running"})
}

// Status reports runtime counters for dashboards.
func (h *StatusHandler) Status(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"service":          "sectbot",
		"uptime_seconds":   int(time.Since(h.started).Seconds()),
		"active_views":     h.views.ActiveCount(),
		"feed_subscribers": h.feed.SubscriberCount(),
	})
}

// Health checks database connectivity.
func (h *StatusHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.db.Ping(ctx); err != nil {
		respondWithJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "unhealthy",
			"error":  "database connection failed",
		})
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "healthy", "service": "sectbot"})
}
