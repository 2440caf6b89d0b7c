// Package www serves a small read-only status API for external
// presentation layers: the live run snapshot and the outcome history.
package www

import (
	"encoding/json"
	"net/http"
	"strconv"

	"dctravel/history"
	"dctravel/travel"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	orch *travel.Orchestrator
	hist *history.Store
}

// NewRouter creates the chi router over the given run and history.
func NewRouter(orch *travel.Orchestrator, hist *history.Store) http.Handler {
	h := &Handlers{orch: orch, hist: hist}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/api/status", h.apiStatus)
	r.Get("/api/history", h.apiHistory)
	return r
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func (h *Handlers) apiStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.orch.Snapshot())
}

func (h *Handlers) apiHistory(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}
	entries, err := h.hist.List(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if entries == nil {
		entries = []history.Entry{}
	}
	writeJSON(w, entries)
}
