// Package runs exposes the stored run history over HTTP.
package runs

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/kilianp07/yds/core/model"
	"github.com/kilianp07/yds/infra/store"
)

// History lists stored runs.
type History interface {
	Runs(ctx context.Context, limit int) ([]store.Run, error)
	Executions(ctx context.Context, runID string) ([]model.Execution, error)
}

// NewHandler returns an HTTP handler listing runs via GET /api/runs. The
// limit query parameter bounds the listing; id selects the executions of a
// single run. Requests must include an Authorization header with
// "Bearer <token>" when token is non-empty.
func NewHandler(h History, token string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if token != "" && r.Header.Get("Authorization") != "Bearer "+token {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		if id := r.URL.Query().Get("id"); id != "" {
			execs, err := h.Executions(r.Context(), id)
			switch {
			case errors.Is(err, store.ErrRunNotFound):
				http.Error(w, err.Error(), http.StatusNotFound)
				return
			case err != nil:
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			writeJSON(w, execs)
			return
		}
		limit := 20
		if s := r.URL.Query().Get("limit"); s != "" {
			n, err := strconv.Atoi(s)
			if err != nil {
				http.Error(w, "invalid limit", http.StatusBadRequest)
				return
			}
			limit = n
		}
		list, err := h.Runs(r.Context(), limit)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if list == nil {
			list = []store.Run{}
		}
		writeJSON(w, list)
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
