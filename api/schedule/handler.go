// Package schedule exposes the scheduler over HTTP.
package schedule

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/kilianp07/yds/core/model"
	"github.com/kilianp07/yds/core/yds"
	"github.com/kilianp07/yds/internal/pipeline"
)

// MaxBodyBytes bounds the size of a request body.
const MaxBodyBytes = 4 << 20

// Runner executes a scheduling run.
type Runner interface {
	Run(ctx context.Context, source string, tasks []model.Task) (*pipeline.Result, error)
}

// Request is the body accepted by POST /api/schedule.
type Request struct {
	Tasks []model.Task `json:"tasks"`
}

// ErrorResponse is returned with every non-2xx status.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// NewHandler returns an HTTP handler computing schedules via POST /api/schedule.
// Requests must include an Authorization header with "Bearer <token>" when token is non-empty.
func NewHandler(runner Runner, token string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"), "")
			return
		}
		if token != "" && r.Header.Get("Authorization") != "Bearer "+token {
			writeError(w, http.StatusUnauthorized, errors.New("unauthorized"), "")
			return
		}
		var req Request
		dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, err, "decode")
			return
		}
		res, err := runner.Run(r.Context(), "api", req.Tasks)
		switch {
		case errors.Is(err, yds.ErrInvalidTask):
			writeError(w, http.StatusBadRequest, err, "invalid_task")
			return
		case errors.Is(err, yds.ErrInvariant):
			writeError(w, http.StatusInternalServerError, err, "invariant")
			return
		case errors.Is(err, yds.ErrScheduleMismatch):
			writeError(w, http.StatusInternalServerError, err, "verify")
			return
		case err != nil && res == nil:
			writeError(w, http.StatusInternalServerError, err, "")
			return
		}
		// store or publish failures still return the computed schedule
		writeJSON(w, http.StatusOK, res)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error, kind string) {
	writeJSON(w, status, ErrorResponse{Error: err.Error(), Kind: kind})
}
