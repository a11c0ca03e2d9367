// Package health provides the HTTP liveness and readiness handlers for
// the diagnostics server.
//
//   - /healthz — liveness probe; always returns 200 OK.
//   - /readyz  — readiness probe; returns 200 only when every registered
//     [Checker] passes.
//
// Readiness responses report each check's result and duration so a
// slow speech daemon is distinguishable from a dead one.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/nvaldezz/sonara/pkg/provider/tts"
)

// checkTimeout is the maximum time a single readiness check may take
// before its context is cancelled.
const checkTimeout = 5 * time.Second

// Checker is a named health check. Check returns nil when the dependency
// is healthy.
type Checker struct {
	// Name labels the check in the JSON response (e.g. "local_daemon").
	Name string

	// Check probes the dependency. It must respect context cancellation.
	Check func(ctx context.Context) error
}

// LocalDaemon returns a Checker that verifies the local speech daemon
// is connected and has loaded at least one voice.
func LocalDaemon(local tts.Local) Checker {
	return Checker{
		Name: "local_daemon",
		Check: func(ctx context.Context) error {
			voices, err := local.Voices(ctx)
			if err != nil {
				return err
			}
			if len(voices) == 0 {
				return &tts.LocalError{Msg: "voice list empty, daemon still loading"}
			}
			return nil
		},
	}
}

// checkResult is one check's entry in the readiness response.
type checkResult struct {
	Status     string `json:"status"`
	Error      string `json:"error,omitempty"`
	DurationMS int64  `json:"duration_ms"`
}

// response is the JSON body for both endpoints.
type response struct {
	Status string                 `json:"status"`
	Checks map[string]checkResult `json:"checks,omitempty"`
}

// Handler serves /healthz and /readyz. Safe for concurrent use; the
// checker list is fixed at construction time.
type Handler struct {
	checkers []Checker
}

// New creates a [Handler] that evaluates the given checkers on each
// /readyz request, in order.
func New(checkers ...Checker) *Handler {
	c := make([]Checker, len(checkers))
	copy(c, checkers)
	return &Handler{checkers: c}
}

// Healthz is a liveness probe that always returns 200 OK.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, response{Status: "ok"})
}

// Readyz returns 200 only when every registered checker passes. Each
// checker runs with a [checkTimeout] deadline derived from the request
// context.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]checkResult, len(h.checkers))
	allOK := true

	for _, c := range h.checkers {
		ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
		start := time.Now()
		err := c.Check(ctx)
		cancel()

		res := checkResult{Status: "ok", DurationMS: time.Since(start).Milliseconds()}
		if err != nil {
			res.Status = "fail"
			res.Error = err.Error()
			allOK = false
		}
		checks[c.Name] = res
	}

	resp := response{Status: "ok", Checks: checks}
	status := http.StatusOK
	if !allOK {
		resp.Status = "fail"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

// Register adds the /healthz and /readyz routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /readyz", h.Readyz)
}

// writeJSON encodes v as JSON with the given status code, degrading to a
// plain 500 on encoding failure.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"status":"error"}`, http.StatusInternalServerError)
	}
}
