// Package health provides the liveness and readiness handlers served next to
// the diarize CLI's metrics endpoint.
//
// Liveness (/healthz) always answers 200: a process that can serve HTTP is
// alive. Readiness (/readyz) answers 200 only when every registered [Checker]
// passes; checks cover the sidecar model servers the pipeline is about to
// call and, when configured, the result store. Probes run concurrently — a
// run typically fronts four sidecars and their timeouts must not stack.
//
// Responses are JSON objects with a top-level "status" field ("ok" or "fail")
// and a "checks" map naming each checker's verdict.
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

// checkTimeout bounds each individual readiness probe.
const checkTimeout = 5 * time.Second

// Verdict strings used in the response body.
const (
	statusOK   = "ok"
	statusFail = "fail"
)

// Checker is a named readiness probe. Check returns nil when the dependency
// is usable and an error describing the problem otherwise.
type Checker struct {
	// Name keys this check in the JSON response, e.g. "asr" or "store".
	Name string

	// Check probes the dependency. It must respect context cancellation.
	Check func(ctx context.Context) error
}

// ServiceChecker probes a sidecar model server's /healthz endpoint. The check
// passes when the server answers 2xx; a refused connection, a timeout, or any
// other status fails it. A nil client falls back to a default one (the
// per-check timeout still applies through the request context).
func ServiceChecker(name, baseURL string, client *http.Client) Checker {
	if client == nil {
		client = &http.Client{}
	}
	return Checker{
		Name: name,
		Check: func(ctx context.Context) error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/healthz", nil)
			if err != nil {
				return fmt.Errorf("build request: %w", err)
			}
			resp, err := client.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

			if resp.StatusCode < 200 || resp.StatusCode >= 300 {
				return fmt.Errorf("status %s", resp.Status)
			}
			return nil
		},
	}
}

// result is the JSON response body for both endpoints.
type result struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Handler serves the two probe endpoints. Safe for concurrent use; the
// checker list is fixed at construction time.
type Handler struct {
	checkers []Checker
}

// New creates a [Handler] evaluating the given checkers on each /readyz
// request.
func New(checkers ...Checker) *Handler {
	c := make([]Checker, len(checkers))
	copy(c, checkers)
	return &Handler{checkers: c}
}

// Register adds the /healthz and /readyz routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /readyz", h.Readyz)
}

// Healthz is the liveness probe; it always returns 200 OK.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, result{Status: statusOK})
}

// Readyz runs every registered checker concurrently, each under its own
// [checkTimeout] deadline derived from the request context, and reports 503
// unless all of them pass.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	verdicts := make([]string, len(h.checkers))

	var wg sync.WaitGroup
	for i, c := range h.checkers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
			defer cancel()
			if err := c.Check(ctx); err != nil {
				verdicts[i] = statusFail + ": " + err.Error()
			} else {
				verdicts[i] = statusOK
			}
		}()
	}
	wg.Wait()

	res := result{Status: statusOK, Checks: make(map[string]string, len(h.checkers))}
	status := http.StatusOK
	for i, c := range h.checkers {
		res.Checks[c.Name] = verdicts[i]
		if verdicts[i] != statusOK {
			res.Status = statusFail
			status = http.StatusServiceUnavailable
		}
	}

	writeJSON(w, status, res)
}

// writeJSON encodes v with the given status code. Encoding a [result] cannot
// realistically fail; a short write just truncates the response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
