// Package httpapi exposes health, last-cycle status and a manual check trigger.
package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync/atomic"

	"github.com/gorilla/mux"

	"market_bot/internal/model"
)

// Cycles is the part of the checker the API needs.
type Cycles interface {
	RunCycle(ctx context.Context) (model.CycleSummary, error)
	LastSummary() (model.CycleSummary, bool)
}

type handler struct {
	// base bounds triggered cycles to the server lifetime.
	base    context.Context
	cycles  Cycles
	log     *slog.Logger
	running atomic.Bool
	// done is signalled after a triggered cycle finishes; used by tests.
	done func()
}

// NewRouter wires the API routes. Cycles started through the API are cancelled with ctx.
func NewRouter(ctx context.Context, cycles Cycles, log *slog.Logger) *mux.Router {
	return newRouter(&handler{base: ctx, cycles: cycles, log: log})
}

func newRouter(h *handler) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/health", h.health).Methods(http.MethodGet)
	r.HandleFunc("/status", h.status).Methods(http.MethodGet)
	r.HandleFunc("/check", h.check).Methods(http.MethodPost)
	return r
}

func (h *handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) status(w http.ResponseWriter, _ *http.Request) {
	sum, ok := h.cycles.LastSummary()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no cycle has run yet"})
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

// check starts a cycle in the background. At most one triggered cycle is pending at a time.
func (h *handler) check(w http.ResponseWriter, _ *http.Request) {
	if !h.running.CompareAndSwap(false, true) {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "check already running"})
		return
	}

	ctx := h.base
	go func() {
		defer h.running.Store(false)
		if h.done != nil {
			defer h.done()
		}
		if _, err := h.cycles.RunCycle(ctx); err != nil {
			h.log.Error("manual check cycle", "error", err)
		}
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
