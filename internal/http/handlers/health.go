package handlers

import (
	"net/http"
	"time"

	"github.com/hongminglow/console-bank/internal/http/respond"
	"github.com/hongminglow/console-bank/internal/ledger"
)

// HealthHandler returns uptime and basic status.
type HealthHandler struct {
	startedAt time.Time
	ledger    *Ledger
}

// NewHealthHandler creates a health endpoint handler.
func NewHealthHandler(startedAt time.Time, l *Ledger) *HealthHandler {
	return &HealthHandler{startedAt: startedAt, ledger: l}
}

// Register wires the handler into a ServeMux.
func (h *HealthHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.handle)
}

func (h *HealthHandler) handle(w http.ResponseWriter, r *http.Request) {
	var customers int
	_ = h.ledger.Do(func(dir *ledger.Directory) error {
		customers = dir.CustomerCount()
		return nil
	})
	respond.JSON(w, http.StatusOK, "ok", map[string]any{
		"status":    "ok",
		"uptime":    time.Since(h.startedAt).Truncate(time.Second).String(),
		"customers": customers,
	})
}
