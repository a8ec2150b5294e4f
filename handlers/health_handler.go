package handlers

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/dndsage/oracle/corpus"
	"github.com/dndsage/oracle/utils"
)

// SnapshotProvider exposes the published corpus snapshot for readiness
// reporting.
type SnapshotProvider interface {
	Ready() bool
	Snapshot() *corpus.Snapshot
}

// HealthHandler serves liveness and readiness probes.
type HealthHandler struct {
	engine SnapshotProvider
	logger *zap.Logger
}

// NewHealthHandler creates a health handler.
func NewHealthHandler(engine SnapshotProvider, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{engine: engine, logger: logger}
}

// Healthz handles GET /healthz. It reports process liveness only.
func (h *HealthHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	utils.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Readyz handles GET /readyz. It reports 200 with corpus stats once a
// snapshot has been published, 503 before then.
func (h *HealthHandler) Readyz(w http.ResponseWriter, r *http.Request) {
	snap := h.engine.Snapshot()
	if snap == nil {
		utils.WriteServiceUnavailable(w, "corpus not loaded yet")
		return
	}

	utils.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ready",
		"passages":  snap.Store.Len(),
		"dimension": snap.Index.Dimension(),
		"model":     snap.Model,
		"loaded_at": snap.LoadedAt.Format(time.RFC3339),
	})
}
