package handlers

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/dndsage/oracle/corpus"
	"github.com/dndsage/oracle/utils"
)

// Reloader rebuilds and publishes the corpus snapshot.
type Reloader interface {
	Reload() (*corpus.Snapshot, error)
}

// ReloadHandler triggers a corpus hot reload.
type ReloadHandler struct {
	engine Reloader
	logger *zap.Logger
}

// NewReloadHandler creates a reload handler.
func NewReloadHandler(engine Reloader, logger *zap.Logger) *ReloadHandler {
	return &ReloadHandler{engine: engine, logger: logger}
}

// Reload handles POST /api/v1/admin/reload. A failed reload leaves the
// previously published snapshot serving and reports the load error.
func (h *ReloadHandler) Reload(w http.ResponseWriter, r *http.Request) {
	snap, err := h.engine.Reload()
	if err != nil {
		h.logger.Error("corpus reload failed", zap.Error(err))
		utils.WriteBadRequest(w, err.Error(), nil)
		return
	}

	utils.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "reloaded",
		"passages":  snap.Store.Len(),
		"dimension": snap.Index.Dimension(),
		"model":     snap.Model,
		"loaded_at": snap.LoadedAt.Format(time.RFC3339),
	})
}
