package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/dndsage/oracle/corpus"
	"github.com/dndsage/oracle/services"
	"github.com/dndsage/oracle/utils"
)

// SourceSummary is one passage's citation metadata in a source listing.
type SourceSummary struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Source string `json:"source,omitempty"`
	URL    string `json:"url,omitempty"`
}

// SourcesResponse is the JSON body of GET /api/v1/sources/{type}.
type SourcesResponse struct {
	Type    string          `json:"type"`
	Count   int             `json:"count"`
	Sources []SourceSummary `json:"sources"`
}

// SourcesHandler lists the corpus entries of a given source type.
type SourcesHandler struct {
	engine SnapshotProvider
	logger *zap.Logger
}

// NewSourcesHandler creates a sources handler.
func NewSourcesHandler(engine SnapshotProvider, logger *zap.Logger) *SourcesHandler {
	return &SourcesHandler{engine: engine, logger: logger}
}

// List handles GET /api/v1/sources/{type}
func (h *SourcesHandler) List(w http.ResponseWriter, r *http.Request) {
	sourceType := corpus.SourceType(chi.URLParam(r, "type"))
	if !corpus.KnownSourceType(sourceType) {
		HandleServiceError(w, services.ErrSourceTypeNotFound)
		return
	}

	snap := h.engine.Snapshot()
	if snap == nil {
		HandleServiceError(w, services.ErrEngineNotReady)
		return
	}

	passages := snap.Store.BySourceType(sourceType)
	sources := make([]SourceSummary, 0, len(passages))
	for _, p := range passages {
		sources = append(sources, SourceSummary{
			ID:     p.ID,
			Name:   p.DisplayName(),
			Source: p.Metadata["source"],
			URL:    p.Metadata["url"],
		})
	}

	utils.WriteJSON(w, http.StatusOK, SourcesResponse{
		Type:    string(sourceType),
		Count:   len(sources),
		Sources: sources,
	})
}
