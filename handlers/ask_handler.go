package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/dndsage/oracle/services/answer"
	"github.com/dndsage/oracle/services/oracle"
	"github.com/dndsage/oracle/utils"
)

// OracleService is the part of the query engine the ask handler needs.
type OracleService interface {
	Ask(ctx context.Context, req oracle.AskRequest) (*answer.Result, error)
}

// AskRequest is the JSON body of POST /api/v1/ask.
type AskRequest struct {
	Question         string   `json:"question" validate:"required"`
	TopK             int      `json:"top_k" validate:"omitempty,gte=1,lte=20"`
	ScoreFloor       *float32 `json:"score_floor" validate:"omitempty,gte=-1,lte=1"`
	MaxContextTokens int      `json:"max_context_tokens" validate:"omitempty,gt=0"`
}

// AskResponse is the JSON body returned for a successful ask.
type AskResponse struct {
	Answer      string            `json:"answer"`
	Sources     []answer.Citation `json:"sources"`
	ContextUsed int               `json:"context_used"`
}

// AskHandler serves question answering requests.
type AskHandler struct {
	engine OracleService
	logger *zap.Logger
}

// NewAskHandler creates an ask handler.
func NewAskHandler(engine OracleService, logger *zap.Logger) *AskHandler {
	return &AskHandler{engine: engine, logger: logger}
}

// Ask handles POST /api/v1/ask
func (h *AskHandler) Ask(w http.ResponseWriter, r *http.Request) {
	var req AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteBadRequest(w, "Invalid request body", nil)
		return
	}

	if err := utils.ValidateStruct(req); err != nil {
		HandleValidationError(w, err)
		return
	}

	result, err := h.engine.Ask(r.Context(), oracle.AskRequest{
		Question:         req.Question,
		TopK:             req.TopK,
		ScoreFloor:       req.ScoreFloor,
		MaxContextTokens: req.MaxContextTokens,
	})
	if err != nil {
		HandleServiceError(w, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, AskResponse{
		Answer:      result.Answer,
		Sources:     result.Citations,
		ContextUsed: result.ContextUsed,
	})
}
