package handlers

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/xavierca1/ligue-crm/internal/infra/http/middleware"
	"github.com/xavierca1/ligue-crm/internal/infra/integration/gemini"
	"github.com/xavierca1/ligue-crm/internal/usecase"
)

// AIHandler relays the assistant's parsed reply, or {"raw": text}, with 200.
type AIHandler struct {
	Assistant *usecase.AssistantUseCase
	Logger    *zap.Logger
}

func NewAIHandler(assistant *usecase.AssistantUseCase, logger *zap.Logger) *AIHandler {
	return &AIHandler{Assistant: assistant, Logger: logger}
}

func (h *AIHandler) ResearchLead(w http.ResponseWriter, r *http.Request) {
	var input usecase.ResearchLeadInput
	if !decodeJSON(w, r, &input) {
		return
	}
	h.respond(w, r, usecase.OpResearchLead, func(ctx context.Context) (*usecase.AssistantResult, error) {
		return h.Assistant.ResearchLead(ctx, input)
	})
}

func (h *AIHandler) DiscoverLeads(w http.ResponseWriter, r *http.Request) {
	var input usecase.DiscoverLeadsInput
	if !decodeJSON(w, r, &input) {
		return
	}
	h.respond(w, r, usecase.OpDiscoverLeads, func(ctx context.Context) (*usecase.AssistantResult, error) {
		return h.Assistant.DiscoverLeads(ctx, input)
	})
}

func (h *AIHandler) DraftColdEmail(w http.ResponseWriter, r *http.Request) {
	h.draft(w, r, usecase.OpDraftColdEmail, h.Assistant.DraftColdEmail)
}

func (h *AIHandler) DraftLinkedIn(w http.ResponseWriter, r *http.Request) {
	h.draft(w, r, usecase.OpDraftLinkedIn, h.Assistant.DraftLinkedIn)
}

func (h *AIHandler) DraftFollowUp(w http.ResponseWriter, r *http.Request) {
	h.draft(w, r, usecase.OpDraftFollowUp, h.Assistant.DraftFollowUp)
}

func (h *AIHandler) draft(w http.ResponseWriter, r *http.Request, op usecase.Operation, fn func(context.Context, usecase.DraftInput) (*usecase.AssistantResult, error)) {
	var input usecase.DraftInput
	if !decodeJSON(w, r, &input) {
		return
	}
	h.respond(w, r, op, func(ctx context.Context) (*usecase.AssistantResult, error) {
		return fn(ctx, input)
	})
}

func (h *AIHandler) AnalyzeTranscript(w http.ResponseWriter, r *http.Request) {
	var input usecase.AnalyzeTranscriptInput
	if !decodeJSON(w, r, &input) {
		return
	}
	h.respond(w, r, usecase.OpAnalyzeTranscript, func(ctx context.Context) (*usecase.AssistantResult, error) {
		return h.Assistant.AnalyzeTranscript(ctx, input)
	})
}

func (h *AIHandler) EstimateDealValue(w http.ResponseWriter, r *http.Request) {
	var input usecase.EstimateDealValueInput
	if !decodeJSON(w, r, &input) {
		return
	}
	h.respond(w, r, usecase.OpEstimateDealValue, func(ctx context.Context) (*usecase.AssistantResult, error) {
		return h.Assistant.EstimateDealValue(ctx, input)
	})
}

// RecommendNextActions handles GET /ai/recommend/next-actions/{leadId}.
func (h *AIHandler) RecommendNextActions(w http.ResponseWriter, r *http.Request) {
	leadID, ok := uuidParam(w, r, "leadId")
	if !ok {
		return
	}
	h.respond(w, r, usecase.OpRecommendActions, func(ctx context.Context) (*usecase.AssistantResult, error) {
		return h.Assistant.RecommendNextActions(ctx, leadID)
	})
}

func (h *AIHandler) respond(w http.ResponseWriter, r *http.Request, op usecase.Operation, call func(context.Context) (*usecase.AssistantResult, error)) {
	res, err := call(r.Context())
	middleware.RecordAIRequest(string(op), outcome(res, err))
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, res.Data)
}

func outcome(res *usecase.AssistantResult, err error) string {
	var upstream *gemini.UpstreamError
	switch {
	case errors.As(err, &upstream), errors.Is(err, gemini.ErrEmptyResponse):
		return "upstream_error"
	case errors.Is(err, gemini.ErrNotConfigured):
		return "not_configured"
	case err != nil:
		return "error"
	case res.Raw:
		return "raw"
	}
	return "ok"
}
