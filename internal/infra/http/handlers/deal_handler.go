package handlers

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xavierca1/ligue-crm/internal/entity"
	"github.com/xavierca1/ligue-crm/internal/usecase"
)

type DealHandler struct {
	Deals       entity.DealRepositoryInterface
	ChangeStage *usecase.ChangeDealStageUseCase
	Pipeline    *usecase.PipelineUseCase
	Logger      *zap.Logger
}

func NewDealHandler(deals entity.DealRepositoryInterface, changeStage *usecase.ChangeDealStageUseCase, pipeline *usecase.PipelineUseCase, logger *zap.Logger) *DealHandler {
	return &DealHandler{Deals: deals, ChangeStage: changeStage, Pipeline: pipeline, Logger: logger}
}

// List handles GET /deals?stage=&leadId=&from=&to= (from/to bound next_action_date).
func (h *DealHandler) List(w http.ResponseWriter, r *http.Request) {
	q := newQueryParams(r)
	filter := entity.DealFilter{
		LeadID: q.uuidPtr("leadId"),
		From:   q.timePtr("from"),
		To:     q.timePtr("to"),
	}
	if raw := q.str("stage"); raw != "" {
		stage, err := entity.ParseStage(raw)
		if err != nil {
			writeError(w, h.Logger, err)
			return
		}
		filter.Stage = &stage
	}
	if err := q.err(); err != nil {
		writeError(w, h.Logger, err)
		return
	}

	h.list(w, r, filter)
}

func (h *DealHandler) ListByLead(w http.ResponseWriter, r *http.Request) {
	leadID, ok := uuidParam(w, r, "leadId")
	if !ok {
		return
	}
	h.list(w, r, entity.DealFilter{LeadID: &leadID})
}

func (h *DealHandler) list(w http.ResponseWriter, r *http.Request, filter entity.DealFilter) {
	deals, err := h.Deals.List(r.Context(), filter)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, deals)
}

func (h *DealHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	deal, err := h.Deals.FindByID(r.Context(), id)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, deal)
}

type CreateDealRequest struct {
	LeadID         uuid.UUID  `json:"lead_id"`
	Stage          string     `json:"stage"`
	ValueEstimate  float64    `json:"value_estimate"`
	Probability    float64    `json:"probability"`
	NextActionDate *time.Time `json:"next_action_date"`
}

func (h *DealHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateDealRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	var stage entity.Stage
	if req.Stage != "" {
		parsed, err := entity.ParseStage(req.Stage)
		if err != nil {
			writeError(w, h.Logger, err)
			return
		}
		stage = parsed
	}

	deal, err := entity.NewDeal(req.LeadID, stage, req.ValueEstimate, req.Probability, req.NextActionDate)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	// a missing lead surfaces as a foreign key violation
	if err := h.Deals.Create(r.Context(), deal); err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, deal)
}

type UpdateDealRequest struct {
	ValueEstimate  *float64   `json:"value_estimate"`
	Probability    *float64   `json:"probability"`
	NextActionDate *time.Time `json:"next_action_date"`
	Stage          *string    `json:"stage"`
}

// Update patches value, probability and next action. A stage in the body goes
// through the stage change flow so automation still runs; the patch and the
// stage are then stored together.
func (h *DealHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	var req UpdateDealRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Stage != nil {
		if _, err := entity.ParseStage(*req.Stage); err != nil {
			writeError(w, h.Logger, err)
			return
		}
	}

	patch := func(deal *entity.Deal) {
		if req.ValueEstimate != nil {
			deal.ValueEstimate = *req.ValueEstimate
		}
		if req.Probability != nil {
			deal.Probability = *req.Probability
		}
		if req.NextActionDate != nil {
			deal.NextActionDate = req.NextActionDate
		}
	}

	if req.Stage != nil {
		deal, err := h.ChangeStage.ExecuteWithPatch(r.Context(), id, *req.Stage, patch)
		if err != nil {
			writeError(w, h.Logger, err)
			return
		}
		writeJSON(w, http.StatusOK, deal)
		return
	}

	deal, err := h.Deals.FindByID(r.Context(), id)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	patch(deal)
	if !h.save(w, r, deal) {
		return
	}
	writeJSON(w, http.StatusOK, deal)
}

func (h *DealHandler) UpdateStage(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	var req struct {
		Stage string `json:"stage"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	deal, err := h.ChangeStage.Execute(r.Context(), id, req.Stage)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, deal)
}

// UpdateNextAction sets or clears (null) the next action date.
func (h *DealHandler) UpdateNextAction(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	var req struct {
		NextActionDate *time.Time `json:"next_action_date"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	deal, err := h.Deals.FindByID(r.Context(), id)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	deal.NextActionDate = req.NextActionDate
	if !h.save(w, r, deal) {
		return
	}
	writeJSON(w, http.StatusOK, deal)
}

func (h *DealHandler) save(w http.ResponseWriter, r *http.Request, deal *entity.Deal) bool {
	if err := deal.Validate(); err != nil {
		writeError(w, h.Logger, err)
		return false
	}
	deal.UpdatedAt = time.Now().UTC()
	if err := h.Deals.Update(r.Context(), deal); err != nil {
		writeError(w, h.Logger, err)
		return false
	}
	return true
}

func (h *DealHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	if err := h.Deals.Delete(r.Context(), id); err != nil {
		writeError(w, h.Logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Board handles GET /pipeline.
func (h *DealHandler) Board(w http.ResponseWriter, r *http.Request) {
	board, err := h.Pipeline.Execute(r.Context())
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, board)
}
