package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xavierca1/ligue-crm/internal/entity"
	"github.com/xavierca1/ligue-crm/internal/usecase"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
	searchLimit     = 10
)

type LeadHandler struct {
	Leads      entity.LeadRepositoryInterface
	TimelineUC *usecase.LeadTimelineUseCase
	Bulk       *usecase.BulkCreateLeadsUseCase
	Logger     *zap.Logger
}

func NewLeadHandler(leads entity.LeadRepositoryInterface, timeline *usecase.LeadTimelineUseCase, bulk *usecase.BulkCreateLeadsUseCase, logger *zap.Logger) *LeadHandler {
	return &LeadHandler{Leads: leads, TimelineUC: timeline, Bulk: bulk, Logger: logger}
}

type LeadPage struct {
	Items    []*entity.Lead `json:"items"`
	Total    int            `json:"total"`
	Page     int            `json:"page"`
	PageSize int            `json:"page_size"`
}

// List handles GET /leads?search=&company=&minFitScore=&page=&pageSize=
func (h *LeadHandler) List(w http.ResponseWriter, r *http.Request) {
	q := newQueryParams(r)
	page := q.integer("page", 1)
	size := q.integer("pageSize", defaultPageSize)
	filter := entity.LeadFilter{
		Search:      q.str("search"),
		Company:     q.str("company"),
		MinFitScore: q.intPtr("minFitScore"),
	}
	if page < 1 {
		q.fail("page", "must be at least 1")
	}
	if size < 1 || size > maxPageSize {
		q.fail("pageSize", "must be between 1 and 100")
	}
	if err := q.err(); err != nil {
		writeError(w, h.Logger, err)
		return
	}

	total, err := h.Leads.Count(r.Context(), filter)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}

	filter.Limit = size
	filter.Offset = (page - 1) * size
	leads, err := h.Leads.List(r.Context(), filter)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}

	writeJSON(w, http.StatusOK, LeadPage{Items: leads, Total: total, Page: page, PageSize: size})
}

// Search handles GET /leads/search?q=, a quick lookup over name, company and email.
func (h *LeadHandler) Search(w http.ResponseWriter, r *http.Request) {
	term := strings.TrimSpace(r.URL.Query().Get("q"))
	if term == "" {
		writeErrorResponse(w, http.StatusBadRequest, "MISSING_QUERY", "q is required")
		return
	}

	leads, err := h.Leads.List(r.Context(), entity.LeadFilter{Search: term, Limit: searchLimit})
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, leads)
}

func (h *LeadHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	lead, err := h.Leads.FindByID(r.Context(), id)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, lead)
}

// Timeline handles GET /leads/{id}/timeline.
func (h *LeadHandler) Timeline(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	tl, err := h.TimelineUC.Execute(r.Context(), id)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, tl)
}

func (h *LeadHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in usecase.LeadInput
	if !decodeJSON(w, r, &in) {
		return
	}

	lead, err := entity.NewLead(in.Name, in.Company, in.Email, in.Phone, in.LinkedIn, in.FitScore)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	if err := h.Leads.Create(r.Context(), lead); err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, lead)
}

func (h *LeadHandler) BulkCreate(w http.ResponseWriter, r *http.Request) {
	var in []usecase.LeadInput
	if !decodeJSON(w, r, &in) {
		return
	}
	leads, err := h.Bulk.Execute(r.Context(), in)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"created": len(leads), "items": leads})
}

type UpdateLeadRequest struct {
	Name     *string `json:"name"`
	Company  *string `json:"company"`
	Email    *string `json:"email"`
	Phone    *string `json:"phone"`
	LinkedIn *string `json:"linkedin"`
	FitScore *int    `json:"fit_score"`
}

// Update applies only the fields present in the body.
func (h *LeadHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	var req UpdateLeadRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	h.mutate(w, r, id, func(l *entity.Lead) {
		if req.Name != nil {
			l.Name = strings.TrimSpace(*req.Name)
		}
		if req.Company != nil {
			l.Company = strings.TrimSpace(*req.Company)
		}
		if req.Email != nil {
			l.Email = strings.ToLower(strings.TrimSpace(*req.Email))
		}
		if req.Phone != nil {
			l.Phone = blankToNil(*req.Phone)
		}
		if req.LinkedIn != nil {
			l.LinkedIn = blankToNil(*req.LinkedIn)
		}
		if req.FitScore != nil {
			l.FitScore = *req.FitScore
		}
	})
}

func (h *LeadHandler) UpdateFitScore(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	var req struct {
		FitScore *int `json:"fit_score"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.FitScore == nil {
		writeError(w, h.Logger, entity.ValidationErrors{{Field: "fit_score", Message: "is required"}})
		return
	}

	h.mutate(w, r, id, func(l *entity.Lead) { l.FitScore = *req.FitScore })
}

func (h *LeadHandler) mutate(w http.ResponseWriter, r *http.Request, id uuid.UUID, apply func(*entity.Lead)) {
	lead, err := h.Leads.FindByID(r.Context(), id)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	apply(lead)
	if err := lead.Validate(); err != nil {
		writeError(w, h.Logger, err)
		return
	}
	lead.UpdatedAt = time.Now().UTC()
	if err := h.Leads.Update(r.Context(), lead); err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, lead)
}

func (h *LeadHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	if err := h.Leads.Delete(r.Context(), id); err != nil {
		writeError(w, h.Logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func blankToNil(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
