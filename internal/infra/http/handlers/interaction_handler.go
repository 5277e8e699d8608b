package handlers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xavierca1/ligue-crm/internal/entity"
)

type InteractionHandler struct {
	Interactions entity.InteractionRepositoryInterface
	Logger       *zap.Logger
}

func NewInteractionHandler(interactions entity.InteractionRepositoryInterface, logger *zap.Logger) *InteractionHandler {
	return &InteractionHandler{Interactions: interactions, Logger: logger}
}

// List handles GET /interactions?leadId=&type=&since=
func (h *InteractionHandler) List(w http.ResponseWriter, r *http.Request) {
	q := newQueryParams(r)
	filter := entity.InteractionFilter{
		LeadID: q.uuidPtr("leadId"),
		Since:  q.timePtr("since"),
	}
	if raw := q.str("type"); raw != "" {
		kind, err := entity.ParseInteractionType(raw)
		if err != nil {
			writeError(w, h.Logger, err)
			return
		}
		filter.Type = &kind
	}
	if err := q.err(); err != nil {
		writeError(w, h.Logger, err)
		return
	}
	h.list(w, r, filter)
}

func (h *InteractionHandler) ListByLead(w http.ResponseWriter, r *http.Request) {
	leadID, ok := uuidParam(w, r, "leadId")
	if !ok {
		return
	}
	h.list(w, r, entity.InteractionFilter{LeadID: &leadID})
}

func (h *InteractionHandler) list(w http.ResponseWriter, r *http.Request, filter entity.InteractionFilter) {
	items, err := h.Interactions.List(r.Context(), filter)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *InteractionHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	item, err := h.Interactions.FindByID(r.Context(), id)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

type CreateInteractionRequest struct {
	LeadID     uuid.UUID `json:"lead_id"`
	Type       string    `json:"type"`
	Summary    *string   `json:"summary"`
	Sentiment  *float64  `json:"sentiment"`
	Transcript *string   `json:"transcript"`
}

func (h *InteractionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateInteractionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	kind, err := entity.ParseInteractionType(req.Type)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}

	item, err := entity.NewInteraction(req.LeadID, kind, req.Summary, req.Sentiment, req.Transcript)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	if err := h.Interactions.Create(r.Context(), item); err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

// AttachTranscript handles POST /interactions/{id}/attach-transcript.
func (h *InteractionHandler) AttachTranscript(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	var req struct {
		Transcript string `json:"transcript"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	transcript := strings.TrimSpace(req.Transcript)
	if transcript == "" {
		writeError(w, h.Logger, entity.ValidationErrors{{Field: "transcript", Message: "is required"}})
		return
	}

	h.mutate(w, r, id, func(i *entity.Interaction) error {
		i.Transcript = &transcript
		return nil
	})
}

type UpdateInteractionRequest struct {
	Type      *string  `json:"type"`
	Summary   *string  `json:"summary"`
	Sentiment *float64 `json:"sentiment"`
}

func (h *InteractionHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	var req UpdateInteractionRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	h.mutate(w, r, id, func(i *entity.Interaction) error {
		if req.Type != nil {
			kind, err := entity.ParseInteractionType(*req.Type)
			if err != nil {
				return err
			}
			i.Type = kind
		}
		if req.Summary != nil {
			i.Summary = blankToNil(*req.Summary)
		}
		if req.Sentiment != nil {
			i.Sentiment = req.Sentiment
		}
		return nil
	})
}

func (h *InteractionHandler) mutate(w http.ResponseWriter, r *http.Request, id uuid.UUID, apply func(*entity.Interaction) error) {
	item, err := h.Interactions.FindByID(r.Context(), id)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	if err := apply(item); err != nil {
		writeError(w, h.Logger, err)
		return
	}
	if err := item.Validate(); err != nil {
		writeError(w, h.Logger, err)
		return
	}
	if err := h.Interactions.Update(r.Context(), item); err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (h *InteractionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	if err := h.Interactions.Delete(r.Context(), id); err != nil {
		writeError(w, h.Logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
