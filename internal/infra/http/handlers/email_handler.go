package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/xavierca1/ligue-crm/internal/usecase"
)

type EmailHandler struct {
	Send   *usecase.SendEmailUseCase
	Logger *zap.Logger
}

func NewEmailHandler(send *usecase.SendEmailUseCase, logger *zap.Logger) *EmailHandler {
	return &EmailHandler{Send: send, Logger: logger}
}

// SendToLead handles POST /integrations/email/send/{leadId} and returns the logged interaction.
func (h *EmailHandler) SendToLead(w http.ResponseWriter, r *http.Request) {
	leadID, ok := uuidParam(w, r, "leadId")
	if !ok {
		return
	}
	var input usecase.SendEmailInput
	if !decodeJSON(w, r, &input) {
		return
	}

	interaction, err := h.Send.Execute(r.Context(), leadID, input)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, interaction)
}
