package handlers

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"github.com/xavierca1/ligue-crm/internal/entity"
	"github.com/xavierca1/ligue-crm/internal/usecase"
)

func TestSendEmailToLead(t *testing.T) {
	lead := &entity.Lead{ID: uuid.New(), Email: "ada@engines.test"}
	body := map[string]string{"subject": "Next steps", "body": "Hi Ada"}
	params := map[string]string{"leadId": lead.ID.String()}

	t.Run("sent", func(t *testing.T) {
		leads, interactions, mailer := new(MockLeadRepository), new(MockInteractionRepository), new(MockEmailService)
		leads.On("FindByID", mock.Anything, lead.ID).Return(lead, nil)
		mailer.On("Send", mock.Anything, "ada@engines.test", "Next steps", "Hi Ada").Return(nil)
		interactions.On("Create", mock.Anything, mock.Anything).Return(nil)
		h := NewEmailHandler(usecase.NewSendEmailUseCase(leads, interactions, mailer, zap.NewNop()), zap.NewNop())

		w := httptest.NewRecorder()
		h.SendToLead(w, newRequest(t, http.MethodPost, "/integrations/email/send/x", body, params))

		assert.Equal(t, http.StatusCreated, w.Code)
		assert.Equal(t, entity.InteractionEmail, decodeResponse[entity.Interaction](t, w).Type)
	})

	t.Run("smtp failure", func(t *testing.T) {
		leads, interactions, mailer := new(MockLeadRepository), new(MockInteractionRepository), new(MockEmailService)
		leads.On("FindByID", mock.Anything, lead.ID).Return(lead, nil)
		mailer.On("Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(errors.New("dial tcp: refused"))
		h := NewEmailHandler(usecase.NewSendEmailUseCase(leads, interactions, mailer, zap.NewNop()), zap.NewNop())

		w := httptest.NewRecorder()
		h.SendToLead(w, newRequest(t, http.MethodPost, "/integrations/email/send/x", body, params))

		assert.Equal(t, http.StatusBadGateway, w.Code)
		assert.Equal(t, "SMTP_ERROR", decodeResponse[ErrorResponse](t, w).Error)
		interactions.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("not configured", func(t *testing.T) {
		leads := new(MockLeadRepository)
		leads.On("FindByID", mock.Anything, lead.ID).Return(lead, nil)
		h := NewEmailHandler(usecase.NewSendEmailUseCase(leads, new(MockInteractionRepository), nil, zap.NewNop()), zap.NewNop())

		w := httptest.NewRecorder()
		h.SendToLead(w, newRequest(t, http.MethodPost, "/integrations/email/send/x", body, params))

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})
}
