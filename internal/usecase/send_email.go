package usecase

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xavierca1/ligue-crm/internal/entity"
)

var ErrMailNotConfigured = errors.New("outbound email is not configured: set SMTP_HOST")

type SendEmailInput struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

type SendEmailUseCase struct {
	Leads        entity.LeadRepositoryInterface
	Interactions entity.InteractionRepositoryInterface
	Mailer       EmailService
	Logger       *zap.Logger
}

func NewSendEmailUseCase(leads entity.LeadRepositoryInterface, interactions entity.InteractionRepositoryInterface, mailer EmailService, logger *zap.Logger) *SendEmailUseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SendEmailUseCase{Leads: leads, Interactions: interactions, Mailer: mailer, Logger: logger}
}

// Execute sends the email to the lead and logs it as an Email interaction.
func (uc *SendEmailUseCase) Execute(ctx context.Context, leadID uuid.UUID, input SendEmailInput) (*entity.Interaction, error) {
	subject := strings.TrimSpace(input.Subject)
	body := strings.TrimSpace(input.Body)
	if subject == "" || body == "" {
		return nil, ErrMissingSubject
	}

	lead, err := uc.Leads.FindByID(ctx, leadID)
	if err != nil {
		return nil, err
	}
	if uc.Mailer == nil {
		return nil, ErrMailNotConfigured
	}

	if err := uc.Mailer.Send(ctx, lead.Email, subject, body); err != nil {
		return nil, &TechnicalError{Code: "SMTP_ERROR", Message: "send email", Err: err}
	}

	summary := "Email sent: " + truncate(subject, 300)
	interaction, err := entity.NewInteraction(lead.ID, entity.InteractionEmail, &summary, nil, &body)
	if err != nil {
		return nil, err
	}
	if err := uc.Interactions.Create(ctx, interaction); err != nil {
		// the email is gone already, report the logging failure only
		uc.Logger.Error("email sent but interaction not stored", zap.String("lead_id", lead.ID.String()), zap.Error(err))
		return nil, err
	}
	return interaction, nil
}
