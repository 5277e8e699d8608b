package usecase

import (
	"context"

	"github.com/google/uuid"
	"google.golang.org/genai"

	"github.com/xavierca1/ligue-crm/internal/entity"
)

// Generator is the outbound generative-model call. schema may be nil.
type Generator interface {
	Generate(ctx context.Context, prompt string, schema *genai.Schema) (string, error)
}

// DealStageChanged is published whenever a deal moves to a different stage.
type DealStageChanged struct {
	DealID uuid.UUID    `json:"deal_id"`
	LeadID uuid.UUID    `json:"lead_id"`
	From   entity.Stage `json:"from"`
	To     entity.Stage `json:"to"`
}

type EventPublisher interface {
	PublishStageChanged(ctx context.Context, event DealStageChanged) error
}

type EmailService interface {
	Send(ctx context.Context, to, subject, body string) error
}
