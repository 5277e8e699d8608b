package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xavierca1/ligue-crm/internal/entity"
)

type ChangeDealStageUseCase struct {
	Deals     entity.DealRepositoryInterface
	Publisher EventPublisher
	Logger    *zap.Logger
}

func NewChangeDealStageUseCase(deals entity.DealRepositoryInterface, publisher EventPublisher, logger *zap.Logger) *ChangeDealStageUseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChangeDealStageUseCase{Deals: deals, Publisher: publisher, Logger: logger}
}

// Execute moves the deal and publishes DealStageChanged. A publish failure is
// logged only: the stage change is already stored.
func (uc *ChangeDealStageUseCase) Execute(ctx context.Context, dealID uuid.UUID, rawStage string) (*entity.Deal, error) {
	return uc.ExecuteWithPatch(ctx, dealID, rawStage, nil)
}

// ExecuteWithPatch applies patch and the stage change to the deal and stores
// both with a single update, so a rejected change writes nothing.
func (uc *ChangeDealStageUseCase) ExecuteWithPatch(ctx context.Context, dealID uuid.UUID, rawStage string, patch func(*entity.Deal)) (*entity.Deal, error) {
	stage, err := entity.ParseStage(rawStage)
	if err != nil {
		return nil, err
	}

	deal, err := uc.Deals.FindByID(ctx, dealID)
	if err != nil {
		return nil, err
	}
	if deal.Stage == stage && patch == nil {
		return deal, nil
	}

	from := deal.Stage
	if patch != nil {
		patch(deal)
	}
	deal.Stage = stage
	if patch != nil {
		if err := deal.Validate(); err != nil {
			return nil, err
		}
	}
	deal.UpdatedAt = time.Now().UTC()
	if err := uc.Deals.Update(ctx, deal); err != nil {
		return nil, err
	}
	if from == stage {
		return deal, nil
	}

	event := DealStageChanged{DealID: deal.ID, LeadID: deal.LeadID, From: from, To: stage}
	if uc.Publisher != nil {
		if err := uc.Publisher.PublishStageChanged(ctx, event); err != nil {
			uc.Logger.Error("stage changed but event was not published",
				zap.String("deal_id", deal.ID.String()),
				zap.String("to", string(stage)),
				zap.Error(err),
			)
		}
	}
	return deal, nil
}
