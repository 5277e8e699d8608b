package usecase

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/xavierca1/ligue-crm/internal/entity"
)

// MaxBulkLeads bounds one bulk import request.
const MaxBulkLeads = 500

type LeadInput struct {
	Name     string  `json:"name"`
	Company  string  `json:"company"`
	Email    string  `json:"email"`
	Phone    *string `json:"phone,omitempty"`
	LinkedIn *string `json:"linkedin,omitempty"`
	FitScore int     `json:"fit_score"`
}

// BulkValidationError reports every invalid row of a bulk import.
type BulkValidationError struct {
	Rows map[int]entity.ValidationErrors `json:"rows"`
}

func (e *BulkValidationError) Error() string {
	return fmt.Sprintf("%d rows failed validation", len(e.Rows))
}

type BulkCreateLeadsUseCase struct {
	Leads  entity.LeadRepositoryInterface
	Logger *zap.Logger
}

func NewBulkCreateLeadsUseCase(leads entity.LeadRepositoryInterface, logger *zap.Logger) *BulkCreateLeadsUseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BulkCreateLeadsUseCase{Leads: leads, Logger: logger}
}

// Execute is all or nothing: every row is validated first, then rows are
// inserted one by one and already inserted rows are deleted if a later one fails.
func (uc *BulkCreateLeadsUseCase) Execute(ctx context.Context, input []LeadInput) ([]*entity.Lead, error) {
	if len(input) == 0 {
		return nil, ErrEmptyBulk
	}
	if len(input) > MaxBulkLeads {
		return nil, &DomainError{Code: "BULK_TOO_LARGE", Message: fmt.Sprintf("at most %d leads per request", MaxBulkLeads)}
	}

	leads := make([]*entity.Lead, 0, len(input))
	invalid := map[int]entity.ValidationErrors{}
	for i, in := range input {
		lead, err := entity.NewLead(in.Name, in.Company, in.Email, in.Phone, in.LinkedIn, in.FitScore)
		if err != nil {
			var verrs entity.ValidationErrors
			if errors.As(err, &verrs) {
				invalid[i] = verrs
				continue
			}
			return nil, err
		}
		leads = append(leads, lead)
	}
	if len(invalid) > 0 {
		return nil, &BulkValidationError{Rows: invalid}
	}

	tx := NewTransaction(uc.Logger)
	for _, lead := range leads {
		lead := lead
		tx.Add("create lead "+lead.Email,
			func(ctx context.Context) error { return uc.Leads.Create(ctx, lead) },
			func(ctx context.Context) error { return uc.Leads.Delete(ctx, lead.ID) },
		)
	}
	if err := tx.Execute(ctx); err != nil {
		return nil, err
	}

	uc.Logger.Info("bulk lead import", zap.Int("count", len(leads)))
	return leads, nil
}
