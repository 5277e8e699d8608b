package entity

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Deal struct {
	ID             uuid.UUID  `json:"id" db:"id"`
	LeadID         uuid.UUID  `json:"lead_id" db:"lead_id"`
	Stage          Stage      `json:"stage" db:"stage"`
	ValueEstimate  float64    `json:"value_estimate" db:"value_estimate"`
	Probability    float64    `json:"probability" db:"probability"` // 0.0 to 1.0
	NextActionDate *time.Time `json:"next_action_date,omitempty" db:"next_action_date"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at" db:"updated_at"`
}

// DealWithLead is a deal row joined with the lead fields the pipeline board shows.
type DealWithLead struct {
	Deal
	LeadName     string `json:"lead_name" db:"lead_name"`
	LeadCompany  string `json:"lead_company" db:"lead_company"`
	LeadFitScore int    `json:"lead_fit_score" db:"lead_fit_score"`
}

// NewDeal defaults an empty stage to New.
func NewDeal(leadID uuid.UUID, stage Stage, value, probability float64, nextAction *time.Time) (*Deal, error) {
	if stage == "" {
		stage = StageNew
	}
	now := time.Now().UTC()
	deal := &Deal{
		ID:             uuid.New(),
		LeadID:         leadID,
		Stage:          stage,
		ValueEstimate:  value,
		Probability:    probability,
		NextActionDate: nextAction,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := deal.Validate(); err != nil {
		return nil, err
	}
	return deal, nil
}

func (d *Deal) Validate() error {
	var errs ValidationErrors

	if d.LeadID == uuid.Nil {
		errs.add("lead_id", "is required")
	}
	if !d.Stage.Valid() {
		errs.add("stage", "is not a pipeline stage")
	}
	if d.ValueEstimate < 0 {
		errs.add("value_estimate", "must not be negative")
	}
	if d.Probability < 0 || d.Probability > 1 {
		errs.add("probability", "must be between 0 and 1")
	}

	return errs.err()
}

// Weighted is the value estimate discounted by the win probability.
func (d *Deal) Weighted() float64 {
	return d.ValueEstimate * d.Probability
}

type DealFilter struct {
	LeadID *uuid.UUID
	Stage  *Stage
	From   *time.Time // next_action_date >= From
	To     *time.Time // next_action_date < To
}

type DealRepositoryInterface interface {
	List(ctx context.Context, filter DealFilter) ([]*Deal, error)
	ListWithLeads(ctx context.Context) ([]*DealWithLead, error)
	FindByID(ctx context.Context, id uuid.UUID) (*Deal, error)
	Create(ctx context.Context, deal *Deal) error
	Update(ctx context.Context, deal *Deal) error
	Delete(ctx context.Context, id uuid.UUID) error
}
