package entity

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type InteractionType string

const (
	InteractionEmail   InteractionType = "Email"
	InteractionCall    InteractionType = "Call"
	InteractionMeeting InteractionType = "Meeting"
)

func ParseInteractionType(s string) (InteractionType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "email":
		return InteractionEmail, nil
	case "call":
		return InteractionCall, nil
	case "meeting":
		return InteractionMeeting, nil
	}
	return "", ValidationErrors{{Field: "type", Message: fmt.Sprintf("unknown interaction type %q", s)}}
}

// Interaction is one logged touchpoint with a lead.
// Sentiment is free-scale: the UI uses -1..1 and some imports use 0..100.
type Interaction struct {
	ID         uuid.UUID       `json:"id" db:"id"`
	LeadID     uuid.UUID       `json:"lead_id" db:"lead_id"`
	Type       InteractionType `json:"type" db:"type"`
	Summary    *string         `json:"summary,omitempty" db:"summary"`
	Sentiment  *float64        `json:"sentiment,omitempty" db:"sentiment"`
	Transcript *string         `json:"transcript,omitempty" db:"transcript"`
	CreatedAt  time.Time       `json:"created_at" db:"created_at"`
}

func NewInteraction(leadID uuid.UUID, kind InteractionType, summary *string, sentiment *float64, transcript *string) (*Interaction, error) {
	i := &Interaction{
		ID:         uuid.New(),
		LeadID:     leadID,
		Type:       kind,
		Summary:    trimmedOrNil(summary),
		Sentiment:  sentiment,
		Transcript: trimmedOrNil(transcript),
		CreatedAt:  time.Now().UTC(),
	}
	if err := i.Validate(); err != nil {
		return nil, err
	}
	return i, nil
}

func (i *Interaction) Validate() error {
	var errs ValidationErrors

	if i.LeadID == uuid.Nil {
		errs.add("lead_id", "is required")
	}
	switch i.Type {
	case InteractionEmail, InteractionCall, InteractionMeeting:
	default:
		errs.add("type", "must be Email, Call or Meeting")
	}
	if i.Summary != nil && len(*i.Summary) > 2000 {
		errs.add("summary", "must not exceed 2000 characters")
	}

	return errs.err()
}

type InteractionFilter struct {
	LeadID *uuid.UUID
	Type   *InteractionType
	Since  *time.Time
}

type InteractionRepositoryInterface interface {
	List(ctx context.Context, filter InteractionFilter) ([]*Interaction, error)
	// ListRecentByLead returns at most limit interactions, newest first.
	ListRecentByLead(ctx context.Context, leadID uuid.UUID, limit int) ([]*Interaction, error)
	FindByID(ctx context.Context, id uuid.UUID) (*Interaction, error)
	Create(ctx context.Context, i *Interaction) error
	Update(ctx context.Context, i *Interaction) error
	Delete(ctx context.Context, id uuid.UUID) error
}
