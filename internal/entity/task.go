package entity

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Task struct {
	ID          uuid.UUID  `json:"id" db:"id"`
	LeadID      uuid.UUID  `json:"lead_id" db:"lead_id"`
	Description string     `json:"description" db:"description"`
	DueDate     *time.Time `json:"due_date,omitempty" db:"due_date"`
	Completed   bool       `json:"completed" db:"completed"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
}

func NewTask(leadID uuid.UUID, description string, due *time.Time) (*Task, error) {
	t := &Task{
		ID:          uuid.New(),
		LeadID:      leadID,
		Description: strings.TrimSpace(description),
		DueDate:     due,
		CreatedAt:   time.Now().UTC(),
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Task) Validate() error {
	var errs ValidationErrors

	if t.LeadID == uuid.Nil {
		errs.add("lead_id", "is required")
	}
	switch {
	case t.Description == "":
		errs.add("description", "is required")
	case len(t.Description) > 500:
		errs.add("description", "must not exceed 500 characters")
	}

	return errs.err()
}

// Overdue is true for open tasks whose due date has passed.
func (t *Task) Overdue(now time.Time) bool {
	return !t.Completed && t.DueDate != nil && t.DueDate.Before(now)
}

type TaskFilter struct {
	LeadID    *uuid.UUID
	DueBefore *time.Time
	DueAfter  *time.Time // inclusive
	Completed *bool
}

type TaskRepositoryInterface interface {
	List(ctx context.Context, filter TaskFilter) ([]*Task, error)
	FindByID(ctx context.Context, id uuid.UUID) (*Task, error)
	Create(ctx context.Context, t *Task) error
	Update(ctx context.Context, t *Task) error
	Delete(ctx context.Context, id uuid.UUID) error
}
