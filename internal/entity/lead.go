package entity

import (
	"context"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Lead is a prospective customer. FitScore is a heuristic and is not bounded.
type Lead struct {
	ID        uuid.UUID `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Company   string    `json:"company" db:"company"`
	Email     string    `json:"email" db:"email"`
	Phone     *string   `json:"phone,omitempty" db:"phone"`
	LinkedIn  *string   `json:"linkedin,omitempty" db:"linkedin"`
	FitScore  int       `json:"fit_score" db:"fit_score"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

func NewLead(name, company, email string, phone, linkedIn *string, fitScore int) (*Lead, error) {
	now := time.Now().UTC()
	lead := &Lead{
		ID:        uuid.New(),
		Name:      strings.TrimSpace(name),
		Company:   strings.TrimSpace(company),
		Email:     strings.ToLower(strings.TrimSpace(email)),
		Phone:     trimmedOrNil(phone),
		LinkedIn:  trimmedOrNil(linkedIn),
		FitScore:  fitScore,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := lead.Validate(); err != nil {
		return nil, err
	}
	return lead, nil
}

func (l *Lead) Validate() error {
	var errs ValidationErrors

	switch {
	case l.Name == "":
		errs.add("name", "is required")
	case len(l.Name) > 200:
		errs.add("name", "must not exceed 200 characters")
	}

	switch {
	case l.Company == "":
		errs.add("company", "is required")
	case len(l.Company) > 200:
		errs.add("company", "must not exceed 200 characters")
	}

	switch {
	case l.Email == "":
		errs.add("email", "is required")
	case len(l.Email) > 320:
		errs.add("email", "must not exceed 320 characters")
	default:
		if _, err := mail.ParseAddress(l.Email); err != nil {
			errs.add("email", "is invalid")
		}
	}

	if l.Phone != nil && len(*l.Phone) > 50 {
		errs.add("phone", "must not exceed 50 characters")
	}
	if l.LinkedIn != nil && len(*l.LinkedIn) > 500 {
		errs.add("linkedin", "must not exceed 500 characters")
	}

	return errs.err()
}

// LeadFilter drives the list endpoint. Zero values mean "no filter".
type LeadFilter struct {
	Search      string
	Company     string
	MinFitScore *int
	Limit       int
	Offset      int
}

type LeadRepositoryInterface interface {
	List(ctx context.Context, filter LeadFilter) ([]*Lead, error)
	Count(ctx context.Context, filter LeadFilter) (int, error)
	FindByID(ctx context.Context, id uuid.UUID) (*Lead, error)
	FindByEmail(ctx context.Context, email string) (*Lead, error)
	FindByPhone(ctx context.Context, phone string) (*Lead, error)
	Create(ctx context.Context, lead *Lead) error
	Update(ctx context.Context, lead *Lead) error
	Delete(ctx context.Context, id uuid.UUID) error
}

func trimmedOrNil(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
