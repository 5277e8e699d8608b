package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/xavierca1/ligue-crm/internal/entity"
)

const leadColumns = `id, name, company, email, phone, linkedin, fit_score, created_at, updated_at`

type LeadRepository struct {
	DB *sqlx.DB
}

func NewLeadRepository(db *sqlx.DB) *LeadRepository {
	return &LeadRepository{DB: db}
}

func leadWhere(f entity.LeadFilter) *where {
	w := &where{}
	if f.Search != "" {
		p := likePattern(f.Search)
		w.add("(name ILIKE ? OR company ILIKE ? OR email ILIKE ?)", p, p, p)
	}
	if f.Company != "" {
		w.add("company ILIKE ?", likePattern(f.Company))
	}
	if f.MinFitScore != nil {
		w.add("fit_score >= ?", *f.MinFitScore)
	}
	return w
}

func (r *LeadRepository) List(ctx context.Context, f entity.LeadFilter) ([]*entity.Lead, error) {
	w := leadWhere(f)
	query := `SELECT ` + leadColumns + ` FROM leads` + w.String() + ` ORDER BY fit_score DESC, created_at DESC`
	args := w.args
	if f.Limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, f.Limit, f.Offset)
	}

	leads := []*entity.Lead{}
	if err := r.DB.SelectContext(ctx, &leads, r.DB.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("list leads: %w", err)
	}
	return leads, nil
}

func (r *LeadRepository) Count(ctx context.Context, f entity.LeadFilter) (int, error) {
	w := leadWhere(f)
	var n int
	if err := r.DB.GetContext(ctx, &n, r.DB.Rebind(`SELECT COUNT(*) FROM leads`+w.String()), w.args...); err != nil {
		return 0, fmt.Errorf("count leads: %w", err)
	}
	return n, nil
}

func (r *LeadRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Lead, error) {
	return r.findOne(ctx, `SELECT `+leadColumns+` FROM leads WHERE id = $1`, id)
}

func (r *LeadRepository) FindByEmail(ctx context.Context, email string) (*entity.Lead, error) {
	return r.findOne(ctx, `SELECT `+leadColumns+` FROM leads WHERE LOWER(email) = LOWER($1)`, email)
}

// FindByPhone compares the last ten digits, so "+1 (555) 010-2030" matches "5550102030".
func (r *LeadRepository) FindByPhone(ctx context.Context, phone string) (*entity.Lead, error) {
	digits := digitsOnly(phone)
	if digits == "" {
		return nil, entity.ErrLeadNotFound
	}
	query := `SELECT ` + leadColumns + ` FROM leads
		WHERE phone IS NOT NULL
		  AND RIGHT(REGEXP_REPLACE(phone, '\D', '', 'g'), 10) = RIGHT($1, 10)
		ORDER BY created_at DESC
		LIMIT 1`
	return r.findOne(ctx, query, digits)
}

func (r *LeadRepository) findOne(ctx context.Context, query string, arg interface{}) (*entity.Lead, error) {
	var lead entity.Lead
	if err := r.DB.GetContext(ctx, &lead, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, entity.ErrLeadNotFound
		}
		return nil, fmt.Errorf("find lead: %w", err)
	}
	return &lead, nil
}

func (r *LeadRepository) Create(ctx context.Context, lead *entity.Lead) error {
	query := `
		INSERT INTO leads (` + leadColumns + `)
		VALUES (:id, :name, :company, :email, :phone, :linkedin, :fit_score, :created_at, :updated_at)
	`
	if _, err := r.DB.NamedExecContext(ctx, query, lead); err != nil {
		return mapWriteError(err)
	}
	return nil
}

func (r *LeadRepository) Update(ctx context.Context, lead *entity.Lead) error {
	query := `
		UPDATE leads SET
			name = :name,
			company = :company,
			email = :email,
			phone = :phone,
			linkedin = :linkedin,
			fit_score = :fit_score,
			updated_at = :updated_at
		WHERE id = :id
	`
	res, err := r.DB.NamedExecContext(ctx, query, lead)
	if err != nil {
		return mapWriteError(err)
	}
	return requireAffected(res, entity.ErrLeadNotFound)
}

func (r *LeadRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM leads WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete lead: %w", err)
	}
	return requireAffected(res, entity.ErrLeadNotFound)
}
