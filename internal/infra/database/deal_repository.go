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

const dealColumns = `id, lead_id, stage, value_estimate, probability, next_action_date, created_at, updated_at`

type DealRepository struct {
	DB *sqlx.DB
}

func NewDealRepository(db *sqlx.DB) *DealRepository {
	return &DealRepository{DB: db}
}

func (r *DealRepository) List(ctx context.Context, f entity.DealFilter) ([]*entity.Deal, error) {
	w := &where{}
	if f.LeadID != nil {
		w.add("lead_id = ?", *f.LeadID)
	}
	if f.Stage != nil {
		w.add("stage = ?", string(*f.Stage))
	}
	if f.From != nil {
		w.add("next_action_date >= ?", *f.From)
	}
	if f.To != nil {
		w.add("next_action_date < ?", *f.To)
	}

	query := `SELECT ` + dealColumns + ` FROM deals` + w.String() + ` ORDER BY created_at DESC`
	deals := []*entity.Deal{}
	if err := r.DB.SelectContext(ctx, &deals, r.DB.Rebind(query), w.args...); err != nil {
		return nil, fmt.Errorf("list deals: %w", err)
	}
	return deals, nil
}

func (r *DealRepository) ListWithLeads(ctx context.Context) ([]*entity.DealWithLead, error) {
	query := `
		SELECT
			d.id, d.lead_id, d.stage, d.value_estimate, d.probability,
			d.next_action_date, d.created_at, d.updated_at,
			l.name AS lead_name,
			l.company AS lead_company,
			l.fit_score AS lead_fit_score
		FROM deals d
		JOIN leads l ON l.id = d.lead_id
		ORDER BY l.fit_score DESC, d.created_at DESC
	`
	rows := []*entity.DealWithLead{}
	if err := r.DB.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("list deals with leads: %w", err)
	}
	return rows, nil
}

func (r *DealRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Deal, error) {
	var deal entity.Deal
	err := r.DB.GetContext(ctx, &deal, `SELECT `+dealColumns+` FROM deals WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, entity.ErrDealNotFound
		}
		return nil, fmt.Errorf("find deal: %w", err)
	}
	return &deal, nil
}

func (r *DealRepository) Create(ctx context.Context, deal *entity.Deal) error {
	query := `
		INSERT INTO deals (` + dealColumns + `)
		VALUES (:id, :lead_id, :stage, :value_estimate, :probability, :next_action_date, :created_at, :updated_at)
	`
	if _, err := r.DB.NamedExecContext(ctx, query, deal); err != nil {
		return mapWriteError(err)
	}
	return nil
}

func (r *DealRepository) Update(ctx context.Context, deal *entity.Deal) error {
	query := `
		UPDATE deals SET
			stage = :stage,
			value_estimate = :value_estimate,
			probability = :probability,
			next_action_date = :next_action_date,
			updated_at = :updated_at
		WHERE id = :id
	`
	res, err := r.DB.NamedExecContext(ctx, query, deal)
	if err != nil {
		return mapWriteError(err)
	}
	return requireAffected(res, entity.ErrDealNotFound)
}

func (r *DealRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM deals WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete deal: %w", err)
	}
	return requireAffected(res, entity.ErrDealNotFound)
}
