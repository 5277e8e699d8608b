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

const interactionColumns = `id, lead_id, type, summary, sentiment, transcript, created_at`

type InteractionRepository struct {
	DB *sqlx.DB
}

func NewInteractionRepository(db *sqlx.DB) *InteractionRepository {
	return &InteractionRepository{DB: db}
}

func (r *InteractionRepository) List(ctx context.Context, f entity.InteractionFilter) ([]*entity.Interaction, error) {
	w := &where{}
	if f.LeadID != nil {
		w.add("lead_id = ?", *f.LeadID)
	}
	if f.Type != nil {
		w.add("type = ?", string(*f.Type))
	}
	if f.Since != nil {
		w.add("created_at >= ?", *f.Since)
	}

	query := `SELECT ` + interactionColumns + ` FROM interactions` + w.String() + ` ORDER BY created_at DESC`
	out := []*entity.Interaction{}
	if err := r.DB.SelectContext(ctx, &out, r.DB.Rebind(query), w.args...); err != nil {
		return nil, fmt.Errorf("list interactions: %w", err)
	}
	return out, nil
}

func (r *InteractionRepository) ListRecentByLead(ctx context.Context, leadID uuid.UUID, limit int) ([]*entity.Interaction, error) {
	query := `SELECT ` + interactionColumns + ` FROM interactions WHERE lead_id = $1 ORDER BY created_at DESC LIMIT $2`
	out := []*entity.Interaction{}
	if err := r.DB.SelectContext(ctx, &out, query, leadID, limit); err != nil {
		return nil, fmt.Errorf("list recent interactions: %w", err)
	}
	return out, nil
}

func (r *InteractionRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Interaction, error) {
	var i entity.Interaction
	err := r.DB.GetContext(ctx, &i, `SELECT `+interactionColumns+` FROM interactions WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, entity.ErrInteractionNotFound
		}
		return nil, fmt.Errorf("find interaction: %w", err)
	}
	return &i, nil
}

func (r *InteractionRepository) Create(ctx context.Context, i *entity.Interaction) error {
	query := `
		INSERT INTO interactions (` + interactionColumns + `)
		VALUES (:id, :lead_id, :type, :summary, :sentiment, :transcript, :created_at)
	`
	if _, err := r.DB.NamedExecContext(ctx, query, i); err != nil {
		return mapWriteError(err)
	}
	return nil
}

func (r *InteractionRepository) Update(ctx context.Context, i *entity.Interaction) error {
	query := `
		UPDATE interactions SET
			type = :type,
			summary = :summary,
			sentiment = :sentiment,
			transcript = :transcript
		WHERE id = :id
	`
	res, err := r.DB.NamedExecContext(ctx, query, i)
	if err != nil {
		return mapWriteError(err)
	}
	return requireAffected(res, entity.ErrInteractionNotFound)
}

func (r *InteractionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM interactions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete interaction: %w", err)
	}
	return requireAffected(res, entity.ErrInteractionNotFound)
}
