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

const taskColumns = `id, lead_id, description, due_date, completed, created_at`

type TaskRepository struct {
	DB *sqlx.DB
}

func NewTaskRepository(db *sqlx.DB) *TaskRepository {
	return &TaskRepository{DB: db}
}

func (r *TaskRepository) List(ctx context.Context, f entity.TaskFilter) ([]*entity.Task, error) {
	w := &where{}
	if f.LeadID != nil {
		w.add("lead_id = ?", *f.LeadID)
	}
	if f.DueAfter != nil {
		w.add("due_date >= ?", *f.DueAfter)
	}
	if f.DueBefore != nil {
		w.add("due_date < ?", *f.DueBefore)
	}
	if f.Completed != nil {
		w.add("completed = ?", *f.Completed)
	}

	// tasks without a due date go last
	query := `SELECT ` + taskColumns + ` FROM tasks` + w.String() + ` ORDER BY due_date ASC NULLS LAST, created_at ASC`
	out := []*entity.Task{}
	if err := r.DB.SelectContext(ctx, &out, r.DB.Rebind(query), w.args...); err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return out, nil
}

func (r *TaskRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Task, error) {
	var t entity.Task
	err := r.DB.GetContext(ctx, &t, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, entity.ErrTaskNotFound
		}
		return nil, fmt.Errorf("find task: %w", err)
	}
	return &t, nil
}

func (r *TaskRepository) Create(ctx context.Context, t *entity.Task) error {
	query := `
		INSERT INTO tasks (` + taskColumns + `)
		VALUES (:id, :lead_id, :description, :due_date, :completed, :created_at)
	`
	if _, err := r.DB.NamedExecContext(ctx, query, t); err != nil {
		return mapWriteError(err)
	}
	return nil
}

func (r *TaskRepository) Update(ctx context.Context, t *entity.Task) error {
	query := `
		UPDATE tasks SET
			description = :description,
			due_date = :due_date,
			completed = :completed
		WHERE id = :id
	`
	res, err := r.DB.NamedExecContext(ctx, query, t)
	if err != nil {
		return mapWriteError(err)
	}
	return requireAffected(res, entity.ErrTaskNotFound)
}

func (r *TaskRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	return requireAffected(res, entity.ErrTaskNotFound)
}
