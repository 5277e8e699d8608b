package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/xavierca1/ligue-crm/internal/entity"
)

// OverdueTaskWorker periodically counts open tasks past their due date and
// reports the number through OnSweep (the crm_tasks_overdue gauge).
type OverdueTaskWorker struct {
	tasks        entity.TaskRepositoryInterface
	logger       *zap.Logger
	tickInterval time.Duration
	now          func() time.Time
	// OnSweep receives the overdue count after every successful sweep.
	OnSweep func(n int)
}

func NewOverdueTaskWorker(tasks entity.TaskRepositoryInterface, logger *zap.Logger) *OverdueTaskWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OverdueTaskWorker{
		tasks:        tasks,
		logger:       logger,
		tickInterval: 5 * time.Minute,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// Start sweeps once, then on every tick until ctx is canceled.
func (w *OverdueTaskWorker) Start(ctx context.Context) {
	w.logger.Info("overdue task worker started", zap.Duration("interval", w.tickInterval))

	ticker := time.NewTicker(w.tickInterval)
	defer ticker.Stop()

	w.sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("overdue task worker stopped")
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *OverdueTaskWorker) sweep(ctx context.Context) {
	now := w.now()
	open := false
	tasks, err := w.tasks.List(ctx, entity.TaskFilter{DueBefore: &now, Completed: &open})
	if err != nil {
		if ctx.Err() == nil {
			w.logger.Error("overdue task sweep failed", zap.Error(err))
		}
		return
	}

	var oldest time.Duration
	for _, t := range tasks {
		if t.DueDate == nil {
			continue
		}
		if late := now.Sub(*t.DueDate); late > oldest {
			oldest = late
		}
	}
	if len(tasks) > 0 {
		w.logger.Info("overdue tasks",
			zap.Int("count", len(tasks)),
			zap.Duration("oldest", oldest.Round(time.Minute)),
		)
	}
	if w.OnSweep != nil {
		w.OnSweep(len(tasks))
	}
}
