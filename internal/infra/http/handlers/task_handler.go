package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xavierca1/ligue-crm/internal/entity"
	"github.com/xavierca1/ligue-crm/internal/usecase"
)

type TaskHandler struct {
	Tasks      entity.TaskRepositoryInterface
	Automation *usecase.FollowUpAutomation
	Logger     *zap.Logger
	Now        func() time.Time
}

func NewTaskHandler(tasks entity.TaskRepositoryInterface, automation *usecase.FollowUpAutomation, logger *zap.Logger) *TaskHandler {
	return &TaskHandler{
		Tasks:      tasks,
		Automation: automation,
		Logger:     logger,
		Now:        func() time.Time { return time.Now().UTC() },
	}
}

// List handles GET /tasks?leadId=&dueBefore=&completed=
func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	q := newQueryParams(r)
	filter := entity.TaskFilter{
		LeadID:    q.uuidPtr("leadId"),
		DueBefore: q.timePtr("dueBefore"),
		Completed: q.boolPtr("completed"),
	}
	if err := q.err(); err != nil {
		writeError(w, h.Logger, err)
		return
	}
	h.list(w, r, filter)
}

func (h *TaskHandler) ListByLead(w http.ResponseWriter, r *http.Request) {
	leadID, ok := uuidParam(w, r, "leadId")
	if !ok {
		return
	}
	h.list(w, r, entity.TaskFilter{LeadID: &leadID})
}

// DueToday lists open tasks due between UTC midnight today and tomorrow.
func (h *TaskHandler) DueToday(w http.ResponseWriter, r *http.Request) {
	start := h.Now().UTC().Truncate(24 * time.Hour)
	end := start.Add(24 * time.Hour)
	open := false
	h.list(w, r, entity.TaskFilter{DueAfter: &start, DueBefore: &end, Completed: &open})
}

func (h *TaskHandler) Overdue(w http.ResponseWriter, r *http.Request) {
	now := h.Now()
	open := false
	h.list(w, r, entity.TaskFilter{DueBefore: &now, Completed: &open})
}

func (h *TaskHandler) list(w http.ResponseWriter, r *http.Request, filter entity.TaskFilter) {
	tasks, err := h.Tasks.List(r.Context(), filter)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (h *TaskHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	task, err := h.Tasks.FindByID(r.Context(), id)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

type CreateTaskRequest struct {
	LeadID      uuid.UUID  `json:"lead_id"`
	Description string     `json:"description"`
	DueDate     *time.Time `json:"due_date"`
}

func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateTaskRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	task, err := entity.NewTask(req.LeadID, req.Description, req.DueDate)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	if err := h.Tasks.Create(r.Context(), task); err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, task)
}

// AfterDemo handles POST /tasks/auto/after-demo/{leadId}.
func (h *TaskHandler) AfterDemo(w http.ResponseWriter, r *http.Request) {
	leadID, ok := uuidParam(w, r, "leadId")
	if !ok {
		return
	}
	tasks, err := h.Automation.ScheduleAfterDemo(r.Context(), leadID)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, tasks)
}

type UpdateTaskRequest struct {
	Description *string    `json:"description"`
	DueDate     *time.Time `json:"due_date"`
	Completed   *bool      `json:"completed"`
}

func (h *TaskHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	var req UpdateTaskRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	h.mutate(w, r, id, func(t *entity.Task) {
		if req.Description != nil {
			t.Description = strings.TrimSpace(*req.Description)
		}
		if req.DueDate != nil {
			t.DueDate = req.DueDate
		}
		if req.Completed != nil {
			t.Completed = *req.Completed
		}
	})
}

func (h *TaskHandler) Complete(w http.ResponseWriter, r *http.Request) {
	h.setCompleted(w, r, true)
}

func (h *TaskHandler) Reopen(w http.ResponseWriter, r *http.Request) {
	h.setCompleted(w, r, false)
}

func (h *TaskHandler) setCompleted(w http.ResponseWriter, r *http.Request, done bool) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	h.mutate(w, r, id, func(t *entity.Task) { t.Completed = done })
}

func (h *TaskHandler) mutate(w http.ResponseWriter, r *http.Request, id uuid.UUID, apply func(*entity.Task)) {
	task, err := h.Tasks.FindByID(r.Context(), id)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	apply(task)
	if err := task.Validate(); err != nil {
		writeError(w, h.Logger, err)
		return
	}
	if err := h.Tasks.Update(r.Context(), task); err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (h *TaskHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	if err := h.Tasks.Delete(r.Context(), id); err != nil {
		writeError(w, h.Logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
