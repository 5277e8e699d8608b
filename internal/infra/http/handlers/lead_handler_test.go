package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xavierca1/ligue-crm/internal/entity"
	"github.com/xavierca1/ligue-crm/internal/usecase"
)

func newLeadHandler() (*LeadHandler, *MockLeadRepository) {
	leads := new(MockLeadRepository)
	timeline := usecase.NewLeadTimelineUseCase(leads, new(MockDealRepository), new(MockInteractionRepository), new(MockTaskRepository))
	bulk := usecase.NewBulkCreateLeadsUseCase(leads, zap.NewNop())
	return NewLeadHandler(leads, timeline, bulk, zap.NewNop()), leads
}

func TestLeadGetInvalidID(t *testing.T) {
	h, leads := newLeadHandler()

	w := httptest.NewRecorder()
	h.Get(w, newRequest(t, http.MethodGet, "/leads/nope", nil, map[string]string{"id": "nope"}))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_ID", decodeResponse[ErrorResponse](t, w).Error)
	leads.AssertNotCalled(t, "FindByID", mock.Anything, mock.Anything)
}

func TestLeadGetNotFound(t *testing.T) {
	h, leads := newLeadHandler()
	id := uuid.New()
	leads.On("FindByID", mock.Anything, id).Return(nil, entity.ErrLeadNotFound)

	w := httptest.NewRecorder()
	h.Get(w, newRequest(t, http.MethodGet, "/leads/"+id.String(), nil, map[string]string{"id": id.String()}))

	assert.Equal(t, http.StatusNotFound, w.Code)
	resp := decodeResponse[ErrorResponse](t, w)
	assert.Equal(t, "NOT_FOUND", resp.Error)
	assert.Equal(t, "lead not found", resp.Message)
}

func TestLeadListPaging(t *testing.T) {
	h, leads := newLeadHandler()
	minScore := 50
	base := entity.LeadFilter{Search: "acme", MinFitScore: &minScore}

	leads.On("Count", mock.Anything, base).Return(42, nil)
	paged := base
	paged.Limit = 10
	paged.Offset = 10
	leads.On("List", mock.Anything, paged).Return([]*entity.Lead{{ID: uuid.New(), Name: "A"}}, nil)

	w := httptest.NewRecorder()
	h.List(w, newRequest(t, http.MethodGet, "/leads?search=acme&minFitScore=50&page=2&pageSize=10", nil, nil))

	assert.Equal(t, http.StatusOK, w.Code)
	page := decodeResponse[LeadPage](t, w)
	assert.Equal(t, 42, page.Total)
	assert.Equal(t, 2, page.Page)
	assert.Equal(t, 10, page.PageSize)
	assert.Len(t, page.Items, 1)
	leads.AssertExpectations(t)
}

func TestLeadListRejectsBadQuery(t *testing.T) {
	h, leads := newLeadHandler()

	w := httptest.NewRecorder()
	h.List(w, newRequest(t, http.MethodGet, "/leads?minFitScore=high&pageSize=500", nil, nil))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", decodeResponse[ErrorResponse](t, w).Error)
	leads.AssertNotCalled(t, "Count", mock.Anything, mock.Anything)
}

func TestLeadSearchRequiresQuery(t *testing.T) {
	h, _ := newLeadHandler()

	w := httptest.NewRecorder()
	h.Search(w, newRequest(t, http.MethodGet, "/leads/search", nil, nil))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "MISSING_QUERY", decodeResponse[ErrorResponse](t, w).Error)
}

func TestLeadCreate(t *testing.T) {
	t.Run("created", func(t *testing.T) {
		h, leads := newLeadHandler()
		leads.On("Create", mock.Anything, mock.MatchedBy(func(l *entity.Lead) bool {
			return l.Email == "grace@navy.test" && l.FitScore == 120
		})).Return(nil)

		w := httptest.NewRecorder()
		h.Create(w, newRequest(t, http.MethodPost, "/leads", map[string]any{
			"name": "Grace Hopper", "company": "Navy", "email": " Grace@Navy.test ", "fit_score": 120,
		}, nil))

		assert.Equal(t, http.StatusCreated, w.Code)
		lead := decodeResponse[entity.Lead](t, w)
		assert.NotEqual(t, uuid.Nil, lead.ID)
		assert.Equal(t, 120, lead.FitScore)
	})

	t.Run("duplicate email", func(t *testing.T) {
		h, leads := newLeadHandler()
		leads.On("Create", mock.Anything, mock.Anything).Return(entity.ErrEmailAlreadyExists)

		w := httptest.NewRecorder()
		h.Create(w, newRequest(t, http.MethodPost, "/leads", map[string]any{
			"name": "Grace Hopper", "company": "Navy", "email": "grace@navy.test",
		}, nil))

		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, "EMAIL_ALREADY_EXISTS", decodeResponse[ErrorResponse](t, w).Error)
	})

	t.Run("validation", func(t *testing.T) {
		h, leads := newLeadHandler()

		w := httptest.NewRecorder()
		h.Create(w, newRequest(t, http.MethodPost, "/leads", map[string]any{"email": "not-an-email"}, nil))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		resp := decodeResponse[ErrorResponse](t, w)
		assert.Equal(t, "VALIDATION_ERROR", resp.Error)
		assert.Contains(t, resp.Message, "name: is required")
		assert.Contains(t, resp.Message, "email: is invalid")
		leads.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("malformed json", func(t *testing.T) {
		h, _ := newLeadHandler()

		w := httptest.NewRecorder()
		h.Create(w, newRequest(t, http.MethodPost, "/leads", "{not json", nil))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "INVALID_JSON", decodeResponse[ErrorResponse](t, w).Error)
	})
}

func TestLeadUpdateFitScore(t *testing.T) {
	h, leads := newLeadHandler()
	lead := &entity.Lead{ID: uuid.New(), Name: "Ada", Company: "Engines", Email: "ada@engines.test", FitScore: 10}
	leads.On("FindByID", mock.Anything, lead.ID).Return(lead, nil)
	leads.On("Update", mock.Anything, mock.MatchedBy(func(l *entity.Lead) bool { return l.FitScore == -5 })).Return(nil)

	w := httptest.NewRecorder()
	h.UpdateFitScore(w, newRequest(t, http.MethodPatch, "/leads/x/fit-score",
		map[string]any{"fit_score": -5}, map[string]string{"id": lead.ID.String()}))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, -5, decodeResponse[entity.Lead](t, w).FitScore)
	leads.AssertExpectations(t)
}

func TestLeadDeleteMissing(t *testing.T) {
	h, leads := newLeadHandler()
	id := uuid.New()
	leads.On("Delete", mock.Anything, id).Return(entity.ErrLeadNotFound)

	w := httptest.NewRecorder()
	h.Delete(w, newRequest(t, http.MethodDelete, "/leads/x", nil, map[string]string{"id": id.String()}))

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestLeadBulkCreateReportsRows(t *testing.T) {
	h, leads := newLeadHandler()

	w := httptest.NewRecorder()
	h.BulkCreate(w, newRequest(t, http.MethodPost, "/leads/bulk", []map[string]any{
		{"name": "Ok", "company": "Co", "email": "ok@co.test"},
		{"name": "", "company": "Co", "email": "bad"},
	}, nil))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	resp := decodeResponse[struct {
		Error   string         `json:"error"`
		Details map[string]any `json:"details"`
	}](t, w)
	assert.Equal(t, "VALIDATION_ERROR", resp.Error)
	assert.Contains(t, resp.Details, "1")
	leads.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

type timelineMocks struct {
	leads        *MockLeadRepository
	deals        *MockDealRepository
	interactions *MockInteractionRepository
	tasks        *MockTaskRepository
}

func newTimelineLeadHandler() (*LeadHandler, timelineMocks) {
	m := timelineMocks{
		leads:        new(MockLeadRepository),
		deals:        new(MockDealRepository),
		interactions: new(MockInteractionRepository),
		tasks:        new(MockTaskRepository),
	}
	timeline := usecase.NewLeadTimelineUseCase(m.leads, m.deals, m.interactions, m.tasks)
	return NewLeadHandler(m.leads, timeline, usecase.NewBulkCreateLeadsUseCase(m.leads, zap.NewNop()), zap.NewNop()), m
}

func TestLeadTimelineMergesRelatedRowsNewestFirst(t *testing.T) {
	h, m := newTimelineLeadHandler()
	id := uuid.New()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	summary := "Intro call"

	m.leads.On("FindByID", mock.Anything, id).Return(&entity.Lead{ID: id, Name: "Ada"}, nil)
	m.deals.On("List", mock.Anything, entity.DealFilter{LeadID: &id}).
		Return([]*entity.Deal{{ID: uuid.New(), LeadID: id, Stage: entity.StageContacted, CreatedAt: base}}, nil)
	m.interactions.On("List", mock.Anything, entity.InteractionFilter{LeadID: &id}).
		Return([]*entity.Interaction{{ID: uuid.New(), LeadID: id, Type: entity.InteractionCall, Summary: &summary, CreatedAt: base.Add(2 * time.Hour)}}, nil)
	m.tasks.On("List", mock.Anything, entity.TaskFilter{LeadID: &id}).
		Return([]*entity.Task{{ID: uuid.New(), LeadID: id, Description: "Send deck", CreatedAt: base.Add(time.Hour)}}, nil)

	w := httptest.NewRecorder()
	h.Timeline(w, newRequest(t, http.MethodGet, "/leads/"+id.String()+"/timeline", nil, map[string]string{"id": id.String()}))

	require.Equal(t, http.StatusOK, w.Code)
	tl := decodeResponse[usecase.LeadTimeline](t, w)
	assert.Equal(t, id, tl.Lead.ID)
	assert.Len(t, tl.Deals, 1)
	assert.Len(t, tl.Interactions, 1)
	assert.Len(t, tl.Tasks, 1)

	require.Len(t, tl.Events, 3)
	kinds := []usecase.TimelineEventKind{tl.Events[0].Kind, tl.Events[1].Kind, tl.Events[2].Kind}
	assert.Equal(t, []usecase.TimelineEventKind{usecase.EventInteraction, usecase.EventTaskCreated, usecase.EventDealCreated}, kinds)
	assert.Equal(t, "Call: Intro call", tl.Events[0].Title)
}

func TestLeadTimelineUnknownLead(t *testing.T) {
	h, m := newTimelineLeadHandler()
	id := uuid.New()
	m.leads.On("FindByID", mock.Anything, id).Return(nil, entity.ErrLeadNotFound)

	w := httptest.NewRecorder()
	h.Timeline(w, newRequest(t, http.MethodGet, "/leads/"+id.String()+"/timeline", nil, map[string]string{"id": id.String()}))

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NOT_FOUND", decodeResponse[ErrorResponse](t, w).Error)
	m.deals.AssertNotCalled(t, "List", mock.Anything, mock.Anything)
	m.interactions.AssertNotCalled(t, "List", mock.Anything, mock.Anything)
	m.tasks.AssertNotCalled(t, "List", mock.Anything, mock.Anything)
}

func TestLeadTimelineInvalidID(t *testing.T) {
	h, m := newTimelineLeadHandler()

	w := httptest.NewRecorder()
	h.Timeline(w, newRequest(t, http.MethodGet, "/leads/42/timeline", nil, map[string]string{"id": "42"}))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_ID", decodeResponse[ErrorResponse](t, w).Error)
	m.leads.AssertNotCalled(t, "FindByID", mock.Anything, mock.Anything)
}
