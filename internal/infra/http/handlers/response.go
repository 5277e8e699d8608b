package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xavierca1/ligue-crm/internal/entity"
	"github.com/xavierca1/ligue-crm/internal/infra/integration/gemini"
	"github.com/xavierca1/ligue-crm/internal/usecase"
)

const maxBodyBytes = 1 << 20

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// ProblemResponse is an RFC 7807 body, used for upstream failures.
type ProblemResponse struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeErrorResponse(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Error: code, Message: message})
}

func writeProblem(w http.ResponseWriter, status int, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ProblemResponse{
		Type:   "about:blank",
		Title:  title,
		Status: status,
		Detail: detail,
	})
}

// writeError maps domain and infrastructure errors to HTTP responses.
func writeError(w http.ResponseWriter, logger *zap.Logger, err error) {
	var (
		verrs    entity.ValidationErrors
		bulkErr  *usecase.BulkValidationError
		domain   *usecase.DomainError
		tech     *usecase.TechnicalError
		upstream *gemini.UpstreamError
	)

	switch {
	case errors.As(err, &verrs):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "VALIDATION_ERROR", Message: verrs.Error(), Details: verrs})
	case errors.As(err, &bulkErr):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "VALIDATION_ERROR", Message: bulkErr.Error(), Details: bulkErr.Rows})
	case entity.IsNotFound(err):
		writeErrorResponse(w, http.StatusNotFound, "NOT_FOUND", notFoundMessage(err))
	case errors.Is(err, entity.ErrEmailAlreadyExists):
		writeErrorResponse(w, http.StatusConflict, "EMAIL_ALREADY_EXISTS", entity.ErrEmailAlreadyExists.Error())
	case errors.As(err, &domain):
		writeErrorResponse(w, http.StatusBadRequest, domain.Code, domain.Message)
	case errors.As(err, &upstream):
		logger.Warn("model api error", zap.Int("upstream_status", upstream.StatusCode))
		writeProblem(w, http.StatusBadGateway, "Generative model request failed", upstream.Body)
	case errors.Is(err, gemini.ErrNotConfigured), errors.Is(err, usecase.ErrMailNotConfigured):
		writeErrorResponse(w, http.StatusServiceUnavailable, "NOT_CONFIGURED", err.Error())
	case errors.Is(err, gemini.ErrEmptyResponse):
		writeProblem(w, http.StatusBadGateway, "Generative model returned no content", err.Error())
	case errors.As(err, &tech):
		logger.Error("request failed", zap.String("code", tech.Code), zap.Error(err))
		status, ok := technicalStatus[tech.Code]
		if !ok {
			status = http.StatusInternalServerError
		}
		writeErrorResponse(w, status, tech.Code, tech.Message)
	default:
		logger.Error("request failed", zap.Error(err))
		writeErrorResponse(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
	}
}

var technicalStatus = map[string]int{
	"SMTP_ERROR": http.StatusBadGateway,
}

func notFoundMessage(err error) string {
	for _, sentinel := range []error{entity.ErrLeadNotFound, entity.ErrDealNotFound, entity.ErrInteractionNotFound, entity.ErrTaskNotFound} {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	return err.Error()
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "INVALID_JSON", "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

func uuidParam(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "INVALID_ID", name+" must be a UUID")
		return uuid.Nil, false
	}
	return id, true
}

// queryParams collects query parsing failures into ValidationErrors.
type queryParams struct {
	values url.Values
	errs   entity.ValidationErrors
}

func newQueryParams(r *http.Request) *queryParams {
	return &queryParams{values: r.URL.Query()}
}

func (q *queryParams) fail(field, msg string) {
	q.errs = append(q.errs, entity.ValidationError{Field: field, Message: msg})
}

func (q *queryParams) str(key string) string {
	return strings.TrimSpace(q.values.Get(key))
}

func (q *queryParams) integer(key string, def int) int {
	v := q.str(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		q.fail(key, "must be an integer")
		return def
	}
	return n
}

func (q *queryParams) intPtr(key string) *int {
	if q.str(key) == "" {
		return nil
	}
	n := q.integer(key, 0)
	return &n
}

func (q *queryParams) boolPtr(key string) *bool {
	v := q.str(key)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		q.fail(key, "must be true or false")
		return nil
	}
	return &b
}

func (q *queryParams) uuidPtr(key string) *uuid.UUID {
	v := q.str(key)
	if v == "" {
		return nil
	}
	id, err := uuid.Parse(v)
	if err != nil {
		q.fail(key, "must be a UUID")
		return nil
	}
	return &id
}

// timePtr accepts RFC 3339 timestamps and plain dates (UTC midnight).
func (q *queryParams) timePtr(key string) *time.Time {
	v := q.str(key)
	if v == "" {
		return nil
	}
	t, err := parseTime(v)
	if err != nil {
		q.fail(key, "must be an RFC 3339 timestamp or YYYY-MM-DD date")
		return nil
	}
	return &t
}

func (q *queryParams) err() error {
	if len(q.errs) == 0 {
		return nil
	}
	return q.errs
}

func parseTime(v string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t.UTC(), nil
	}
	return time.Parse("2006-01-02", v)
}
