package entity

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrLeadNotFound        = errors.New("lead not found")
	ErrDealNotFound        = errors.New("deal not found")
	ErrInteractionNotFound = errors.New("interaction not found")
	ErrTaskNotFound        = errors.New("task not found")
	ErrEmailAlreadyExists  = errors.New("a lead with this email already exists")
)

// IsNotFound reports whether err wraps any of the not-found sentinels.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrLeadNotFound) ||
		errors.Is(err, ErrDealNotFound) ||
		errors.Is(err, ErrInteractionNotFound) ||
		errors.Is(err, ErrTaskNotFound)
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors collects every failed field so the client gets them all at once.
type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	parts := make([]string, 0, len(v))
	for _, e := range v {
		parts = append(parts, e.Error())
	}
	return strings.Join(parts, "; ")
}

func (v *ValidationErrors) add(field, message string) {
	*v = append(*v, ValidationError{Field: field, Message: message})
}

// err returns nil when nothing was collected, so callers can `return errs.err()`.
func (v ValidationErrors) err() error {
	if len(v) == 0 {
		return nil
	}
	return v
}
