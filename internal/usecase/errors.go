package usecase

import "errors"

// DomainError is a caller mistake: bad input or a state the request cannot
// move from. Handlers turn it into a 4xx.
type DomainError struct {
	Code    string
	Message string
}

func (e *DomainError) Error() string {
	return e.Message
}

func IsDomainError(err error) bool {
	var de *DomainError
	return errors.As(err, &de)
}

// TechnicalError wraps infrastructure failures the caller cannot fix.
type TechnicalError struct {
	Code    string
	Message string
	Err     error
}

func (e *TechnicalError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *TechnicalError) Unwrap() error { return e.Err }

func IsTechnicalError(err error) bool {
	var te *TechnicalError
	return errors.As(err, &te)
}

var (
	ErrEmptyTranscript = &DomainError{Code: "EMPTY_TRANSCRIPT", Message: "transcript is required"}
	ErrMissingLeadID   = &DomainError{Code: "MISSING_LEAD_ID", Message: "leadId is required"}
	ErrMissingCompany  = &DomainError{Code: "MISSING_COMPANY", Message: "company, linkedin or url is required"}
	ErrMissingICP      = &DomainError{Code: "MISSING_ICP", Message: "icp is required"}
	ErrEmptyBulk       = &DomainError{Code: "EMPTY_BULK", Message: "at least one lead is required"}
	ErrMissingSubject  = &DomainError{Code: "MISSING_SUBJECT", Message: "subject and body are required"}
)
