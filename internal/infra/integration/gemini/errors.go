package gemini

import (
	"errors"
	"fmt"
)

var (
	ErrNotConfigured = errors.New("generative model is not configured: set GEMINI_API_KEY")
	ErrEmptyResponse = errors.New("model returned no candidates")
)

// UpstreamError is a non-success reply from the model API. Body is the reply
// body exactly as the API sent it (details included) and is relayed to the
// caller.
type UpstreamError struct {
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("model api returned status %d: %s", e.StatusCode, e.Body)
}
