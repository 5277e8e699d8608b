package gemini

import (
	"bytes"
	"context"
	"io"
	"net/http"
)

// maxErrorBody bounds how much of a failed reply is kept for relaying.
const maxErrorBody = 64 << 10

type errorBodyKey struct{}

// errorBody receives the raw body of a non-2xx reply made under its context.
type errorBody struct {
	status int
	raw    []byte
}

func withErrorBody(ctx context.Context) (context.Context, *errorBody) {
	eb := &errorBody{}
	return context.WithValue(ctx, errorBodyKey{}, eb), eb
}

// captureTransport copies failed response bodies into the errorBody found on
// the request context. The SDK only keeps a parsed subset of the payload.
type captureTransport struct {
	next http.RoundTripper
}

func (t *captureTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.next.RoundTrip(req)
	if err != nil || resp.StatusCode < 300 {
		return resp, err
	}
	eb, ok := req.Context().Value(errorBodyKey{}).(*errorBody)
	if !ok {
		return resp, nil
	}

	raw, readErr := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	resp.Body.Close()
	resp.Body = io.NopCloser(bytes.NewReader(raw))
	eb.status = resp.StatusCode
	if readErr == nil {
		eb.raw = raw
	}
	return resp, nil
}
