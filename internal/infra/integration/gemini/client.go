package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"
)

type Client struct {
	client           *genai.Client
	model            string
	structuredOutput bool
}

type Options struct {
	APIKey  string
	Model   string
	BaseURL string // overrides the public endpoint, used by tests
	// StructuredOutput sends responseMimeType=application/json and the response schema.
	StructuredOutput bool
}

func NewClient(ctx context.Context, opts Options) (*Client, error) {
	if opts.APIKey == "" {
		return nil, ErrNotConfigured
	}
	if opts.Model == "" {
		opts.Model = "gemini-2.0-flash"
	}

	cfg := &genai.ClientConfig{
		APIKey:     opts.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: &http.Client{Transport: &captureTransport{next: http.DefaultTransport}},
	}
	if opts.BaseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: strings.TrimRight(opts.BaseURL, "/") + "/"}
	}

	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return &Client{
		client:           client,
		model:            opts.Model,
		structuredOutput: opts.StructuredOutput,
	}, nil
}

func (c *Client) Model() string { return c.model }

// Generate sends prompt as the only content part and returns the text of the
// first part of the first candidate. No retry, no streaming.
func (c *Client) Generate(ctx context.Context, prompt string, schema *genai.Schema) (string, error) {
	var config *genai.GenerateContentConfig
	if c.structuredOutput && schema != nil {
		config = &genai.GenerateContentConfig{
			ResponseMIMEType: "application/json",
			ResponseSchema:   schema,
		}
	}

	ctx, failed := withErrorBody(ctx)
	contents := []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}
	resp, err := c.client.Models.GenerateContent(ctx, c.model, contents, config)
	if err != nil {
		return "", upstreamFrom(err, failed)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", ErrEmptyResponse
	}
	return resp.Candidates[0].Content.Parts[0].Text, nil
}

// upstreamFrom turns an SDK API error into an UpstreamError, preferring the
// captured reply over the SDK's parsed subset.
func upstreamFrom(err error, failed *errorBody) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return newUpstreamError(apiErr, failed)
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return newUpstreamError(*apiErrPtr, failed)
	}
	return fmt.Errorf("generate content: %w", err)
}

func newUpstreamError(apiErr genai.APIError, failed *errorBody) *UpstreamError {
	status := apiErr.Code
	if failed.status != 0 {
		status = failed.status
	}
	if len(bytes.TrimSpace(failed.raw)) > 0 {
		return &UpstreamError{StatusCode: status, Body: string(failed.raw)}
	}
	body, _ := json.Marshal(map[string]genai.APIError{"error": apiErr})
	return &UpstreamError{StatusCode: status, Body: string(body)}
}
