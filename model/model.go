package model

import (
	"context"
	"errors"
	"fmt"

	"github.com/hupe1980/studymesh/core"
)

// ErrEmptyResponse is returned by Complete when the provider produced neither
// text nor tool calls.
var ErrEmptyResponse = errors.New("model returned an empty response")

// ToolDefinition declaratively exposes a callable function to the model.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"` // JSON Schema
}

// Request captures the normalized model input.
type Request struct {
	Instructions string           `json:"instructions"` // System instructions
	Contents     []core.Content   `json:"contents"`     // Ordered conversation turns
	Tools        []ToolDefinition `json:"tools,omitempty"`
}

// TokenUsage captures token usage statistics for a response.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is a (partial or final) chunk emitted by a model.
type Response struct {
	ID           string       `json:"id"`
	Partial      bool         `json:"partial"`
	Content      core.Content `json:"content"`
	FinishReason string       `json:"finish_reason"`
	Usage        *TokenUsage  `json:"usage,omitempty"`
}

// Text returns the concatenated text parts of the response.
func (r Response) Text() string { return r.Content.Text() }

// FunctionCalls returns the tool calls requested by the response.
func (r Response) FunctionCalls() []core.FunctionCall { return r.Content.FunctionCalls() }

// Info contains metadata about a model implementation.
type Info struct {
	Name          string `json:"name"`
	Provider      string `json:"provider"`
	SupportsTools bool   `json:"supports_tools"`
}

// Model is the minimal interface required to drive generation. Generate
// emits zero or more partial responses followed by one final response on the
// first channel, or a single error on the second. Both channels are closed
// when generation ends.
type Model interface {
	Generate(ctx context.Context, req Request) (<-chan Response, <-chan error)
	Info() Info
}

// APIError is the normalized provider error used by adapters so retry
// classification does not depend on vendor SDK types.
type APIError struct {
	Provider   string
	StatusCode int
	Err        error
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s api error (status %d): %v", e.Provider, e.StatusCode, e.Err)
}

// Unwrap returns the provider error.
func (e *APIError) Unwrap() error { return e.Err }

// Complete runs a generation to completion and returns the final response.
// Partial chunks are discarded. A final response without text or tool calls
// is reported as ErrEmptyResponse.
func Complete(ctx context.Context, m Model, req Request) (Response, error) {
	out, errCh := m.Generate(ctx, req)

	var (
		final Response
		got   bool
	)
	for out != nil || errCh != nil {
		select {
		case <-ctx.Done():
			return Response{}, ctx.Err()
		case resp, ok := <-out:
			if !ok {
				out = nil
				continue
			}
			if !resp.Partial {
				final = resp
				got = true
			}
		case err, ok := <-errCh:
			if !ok {
				errCh = nil
				continue
			}
			if err != nil {
				return Response{}, err
			}
		}
	}

	if !got || (final.Text() == "" && len(final.FunctionCalls()) == 0) {
		return Response{}, ErrEmptyResponse
	}
	return final, nil
}
