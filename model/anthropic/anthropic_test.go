package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/hupe1980/studymesh/core"
	"github.com/hupe1980/studymesh/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestModel(t *testing.T, handler http.HandlerFunc) *Model {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewModel(func(o *Options) {
		o.APIKey = "test-key"
		o.BaseURL = srv.URL
		o.ClientOptions = []option.RequestOption{option.WithMaxRetries(0)}
	})
}

func TestModel_GenerateText(t *testing.T) {
	var body map[string]any
	m := newTestModel(t, func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"id": "msg_1", "type": "message", "role": "assistant",
			"model": "claude-sonnet-4-20250514",
			"content": [{"type": "text", "text": "Tutor Agent"}],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 20, "output_tokens": 3}
		}`)
	})

	resp, err := model.Complete(context.Background(), m, model.Request{
		Instructions: "pick a specialist",
		Contents:     []core.Content{core.NewTextContent(core.RoleUser, "Explain osmosis simply")},
	})
	require.NoError(t, err)
	assert.Equal(t, "Tutor Agent", resp.Text())
	assert.Equal(t, "end_turn", resp.FinishReason)
	assert.Equal(t, 23, resp.Usage.TotalTokens)

	system, ok := body["system"].([]any)
	require.True(t, ok)
	require.Len(t, system, 1)
	assert.Equal(t, "pick a specialist", system[0].(map[string]any)["text"])
}

func TestModel_GenerateToolUse(t *testing.T) {
	m := newTestModel(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"id": "msg_2", "type": "message", "role": "assistant",
			"model": "claude-sonnet-4-20250514",
			"content": [{"type": "tool_use", "id": "toolu_1", "name": "web_search", "input": {"query": "mars rover"}}],
			"stop_reason": "tool_use",
			"usage": {"input_tokens": 5, "output_tokens": 5}
		}`)
	})

	resp, err := model.Complete(context.Background(), m, model.Request{
		Contents: []core.Content{core.NewTextContent(core.RoleUser, "mars rover news")},
		Tools: []model.ToolDefinition{{
			Name:        "web_search",
			Description: "search the web",
			Parameters: map[string]any{
				"type":       "object",
				"properties": map[string]any{"query": map[string]any{"type": "string"}},
				"required":   []string{"query"},
			},
		}},
	})
	require.NoError(t, err)

	calls := resp.FunctionCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, "toolu_1", calls[0].ID)
	assert.Equal(t, "web_search", calls[0].Name)
	assert.JSONEq(t, `{"query":"mars rover"}`, calls[0].Arguments)
}

func TestModel_ErrorNormalization(t *testing.T) {
	m := newTestModel(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = io.WriteString(w, `{"type":"error","error":{"type":"overloaded_error","message":"overloaded"}}`)
	})

	_, err := model.Complete(context.Background(), m, model.Request{
		Contents: []core.Content{core.NewTextContent(core.RoleUser, "hi")},
	})
	require.Error(t, err)

	var apiErr *model.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "anthropic", apiErr.Provider)
	assert.Equal(t, http.StatusServiceUnavailable, apiErr.StatusCode)
	assert.True(t, model.IsTransient(err))
}

func TestBuildMessages_ToolResultsInUserMessage(t *testing.T) {
	contents := []core.Content{
		core.NewTextContent(core.RoleSystem, "ignored here"),
		core.NewTextContent(core.RoleUser, "news?"),
		{Role: core.RoleAssistant, Parts: []core.Part{core.FunctionCallPart{FunctionCall: core.FunctionCall{
			ID: "toolu_1", Name: "web_search", Arguments: `{"query":"news"}`,
		}}}},
		{Role: core.RoleTool, Parts: []core.Part{core.FunctionResponsePart{FunctionResponse: core.FunctionResponse{
			ID: "toolu_1", Name: "web_search", Response: "headline",
		}}}},
	}

	msgs := buildMessages(contents)
	require.Len(t, msgs, 3)
	assert.Equal(t, "user", string(msgs[0].Role))
	assert.Equal(t, "assistant", string(msgs[1].Role))
	assert.Equal(t, "user", string(msgs[2].Role))
	require.Len(t, msgs[2].Content, 1)
	require.NotNil(t, msgs[2].Content[0].OfToolResult)
	assert.Equal(t, "toolu_1", msgs[2].Content[0].OfToolResult.ToolUseID)
}

func TestToolResultText(t *testing.T) {
	text, isErr := toolResultText(core.FunctionResponse{Error: "boom"})
	assert.Equal(t, "boom", text)
	assert.True(t, isErr)

	text, isErr = toolResultText(core.FunctionResponse{Response: 42})
	assert.Equal(t, "42", text)
	assert.False(t, isErr)
}

func TestModel_Info(t *testing.T) {
	m := NewModel(func(o *Options) { o.APIKey = "k" })
	info := m.Info()
	assert.Equal(t, "anthropic", info.Provider)
	assert.True(t, info.SupportsTools)
	assert.NotEmpty(t, info.Name)
}
