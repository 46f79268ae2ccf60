package tool

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// -------------------- FunctionTool Tests --------------------

func sumParams() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"a": map[string]any{"type": "number"},
			"b": map[string]any{"type": "number"},
		},
		"required": []string{"a", "b"},
	}
}

func TestFunctionTool_Success(t *testing.T) {
	sumTool := NewFunctionTool("sum", "Add numbers", sumParams(), func(_ context.Context, args map[string]any) (any, error) {
		return args["a"].(float64) + args["b"].(float64), nil
	})

	result, err := sumTool.Call(context.Background(), map[string]any{"a": 2.0, "b": 3.0})
	assert.NoError(t, err)
	assert.Equal(t, 5.0, result)
}

func TestFunctionTool_ValidationError(t *testing.T) {
	called := false
	tTool := NewFunctionTool("sum", "Add numbers", sumParams(), func(_ context.Context, _ map[string]any) (any, error) {
		called = true
		return 0, nil
	})

	_, err := tTool.Call(context.Background(), map[string]any{"a": 1.0})
	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, CodeValidation, toolErr.Code)
	assert.False(t, called)
}

func TestFunctionTool_ValidationDetails(t *testing.T) {
	sumTool := NewFunctionTool("sum", "Add numbers", sumParams(), func(_ context.Context, _ map[string]any) (any, error) {
		return 0, nil
	})

	tests := []struct {
		name    string
		args    map[string]any
		field   string
		value   any
		message string
	}{
		{name: "missing", args: map[string]any{"a": 1.0}, field: "b", message: "missing property 'b'"},
		{name: "nil args", args: nil, field: "a", message: "missing"},
		{name: "wrong type", args: map[string]any{"a": "one", "b": 2.0}, field: "a", value: "one", message: "want number"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := sumTool.Call(context.Background(), tt.args)
			var toolErr *ToolError
			require.ErrorAs(t, err, &toolErr)
			assert.Equal(t, CodeValidation, toolErr.Code)

			vErr, ok := toolErr.Details.(*ValidationError)
			require.True(t, ok)
			assert.Equal(t, tt.field, vErr.Field)
			assert.Equal(t, tt.value, vErr.Value)
			assert.Contains(t, vErr.Message, tt.message)
		})
	}
}

func TestFunctionTool_SchemaKeywords(t *testing.T) {
	params := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{"type": "string", "minLength": 1},
			"depth": map[string]any{"type": "string", "enum": []string{"basic", "advanced"}},
		},
		"required":             []string{"query"},
		"additionalProperties": false,
	}
	search := NewFunctionTool("web_search", "search", params, func(_ context.Context, _ map[string]any) (any, error) {
		return "ok", nil
	})

	_, err := search.Call(context.Background(), map[string]any{"query": "mars", "depth": "basic"})
	require.NoError(t, err)

	for _, args := range []map[string]any{
		{"query": ""},
		{"query": "mars", "depth": "deep"},
		{"query": "mars", "page": 2.0},
	} {
		_, err := search.Call(context.Background(), args)
		var toolErr *ToolError
		require.ErrorAs(t, err, &toolErr, "args %v", args)
		assert.Equal(t, CodeValidation, toolErr.Code)
	}
}

func TestFunctionTool_NilSchemaAcceptsAnything(t *testing.T) {
	echo := NewFunctionTool("echo", "Echo", nil, func(_ context.Context, args map[string]any) (any, error) {
		return args["x"], nil
	})

	out, err := echo.Call(context.Background(), map[string]any{"x": 1})
	require.NoError(t, err)
	assert.Equal(t, 1, out)
}

func TestFunctionTool_InvalidSchema(t *testing.T) {
	called := false
	broken := NewFunctionTool("broken", "Broken", map[string]any{"type": 42}, func(_ context.Context, _ map[string]any) (any, error) {
		called = true
		return nil, nil
	})

	_, err := broken.Call(context.Background(), map[string]any{})
	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, CodeExecution, toolErr.Code)
	assert.Contains(t, toolErr.Message, "invalid parameter schema")
	assert.False(t, called)
}

func TestFunctionTool_ExecutionError(t *testing.T) {
	params := map[string]any{"type": "object", "properties": map[string]any{}}
	execTool := NewFunctionTool("fail", "Fails", params, func(_ context.Context, _ map[string]any) (any, error) {
		return nil, errors.New("boom")
	})

	_, err := execTool.Call(context.Background(), map[string]any{})
	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, CodeExecution, toolErr.Code)
	assert.Equal(t, "boom", toolErr.Message)
}

func TestFunctionTool_ForwardsToolError(t *testing.T) {
	params := map[string]any{"type": "object", "properties": map[string]any{}}
	custom := NewToolError("fail", "quota", "QUOTA")
	execTool := NewFunctionTool("fail", "Fails", params, func(_ context.Context, _ map[string]any) (any, error) {
		return nil, custom
	})

	_, err := execTool.Call(context.Background(), map[string]any{})
	assert.Same(t, custom, err)
}

type lookupArgs struct {
	Term string `json:"term" description:"Glossary term"`
}

func TestNewFunctionToolFromStruct(t *testing.T) {
	lookup := NewFunctionToolFromStruct("lookup", "Look up a term", lookupArgs{}, func(_ context.Context, args map[string]any) (any, error) {
		return "definition of " + args["term"].(string), nil
	})

	assert.Equal(t, []string{"term"}, lookup.Parameters()["required"])

	defs := Definitions([]Tool{lookup})
	require.Len(t, defs, 1)
	assert.Equal(t, "lookup", defs[0].Name)
	assert.Equal(t, "Look up a term", defs[0].Description)
}

// -------------------- WebSearch Tests --------------------

func TestWebSearch_Call(t *testing.T) {
	var got tavilyRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &got)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"results": [
			{"title": "Artemis II", "url": "https://example.com/a", "content": "Crew named.", "score": 0.9}
		]}`)
	}))
	defer srv.Close()

	ws := NewWebSearch(func(o *WebSearchOptions) {
		o.APIKey = "tvly-test"
		o.Endpoint = srv.URL
		o.MaxResults = 3
	})

	out, err := ws.Call(context.Background(), map[string]any{"query": "artemis crew"})
	require.NoError(t, err)
	assert.Equal(t, "[1] Artemis II (https://example.com/a)\nCrew named.", out)
	assert.Equal(t, "artemis crew", got.Query)
	assert.Equal(t, "tvly-test", got.APIKey)
	assert.Equal(t, 3, got.MaxResults)
}

func TestWebSearch_EmptyQuery(t *testing.T) {
	ws := NewWebSearch()
	_, err := ws.Call(context.Background(), map[string]any{"query": "  "})
	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, CodeValidation, toolErr.Code)
}

func TestWebSearch_UpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	defer srv.Close()

	ws := NewWebSearch(func(o *WebSearchOptions) { o.Endpoint = srv.URL })
	_, err := ws.Call(context.Background(), map[string]any{"query": "x"})
	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, CodeUpstream, toolErr.Code)
	assert.Contains(t, toolErr.Message, "401")
}

func TestFormatResults(t *testing.T) {
	assert.Equal(t, "No results found.", formatResults(tavilyResponse{}))
	assert.Equal(t, "short answer", formatResults(tavilyResponse{Answer: "short answer"}))
}

// -------------------- ToolError Formatting --------------------

func TestToolErrorFormatting(t *testing.T) {
	err := NewToolError("demo", "something failed", "E123")
	assert.Contains(t, err.Error(), "E123")
	assert.Contains(t, err.Error(), "demo")

	plain := &ToolError{Tool: "demo", Message: "x"}
	assert.Equal(t, "tool error in demo: x", plain.Error())
}
