package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/hupe1980/studymesh/core"
	"github.com/hupe1980/studymesh/model"
	"github.com/hupe1980/studymesh/tool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSearchTool(calls *[]string, err error) tool.Tool {
	return tool.NewFunctionTool("web_search", "search the web", map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{"type": "string"},
		},
		"required": []string{"query"},
	}, func(_ context.Context, args map[string]any) (any, error) {
		*calls = append(*calls, args["query"].(string))
		if err != nil {
			return nil, err
		}
		return "Artemis II crew announced.", nil
	})
}

func TestSearchAgent_ToolLoop(t *testing.T) {
	var queries []string
	m := model.NewMockModel("search").
		AddToolCall("call_1", "web_search", `{"query":"artemis program news"}`).
		AddText("The Artemis II crew has been announced.")

	a, err := NewSearchAgent(m, []tool.Tool{newSearchTool(&queries, nil)})
	require.NoError(t, err)
	assert.Equal(t, SearchName, a.Name())

	u, err := a.Run(context.Background(), core.NewState("What is the latest news on the Artemis program?", nil))
	require.NoError(t, err)
	assert.Equal(t, "The Artemis II crew has been announced.", *u.Answer)
	assert.Equal(t, []string{"artemis program news"}, queries)

	reqs := m.Requests()
	require.Len(t, reqs, 2)
	require.Len(t, reqs[0].Tools, 1)
	assert.Equal(t, "web_search", reqs[0].Tools[0].Name)

	second := reqs[1].Contents
	require.Len(t, second, 3)
	assert.Equal(t, core.RoleAssistant, second[1].Role)
	assert.Equal(t, core.RoleTool, second[2].Role)
	fr := second[2].Parts[0].(core.FunctionResponsePart).FunctionResponse
	assert.Equal(t, "call_1", fr.ID)
	assert.Equal(t, "Artemis II crew announced.", fr.Response)

	require.Len(t, u.History, 2)
}

func TestSearchAgent_DirectAnswer(t *testing.T) {
	var queries []string
	m := model.NewMockModel("search").AddText("No search needed.")

	a, err := NewSearchAgent(m, []tool.Tool{newSearchTool(&queries, nil)})
	require.NoError(t, err)

	u, err := a.Run(context.Background(), core.NewState("hi", nil))
	require.NoError(t, err)
	assert.Equal(t, "No search needed.", *u.Answer)
	assert.Empty(t, queries)
}

func TestSearchAgent_AnswerIsVerbatim(t *testing.T) {
	var queries []string
	raw := "  Results:\n\n- Artemis II crew announced.\n"
	m := model.NewMockModel("search").AddText(raw).AddText(" \n\t")

	a, err := NewSearchAgent(m, []tool.Tool{newSearchTool(&queries, nil)})
	require.NoError(t, err)

	u, err := a.Run(context.Background(), core.NewState("news?", nil))
	require.NoError(t, err)
	assert.Equal(t, raw, *u.Answer)
	assert.Equal(t, raw, u.History[1].Text())

	_, err = a.Run(context.Background(), core.NewState("news?", nil))
	var ge *core.GenerationError
	require.ErrorAs(t, err, &ge)
	assert.ErrorIs(t, err, model.ErrEmptyResponse)
}

func TestSearchAgent_ToolErrorsAreFedBack(t *testing.T) {
	var queries []string
	m := model.NewMockModel("search").
		AddToolCall("c1", "web_search", `{"query":"x"}`).
		AddToolCall("c2", "unknown_tool", `{}`).
		AddToolCall("c3", "web_search", `not json`).
		AddText("Sorry, search is unavailable.")

	a, err := NewSearchAgent(m, []tool.Tool{newSearchTool(&queries, errors.New("quota exceeded"))})
	require.NoError(t, err)

	u, err := a.Run(context.Background(), core.NewState("news?", nil))
	require.NoError(t, err)
	assert.Equal(t, "Sorry, search is unavailable.", *u.Answer)

	contents := m.Requests()[3].Contents
	errs := []string{}
	for _, c := range contents {
		if c.Role != core.RoleTool {
			continue
		}
		errs = append(errs, c.Parts[0].(core.FunctionResponsePart).FunctionResponse.Error)
	}
	require.Len(t, errs, 3)
	assert.Contains(t, errs[0], "quota exceeded")
	assert.Contains(t, errs[1], tool.CodeNotFound)
	assert.Contains(t, errs[2], tool.CodeValidation)
}

func TestSearchAgent_MaxIterations(t *testing.T) {
	var queries []string
	m := model.NewMockModel("search").SetResponder(func(model.Request) (model.Response, error) {
		return model.Response{Content: core.Content{Role: core.RoleAssistant, Parts: []core.Part{
			core.FunctionCallPart{FunctionCall: core.FunctionCall{ID: "loop", Name: "web_search", Arguments: `{"query":"again"}`}},
		}}}, nil
	})

	a, err := NewSearchAgent(m, []tool.Tool{newSearchTool(&queries, nil)}, func(o *SearchOptions) { o.MaxIterations = 3 })
	require.NoError(t, err)

	_, err = a.Run(context.Background(), core.NewState("q", nil))
	var ge *core.GenerationError
	require.ErrorAs(t, err, &ge)
	assert.Equal(t, SearchName, ge.Specialist)
	assert.ErrorIs(t, err, ErrMaxIterations)
	assert.Equal(t, 3, m.Calls())
	assert.Len(t, queries, 3)
}

func TestNewSearchAgent_Validation(t *testing.T) {
	var queries []string
	ws := newSearchTool(&queries, nil)
	m := model.NewMockModel("search")

	_, err := NewSearchAgent(nil, []tool.Tool{ws})
	assert.Error(t, err)
	_, err = NewSearchAgent(m, nil)
	assert.Error(t, err)
	_, err = NewSearchAgent(m, []tool.Tool{ws, ws})
	assert.Error(t, err)
	_, err = NewSearchAgent(m, []tool.Tool{ws}, func(o *SearchOptions) { o.MaxIterations = 0 })
	assert.Error(t, err)
}
