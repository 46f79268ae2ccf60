package studymesh

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/studymesh/agent"
	"github.com/hupe1980/studymesh/core"
	"github.com/hupe1980/studymesh/metrics"
	"github.com/hupe1980/studymesh/model"
	"github.com/hupe1980/studymesh/retrieval"
	"github.com/hupe1980/studymesh/router"
	"github.com/hupe1980/studymesh/session"
	"github.com/hupe1980/studymesh/tool"

	tu "github.com/hupe1980/studymesh/internal/testutil"
)

var _ Observer = (*metrics.Collector)(nil)

type specialistFunc struct {
	name string
	run  func(ctx context.Context, s core.State) (core.Update, error)
}

func (f specialistFunc) Name() string { return f.name }

func (f specialistFunc) Run(ctx context.Context, s core.State) (core.Update, error) {
	return f.run(ctx, s)
}

func newMesh(t *testing.T, routerModel, m model.Model, r retrieval.Retriever, optFns ...func(o *Options)) *StudyMesh {
	t.Helper()
	sm, err := New(append([]func(o *Options){func(o *Options) {
		o.RouterModel = routerModel
		o.Model = m
		o.Retriever = r
	}}, optFns...)...)
	require.NoError(t, err)
	return sm
}

func TestAsk_QARouteAppendsStudyPlan(t *testing.T) {
	routerModel := model.NewMockModel("router").AddText("QA Agent")
	m := model.NewMockModel("llm").
		AddText("The capital of France is Paris.").
		AddText("1. Review European capitals.")
	r := tu.NewRecordingRetriever(
		retrieval.Fragment{ID: "1", Text: "Paris is the capital of France."},
		retrieval.Fragment{ID: "2", Text: "France is in Europe."},
		retrieval.Fragment{ID: "3", Text: "Lyon is a city."},
		retrieval.Fragment{ID: "4", Text: "Extra."},
	)
	sm := newMesh(t, routerModel, m, r)

	resp, err := sm.Ask(context.Background(), Request{Question: "What is the capital of France?"})
	require.NoError(t, err)

	assert.Equal(t, "qa", resp.Route)
	assert.False(t, resp.Fallback)
	assert.Equal(t, []string{"supervisor", "qa", "study_plan"}, resp.Nodes)
	assert.Equal(t, "The capital of France is Paris."+agent.StudyPlanSeparator+"1. Review European capitals.", resp.Answer)
	assert.Contains(t, resp.Answer, "\n---\n")
	assert.Contains(t, resp.Answer, "Your Study Plan")

	calls := r.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, 3, calls[0].K)
	assert.Equal(t, "What is the capital of France?", calls[0].Query)
}

func TestAsk_UnrecognizedLabelFallsBackToQA(t *testing.T) {
	routerModel := model.NewMockModel("router").AddText("Something Agent")
	m := model.NewMockModel("llm").AddText("answer").AddText("plan")
	sm := newMesh(t, routerModel, m, tu.NewRecordingRetriever())

	resp, err := sm.Ask(context.Background(), Request{Question: "Who wrote Hamlet?"})
	require.NoError(t, err)
	assert.Equal(t, "qa", resp.Route)
	assert.Equal(t, []string{"supervisor", "qa", "study_plan"}, resp.Nodes)
	assert.True(t, resp.Fallback)
}

func TestAsk_DecoratedLabelFallsBack(t *testing.T) {
	for _, label := range []string{"`Tutor Agent`", "**Planner Agent**", "'Reasoning Agent'."} {
		t.Run(label, func(t *testing.T) {
			routerModel := model.NewMockModel("router").AddText(label)
			m := model.NewMockModel("llm").AddText("answer").AddText("plan")
			sm := newMesh(t, routerModel, m, tu.NewRecordingRetriever())

			resp, err := sm.Ask(context.Background(), Request{Question: "q"})
			require.NoError(t, err)
			assert.Equal(t, "qa", resp.Route)
			assert.True(t, resp.Fallback)
		})
	}
}

func TestAsk_SpecialistDoesNotSeeRoutingKey(t *testing.T) {
	var seen []string
	spy := specialistFunc{name: agent.ReasoningName, run: func(_ context.Context, s core.State) (core.Update, error) {
		seen = append(seen, s.NextNode)
		return core.AnswerUpdate("done"), nil
	}}
	u, err := agent.Node(spy).Run(context.Background(), core.State{Question: "q", NextNode: "reasoning"})
	require.NoError(t, err)
	require.NotNil(t, u.Answer)
	assert.Equal(t, []string{""}, seen)
}

func TestAsk_ReasoningSkipsRetrieval(t *testing.T) {
	routerModel := model.NewMockModel("router").AddText("Reasoning Agent")
	m := model.NewMockModel("llm").AddText("The premises do not decide it; a poodle is a dog, and dogs are mammals.")
	r := tu.NewRecordingRetriever(retrieval.Fragment{ID: "1", Text: "unused"})
	sm := newMesh(t, routerModel, m, r)

	resp, err := sm.Ask(context.Background(), Request{
		Question: "If all cats are mammals and a poodle is not a cat, is a poodle a mammal?",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"supervisor", "reasoning"}, resp.Nodes)
	assert.Empty(t, r.Calls())
	assert.Equal(t, 1, m.Calls())
	assert.NotContains(t, resp.Answer, "Your Study Plan")
}

func TestAsk_EmptyRetrievalStillCallsModel(t *testing.T) {
	routerModel := model.NewMockModel("router").AddText("QA Agent")
	m := model.NewMockModel("llm").AddText(agent.NoContextAnswer).AddText("plan")
	r := tu.NewRecordingRetriever()
	sm := newMesh(t, routerModel, m, r)

	resp, err := sm.Ask(context.Background(), Request{Question: "What is quantum chromodynamics?"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(resp.Answer, agent.NoContextAnswer))

	reqs := m.Requests()
	require.Len(t, reqs, 2)
	assert.Len(t, r.Calls(), 1)
}

func TestAsk_PlannerAndTutorTopK(t *testing.T) {
	tests := []struct {
		label string
		node  string
		k     int
		nodes []string
	}{
		{"Planner Agent", "planner", 15, []string{"supervisor", "planner"}},
		{"Tutor Agent", "tutor", 3, []string{"supervisor", "tutor", "study_plan"}},
	}
	for _, tt := range tests {
		t.Run(tt.node, func(t *testing.T) {
			routerModel := model.NewMockModel("router").AddText(tt.label)
			m := model.NewMockModel("llm").AddText("answer").AddText("plan")
			r := tu.NewRecordingRetriever()
			sm := newMesh(t, routerModel, m, r)

			resp, err := sm.Ask(context.Background(), Request{Question: "Explain photosynthesis"})
			require.NoError(t, err)
			assert.Equal(t, tt.node, resp.Route)
			assert.Equal(t, tt.nodes, resp.Nodes)
			require.Len(t, r.Calls(), 1)
			assert.Equal(t, tt.k, r.Calls()[0].K)
		})
	}
}

func TestAsk_SearchDisabledFallsBack(t *testing.T) {
	routerModel := model.NewMockModel("router").AddText("Web Search Agent")
	m := model.NewMockModel("llm").AddText("answer").AddText("plan")
	sm := newMesh(t, routerModel, m, tu.NewRecordingRetriever())

	assert.NotContains(t, sm.Supervisor().Instructions(), "Web Search Agent")
	assert.NotContains(t, sm.Graph().Nodes(), agent.SearchName)

	resp, err := sm.Ask(context.Background(), Request{Question: "Latest news?"})
	require.NoError(t, err)
	assert.Equal(t, "qa", resp.Route)
}

func TestAsk_SearchEnabled(t *testing.T) {
	lookup := tool.NewFunctionTool("web_search", "search", map[string]any{
		"type":       "object",
		"properties": map[string]any{"query": map[string]any{"type": "string"}},
		"required":   []string{"query"},
	}, func(_ context.Context, args map[string]any) (any, error) {
		return "Result for " + args["query"].(string), nil
	})

	routerModel := model.NewMockModel("router").AddText("Web Search Agent")
	m := model.NewMockModel("llm").
		AddToolCall("c1", "web_search", `{"query":"election"}`).
		AddText("The election was held yesterday.")
	r := tu.NewRecordingRetriever()
	sm := newMesh(t, routerModel, m, r, func(o *Options) {
		o.EnableSearch = true
		o.Tools = []tool.Tool{lookup}
	})

	resp, err := sm.Ask(context.Background(), Request{Question: "What happened in the election?"})
	require.NoError(t, err)
	assert.Equal(t, "search", resp.Route)
	assert.Equal(t, "The election was held yesterday.", resp.Answer)
	assert.Empty(t, r.Calls())
}

func TestAsk_SearchLoopBounds(t *testing.T) {
	var deadlines []bool
	slow := tool.NewFunctionTool("web_search", "search", map[string]any{
		"type":       "object",
		"properties": map[string]any{"query": map[string]any{"type": "string"}},
	}, func(ctx context.Context, _ map[string]any) (any, error) {
		_, ok := ctx.Deadline()
		deadlines = append(deadlines, ok)
		<-ctx.Done()
		return nil, ctx.Err()
	})

	routerModel := model.NewMockModel("router").AddText("Web Search Agent")
	m := model.NewMockModel("llm").
		AddToolCall("c1", "web_search", `{"query":"a"}`).
		AddToolCall("c2", "web_search", `{"query":"b"}`).
		AddText("never reached")
	sm := newMesh(t, routerModel, m, tu.NewRecordingRetriever(), func(o *Options) {
		o.EnableSearch = true
		o.Tools = []tool.Tool{slow}
		o.SearchMaxIterations = 2
		o.SearchToolTimeout = 20 * time.Millisecond
	})

	_, err := sm.Ask(context.Background(), Request{Question: "What happened today?"})
	var ge *core.GenerationError
	require.ErrorAs(t, err, &ge)
	assert.ErrorIs(t, err, agent.ErrMaxIterations)
	assert.Equal(t, 2, m.Calls())
	assert.Equal(t, []bool{true, true}, deadlines)
}

func TestAsk_ClassificationFailureIsFatal(t *testing.T) {
	routerModel := model.NewMockModel("router").AddError(errors.New("timeout"))
	m := model.NewMockModel("llm")
	sm := newMesh(t, routerModel, m, tu.NewRecordingRetriever())

	_, err := sm.Ask(context.Background(), Request{Question: "q"})
	var ce *core.ClassificationError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, 0, m.Calls())
}

func TestAsk_RetrievalFailureIsFatal(t *testing.T) {
	routerModel := model.NewMockModel("router").AddText("QA Agent")
	m := model.NewMockModel("llm")
	r := tu.NewRecordingRetriever().FailWith(errors.New("index down"))
	sm := newMesh(t, routerModel, m, r)

	_, err := sm.Ask(context.Background(), Request{Question: "q"})
	var re *core.RetrievalError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, agent.QAName, re.Specialist)
}

func TestAsk_AugmentationDegrades(t *testing.T) {
	routerModel := model.NewMockModel("router").AddText("Tutor Agent")
	m := model.NewMockModel("llm").AddText("Plants make food from light.").AddError(errors.New("overloaded"))
	collector := metrics.New()
	sm := newMesh(t, routerModel, m, tu.NewRecordingRetriever(), func(o *Options) {
		o.Observer = collector
	})

	resp, err := sm.Ask(context.Background(), Request{Question: "Explain photosynthesis"})
	require.NoError(t, err)
	assert.Equal(t, "Plants make food from light.", resp.Answer)

	n, err := testutil.GatherAndCount(collector.Registry(), "studymesh_augmentation_degraded_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestAsk_EmptyQuestion(t *testing.T) {
	sm := newMesh(t, model.NewMockModel("router"), model.NewMockModel("llm"), tu.NewRecordingRetriever())
	_, err := sm.Ask(context.Background(), Request{Question: "   "})
	require.ErrorIs(t, err, ErrEmptyQuestion)
}

func TestAsk_SessionCarriesHistory(t *testing.T) {
	store := session.NewInMemoryStore()
	routerModel := model.NewMockModel("router").AddText("Reasoning Agent").AddText("Reasoning Agent")
	m := model.NewMockModel("llm").AddText("4").AddText("8")
	sm := newMesh(t, routerModel, m, tu.NewRecordingRetriever(), func(o *Options) {
		o.SessionStore = store
	})

	_, err := sm.Ask(context.Background(), Request{Question: "2+2?", SessionID: "s"})
	require.NoError(t, err)
	_, err = sm.Ask(context.Background(), Request{Question: "double it", SessionID: "s"})
	require.NoError(t, err)

	reqs := m.Requests()
	require.Len(t, reqs, 2)
	texts := make([]string, 0, len(reqs[1].Contents))
	for _, c := range reqs[1].Contents {
		texts = append(texts, c.Text())
	}
	assert.Equal(t, []string{"2+2?", "4", "double it"}, texts)

	s, err := store.Get("s")
	require.NoError(t, err)
	assert.Len(t, s.History(), 4)
}

func TestNew_Validation(t *testing.T) {
	_, err := New()
	require.Error(t, err)

	_, err = New(func(o *Options) { o.Model = model.NewMockModel("m") })
	require.Error(t, err)

	_, err = New(func(o *Options) {
		o.Model = model.NewMockModel("m")
		o.Retriever = tu.NewRecordingRetriever()
		o.EnableSearch = true
	})
	require.Error(t, err)

	_, err = New(func(o *Options) {
		o.Model = model.NewMockModel("m")
		o.Retriever = tu.NewRecordingRetriever()
		o.TopK.Planner = 0
	})
	require.ErrorIs(t, err, retrieval.ErrInvalidK)
}

func TestMermaid(t *testing.T) {
	sm := newMesh(t, model.NewMockModel("router"), model.NewMockModel("llm"), tu.NewRecordingRetriever(),
		func(o *Options) { o.DefaultRoute = router.Tutor })

	out := sm.Mermaid()
	for _, node := range []string{"supervisor", "qa", "tutor", "reasoning", "planner", "study_plan"} {
		assert.Contains(t, out, node)
	}
	assert.NotContains(t, out, "search")
}
