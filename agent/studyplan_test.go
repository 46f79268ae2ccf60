package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/hupe1980/studymesh/core"
	"github.com/hupe1980/studymesh/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func answeredState(question, answer string) core.State {
	return core.NewState(question, nil).Merge(core.AnswerUpdate(answer))
}

func TestStudyPlanAgent_Combines(t *testing.T) {
	m := model.NewMockModel("planner").AddText("- Review capitals\n- Quiz yourself")

	a, err := NewStudyPlanAgent(m)
	require.NoError(t, err)
	assert.Equal(t, StudyPlanName, a.Name())

	u, err := a.Run(context.Background(), answeredState("What is the capital of France?", "Paris."))
	require.NoError(t, err)
	require.NotNil(t, u.Answer)
	assert.Equal(t, "Paris.\n\n---\n\n### Your Study Plan\n- Review capitals\n- Quiz yourself", *u.Answer)
	assert.Empty(t, u.History)

	instructions := m.Requests()[0].Instructions
	assert.Contains(t, instructions, "What is the capital of France?")
	assert.Contains(t, instructions, "Paris.")
}

func TestStudyPlanAgent_DegradesOnFailure(t *testing.T) {
	tests := map[string]*model.MockModel{
		"transport": model.NewMockModel("planner").AddError(errors.New("rate limited")),
		"empty":     model.NewMockModel("planner").AddText(""),
	}
	for name, m := range tests {
		t.Run(name, func(t *testing.T) {
			var degraded []*core.AugmentationError
			a, err := NewStudyPlanAgent(m, func(o *StudyPlanOptions) {
				o.OnDegraded = func(_ context.Context, err *core.AugmentationError) { degraded = append(degraded, err) }
			})
			require.NoError(t, err)

			u, err := a.Run(context.Background(), answeredState("q", "original answer"))
			require.NoError(t, err)
			require.NotNil(t, u.Answer)
			assert.Equal(t, "original answer", *u.Answer)
			assert.Len(t, degraded, 1)
		})
	}
}

func TestStudyPlanAgent_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	a, err := NewStudyPlanAgent(model.NewMockModel("planner").AddText("plan"))
	require.NoError(t, err)

	_, err = a.Run(ctx, answeredState("q", "a"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStudyPlanAgent_RequiresAnswer(t *testing.T) {
	a, err := NewStudyPlanAgent(model.NewMockModel("planner"))
	require.NoError(t, err)

	_, err = a.Run(context.Background(), core.NewState("q", nil))
	assert.ErrorIs(t, err, core.ErrEmptyAnswer)
}

func TestCombine(t *testing.T) {
	assert.Equal(t, "A"+StudyPlanSeparator+"P", Combine("A", "P"))
}
