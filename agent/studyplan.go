package agent

import (
	"context"
	"errors"

	"github.com/hupe1980/studymesh/core"
	"github.com/hupe1980/studymesh/logging"
	"github.com/hupe1980/studymesh/model"
)

// StudyPlanName is the node name of the study plan augmenter.
const StudyPlanName = "study_plan"

// StudyPlanSeparator joins the original answer and the generated plan.
const StudyPlanSeparator = "\n\n---\n\n### Your Study Plan\n"

// StudyPlanOptions configures a StudyPlanAgent.
type StudyPlanOptions struct {
	Instruction Instruction
	Logger      logging.Logger
	// OnDegraded observes augmentation failures that were absorbed.
	OnDegraded func(ctx context.Context, err *core.AugmentationError)
}

// StudyPlanAgent appends an actionable study plan to the answer produced by
// the previous specialist. It never fails the request: when planning fails
// the answer is returned unchanged and the *core.AugmentationError is logged.
type StudyPlanAgent struct {
	model model.Model
	opts  StudyPlanOptions
}

// NewStudyPlanAgent creates the augmenter.
func NewStudyPlanAgent(m model.Model, optFns ...func(o *StudyPlanOptions)) (*StudyPlanAgent, error) {
	opts := StudyPlanOptions{
		Instruction: NewInstructionFromText(studyPlanInstruction),
		Logger:      logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if m == nil {
		return nil, errors.New("agent: model is required")
	}
	return &StudyPlanAgent{model: m, opts: opts}, nil
}

// Name implements Specialist.
func (a *StudyPlanAgent) Name() string { return StudyPlanName }

// Run implements Specialist. The update replaces the answer and leaves
// history untouched.
func (a *StudyPlanAgent) Run(ctx context.Context, state core.State) (core.Update, error) {
	if state.Answer == "" {
		return core.Update{}, core.ErrEmptyAnswer
	}

	plan, err := a.plan(ctx, state)
	if err != nil {
		// Cancellation stops the traversal like any other node.
		if ctxErr := ctx.Err(); ctxErr != nil {
			return core.Update{}, ctxErr
		}
		augErr := &core.AugmentationError{Err: err}
		a.opts.Logger.Warn("agent.study_plan.degraded",
			"request_id", state.RequestID,
			"error", augErr.Error(),
		)
		if a.opts.OnDegraded != nil {
			a.opts.OnDegraded(ctx, augErr)
		}
		answer := state.Answer
		return core.Update{Answer: &answer}, nil
	}

	combined := Combine(state.Answer, plan)
	return core.Update{Answer: &combined}, nil
}

func (a *StudyPlanAgent) plan(ctx context.Context, state core.State) (string, error) {
	instructions, err := a.opts.Instruction.Resolve(ctx, PromptData{
		Question: state.Question,
		Answer:   state.Answer,
	})
	if err != nil {
		return "", err
	}
	return completeText(ctx, a.model, StudyPlanName, model.Request{
		Instructions: instructions,
		Contents: []core.Content{
			core.NewTextContent(core.RoleUser, "Create the study plan."),
		},
	})
}

// Combine formats the final answer as answer, horizontal rule, heading and
// plan.
func Combine(answer, plan string) string {
	return answer + StudyPlanSeparator + plan
}
