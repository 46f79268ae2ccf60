package agent

import (
	"context"
	"errors"

	"github.com/hupe1980/studymesh/core"
	"github.com/hupe1980/studymesh/logging"
	"github.com/hupe1980/studymesh/model"
)

// ReasoningName is the node name of the reasoning specialist.
const ReasoningName = "reasoning"

// ReasoningOptions configures a ReasoningAgent.
type ReasoningOptions struct {
	Instruction Instruction
	MaxHistory  int
	Logger      logging.Logger
}

// ReasoningAgent answers logic and word problems step by step without
// consulting the textbook.
type ReasoningAgent struct {
	model model.Model
	opts  ReasoningOptions
}

// NewReasoningAgent creates the reasoning specialist.
func NewReasoningAgent(m model.Model, optFns ...func(o *ReasoningOptions)) (*ReasoningAgent, error) {
	opts := ReasoningOptions{
		Instruction: NewInstructionFromText(reasoningInstruction),
		MaxHistory:  DefaultMaxHistory,
		Logger:      logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if m == nil {
		return nil, errors.New("agent: model is required")
	}
	return &ReasoningAgent{model: m, opts: opts}, nil
}

// Name implements Specialist.
func (a *ReasoningAgent) Name() string { return ReasoningName }

// Run implements Specialist.
func (a *ReasoningAgent) Run(ctx context.Context, state core.State) (core.Update, error) {
	instructions, err := a.opts.Instruction.Resolve(ctx, PromptData{Question: state.Question})
	if err != nil {
		return core.Update{}, &core.GenerationError{Specialist: ReasoningName, Err: err}
	}

	contents := historyTurns(state.History, a.opts.MaxHistory)
	contents = append(contents, core.NewTextContent(core.RoleUser, state.Question))

	answer, err := completeText(ctx, a.model, ReasoningName, model.Request{
		Instructions: instructions,
		Contents:     contents,
	})
	if err != nil {
		a.opts.Logger.Error("agent.generation.error", "agent", ReasoningName, "error", err.Error())
		return core.Update{}, err
	}
	return core.AnswerUpdate(answer, exchange(state.Question, answer)...), nil
}
