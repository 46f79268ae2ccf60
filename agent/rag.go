package agent

import (
	"context"
	"errors"

	"github.com/hupe1980/studymesh/core"
	"github.com/hupe1980/studymesh/logging"
	"github.com/hupe1980/studymesh/model"
	"github.com/hupe1980/studymesh/retrieval"
)

// Specialist names and their default fragment counts.
const (
	QAName      = "qa"
	TutorName   = "tutor"
	PlannerName = "planner"

	DefaultQAK      = 3
	DefaultTutorK   = 3
	DefaultPlannerK = 15
)

// RAGOptions configures a RAGAgent.
type RAGOptions struct {
	// K is the number of fragments requested per question.
	K           int
	Instruction Instruction
	// QuestionPrefix is prepended to the question in the user turn.
	QuestionPrefix string
	MaxHistory     int
	Logger         logging.Logger
}

// RAGAgent answers from retrieved textbook passages. Each Run makes exactly
// one retrieval call and one completion call; an empty retrieval still
// reaches the model with an empty context block.
type RAGAgent struct {
	name      string
	model     model.Model
	retriever retrieval.Retriever
	opts      RAGOptions
}

// NewRAGAgent creates a retrieval-backed specialist.
func NewRAGAgent(name string, m model.Model, r retrieval.Retriever, optFns ...func(o *RAGOptions)) (*RAGAgent, error) {
	opts := RAGOptions{
		K:          DefaultQAK,
		MaxHistory: DefaultMaxHistory,
		Logger:     logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if m == nil {
		return nil, errors.New("agent: model is required")
	}
	if r == nil {
		return nil, errors.New("agent: retriever is required")
	}
	if opts.K < 1 {
		return nil, retrieval.ErrInvalidK
	}
	if opts.Instruction.IsZero() {
		opts.Instruction = NewInstructionFromText(qaInstruction)
	}
	return &RAGAgent{name: name, model: m, retriever: r, opts: opts}, nil
}

// NewQAAgent answers specific factual questions from the textbook (k=3).
func NewQAAgent(m model.Model, r retrieval.Retriever, optFns ...func(o *RAGOptions)) (*RAGAgent, error) {
	return NewRAGAgent(QAName, m, r, prepend(func(o *RAGOptions) {
		o.K = DefaultQAK
		o.Instruction = NewInstructionFromText(qaInstruction)
	}, optFns)...)
}

// NewTutorAgent explains concepts in simple terms (k=3).
func NewTutorAgent(m model.Model, r retrieval.Retriever, optFns ...func(o *RAGOptions)) (*RAGAgent, error) {
	return NewRAGAgent(TutorName, m, r, prepend(func(o *RAGOptions) {
		o.K = DefaultTutorK
		o.Instruction = NewInstructionFromText(tutorInstruction)
		o.QuestionPrefix = "My question is: "
	}, optFns)...)
}

// NewPlannerAgent outlines material from a broad retrieval (k=15).
func NewPlannerAgent(m model.Model, r retrieval.Retriever, optFns ...func(o *RAGOptions)) (*RAGAgent, error) {
	return NewRAGAgent(PlannerName, m, r, prepend(func(o *RAGOptions) {
		o.K = DefaultPlannerK
		o.Instruction = NewInstructionFromText(plannerInstruction)
	}, optFns)...)
}

func prepend(first func(o *RAGOptions), rest []func(o *RAGOptions)) []func(o *RAGOptions) {
	return append([]func(o *RAGOptions){first}, rest...)
}

// Name implements Specialist.
func (a *RAGAgent) Name() string { return a.name }

// K returns the number of fragments requested per question.
func (a *RAGAgent) K() int { return a.opts.K }

// Run implements Specialist.
func (a *RAGAgent) Run(ctx context.Context, state core.State) (core.Update, error) {
	logger := logging.With(a.opts.Logger, "agent", a.name, "request_id", state.RequestID)

	fragments, err := a.retriever.Search(ctx, state.Question, a.opts.K)
	if err != nil {
		logger.Error("agent.retrieval.error", "error", err.Error())
		return core.Update{}, &core.RetrievalError{Specialist: a.name, Err: err}
	}
	logger.Debug("agent.retrieval.done", "k", a.opts.K, "fragments", len(fragments))

	instructions, err := a.opts.Instruction.Resolve(ctx, PromptData{
		Question: state.Question,
		Context:  retrieval.JoinTexts(fragments),
	})
	if err != nil {
		return core.Update{}, &core.GenerationError{Specialist: a.name, Err: err}
	}

	contents := historyTurns(state.History, a.opts.MaxHistory)
	contents = append(contents, core.NewTextContent(core.RoleUser, a.opts.QuestionPrefix+state.Question))

	answer, err := completeText(ctx, a.model, a.name, model.Request{
		Instructions: instructions,
		Contents:     contents,
	})
	if err != nil {
		logger.Error("agent.generation.error", "error", err.Error())
		return core.Update{}, err
	}

	logger.Info("agent.answer", "chars", len(answer))
	return core.AnswerUpdate(answer, exchange(state.Question, answer)...), nil
}
