package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hupe1980/studymesh/core"
	"github.com/hupe1980/studymesh/logging"
	"github.com/hupe1980/studymesh/model"
	"github.com/hupe1980/studymesh/tool"
)

// SearchName is the node name of the web search specialist.
const SearchName = "search"

// Search loop defaults.
const (
	DefaultSearchMaxIterations = 5
	DefaultToolTimeout         = 30 * time.Second
)

// ErrMaxIterations is wrapped in the GenerationError raised when the tool
// loop does not settle on a final answer.
var ErrMaxIterations = errors.New("tool loop exceeded max iterations")

// SearchOptions configures a SearchAgent.
type SearchOptions struct {
	Instruction Instruction
	// MaxIterations bounds the number of model calls in the tool loop.
	MaxIterations int
	// ToolTimeout bounds a single tool call. Zero means no extra timeout.
	ToolTimeout time.Duration
	// MaxParallelTools bounds concurrent calls when the model requests
	// several tools in one turn.
	MaxParallelTools int
	MaxHistory       int
	Logger           logging.Logger
}

// SearchAgent answers questions about current events. It never reads the
// textbook; instead the model may call tools any number of times before
// producing a text answer, which is returned verbatim.
type SearchAgent struct {
	model    model.Model
	executor *toolExecutor
	defs     []model.ToolDefinition
	opts     SearchOptions
}

// NewSearchAgent creates the search specialist with the given tools.
func NewSearchAgent(m model.Model, tools []tool.Tool, optFns ...func(o *SearchOptions)) (*SearchAgent, error) {
	opts := SearchOptions{
		Instruction:      NewInstructionFromText(searchInstruction),
		MaxIterations:    DefaultSearchMaxIterations,
		ToolTimeout:      DefaultToolTimeout,
		MaxParallelTools: 4,
		MaxHistory:       DefaultMaxHistory,
		Logger:           logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if m == nil {
		return nil, errors.New("agent: model is required")
	}
	if len(tools) == 0 {
		return nil, errors.New("agent: search requires at least one tool")
	}
	if opts.MaxIterations < 1 {
		return nil, errors.New("agent: max iterations must be >= 1")
	}

	byName := make(map[string]tool.Tool, len(tools))
	for _, t := range tools {
		if _, dup := byName[t.Name()]; dup {
			return nil, fmt.Errorf("agent: duplicate tool %q", t.Name())
		}
		byName[t.Name()] = t
	}

	return &SearchAgent{
		model: m,
		executor: &toolExecutor{
			tools:       byName,
			maxParallel: opts.MaxParallelTools,
			timeout:     opts.ToolTimeout,
		},
		defs: tool.Definitions(tools),
		opts: opts,
	}, nil
}

// Name implements Specialist.
func (a *SearchAgent) Name() string { return SearchName }

// Run implements Specialist.
func (a *SearchAgent) Run(ctx context.Context, state core.State) (core.Update, error) {
	logger := logging.With(a.opts.Logger, "agent", SearchName, "request_id", state.RequestID)

	instructions, err := a.opts.Instruction.Resolve(ctx, PromptData{Question: state.Question})
	if err != nil {
		return core.Update{}, &core.GenerationError{Specialist: SearchName, Err: err}
	}

	contents := historyTurns(state.History, a.opts.MaxHistory)
	contents = append(contents, core.NewTextContent(core.RoleUser, state.Question))

	for i := 0; i < a.opts.MaxIterations; i++ {
		resp, err := model.Complete(ctx, a.model, model.Request{
			Instructions: instructions,
			Contents:     contents,
			Tools:        a.defs,
		})
		if err != nil {
			return core.Update{}, &core.GenerationError{Specialist: SearchName, Err: err}
		}

		calls := resp.FunctionCalls()
		if len(calls) == 0 {
			answer := resp.Text()
			if strings.TrimSpace(answer) == "" {
				return core.Update{}, &core.GenerationError{Specialist: SearchName, Err: model.ErrEmptyResponse}
			}
			logger.Info("agent.answer", "iterations", i+1, "chars", len(answer))
			return core.AnswerUpdate(answer, exchange(state.Question, answer)...), nil
		}

		contents = append(contents, resp.Content)
		results := make([]core.Part, 0, len(calls))
		for _, fr := range a.executor.run(ctx, logger, calls) {
			results = append(results, core.FunctionResponsePart{FunctionResponse: fr})
		}
		contents = append(contents, core.Content{Role: core.RoleTool, Parts: results})

		if err := ctx.Err(); err != nil {
			return core.Update{}, err
		}
	}

	logger.Warn("agent.tool_loop.exhausted", "max_iterations", a.opts.MaxIterations)
	return core.Update{}, &core.GenerationError{Specialist: SearchName, Err: ErrMaxIterations}
}
