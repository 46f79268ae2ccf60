// Package studymesh assembles the textbook question-answering graph: a
// supervisor that classifies each question, the specialists that answer it
// and the study plan step that augments textbook answers.
//
// Most applications interact with this package by:
//  1. Creating a StudyMesh via New() with a model and a retriever
//  2. Asking questions with Ask, optionally scoped to a session id
//
// The facade delegates request execution to engine.Engine. All defaults are
// in-memory and safe for local development and testing.
package studymesh

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hupe1980/studymesh/agent"
	"github.com/hupe1980/studymesh/core"
	"github.com/hupe1980/studymesh/engine"
	"github.com/hupe1980/studymesh/graph"
	"github.com/hupe1980/studymesh/logging"
	"github.com/hupe1980/studymesh/model"
	"github.com/hupe1980/studymesh/retrieval"
	"github.com/hupe1980/studymesh/router"
	"github.com/hupe1980/studymesh/session"
	"github.com/hupe1980/studymesh/tool"
)

// ErrEmptyQuestion is returned by Ask for blank questions.
var ErrEmptyQuestion = errors.New("question must not be empty")

// Observer receives execution signals, typically a *metrics.Collector.
type Observer interface {
	GraphHooks() graph.Hooks
	ObserveDecision(ctx context.Context, d router.Decision)
	ObserveDegraded(ctx context.Context, err *core.AugmentationError)
	EngineCallbacks() engine.Callbacks
}

// TopK holds the fragment count each retrieval-backed specialist requests.
type TopK struct {
	QA      int
	Tutor   int
	Planner int
}

// Options configures the StudyMesh instance.
type Options struct {
	// Model serves every completion call. Required.
	Model model.Model
	// RouterModel overrides Model for classification.
	RouterModel model.Model
	// Retriever serves the textbook specialists. Required.
	Retriever retrieval.Retriever

	// EnableSearch registers the Search specialist; Tools must then hold at
	// least one tool.
	EnableSearch bool
	Tools        []tool.Tool
	// SearchMaxIterations bounds model calls in the search tool loop.
	SearchMaxIterations int
	// SearchToolTimeout bounds a single tool call. Zero means no limit.
	SearchToolTimeout time.Duration

	// DefaultRoute receives unrecognised router labels.
	DefaultRoute router.Route
	TopK         TopK
	// MaxHistory bounds the prior turns forwarded to each model call.
	MaxHistory int
	// RouterHistory bounds the prior turns the supervisor sees.
	RouterHistory int

	EngineConfig engine.Config
	SessionStore core.SessionStore
	Observer     Observer

	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger
}

// Request is one question.
type Request struct {
	Question  string
	History   []core.Content
	SessionID string
}

// Response is the final answer and how it was produced.
type Response struct {
	RequestID string        `json:"request_id"`
	Answer    string        `json:"answer"`
	Route     string        `json:"route"`
	Nodes     []string      `json:"nodes"`
	Fallback  bool          `json:"fallback,omitempty"`
	Elapsed   time.Duration `json:"elapsed"`
}

// StudyMesh is the high-level facade over the graph and the engine.
type StudyMesh struct {
	opts       Options
	supervisor *router.Supervisor
	graph      *graph.Graph[core.State, core.Update]
	engine     *engine.Engine
}

// New builds and validates the orchestration graph.
func New(optFns ...func(o *Options)) (*StudyMesh, error) {
	opts := Options{
		DefaultRoute: router.QA,
		TopK: TopK{
			QA:      agent.DefaultQAK,
			Tutor:   agent.DefaultTutorK,
			Planner: agent.DefaultPlannerK,
		},
		MaxHistory:          agent.DefaultMaxHistory,
		SearchMaxIterations: agent.DefaultSearchMaxIterations,
		SearchToolTimeout:   agent.DefaultToolTimeout,
		EngineConfig:        engine.DefaultConfig,
		SessionStore:        session.NewInMemoryStore(),
		Logger:              logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Model == nil {
		return nil, errors.New("studymesh: model is required")
	}
	if opts.Retriever == nil {
		return nil, errors.New("studymesh: retriever is required")
	}
	if opts.EnableSearch && len(opts.Tools) == 0 {
		return nil, errors.New("studymesh: search enabled without tools")
	}
	if opts.RouterModel == nil {
		opts.RouterModel = opts.Model
	}

	sm := &StudyMesh{opts: opts}
	if err := sm.build(); err != nil {
		return nil, err
	}
	return sm, nil
}

func (sm *StudyMesh) build() error {
	opts := sm.opts

	sup, err := router.New(opts.RouterModel, func(o *router.Options) {
		o.Default = opts.DefaultRoute
		o.EnableSearch = opts.EnableSearch
		o.MaxHistory = opts.RouterHistory
		o.Logger = logging.With(opts.Logger, "component", "router")
		if opts.Observer != nil {
			o.OnDecision = opts.Observer.ObserveDecision
		}
	})
	if err != nil {
		return err
	}

	specialists, err := sm.specialists()
	if err != nil {
		return err
	}

	hooks := logHooks(logging.With(opts.Logger, "component", "graph"))
	if opts.Observer != nil {
		hooks = chainHooks(hooks, opts.Observer.GraphHooks())
	}
	b := graph.NewBuilder[core.State, core.Update](core.State.Merge, func(o *graph.Options) {
		o.Hooks = hooks
	})

	if err := b.AddNode(router.NodeName, sup.Node()); err != nil {
		return err
	}
	for _, s := range specialists {
		if err := b.AddNode(s.Name(), agent.Node(s)); err != nil {
			return err
		}
	}
	if err := b.AddConditionalEdge(router.NodeName, router.Resolver, sup.Targets(), opts.DefaultRoute.Node()); err != nil {
		return err
	}

	// Textbook answers get a study plan; the others end the request.
	edges := [][2]string{
		{agent.QAName, agent.StudyPlanName},
		{agent.TutorName, agent.StudyPlanName},
		{agent.StudyPlanName, graph.END},
		{agent.ReasoningName, graph.END},
		{agent.PlannerName, graph.END},
	}
	if opts.EnableSearch {
		edges = append(edges, [2]string{agent.SearchName, graph.END})
	}
	for _, e := range edges {
		if err := b.AddEdge(e[0], e[1]); err != nil {
			return err
		}
	}
	if err := b.SetEntry(router.NodeName); err != nil {
		return err
	}

	g, err := b.Compile()
	if err != nil {
		return fmt.Errorf("studymesh: %w", err)
	}

	callbacks := engine.Callbacks{}
	if opts.Observer != nil {
		callbacks = opts.Observer.EngineCallbacks()
	}

	sm.supervisor = sup
	sm.graph = g
	sm.engine = engine.New(g, func(o *engine.Options) {
		o.Config = opts.EngineConfig
		o.SessionStore = opts.SessionStore
		o.Callbacks = callbacks
		o.Logger = logging.With(opts.Logger, "component", "engine")
	})
	return nil
}

func (sm *StudyMesh) specialists() ([]agent.Specialist, error) {
	opts := sm.opts
	ragOpts := func(k int, name string) func(o *agent.RAGOptions) {
		return func(o *agent.RAGOptions) {
			o.K = k
			o.MaxHistory = opts.MaxHistory
			o.Logger = logging.With(opts.Logger, "component", "agent", "agent", name)
		}
	}

	qa, err := agent.NewQAAgent(opts.Model, opts.Retriever, ragOpts(opts.TopK.QA, agent.QAName))
	if err != nil {
		return nil, err
	}
	tutor, err := agent.NewTutorAgent(opts.Model, opts.Retriever, ragOpts(opts.TopK.Tutor, agent.TutorName))
	if err != nil {
		return nil, err
	}
	planner, err := agent.NewPlannerAgent(opts.Model, opts.Retriever, ragOpts(opts.TopK.Planner, agent.PlannerName))
	if err != nil {
		return nil, err
	}
	reasoning, err := agent.NewReasoningAgent(opts.Model, func(o *agent.ReasoningOptions) {
		o.MaxHistory = opts.MaxHistory
		o.Logger = logging.With(opts.Logger, "component", "agent")
	})
	if err != nil {
		return nil, err
	}
	studyPlan, err := agent.NewStudyPlanAgent(opts.Model, func(o *agent.StudyPlanOptions) {
		o.Logger = logging.With(opts.Logger, "component", "agent")
		if opts.Observer != nil {
			o.OnDegraded = opts.Observer.ObserveDegraded
		}
	})
	if err != nil {
		return nil, err
	}

	out := []agent.Specialist{qa, tutor, reasoning, planner, studyPlan}
	if opts.EnableSearch {
		search, err := agent.NewSearchAgent(opts.Model, opts.Tools, func(o *agent.SearchOptions) {
			o.MaxIterations = opts.SearchMaxIterations
			o.ToolTimeout = opts.SearchToolTimeout
			o.MaxHistory = opts.MaxHistory
			o.Logger = logging.With(opts.Logger, "component", "agent")
		})
		if err != nil {
			return nil, err
		}
		out = append(out, search)
	}
	return out, nil
}

// Ask runs one question through the graph and returns the final answer.
// Fatal failures surface as the typed errors of package core.
func (sm *StudyMesh) Ask(ctx context.Context, req Request) (*Response, error) {
	if strings.TrimSpace(req.Question) == "" {
		return nil, ErrEmptyQuestion
	}

	start := time.Now()
	res, err := sm.engine.Invoke(ctx, engine.Input{
		Question:  req.Question,
		History:   req.History,
		SessionID: req.SessionID,
	})
	if err != nil {
		return nil, err
	}

	return &Response{
		RequestID: res.RequestID,
		Answer:    res.Answer,
		Route:     res.Route,
		Nodes:     res.Trace.Nodes(),
		Fallback:  res.Trace.Fallback,
		Elapsed:   time.Since(start),
	}, nil
}

// Stop cancels an in-flight request.
func (sm *StudyMesh) Stop(requestID string) bool { return sm.engine.Stop(requestID) }

// Mermaid renders the compiled graph as a Mermaid flowchart.
func (sm *StudyMesh) Mermaid() string { return sm.graph.Mermaid() }

// Graph returns the compiled graph.
func (sm *StudyMesh) Graph() *graph.Graph[core.State, core.Update] { return sm.graph }

// Supervisor returns the router node.
func (sm *StudyMesh) Supervisor() *router.Supervisor { return sm.supervisor }

func logHooks(logger logging.Logger) graph.Hooks {
	return graph.Hooks{
		OnNodeStart: func(_ context.Context, node string) {
			logger.Debug("graph.node.start", "node", node)
		},
		OnNodeEnd: func(_ context.Context, node string, elapsed time.Duration, err error) {
			if err != nil {
				logger.Warn("graph.node.error", "node", node, "elapsed", elapsed, "error", err.Error())
				return
			}
			logger.Debug("graph.node.end", "node", node, "elapsed", elapsed)
		},
		OnTransition: func(_ context.Context, from, to string, fallback bool) {
			logger.Debug("graph.transition", "from", from, "to", to, "fallback", fallback)
		},
	}
}

func chainHooks(a, b graph.Hooks) graph.Hooks {
	return graph.Hooks{
		OnNodeStart: func(ctx context.Context, node string) {
			if a.OnNodeStart != nil {
				a.OnNodeStart(ctx, node)
			}
			if b.OnNodeStart != nil {
				b.OnNodeStart(ctx, node)
			}
		},
		OnNodeEnd: func(ctx context.Context, node string, elapsed time.Duration, err error) {
			if a.OnNodeEnd != nil {
				a.OnNodeEnd(ctx, node, elapsed, err)
			}
			if b.OnNodeEnd != nil {
				b.OnNodeEnd(ctx, node, elapsed, err)
			}
		},
		OnTransition: func(ctx context.Context, from, to string, fallback bool) {
			if a.OnTransition != nil {
				a.OnTransition(ctx, from, to, fallback)
			}
			if b.OnTransition != nil {
				b.OnTransition(ctx, from, to, fallback)
			}
		},
	}
}
