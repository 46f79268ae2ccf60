package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/hupe1980/studymesh/core"
	"github.com/hupe1980/studymesh/graph"
	"github.com/hupe1980/studymesh/logging"
	"github.com/hupe1980/studymesh/session"
)

// ErrStopped is the cancellation cause of a request terminated via Stop.
var ErrStopped = errors.New("request stopped")

// Config defines tuning parameters for the Engine.
type Config struct {
	// MaxConcurrentRequests limits the number of graph traversals that can
	// execute simultaneously. Callers beyond the limit wait until a slot is
	// free or their context ends. Set to 0 for unlimited.
	MaxConcurrentRequests int
}

// DefaultConfig provides default configuration values.
var DefaultConfig = Config{
	MaxConcurrentRequests: 10,
}

// Options configures an Engine instance.
type Options struct {
	Config Config

	// SessionStore keeps history between requests that carry a session id.
	// Defaults to an in-memory store.
	SessionStore core.SessionStore

	Callbacks Callbacks

	// Logger defaults to NoOpLogger.
	Logger logging.Logger
}

// Input is one question submitted to the engine.
type Input struct {
	Question string
	// History is prior conversation supplied by the caller. It is appended
	// after any stored session history.
	History   []core.Content
	SessionID string
}

// Result is the outcome of one traversal.
type Result struct {
	RequestID string
	Answer    string
	// Route is the specialist the supervisor selected.
	Route string
	Trace graph.Trace
	State core.State
}

// Engine runs requests through a compiled orchestration graph with bounded
// concurrency and session bookkeeping. It is safe for concurrent use.
type Engine struct {
	graph    *graph.Graph[core.State, core.Update]
	sessions core.SessionStore
	sem      chan struct{}
	cb       Callbacks
	logger   logging.Logger

	mu     sync.Mutex
	active map[string]context.CancelCauseFunc
}

// New creates an Engine that runs g.
func New(g *graph.Graph[core.State, core.Update], optFns ...func(o *Options)) *Engine {
	opts := Options{
		Config:       DefaultConfig,
		SessionStore: session.NewInMemoryStore(),
		Logger:       logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	e := &Engine{
		graph:    g,
		sessions: opts.SessionStore,
		cb:       opts.Callbacks,
		logger:   opts.Logger,
		active:   make(map[string]context.CancelCauseFunc),
	}
	if n := opts.Config.MaxConcurrentRequests; n > 0 {
		e.sem = make(chan struct{}, n)
	}
	return e
}

// Invoke executes one request synchronously. Stored session history is
// loaded before the traversal and the question/answer exchange is appended
// after a successful one. A traversal that ends without an answer returns
// core.ErrEmptyAnswer.
func (e *Engine) Invoke(ctx context.Context, in Input) (*Result, error) {
	if err := e.acquire(ctx); err != nil {
		return nil, err
	}
	defer e.release()

	history, err := e.history(in)
	if err != nil {
		return nil, err
	}

	state := core.NewState(in.Question, history)
	logger := logging.With(e.logger, "request_id", state.RequestID)

	ctx, cancel := context.WithCancelCause(ctx)
	e.track(state.RequestID, cancel)
	defer func() {
		e.untrack(state.RequestID)
		cancel(nil)
	}()

	if e.cb.BeforeRequest != nil {
		e.cb.BeforeRequest(ctx, state)
	}
	logger.Debug("engine.request.start", "session_id", in.SessionID, "history", len(history))

	final, trace, err := e.graph.Invoke(ctx, state)
	if err == nil && final.Answer == "" {
		err = core.ErrEmptyAnswer
	}
	if err != nil {
		if cause := context.Cause(ctx); errors.Is(cause, ErrStopped) {
			err = fmt.Errorf("%w: %w", cause, err)
		}
		logger.Error("engine.request.failed",
			"kind", core.ErrorKind(err),
			"nodes", trace.Nodes(),
			"error", err.Error(),
		)
		if e.cb.OnError != nil {
			e.cb.OnError(ctx, state.RequestID, err)
		}
		return nil, err
	}

	res := &Result{
		RequestID: state.RequestID,
		Answer:    final.Answer,
		Route:     routeOf(trace),
		Trace:     trace,
		State:     final,
	}

	if in.SessionID != "" {
		if err := e.sessions.Append(in.SessionID,
			core.NewTextContent(core.RoleUser, in.Question),
			core.NewTextContent(core.RoleAssistant, final.Answer),
		); err != nil {
			// The answer is already produced; a lost history write is not fatal.
			logger.Warn("engine.session.append_failed", "session_id", in.SessionID, "error", err.Error())
		}
	}

	logger.Info("engine.request.done", "route", res.Route, "nodes", trace.Nodes(), "fallback", trace.Fallback)
	if e.cb.AfterRequest != nil {
		e.cb.AfterRequest(ctx, res)
	}
	return res, nil
}

// Stop cancels an in-flight request. It reports whether the request was
// found.
func (e *Engine) Stop(requestID string) bool {
	e.mu.Lock()
	cancel, ok := e.active[requestID]
	e.mu.Unlock()
	if ok {
		cancel(ErrStopped)
	}
	return ok
}

// Active returns the number of in-flight requests.
func (e *Engine) Active() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.active)
}

// Graph returns the compiled graph.
func (e *Engine) Graph() *graph.Graph[core.State, core.Update] { return e.graph }

func (e *Engine) history(in Input) ([]core.Content, error) {
	if in.SessionID == "" {
		return in.History, nil
	}
	s, err := e.sessions.Get(in.SessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	stored := s.History()
	return append(stored, in.History...), nil
}

func (e *Engine) acquire(ctx context.Context) error {
	if e.sem == nil {
		return ctx.Err()
	}
	select {
	case e.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Engine) release() {
	if e.sem != nil {
		<-e.sem
	}
}

func (e *Engine) track(id string, cancel context.CancelCauseFunc) {
	e.mu.Lock()
	e.active[id] = cancel
	e.mu.Unlock()
}

func (e *Engine) untrack(id string) {
	e.mu.Lock()
	delete(e.active, id)
	e.mu.Unlock()
}

// routeOf returns the node executed right after the entry node.
func routeOf(t graph.Trace) string {
	if len(t.Steps) < 2 {
		return ""
	}
	return t.Steps[1].Node
}
