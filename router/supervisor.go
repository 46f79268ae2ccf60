package router

import (
	"context"
	"errors"
	"strings"

	"github.com/hupe1980/studymesh/core"
	"github.com/hupe1980/studymesh/graph"
	"github.com/hupe1980/studymesh/internal/util"
	"github.com/hupe1980/studymesh/logging"
	"github.com/hupe1980/studymesh/model"
)

// NodeName is the graph identifier of the supervisor node.
const NodeName = "supervisor"

// Decision is the outcome of one classification.
type Decision struct {
	Route Route
	// Label is the raw model output.
	Label string
	// Fallback is true when Label was not recognised.
	Fallback bool
}

// Options configures a Supervisor.
type Options struct {
	// Roster overrides the embedded roster.
	Roster *Roster
	// Default is the route used for unrecognised labels.
	Default Route
	// EnableSearch makes the Search specialist routable.
	EnableSearch bool
	// MaxHistory bounds the prior turns passed to the model. Zero sends none.
	MaxHistory int
	Logger     logging.Logger
	// OnDecision observes every successful classification.
	OnDecision func(ctx context.Context, d Decision)
}

// Supervisor classifies questions into routes with one model call each.
type Supervisor struct {
	model        model.Model
	table        *Table
	instructions string
	opts         Options
}

// New creates a Supervisor backed by m.
func New(m model.Model, optFns ...func(o *Options)) (*Supervisor, error) {
	opts := Options{
		Default: QA,
		Logger:  logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if m == nil {
		return nil, errors.New("router: model is required")
	}
	if !opts.Default.Valid() {
		return nil, errors.New("router: invalid default route")
	}
	if opts.Default == Search && !opts.EnableSearch {
		return nil, errors.New("router: default route search requires search to be enabled")
	}
	if opts.Roster == nil {
		r, err := DefaultRoster()
		if err != nil {
			return nil, err
		}
		opts.Roster = r
	}

	table := NewTable(opts.Roster, opts.Default, opts.EnableSearch)

	data := promptData{Version: opts.Roster.Version, Labels: table.Labels()}
	for _, e := range opts.Roster.Specialists {
		if e.Route == Search && !opts.EnableSearch {
			continue
		}
		data.Specialists = append(data.Specialists, e)
	}
	instructions, err := util.Execute(instructionsTmpl, data)
	if err != nil {
		return nil, err
	}

	return &Supervisor{
		model:        m,
		table:        table,
		instructions: instructions,
		opts:         opts,
	}, nil
}

// Table exposes the label table used for resolution.
func (s *Supervisor) Table() *Table { return s.table }

// Instructions returns the rendered classification prompt.
func (s *Supervisor) Instructions() string { return s.instructions }

// Route classifies question. A failed or empty model call is a
// *core.ClassificationError; an unknown label is not an error.
func (s *Supervisor) Route(ctx context.Context, question string, history []core.Content) (Decision, error) {
	contents := make([]core.Content, 0, s.opts.MaxHistory+1)
	contents = append(contents, lastTurns(history, s.opts.MaxHistory)...)
	contents = append(contents, core.NewTextContent(core.RoleUser, "User Question: "+question))

	resp, err := model.Complete(ctx, s.model, model.Request{
		Instructions: s.instructions,
		Contents:     contents,
	})
	if err != nil {
		return Decision{}, &core.ClassificationError{Err: err}
	}

	label := strings.TrimSpace(resp.Text())
	if label == "" {
		return Decision{}, &core.ClassificationError{Err: model.ErrEmptyResponse}
	}

	route, fallback := s.table.Resolve(label)
	d := Decision{Route: route, Label: label, Fallback: fallback}

	if fallback {
		s.opts.Logger.Warn("router.label.unrecognized", "label", label, "fallback", route.Node())
	}
	s.opts.Logger.Info("router.decision", "route", route.Node(), "fallback", fallback)

	if s.opts.OnDecision != nil {
		s.opts.OnDecision(ctx, d)
	}
	return d, nil
}

// Node adapts the supervisor into a graph node. The node writes only
// NextNode. An unrecognised label leaves NextNode empty, so the conditional
// edge takes its fallback target and the trace records it.
func (s *Supervisor) Node() graph.NodeFunc[core.State, core.Update] {
	return func(ctx context.Context, state core.State) (core.Update, error) {
		d, err := s.Route(ctx, state.Question, state.History)
		if err != nil {
			return core.Update{}, err
		}
		if d.Fallback {
			return core.RouteUpdate(""), nil
		}
		return core.RouteUpdate(d.Route.Node()), nil
	}
}

// Targets returns the conditional edge table keyed by NextNode values.
func (s *Supervisor) Targets() map[string]string {
	out := map[string]string{}
	for _, r := range s.table.Routes() {
		out[r.Node()] = r.Node()
	}
	return out
}

// Resolver reads the routing decision from state for the conditional edge.
func Resolver(state core.State) string { return state.NextNode }

func lastTurns(history []core.Content, n int) []core.Content {
	if n <= 0 || len(history) == 0 {
		return nil
	}
	if len(history) > n {
		history = history[len(history)-n:]
	}
	out := make([]core.Content, 0, len(history))
	for _, c := range history {
		if c.Role == core.RoleUser || c.Role == core.RoleAssistant {
			if text := c.Text(); text != "" {
				out = append(out, core.NewTextContent(c.Role, text))
			}
		}
	}
	return out
}
