package graph

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrMaxSteps is returned when a traversal exceeds Options.MaxSteps.
var ErrMaxSteps = errors.New("max steps exceeded")

// Hooks observe node execution. All fields are optional.
type Hooks struct {
	OnNodeStart func(ctx context.Context, node string)
	OnNodeEnd   func(ctx context.Context, node string, elapsed time.Duration, err error)
	// OnTransition fires after each edge resolution. fallback reports that a
	// conditional edge did not recognise its key and used its fallback target.
	OnTransition func(ctx context.Context, from, to string, fallback bool)
}

// NodeError wraps a failure returned by a node.
type NodeError struct {
	Node string
	Err  error
}

func (e *NodeError) Error() string { return fmt.Sprintf("node %s: %v", e.Node, e.Err) }

// Unwrap returns the node's error.
func (e *NodeError) Unwrap() error { return e.Err }

// Step records one executed node.
type Step struct {
	Node     string        `json:"node"`
	Duration time.Duration `json:"duration"`
}

// Trace is the ordered record of a traversal.
type Trace struct {
	Steps []Step `json:"steps"`
	// Fallback is true when a conditional edge used its fallback target.
	Fallback bool `json:"fallback"`
}

// Nodes returns the visited node names in execution order.
func (t Trace) Nodes() []string {
	out := make([]string, len(t.Steps))
	for i, s := range t.Steps {
		out[i] = s.Node
	}
	return out
}

// Graph is a compiled, immutable graph. It is safe for concurrent Invoke
// calls as long as its nodes are.
type Graph[S, U any] struct {
	nodes    map[string]Node[S, U]
	order    []string
	edges    map[string]*edge[S]
	entry    string
	reduce   Reducer[S, U]
	hooks    Hooks
	maxSteps int
}

// Entry returns the entry node name.
func (g *Graph[S, U]) Entry() string { return g.entry }

// Nodes returns node names in registration order.
func (g *Graph[S, U]) Nodes() []string {
	out := make([]string, len(g.order))
	copy(out, g.order)
	return out
}

// Successors returns every node reachable in one transition from name.
func (g *Graph[S, U]) Successors(name string) []string {
	e, ok := g.edges[name]
	if !ok {
		return nil
	}
	return e.successors()
}

// Invoke walks the graph from the entry node until END. Nodes run one at a
// time; the context is checked before every node so a cancelled request
// never starts another node. On error the state reached so far is returned
// together with the trace.
func (g *Graph[S, U]) Invoke(ctx context.Context, state S) (S, Trace, error) {
	var trace Trace
	current := g.entry

	for current != END {
		if err := ctx.Err(); err != nil {
			return state, trace, err
		}
		if len(trace.Steps) >= g.maxSteps {
			return state, trace, fmt.Errorf("%w: %d", ErrMaxSteps, g.maxSteps)
		}

		node := g.nodes[current]
		if g.hooks.OnNodeStart != nil {
			g.hooks.OnNodeStart(ctx, current)
		}
		start := time.Now()
		update, err := node.Run(ctx, state)
		elapsed := time.Since(start)
		if g.hooks.OnNodeEnd != nil {
			g.hooks.OnNodeEnd(ctx, current, elapsed, err)
		}
		trace.Steps = append(trace.Steps, Step{Node: current, Duration: elapsed})
		if err != nil {
			return state, trace, &NodeError{Node: current, Err: err}
		}
		state = g.reduce(state, update)

		next, fallback := g.edges[current].next(state)
		if fallback {
			trace.Fallback = true
		}
		if g.hooks.OnTransition != nil {
			g.hooks.OnTransition(ctx, current, next, fallback)
		}
		current = next
	}

	return state, trace, nil
}
