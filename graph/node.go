package graph

import "context"

// END is the reserved terminal node identifier.
const END = "__end__"

// Node is a unit of work in the graph. It receives the current state and
// returns a partial update that the graph's Reducer merges into the state.
type Node[S, U any] interface {
	Run(ctx context.Context, state S) (U, error)
}

// NodeFunc adapts an ordinary function to the Node interface.
type NodeFunc[S, U any] func(ctx context.Context, state S) (U, error)

// Run implements Node.
func (f NodeFunc[S, U]) Run(ctx context.Context, state S) (U, error) { return f(ctx, state) }

// Reducer folds a node's partial update into the running state.
type Reducer[S, U any] func(state S, update U) S

// Resolver computes the routing key of a conditional edge from the state.
type Resolver[S any] func(state S) string
