package graph

import (
	"errors"
	"fmt"
	"sort"
)

// Construction and validation errors.
var (
	ErrNodeExists        = errors.New("node already exists")
	ErrNodeNotFound      = errors.New("node not found")
	ErrInvalidNode       = errors.New("invalid node")
	ErrEdgeExists        = errors.New("node already has an outgoing edge")
	ErrNoEntry           = errors.New("entry node not set")
	ErrNoOutgoingEdge    = errors.New("node has no outgoing edge")
	ErrCycle             = errors.New("cycle detected")
	ErrUnreachable       = errors.New("node not reachable from entry")
	ErrInvalidConditions = errors.New("invalid conditional edge")
)

// DefaultMaxSteps bounds a single traversal. Compiled graphs are acyclic so
// the limit is only reached by graphs with more nodes than this.
const DefaultMaxSteps = 64

// Options configures a compiled graph.
type Options struct {
	// MaxSteps bounds the number of node executions per Invoke.
	MaxSteps int
	// Hooks observe node execution (logging, metrics).
	Hooks Hooks
}

// Builder assembles a graph. It is not safe for concurrent use; the compiled
// Graph is.
type Builder[S, U any] struct {
	nodes  map[string]Node[S, U]
	order  []string
	edges  map[string]*edge[S]
	entry  string
	reduce Reducer[S, U]
	opts   Options
}

// NewBuilder creates an empty builder. reduce merges node updates into the
// running state and must not be nil.
func NewBuilder[S, U any](reduce Reducer[S, U], optFns ...func(o *Options)) *Builder[S, U] {
	opts := Options{MaxSteps: DefaultMaxSteps}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Builder[S, U]{
		nodes:  make(map[string]Node[S, U]),
		edges:  make(map[string]*edge[S]),
		reduce: reduce,
		opts:   opts,
	}
}

// AddNode registers a node under a unique name.
func (b *Builder[S, U]) AddNode(name string, n Node[S, U]) error {
	if name == "" || name == END {
		return fmt.Errorf("%w: reserved or empty name %q", ErrInvalidNode, name)
	}
	if n == nil {
		return fmt.Errorf("%w: %s is nil", ErrInvalidNode, name)
	}
	if _, exists := b.nodes[name]; exists {
		return fmt.Errorf("%w: %s", ErrNodeExists, name)
	}
	b.nodes[name] = n
	b.order = append(b.order, name)
	return nil
}

// AddEdge adds an unconditional transition. from must be a registered node;
// to must be a registered node or END.
func (b *Builder[S, U]) AddEdge(from, to string) error {
	if err := b.checkSource(from); err != nil {
		return err
	}
	if err := b.checkTarget(to); err != nil {
		return err
	}
	b.edges[from] = &edge[S]{kind: edgeFixed, to: to}
	return nil
}

// AddConditionalEdge adds a state dependent transition out of from. At run
// time resolve computes a key which is looked up in targets; keys that are not
// present transition to fallback instead of failing.
func (b *Builder[S, U]) AddConditionalEdge(from string, resolve Resolver[S], targets map[string]string, fallback string) error {
	if err := b.checkSource(from); err != nil {
		return err
	}
	if resolve == nil {
		return fmt.Errorf("%w: %s has no resolver", ErrInvalidConditions, from)
	}
	if len(targets) == 0 {
		return fmt.Errorf("%w: %s has no targets", ErrInvalidConditions, from)
	}
	keys := make([]string, 0, len(targets))
	table := make(map[string]string, len(targets))
	for k, to := range targets {
		if err := b.checkTarget(to); err != nil {
			return err
		}
		keys = append(keys, k)
		table[k] = to
	}
	if err := b.checkTarget(fallback); err != nil {
		return fmt.Errorf("fallback: %w", err)
	}
	sort.Strings(keys)
	b.edges[from] = &edge[S]{
		kind:     edgeConditional,
		resolve:  resolve,
		targets:  table,
		keys:     keys,
		fallback: fallback,
	}
	return nil
}

// SetEntry sets the node where every traversal starts.
func (b *Builder[S, U]) SetEntry(name string) error {
	if _, exists := b.nodes[name]; !exists {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, name)
	}
	b.entry = name
	return nil
}

// Compile validates the graph and freezes it.
func (b *Builder[S, U]) Compile() (*Graph[S, U], error) {
	if b.reduce == nil {
		return nil, errors.New("graph: reducer cannot be nil")
	}
	if b.entry == "" {
		return nil, ErrNoEntry
	}
	for _, name := range b.order {
		if _, ok := b.edges[name]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrNoOutgoingEdge, name)
		}
	}
	if cycle := b.findCycle(); cycle != nil {
		return nil, fmt.Errorf("%w: %v", ErrCycle, cycle)
	}
	reachable := b.reachable()
	for _, name := range b.order {
		if !reachable[name] {
			return nil, fmt.Errorf("%w: %s", ErrUnreachable, name)
		}
	}

	maxSteps := b.opts.MaxSteps
	if maxSteps <= 0 {
		maxSteps = DefaultMaxSteps
	}

	nodes := make(map[string]Node[S, U], len(b.nodes))
	for k, v := range b.nodes {
		nodes[k] = v
	}
	edges := make(map[string]*edge[S], len(b.edges))
	for k, v := range b.edges {
		edges[k] = v
	}
	order := make([]string, len(b.order))
	copy(order, b.order)

	return &Graph[S, U]{
		nodes:    nodes,
		order:    order,
		edges:    edges,
		entry:    b.entry,
		reduce:   b.reduce,
		hooks:    b.opts.Hooks,
		maxSteps: maxSteps,
	}, nil
}

func (b *Builder[S, U]) checkSource(from string) error {
	if _, exists := b.nodes[from]; !exists {
		return fmt.Errorf("%w: edge source %s", ErrNodeNotFound, from)
	}
	if _, exists := b.edges[from]; exists {
		return fmt.Errorf("%w: %s", ErrEdgeExists, from)
	}
	return nil
}

func (b *Builder[S, U]) checkTarget(to string) error {
	if to == END {
		return nil
	}
	if _, exists := b.nodes[to]; !exists {
		return fmt.Errorf("%w: edge target %s", ErrNodeNotFound, to)
	}
	return nil
}

// findCycle returns the node path of the first cycle found, or nil.
func (b *Builder[S, U]) findCycle() []string {
	const (
		white = iota
		grey
		black
	)
	color := make(map[string]int, len(b.nodes))
	var stack []string
	var found []string

	var visit func(n string) bool
	visit = func(n string) bool {
		color[n] = grey
		stack = append(stack, n)
		if e, ok := b.edges[n]; ok {
			for _, next := range e.successors() {
				if next == END {
					continue
				}
				switch color[next] {
				case grey:
					for i, s := range stack {
						if s == next {
							found = append(append([]string{}, stack[i:]...), next)
							break
						}
					}
					return true
				case white:
					if visit(next) {
						return true
					}
				}
			}
		}
		stack = stack[:len(stack)-1]
		color[n] = black
		return false
	}

	for _, name := range b.order {
		if color[name] == white && visit(name) {
			return found
		}
	}
	return nil
}

// reachable returns the set of nodes reachable from the entry (BFS).
func (b *Builder[S, U]) reachable() map[string]bool {
	seen := make(map[string]bool)
	queue := []string{b.entry}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		if current == END || seen[current] {
			continue
		}
		seen[current] = true
		if e, ok := b.edges[current]; ok {
			queue = append(queue, e.successors()...)
		}
	}
	return seen
}
