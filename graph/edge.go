package graph

// edgeKind distinguishes fixed transitions from state dependent ones.
type edgeKind int

const (
	edgeFixed edgeKind = iota
	edgeConditional
)

// edge is the single outgoing transition of a node. Every node owns exactly
// one edge; fan-out only exists through the target table of a conditional
// edge and is resolved to a single successor at run time.
type edge[S any] struct {
	kind     edgeKind
	to       string            // fixed target
	resolve  Resolver[S]       // conditional key function
	targets  map[string]string // key -> node
	keys     []string          // sorted target keys, for stable export
	fallback string            // used when the key is not in targets
}

// next returns the successor for the given state and whether the fallback
// target was used.
func (e *edge[S]) next(state S) (string, bool) {
	if e.kind == edgeFixed {
		return e.to, false
	}
	key := e.resolve(state)
	if to, ok := e.targets[key]; ok {
		return to, false
	}
	return e.fallback, true
}

// successors lists every node this edge can transition to.
func (e *edge[S]) successors() []string {
	if e.kind == edgeFixed {
		return []string{e.to}
	}
	seen := map[string]bool{}
	out := make([]string, 0, len(e.targets)+1)
	for _, k := range e.keys {
		to := e.targets[k]
		if !seen[to] {
			seen[to] = true
			out = append(out, to)
		}
	}
	if !seen[e.fallback] {
		out = append(out, e.fallback)
	}
	return out
}
