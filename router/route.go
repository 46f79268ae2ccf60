package router

import "fmt"

// Route identifies a specialist. The zero value is QA.
type Route int

// Routable specialists.
const (
	QA Route = iota
	Tutor
	Reasoning
	Planner
	Search
)

var nodeIDs = [...]string{
	QA:        "qa",
	Tutor:     "tutor",
	Reasoning: "reasoning",
	Planner:   "planner",
	Search:    "search",
}

// Routes lists every route in declaration order.
func Routes() []Route {
	return []Route{QA, Tutor, Reasoning, Planner, Search}
}

// Node returns the graph node identifier for the route.
func (r Route) Node() string {
	if !r.Valid() {
		return fmt.Sprintf("route(%d)", int(r))
	}
	return nodeIDs[r]
}

func (r Route) String() string { return r.Node() }

// Valid reports whether r is one of the declared routes.
func (r Route) Valid() bool { return r >= QA && r <= Search }

// ParseNode maps a graph node identifier back to its route.
func ParseNode(id string) (Route, bool) {
	for _, r := range Routes() {
		if nodeIDs[r] == id {
			return r, true
		}
	}
	return QA, false
}

// MarshalText implements encoding.TextMarshaler.
func (r Route) MarshalText() ([]byte, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("invalid route %d", int(r))
	}
	return []byte(nodeIDs[r]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *Route) UnmarshalText(b []byte) error {
	route, ok := ParseNode(string(b))
	if !ok {
		return fmt.Errorf("unknown route %q", string(b))
	}
	*r = route
	return nil
}
