// Package graph implements a small, static, directed state machine used to
// orchestrate specialist nodes.
//
// A graph is assembled with a Builder and frozen by Compile. Construction
// rejects dangling references immediately (an edge from or to a node that was
// never added); Compile rejects graphs that have no entry, nodes without an
// outgoing edge, cycles and nodes unreachable from the entry. A compiled graph
// therefore guarantees that every traversal terminates at END.
//
// Execution is strictly sequential along a single path. Each node returns a
// partial update which is folded into the running state by the Reducer given
// to NewBuilder, so nodes never replace the state wholesale.
//
// Two edge kinds exist:
//   - fixed edges (AddEdge) always transition to the same target
//   - conditional edges (AddConditionalEdge) compute a key from the state and
//     look it up in a target table; unknown keys go to the edge's fallback
//
// Example:
//
//	b := graph.NewBuilder[core.State, core.Update](core.State.Merge)
//	_ = b.AddNode("supervisor", supervisorNode)
//	_ = b.AddNode("qa", qaNode)
//	_ = b.AddConditionalEdge("supervisor", nextNode, map[string]string{"qa": "qa"}, "qa")
//	_ = b.AddEdge("qa", graph.END)
//	_ = b.SetEntry("supervisor")
//	g, err := b.Compile()
package graph
