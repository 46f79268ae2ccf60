// Package engine executes requests against a compiled orchestration graph.
//
// The Engine owns the per-request lifecycle around a traversal:
//
//   - bounded concurrency (Config.MaxConcurrentRequests), waiting callers
//     respect their context
//   - loading stored session history and appending the final exchange
//   - request ids, cancellation of in-flight requests via Stop
//   - the empty-answer check and lifecycle callbacks for metrics
//
// Graph structure and node semantics live in the graph, router and agent
// packages; the engine only runs what it is given.
package engine
