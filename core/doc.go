// Package core provides the foundational domain types shared by every layer of
// studymesh. It defines:
//
//   - Content and Part (role-based conversation turns with a closed part set)
//   - State (the per-request record threaded through the orchestration graph)
//   - Update (a partial, monotonic state change produced by a single node)
//   - Session (an in-process conversation container for follow-up questions)
//   - The error taxonomy used to separate fatal failures from recovered ones
//
// Implementation concerns (model providers, retrieval backends, transport)
// live in their own packages and depend on core, never the other way around.
package core
