// Package model defines the provider-agnostic abstractions for the completion
// collaborator used by the router and the specialists.
//
// Core goals:
//   - One generation interface for every provider (Model)
//   - Normalized tool / function call representation (ToolDefinition)
//   - A blocking helper (Complete) for the request/response style the graph uses
//   - Bounded retries for transient transport failures (WithRetry)
//   - Deterministic scripting for tests (MockModel)
//
// Providers (OpenAI, Anthropic, Gemini) live in sub-packages and implement
// Model so higher layers stay decoupled from vendor SDKs.
package model
