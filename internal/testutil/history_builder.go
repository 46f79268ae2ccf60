package testutil

import "github.com/hupe1980/studymesh/core"

// HistoryBuilder provides a fluent helper for constructing conversation
// history in tests.
//
//	h := NewHistoryBuilder().User("hi").Assistant("hello").Build()
type HistoryBuilder struct {
	turns []core.Content
}

// NewHistoryBuilder creates an empty builder.
func NewHistoryBuilder() *HistoryBuilder { return &HistoryBuilder{} }

// User appends a user text turn (chainable).
func (b *HistoryBuilder) User(text string) *HistoryBuilder {
	b.turns = append(b.turns, core.NewTextContent(core.RoleUser, text))
	return b
}

// Assistant appends an assistant text turn (chainable).
func (b *HistoryBuilder) Assistant(text string) *HistoryBuilder {
	b.turns = append(b.turns, core.NewTextContent(core.RoleAssistant, text))
	return b
}

// Exchange appends a user question followed by the assistant answer (chainable).
func (b *HistoryBuilder) Exchange(question, answer string) *HistoryBuilder {
	return b.User(question).Assistant(answer)
}

// ToolCall appends an assistant turn requesting a function call (chainable).
func (b *HistoryBuilder) ToolCall(id, name, args string) *HistoryBuilder {
	b.turns = append(b.turns, core.Content{Role: core.RoleAssistant, Parts: []core.Part{
		core.FunctionCallPart{FunctionCall: core.FunctionCall{ID: id, Name: name, Arguments: args}},
	}})
	return b
}

// ToolResult appends a tool turn carrying a function response (chainable).
func (b *HistoryBuilder) ToolResult(id, name string, result any) *HistoryBuilder {
	b.turns = append(b.turns, core.Content{Role: core.RoleTool, Parts: []core.Part{
		core.FunctionResponsePart{FunctionResponse: core.FunctionResponse{ID: id, Name: name, Response: result}},
	}})
	return b
}

// Build returns a copy of the accumulated turns.
func (b *HistoryBuilder) Build() []core.Content {
	out := make([]core.Content, len(b.turns))
	copy(out, b.turns)
	return out
}
