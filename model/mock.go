package model

import (
	"context"
	"errors"
	"sync"

	"github.com/hupe1980/studymesh/core"
)

// ErrScriptExhausted is returned by MockModel when no scripted step is left
// and no responder is configured.
var ErrScriptExhausted = errors.New("mock model: no scripted response left")

// MockModel is a deterministic in-memory Model for tests, demos and offline
// runs. Steps are consumed in order; each step yields either a response or an
// error. When the script is exhausted the optional Responder is consulted.
// Every received Request is recorded.
type MockModel struct {
	info Info

	mu        sync.Mutex
	steps     []mockStep
	requests  []Request
	responder func(req Request) (Response, error)
}

type mockStep struct {
	resp Response
	err  error
}

// NewMockModel constructs a MockModel with tool support enabled.
func NewMockModel(name string) *MockModel {
	return &MockModel{info: Info{Name: name, Provider: "mock", SupportsTools: true}}
}

// AddText scripts a final text response.
func (m *MockModel) AddText(text string) *MockModel {
	return m.AddResponse(Response{
		Content:      core.NewTextContent(core.RoleAssistant, text),
		FinishReason: "stop",
	})
}

// AddToolCall scripts a response requesting a single tool invocation.
func (m *MockModel) AddToolCall(id, name, arguments string) *MockModel {
	return m.AddResponse(Response{
		Content: core.Content{Role: core.RoleAssistant, Parts: []core.Part{
			core.FunctionCallPart{FunctionCall: core.FunctionCall{ID: id, Name: name, Arguments: arguments}},
		}},
		FinishReason: "tool_calls",
	})
}

// AddResponse scripts an arbitrary final response.
func (m *MockModel) AddResponse(resp Response) *MockModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.steps = append(m.steps, mockStep{resp: resp})
	return m
}

// AddError scripts a failing call.
func (m *MockModel) AddError(err error) *MockModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.steps = append(m.steps, mockStep{err: err})
	return m
}

// SetResponder installs a fallback used once the script is exhausted.
func (m *MockModel) SetResponder(fn func(req Request) (Response, error)) *MockModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responder = fn
	return m
}

// Requests returns a copy of every request received so far.
func (m *MockModel) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Request, len(m.requests))
	copy(out, m.requests)
	return out
}

// Calls returns the number of Generate calls received.
func (m *MockModel) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// Generate implements Model.
func (m *MockModel) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	respCh := make(chan Response, 1)
	errCh := make(chan error, 1)

	resp, err := m.next(req)

	go func() {
		defer close(respCh)
		defer close(errCh)
		if ctxErr := ctx.Err(); ctxErr != nil {
			errCh <- ctxErr
			return
		}
		if err != nil {
			errCh <- err
			return
		}
		respCh <- resp
	}()
	return respCh, errCh
}

func (m *MockModel) next(req Request) (Response, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	if len(m.steps) > 0 {
		step := m.steps[0]
		m.steps = m.steps[1:]
		m.mu.Unlock()
		return step.resp, step.err
	}
	responder := m.responder
	m.mu.Unlock()

	if responder != nil {
		return responder(req)
	}
	return Response{}, ErrScriptExhausted
}

// Info implements Model.
func (m *MockModel) Info() Info { return m.info }
