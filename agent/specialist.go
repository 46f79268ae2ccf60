package agent

import (
	"context"
	"strings"

	"github.com/hupe1980/studymesh/core"
	"github.com/hupe1980/studymesh/graph"
	"github.com/hupe1980/studymesh/model"
)

// Specialist is a graph node that produces or rewrites the answer.
type Specialist interface {
	Name() string
	Run(ctx context.Context, state core.State) (core.Update, error)
}

// Node adapts a Specialist to the graph node signature. The routing key is
// cleared before the specialist runs; it belongs to the conditional edge.
func Node(s Specialist) graph.Node[core.State, core.Update] {
	return graph.NodeFunc[core.State, core.Update](func(ctx context.Context, state core.State) (core.Update, error) {
		state.NextNode = ""
		return s.Run(ctx, state)
	})
}

// DefaultMaxHistory bounds the prior turns sent with a specialist request.
const DefaultMaxHistory = 10

// exchange returns the user question and assistant answer turns a
// specialist appends to history.
func exchange(question, answer string) []core.Content {
	return []core.Content{
		core.NewTextContent(core.RoleUser, question),
		core.NewTextContent(core.RoleAssistant, answer),
	}
}

// historyTurns keeps the last n text turns of history. Tool and system
// turns are dropped.
func historyTurns(history []core.Content, n int) []core.Content {
	if n <= 0 || len(history) == 0 {
		return nil
	}
	out := make([]core.Content, 0, n)
	for _, c := range history {
		if c.Role != core.RoleUser && c.Role != core.RoleAssistant {
			continue
		}
		if text := c.Text(); text != "" {
			out = append(out, core.NewTextContent(c.Role, text))
		}
	}
	if len(out) > n {
		out = out[len(out)-n:]
	}
	return out
}

// completeText runs one completion and returns its trimmed text. Transport
// failures and empty output become a *core.GenerationError naming specialist.
func completeText(ctx context.Context, m model.Model, specialist string, req model.Request) (string, error) {
	resp, err := model.Complete(ctx, m, req)
	if err != nil {
		return "", &core.GenerationError{Specialist: specialist, Err: err}
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", &core.GenerationError{Specialist: specialist, Err: model.ErrEmptyResponse}
	}
	return text, nil
}
