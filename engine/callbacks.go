package engine

import (
	"context"

	"github.com/hupe1980/studymesh/core"
)

// Callbacks hook into the request lifecycle without touching the graph.
// They run synchronously on the request goroutine; all fields are optional.
type Callbacks struct {
	// BeforeRequest runs once the request state exists, before the first node.
	BeforeRequest func(ctx context.Context, state core.State)
	// AfterRequest runs after a successful traversal and session update.
	AfterRequest func(ctx context.Context, res *Result)
	// OnError runs when the traversal fails or ends without an answer.
	OnError func(ctx context.Context, requestID string, err error)
}

// Chain combines callbacks so each lifecycle point runs every non-nil
// function in order.
func Chain(cbs ...Callbacks) Callbacks {
	var out Callbacks
	for _, cb := range cbs {
		cb := cb
		if cb.BeforeRequest != nil {
			prev := out.BeforeRequest
			out.BeforeRequest = func(ctx context.Context, s core.State) {
				if prev != nil {
					prev(ctx, s)
				}
				cb.BeforeRequest(ctx, s)
			}
		}
		if cb.AfterRequest != nil {
			prev := out.AfterRequest
			out.AfterRequest = func(ctx context.Context, r *Result) {
				if prev != nil {
					prev(ctx, r)
				}
				cb.AfterRequest(ctx, r)
			}
		}
		if cb.OnError != nil {
			prev := out.OnError
			out.OnError = func(ctx context.Context, id string, err error) {
				if prev != nil {
					prev(ctx, id, err)
				}
				cb.OnError(ctx, id, err)
			}
		}
	}
	return out
}
