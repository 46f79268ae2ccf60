package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/hupe1980/studymesh/core"
	"github.com/hupe1980/studymesh/logging"
	"github.com/hupe1980/studymesh/tool"
)

// toolExecutor runs a batch of function calls with bounded parallelism.
// Results keep the order of the calls and every call yields exactly one
// response; failures and panics become error responses for the model.
type toolExecutor struct {
	tools       map[string]tool.Tool
	maxParallel int
	timeout     time.Duration
}

func (e *toolExecutor) run(ctx context.Context, logger logging.Logger, calls []core.FunctionCall) []core.FunctionResponse {
	out := make([]core.FunctionResponse, len(calls))
	if len(calls) == 1 {
		out[0] = e.call(ctx, logger, calls[0])
		return out
	}

	maxPar := e.maxParallel
	if maxPar <= 0 || maxPar > len(calls) {
		maxPar = len(calls)
	}
	sem := make(chan struct{}, maxPar)

	var wg sync.WaitGroup
	start := time.Now()
	for i, fc := range calls {
		wg.Add(1)
		sem <- struct{}{}
		go func(idx int, fc core.FunctionCall) {
			defer wg.Done()
			defer func() { <-sem }()
			out[idx] = e.call(ctx, logger, fc)
		}(i, fc)
	}
	wg.Wait()

	logger.Debug("agent.tools.batch.complete",
		"count", len(calls),
		"parallelism", maxPar,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return out
}

func (e *toolExecutor) call(ctx context.Context, logger logging.Logger, fc core.FunctionCall) (resp core.FunctionResponse) {
	resp = core.FunctionResponse{ID: fc.ID, Name: fc.Name}

	if err := ctx.Err(); err != nil {
		resp.Error = err.Error()
		return resp
	}

	t, ok := e.tools[fc.Name]
	if !ok {
		resp.Error = tool.NewToolError(fc.Name, "unknown tool", tool.CodeNotFound).Error()
		logger.Warn("agent.tool.unknown", "tool", fc.Name)
		return resp
	}

	args := map[string]any{}
	if strings.TrimSpace(fc.Arguments) != "" {
		if err := json.Unmarshal([]byte(fc.Arguments), &args); err != nil {
			resp.Error = tool.NewToolError(fc.Name, fmt.Sprintf("invalid arguments: %v", err), tool.CodeValidation).Error()
			return resp
		}
	}

	callCtx := ctx
	if e.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			logger.Error("agent.tool.panic", "tool", fc.Name, "recover", fmt.Sprint(r), "stack", string(debug.Stack()))
			resp.Response = nil
			resp.Error = tool.NewToolError(fc.Name, "tool panicked", tool.CodeExecution).Error()
		}
	}()

	start := time.Now()
	out, err := t.Call(callCtx, args)
	if err != nil {
		resp.Error = err.Error()
		logger.Warn("agent.tool.error", "tool", fc.Name, "error", err.Error())
		return resp
	}
	resp.Response = out
	logger.Debug("agent.tool.done", "tool", fc.Name, "duration_ms", time.Since(start).Milliseconds())
	return resp
}
