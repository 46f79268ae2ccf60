package tool

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/hupe1980/studymesh/internal/util"
	"github.com/hupe1980/studymesh/logging"
)

// FunctionTool exposes a plain Go function as a Tool. The parameter schema is
// compiled once at construction and arguments are validated against it before
// the function runs. Failures surface as *ToolError: VALIDATION_ERROR for
// schema mismatches, EXECUTION_ERROR for any other error (a *ToolError
// returned by fn is forwarded unchanged).
//
// A FunctionTool holds no mutable state after construction and is safe for
// concurrent use.
type FunctionTool struct {
	name        string
	description string
	parameters  map[string]any
	schema      *jsonschema.Schema
	schemaErr   error
	fn          func(ctx context.Context, args map[string]any) (any, error)
	logger      logging.Logger
}

// FunctionToolOption configures a FunctionTool.
type FunctionToolOption func(*FunctionTool)

// WithLogger attaches a logger for call lifecycle events.
func WithLogger(l logging.Logger) FunctionToolOption {
	return func(t *FunctionTool) { t.logger = l }
}

// NewFunctionTool constructs a FunctionTool from explicit schema and function.
func NewFunctionTool(
	name, description string,
	parameters map[string]any,
	fn func(ctx context.Context, args map[string]any) (any, error),
	opts ...FunctionToolOption,
) *FunctionTool {
	t := &FunctionTool{
		name:        name,
		description: description,
		parameters:  parameters,
		fn:          fn,
		logger:      logging.NoOpLogger{},
	}
	for _, opt := range opts {
		opt(t)
	}
	t.schema, t.schemaErr = compileSchema(parameters)
	return t
}

// NewFunctionToolFromStruct derives the parameter schema from a struct, see
// util.CreateSchema.
func NewFunctionToolFromStruct(
	name, description string,
	structType any,
	fn func(ctx context.Context, args map[string]any) (any, error),
	opts ...FunctionToolOption,
) *FunctionTool {
	return NewFunctionTool(name, description, util.CreateSchema(structType), fn, opts...)
}

// Name returns the tool name.
func (t *FunctionTool) Name() string { return t.name }

// Description returns the model-facing description.
func (t *FunctionTool) Description() string { return t.description }

// Parameters returns the argument schema.
func (t *FunctionTool) Parameters() map[string]any { return t.parameters }

// Call validates args and invokes the wrapped function.
func (t *FunctionTool) Call(ctx context.Context, args map[string]any) (any, error) {
	start := time.Now()
	t.logger.Debug("tool.call.start", "tool", t.name)

	if t.schemaErr != nil {
		t.logger.Error("tool.call.invalid_schema", "tool", t.name, "error", t.schemaErr.Error())
		return nil, &ToolError{
			Tool:    t.name,
			Message: fmt.Sprintf("invalid parameter schema: %v", t.schemaErr),
			Code:    CodeExecution,
		}
	}

	if err := validateArgs(t.schema, args); err != nil {
		t.logger.Warn("tool.call.validation_failed", "tool", t.name, "error", err.Error())
		return nil, &ToolError{
			Tool:    t.name,
			Message: fmt.Sprintf("parameter validation failed: %v", err),
			Code:    CodeValidation,
			Details: err,
		}
	}

	result, err := t.fn(ctx, args)
	if err != nil {
		t.logger.Error("tool.call.error", "tool", t.name, "error", err.Error())

		var toolErr *ToolError
		if errors.As(err, &toolErr) {
			return nil, toolErr
		}
		return nil, &ToolError{
			Tool:    t.name,
			Message: err.Error(),
			Code:    CodeExecution,
		}
	}

	t.logger.Info("tool.call.success", "tool", t.name, "duration_ms", time.Since(start).Milliseconds())
	return result, nil
}
