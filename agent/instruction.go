package agent

import (
	"context"

	"github.com/hupe1980/studymesh/internal/util"
)

// PromptData is the data available to instruction templates.
type PromptData struct {
	Question string
	Answer   string
	Context  string
}

// Provider supplies dynamic instruction text at runtime.
type Provider interface {
	Instruction(ctx context.Context, data PromptData) (string, error)
}

// Func is a functional adapter to allow ordinary functions to be used as Providers.
type Func func(ctx context.Context, data PromptData) (string, error)

// Instruction implements Provider.
func (f Func) Instruction(ctx context.Context, data PromptData) (string, error) { return f(ctx, data) }

// Instruction represents either a static template or a dynamic provider.
// Static text is rendered with text/template against PromptData, so
// {{.Context}} and {{.Question}} are substituted.
type Instruction struct {
	name     string
	text     string
	provider Provider
}

// NewInstructionFromText creates an Instruction from a template string.
func NewInstructionFromText(text string) Instruction { return Instruction{name: "instruction", text: text} }

// NewInstructionFromProvider creates an Instruction from a dynamic provider.
func NewInstructionFromProvider(p Provider) Instruction { return Instruction{provider: p} }

// NewInstructionFromFunc creates an Instruction from a function.
func NewInstructionFromFunc(f func(ctx context.Context, data PromptData) (string, error)) Instruction {
	return Instruction{provider: Func(f)}
}

// IsStatic returns true if the instruction is backed by a template string.
func (i Instruction) IsStatic() bool { return i.provider == nil }

// IsZero reports whether the instruction was never set.
func (i Instruction) IsZero() bool { return i.provider == nil && i.text == "" }

// Resolve returns the instruction text, invoking the provider if needed.
func (i Instruction) Resolve(ctx context.Context, data PromptData) (string, error) {
	if i.provider != nil {
		return i.provider.Instruction(ctx, data)
	}
	return util.RenderTemplate(i.name, i.text, data)
}
