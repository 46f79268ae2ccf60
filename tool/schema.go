package tool

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/santhosh-tekuri/jsonschema/v6/kind"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// ValidationError describes the first argument that does not satisfy a
// tool's parameter schema.
type ValidationError struct {
	Field   string `json:"field"`
	Value   any    `json:"value,omitempty"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation error: " + e.Message
	}
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

var printer = message.NewPrinter(language.English)

// compileSchema compiles a parameter schema. A nil schema accepts any
// arguments and compiles to nil.
func compileSchema(params map[string]any) (*jsonschema.Schema, error) {
	if params == nil {
		return nil, nil
	}

	// Round trip through JSON so Go typed values such as []string become the
	// generic values the compiler expects.
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("encode schema: %w", err)
	}
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decode schema: %w", err)
	}

	c := jsonschema.NewCompiler()
	if err := c.AddResource("parameters.json", doc); err != nil {
		return nil, err
	}
	return c.Compile("parameters.json")
}

// validateArgs checks args against a compiled schema and reports the first
// failure as a *ValidationError.
func validateArgs(sch *jsonschema.Schema, args map[string]any) error {
	if sch == nil {
		return nil
	}
	if args == nil {
		args = map[string]any{}
	}

	err := sch.Validate(args)
	if err == nil {
		return nil
	}
	verr, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return &ValidationError{Message: err.Error()}
	}

	leaf := verr
	for len(leaf.Causes) > 0 {
		leaf = leaf.Causes[0]
	}

	out := &ValidationError{
		Field:   strings.Join(leaf.InstanceLocation, "."),
		Message: leaf.ErrorKind.LocalizedString(printer),
	}
	if req, ok := leaf.ErrorKind.(*kind.Required); ok && len(req.Missing) > 0 {
		out.Field = strings.Join(append(slices.Clone(leaf.InstanceLocation), req.Missing[0]), ".")
	} else if len(leaf.InstanceLocation) == 1 {
		out.Value = args[leaf.InstanceLocation[0]]
	}
	return out
}
