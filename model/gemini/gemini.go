// Package gemini provides a model.Model backed by the Gemini API through the
// google.golang.org/genai client.
package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hupe1980/studymesh/core"
	"github.com/hupe1980/studymesh/model"
	"google.golang.org/genai"
)

// Options configures the Gemini model adapter.
type Options struct {
	Model           string
	Temperature     float32
	MaxOutputTokens int32
	APIKey          string
	BaseURL         string
}

// Model wraps a genai client behind the generic model.Model interface.
type Model struct {
	client *genai.Client
	opts   Options
}

// NewModel creates a Gemini model. Without an explicit APIKey the client reads
// GEMINI_API_KEY / GOOGLE_API_KEY from the environment.
func NewModel(ctx context.Context, optFns ...func(o *Options)) (*Model, error) {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	cfg := &genai.ClientConfig{
		APIKey:  opts.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if opts.BaseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: opts.BaseURL}
	}

	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &Model{client: client, opts: opts}, nil
}

// NewModelFromClient creates a Gemini model from an existing client.
func NewModelFromClient(client *genai.Client, optFns ...func(o *Options)) *Model {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Model{client: client, opts: opts}
}

func defaultOptions() Options {
	return Options{
		Model:           "gemini-2.0-flash",
		Temperature:     0.2,
		MaxOutputTokens: 2048,
	}
}

// Generate implements model.Model with a single GenerateContent call.
func (m *Model) Generate(ctx context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	out := make(chan model.Response, 1)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		cfg := &genai.GenerateContentConfig{
			Temperature:     genai.Ptr(m.opts.Temperature),
			MaxOutputTokens: m.opts.MaxOutputTokens,
		}
		if req.Instructions != "" {
			cfg.SystemInstruction = genai.NewContentFromText(req.Instructions, genai.RoleUser)
		}
		if len(req.Tools) > 0 {
			cfg.Tools = []*genai.Tool{{FunctionDeclarations: buildDeclarations(req.Tools)}}
		}

		resp, err := m.client.Models.GenerateContent(ctx, m.opts.Model, buildContents(req.Contents), cfg)
		if err != nil {
			errCh <- wrapError(err)
			return
		}

		result := model.Response{
			ID:           resp.ResponseID,
			Content:      core.Content{Role: core.RoleAssistant},
			FinishReason: "stop",
		}
		if len(resp.Candidates) > 0 && resp.Candidates[0] != nil {
			cand := resp.Candidates[0]
			if cand.FinishReason != "" {
				result.FinishReason = string(cand.FinishReason)
			}
			if cand.Content != nil {
				result.Content.Parts = convertParts(cand.Content.Parts)
			}
		}
		if u := resp.UsageMetadata; u != nil {
			result.Usage = &model.TokenUsage{
				PromptTokens:     int(u.PromptTokenCount),
				CompletionTokens: int(u.CandidatesTokenCount),
				TotalTokens:      int(u.TotalTokenCount),
			}
		}

		out <- result
	}()

	return out, errCh
}

func convertParts(parts []*genai.Part) []core.Part {
	var out []core.Part
	for _, p := range parts {
		if p == nil {
			continue
		}
		if p.Text != "" && !p.Thought {
			out = append(out, core.TextPart{Text: p.Text})
		}
		if fc := p.FunctionCall; fc != nil {
			args, _ := json.Marshal(fc.Args)
			id := fc.ID
			if id == "" {
				id = fc.Name
			}
			out = append(out, core.FunctionCallPart{FunctionCall: core.FunctionCall{
				ID:        id,
				Name:      fc.Name,
				Arguments: string(args),
			}})
		}
	}
	return out
}

// buildContents maps conversation turns onto Gemini's user/model roles.
// System contents are dropped; instructions travel in SystemInstruction.
func buildContents(contents []core.Content) []*genai.Content {
	var out []*genai.Content
	for _, c := range contents {
		switch c.Role {
		case core.RoleSystem:
			continue
		case core.RoleAssistant:
			var parts []*genai.Part
			for _, p := range c.Parts {
				switch part := p.(type) {
				case core.TextPart:
					if part.Text != "" {
						parts = append(parts, genai.NewPartFromText(part.Text))
					}
				case core.FunctionCallPart:
					args := map[string]any{}
					if part.FunctionCall.Arguments != "" {
						_ = json.Unmarshal([]byte(part.FunctionCall.Arguments), &args)
					}
					parts = append(parts, &genai.Part{FunctionCall: &genai.FunctionCall{
						ID:   part.FunctionCall.ID,
						Name: part.FunctionCall.Name,
						Args: args,
					}})
				}
			}
			if len(parts) > 0 {
				out = append(out, genai.NewContentFromParts(parts, genai.RoleModel))
			}
		case core.RoleTool:
			var parts []*genai.Part
			for _, p := range c.Parts {
				fr, ok := p.(core.FunctionResponsePart)
				if !ok {
					continue
				}
				resp := map[string]any{"output": fr.FunctionResponse.Response}
				if fr.FunctionResponse.Error != "" {
					resp = map[string]any{"error": fr.FunctionResponse.Error}
				}
				parts = append(parts, &genai.Part{FunctionResponse: &genai.FunctionResponse{
					ID:       fr.FunctionResponse.ID,
					Name:     fr.FunctionResponse.Name,
					Response: resp,
				}})
			}
			if len(parts) > 0 {
				out = append(out, genai.NewContentFromParts(parts, genai.RoleUser))
			}
		default:
			if text := c.Text(); text != "" {
				out = append(out, genai.NewContentFromText(text, genai.RoleUser))
			}
		}
	}
	return out
}

func buildDeclarations(tools []model.ToolDefinition) []*genai.FunctionDeclaration {
	decls := make([]*genai.FunctionDeclaration, len(tools))
	for i, tool := range tools {
		decls[i] = &genai.FunctionDeclaration{
			Name:                 tool.Name,
			Description:          tool.Description,
			ParametersJsonSchema: tool.Parameters,
		}
	}
	return decls
}

// wrapError normalizes genai API errors into *model.APIError.
func wrapError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &model.APIError{Provider: "gemini", StatusCode: apiErr.Code, Err: err}
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) {
		return &model.APIError{Provider: "gemini", StatusCode: apiErrPtr.Code, Err: err}
	}
	return fmt.Errorf("gemini api error: %w", err)
}

// Info returns metadata describing this Gemini model implementation.
func (m *Model) Info() model.Info {
	return model.Info{
		Name:          m.opts.Model,
		Provider:      "gemini",
		SupportsTools: true,
	}
}
