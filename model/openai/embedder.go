package openai

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// EmbedderOptions configures the embeddings client.
type EmbedderOptions struct {
	Model         openai.EmbeddingModel
	Dimensions    int64
	APIKey        string
	BaseURL       string
	ClientOptions []option.RequestOption
}

// Embedder produces query vectors with the OpenAI embeddings endpoint.
type Embedder struct {
	client *openai.Client
	opts   EmbedderOptions
}

// NewEmbedder creates an Embedder. Without an explicit APIKey the SDK reads
// OPENAI_API_KEY from the environment.
func NewEmbedder(optFns ...func(o *EmbedderOptions)) *Embedder {
	opts := EmbedderOptions{Model: openai.EmbeddingModelTextEmbedding3Small}
	for _, fn := range optFns {
		fn(&opts)
	}

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}
	if opts.BaseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(opts.BaseURL))
	}
	clientOpts = append(clientOpts, opts.ClientOptions...)

	client := openai.NewClient(clientOpts...)
	return &Embedder{client: &client, opts: opts}
}

// Embed returns the embedding of text.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	params := openai.EmbeddingNewParams{
		Model: e.opts.Model,
		Input: openai.EmbeddingNewParamsInputUnion{OfString: openai.String(text)},
	}
	if e.opts.Dimensions > 0 {
		params.Dimensions = openai.Int(e.opts.Dimensions)
	}

	resp, err := e.client.Embeddings.New(ctx, params)
	if err != nil {
		return nil, wrapError(err)
	}
	if len(resp.Data) == 0 {
		return nil, errors.New("openai embeddings: empty response")
	}

	vec := make([]float32, len(resp.Data[0].Embedding))
	for i, v := range resp.Data[0].Embedding {
		vec[i] = float32(v)
	}
	if len(vec) == 0 {
		return nil, fmt.Errorf("openai embeddings: empty vector for model %s", e.opts.Model)
	}
	return vec, nil
}
