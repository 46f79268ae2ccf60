package retrieval

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidK is returned when a search asks for fewer than one fragment.
var ErrInvalidK = errors.New("retrieval: k must be >= 1")

// Fragment is one retrieved passage.
type Fragment struct {
	ID       string         `json:"id,omitempty"`
	Text     string         `json:"text"`
	Score    float64        `json:"score"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Document is a passage to be indexed.
type Document struct {
	ID       string
	Text     string
	Metadata map[string]any
}

// Retriever returns at most k fragments relevant to query, best first.
type Retriever interface {
	Search(ctx context.Context, query string, k int) ([]Fragment, error)
}

// RetrieverFunc adapts a function to the Retriever interface.
type RetrieverFunc func(ctx context.Context, query string, k int) ([]Fragment, error)

// Search implements Retriever.
func (f RetrieverFunc) Search(ctx context.Context, query string, k int) ([]Fragment, error) {
	return f(ctx, query, k)
}

// Indexer is implemented by retrievers that accept documents directly.
type Indexer interface {
	Index(ctx context.Context, docs []Document) error
}

// JoinTexts builds a context block from fragments in the order given,
// separated by a blank line.
func JoinTexts(fragments []Fragment) string {
	texts := make([]string, len(fragments))
	for i, f := range fragments {
		texts[i] = f.Text
	}
	return strings.Join(texts, "\n\n")
}

func checkK(k int) error {
	if k < 1 {
		return fmt.Errorf("%w (got %d)", ErrInvalidK, k)
	}
	return nil
}

func copyMetadata(md map[string]any) map[string]any {
	if md == nil {
		return nil
	}
	out := make(map[string]any, len(md))
	for k, v := range md {
		out[k] = v
	}
	return out
}
