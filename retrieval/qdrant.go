package retrieval

import (
	"context"
	"errors"
	"fmt"

	"github.com/qdrant/go-client/qdrant"
)

// Embedder turns text into a dense vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// PointQuerier is the part of the Qdrant client used for search.
// *qdrant.Client satisfies it.
type PointQuerier interface {
	Query(ctx context.Context, req *qdrant.QueryPoints) ([]*qdrant.ScoredPoint, error)
}

// QdrantOptions configures a QdrantRetriever.
type QdrantOptions struct {
	// Host and Port address the gRPC endpoint.
	Host   string
	Port   int
	UseTLS bool
	APIKey string

	Collection string
	// TextKey is the payload key holding the passage text.
	TextKey string

	// Client replaces the gRPC client, mainly for tests.
	Client PointQuerier
}

// QdrantRetriever searches a Qdrant collection with the official gRPC
// client. The query is embedded with the configured Embedder; the remaining
// payload keys become fragment metadata.
type QdrantRetriever struct {
	embedder Embedder
	client   PointQuerier
	closer   func() error
	opts     QdrantOptions
}

// NewQdrantRetriever creates a Qdrant retriever. The connection is
// established lazily on the first search.
func NewQdrantRetriever(embedder Embedder, optFns ...func(o *QdrantOptions)) (*QdrantRetriever, error) {
	opts := QdrantOptions{
		Host:       "localhost",
		Port:       6334,
		Collection: "lms_collection",
		TextKey:    "page_content",
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if embedder == nil {
		return nil, errors.New("qdrant: embedder is required")
	}
	if opts.Collection == "" {
		return nil, errors.New("qdrant: collection is required")
	}

	r := &QdrantRetriever{embedder: embedder, client: opts.Client, opts: opts}
	if r.client == nil {
		c, err := qdrant.NewClient(&qdrant.Config{
			Host:                   opts.Host,
			Port:                   opts.Port,
			APIKey:                 opts.APIKey,
			UseTLS:                 opts.UseTLS,
			SkipCompatibilityCheck: true,
		})
		if err != nil {
			return nil, fmt.Errorf("qdrant: %w", err)
		}
		r.client = c
		r.closer = c.Close
	}
	return r, nil
}

// Close releases the gRPC connection when the retriever created it.
func (q *QdrantRetriever) Close() error {
	if q.closer == nil {
		return nil
	}
	return q.closer()
}

// Search implements Retriever.
func (q *QdrantRetriever) Search(ctx context.Context, query string, k int) ([]Fragment, error) {
	if err := checkK(k); err != nil {
		return nil, err
	}

	vector, err := q.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	points, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: q.opts.Collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(uint64(k)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant search: %w", err)
	}

	if len(points) > k {
		points = points[:k]
	}
	fragments := make([]Fragment, 0, len(points))
	for _, p := range points {
		var md map[string]any
		for key, v := range p.GetPayload() {
			if key == q.opts.TextKey {
				continue
			}
			if md == nil {
				md = map[string]any{}
			}
			md[key] = valueOf(v)
		}
		fragments = append(fragments, Fragment{
			ID:       pointID(p.GetId()),
			Text:     p.GetPayload()[q.opts.TextKey].GetStringValue(),
			Score:    float64(p.GetScore()),
			Metadata: md,
		})
	}
	return fragments, nil
}

func pointID(id *qdrant.PointId) string {
	if id == nil {
		return ""
	}
	if u := id.GetUuid(); u != "" {
		return u
	}
	return fmt.Sprint(id.GetNum())
}

// valueOf converts a payload value into plain Go values.
func valueOf(v *qdrant.Value) any {
	switch kind := v.GetKind().(type) {
	case *qdrant.Value_StringValue:
		return kind.StringValue
	case *qdrant.Value_IntegerValue:
		return kind.IntegerValue
	case *qdrant.Value_DoubleValue:
		return kind.DoubleValue
	case *qdrant.Value_BoolValue:
		return kind.BoolValue
	case *qdrant.Value_StructValue:
		out := make(map[string]any, len(kind.StructValue.GetFields()))
		for k, f := range kind.StructValue.GetFields() {
			out[k] = valueOf(f)
		}
		return out
	case *qdrant.Value_ListValue:
		out := make([]any, 0, len(kind.ListValue.GetValues()))
		for _, e := range kind.ListValue.GetValues() {
			out = append(out, valueOf(e))
		}
		return out
	default:
		return nil
	}
}
