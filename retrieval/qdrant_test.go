package retrieval

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/qdrant/go-client/qdrant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

type fixedEmbedder struct {
	vec   []float32
	err   error
	calls int
}

func (e *fixedEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	e.calls++
	return e.vec, e.err
}

type fakeQuerier struct {
	req    *qdrant.QueryPoints
	points []*qdrant.ScoredPoint
	err    error
}

func (f *fakeQuerier) Query(_ context.Context, req *qdrant.QueryPoints) ([]*qdrant.ScoredPoint, error) {
	f.req = req
	return f.points, f.err
}

func scored(id *qdrant.PointId, score float32, payload map[string]any) *qdrant.ScoredPoint {
	return &qdrant.ScoredPoint{Id: id, Score: score, Payload: qdrant.NewValueMap(payload)}
}

func TestQdrantRetriever_Search(t *testing.T) {
	fq := &fakeQuerier{points: []*qdrant.ScoredPoint{
		scored(qdrant.NewIDNum(7), 0.91, map[string]any{
			"page_content": "Force equals mass times acceleration.",
			"page":         12,
			"tags":         []any{"physics", "newton"},
		}),
		scored(qdrant.NewIDUUID("b1"), 0.75, map[string]any{"page_content": "Inertia resists change."}),
	}}
	emb := &fixedEmbedder{vec: []float32{0.1, 0.2}}
	r, err := NewQdrantRetriever(emb, func(o *QdrantOptions) { o.Client = fq })
	require.NoError(t, err)

	frags, err := r.Search(context.Background(), "newton second law", 3)
	require.NoError(t, err)
	require.Len(t, frags, 2)

	assert.Equal(t, "lms_collection", fq.req.GetCollectionName())
	assert.Equal(t, uint64(3), fq.req.GetLimit())
	assert.True(t, fq.req.GetWithPayload().GetEnable())
	assert.Equal(t, []float32{0.1, 0.2}, fq.req.GetQuery().GetNearest().GetDense().GetData())

	assert.Equal(t, "7", frags[0].ID)
	assert.Equal(t, "Force equals mass times acceleration.", frags[0].Text)
	assert.InDelta(t, 0.91, frags[0].Score, 1e-6)
	assert.EqualValues(t, 12, frags[0].Metadata["page"])
	assert.Equal(t, []any{"physics", "newton"}, frags[0].Metadata["tags"])
	assert.Equal(t, "b1", frags[1].ID)
	assert.Nil(t, frags[1].Metadata)
}

func TestQdrantRetriever_ClampsToK(t *testing.T) {
	fq := &fakeQuerier{}
	for i := range 5 {
		fq.points = append(fq.points, scored(qdrant.NewIDNum(uint64(i)), 1, map[string]any{"page_content": "x"}))
	}
	r, err := NewQdrantRetriever(&fixedEmbedder{vec: []float32{1}}, func(o *QdrantOptions) { o.Client = fq })
	require.NoError(t, err)

	frags, err := r.Search(context.Background(), "q", 2)
	require.NoError(t, err)
	assert.Len(t, frags, 2)

	_, err = r.Search(context.Background(), "q", 0)
	assert.ErrorIs(t, err, ErrInvalidK)
}

func TestQdrantRetriever_QueryError(t *testing.T) {
	boom := errors.New("collection not found")
	r, err := NewQdrantRetriever(&fixedEmbedder{vec: []float32{1}}, func(o *QdrantOptions) {
		o.Client = &fakeQuerier{err: boom}
	})
	require.NoError(t, err)

	_, err = r.Search(context.Background(), "q", 3)
	assert.ErrorIs(t, err, boom)
}

func TestQdrantRetriever_EmbedError(t *testing.T) {
	boom := errors.New("embedding quota")
	fq := &fakeQuerier{}
	r, err := NewQdrantRetriever(&fixedEmbedder{err: boom}, func(o *QdrantOptions) { o.Client = fq })
	require.NoError(t, err)

	_, err = r.Search(context.Background(), "q", 3)
	assert.ErrorIs(t, err, boom)
	assert.Nil(t, fq.req)
}

func TestNewQdrantRetriever_Validation(t *testing.T) {
	_, err := NewQdrantRetriever(nil)
	assert.Error(t, err)

	_, err = NewQdrantRetriever(&fixedEmbedder{}, func(o *QdrantOptions) { o.Collection = "" })
	assert.Error(t, err)
}

type pointsServer struct {
	qdrant.UnimplementedPointsServer
	apiKeys []string
}

func (s *pointsServer) Query(ctx context.Context, req *qdrant.QueryPoints) (*qdrant.QueryResponse, error) {
	if req.GetCollectionName() != "textbook" {
		return nil, status.Error(codes.NotFound, "collection not found")
	}
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		s.apiKeys = append(s.apiKeys, md.Get("api-key")...)
	}
	return &qdrant.QueryResponse{Result: []*qdrant.ScoredPoint{
		scored(qdrant.NewIDNum(1), 0.8, map[string]any{"page_content": "Cells are the unit of life."}),
	}}, nil
}

func TestQdrantRetriever_GRPC(t *testing.T) {
	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	ps := &pointsServer{}
	qdrant.RegisterPointsServer(srv, ps)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	dialer := grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
		return lis.DialContext(ctx)
	})
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:                   "localhost",
		Port:                   6334,
		APIKey:                 "secret",
		PoolSize:               1,
		SkipCompatibilityCheck: true,
		GrpcOptions:            []grpc.DialOption{dialer},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	r, err := NewQdrantRetriever(&fixedEmbedder{vec: []float32{0.3}}, func(o *QdrantOptions) {
		o.Collection = "textbook"
		o.Client = client
	})
	require.NoError(t, err)

	frags, err := r.Search(context.Background(), "what is a cell", 3)
	require.NoError(t, err)
	require.Len(t, frags, 1)
	assert.Equal(t, "Cells are the unit of life.", frags[0].Text)
	assert.Equal(t, []string{"secret"}, ps.apiKeys)

	missing, err := NewQdrantRetriever(&fixedEmbedder{vec: []float32{0.3}}, func(o *QdrantOptions) {
		o.Collection = "nope"
		o.Client = client
	})
	require.NoError(t, err)
	_, err = missing.Search(context.Background(), "q", 3)
	require.Error(t, err)
	assert.Equal(t, codes.NotFound, status.Code(err))
}
