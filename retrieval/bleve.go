package retrieval

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/lang/en"
	"github.com/blevesearch/bleve/v2/mapping"
)

const (
	bleveTextField = "text"
	bleveMetaField = "metadata"
)

// BleveRetriever is a full-text retriever over a bleve index. Passages are
// analysed with the English analyzer and searched with a match query.
type BleveRetriever struct {
	index bleve.Index
	seq   atomic.Int64
}

// NewBleveMemory creates a retriever over an in-memory index.
func NewBleveMemory() (*BleveRetriever, error) {
	idx, err := bleve.NewMemOnly(newIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("create bleve memory index: %w", err)
	}
	return &BleveRetriever{index: idx}, nil
}

// OpenBleve opens the index at path, creating it when it does not exist.
func OpenBleve(path string) (*BleveRetriever, error) {
	idx, err := bleve.Open(path)
	if errors.Is(err, bleve.ErrorIndexPathDoesNotExist) {
		idx, err = bleve.New(path, newIndexMapping())
	}
	if err != nil {
		return nil, fmt.Errorf("open bleve index %s: %w", path, err)
	}

	r := &BleveRetriever{index: idx}
	if n, err := idx.DocCount(); err == nil {
		r.seq.Store(int64(n))
	}
	return r, nil
}

// NewBleveFromIndex wraps an existing index.
func NewBleveFromIndex(idx bleve.Index) *BleveRetriever {
	return &BleveRetriever{index: idx}
}

func newIndexMapping() *mapping.IndexMappingImpl {
	m := bleve.NewIndexMapping()
	m.DefaultAnalyzer = en.AnalyzerName

	textField := bleve.NewTextFieldMapping()
	textField.Analyzer = en.AnalyzerName
	textField.Store = true

	doc := bleve.NewDocumentMapping()
	doc.AddFieldMappingsAt(bleveTextField, textField)
	m.DefaultMapping = doc
	return m
}

// Index adds documents in a single batch. Missing ids are generated.
func (b *BleveRetriever) Index(ctx context.Context, docs []Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	batch := b.index.NewBatch()
	for _, d := range docs {
		id := d.ID
		if id == "" {
			id = fmt.Sprintf("doc_%d", b.seq.Add(1)-1)
		}
		body := map[string]any{bleveTextField: d.Text}
		if len(d.Metadata) > 0 {
			body[bleveMetaField] = d.Metadata
		}
		if err := batch.Index(id, body); err != nil {
			return fmt.Errorf("index document %s: %w", id, err)
		}
	}
	if err := b.index.Batch(batch); err != nil {
		return fmt.Errorf("apply bleve batch: %w", err)
	}
	return nil
}

// Search implements Retriever.
func (b *BleveRetriever) Search(ctx context.Context, query string, k int) ([]Fragment, error) {
	if err := checkK(k); err != nil {
		return nil, err
	}
	if strings.TrimSpace(query) == "" {
		return []Fragment{}, nil
	}

	q := bleve.NewMatchQuery(query)
	q.SetField(bleveTextField)

	req := bleve.NewSearchRequestOptions(q, k, 0, false)
	req.Fields = []string{"*"}

	res, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("bleve search: %w", err)
	}

	out := make([]Fragment, 0, len(res.Hits))
	for _, hit := range res.Hits {
		text, _ := hit.Fields[bleveTextField].(string)
		out = append(out, Fragment{
			ID:       hit.ID,
			Text:     text,
			Score:    hit.Score,
			Metadata: hitMetadata(hit.Fields),
		})
	}
	if len(out) > k {
		out = out[:k]
	}
	return out, nil
}

// DocCount returns the number of indexed documents.
func (b *BleveRetriever) DocCount() (uint64, error) { return b.index.DocCount() }

// Close closes the underlying index.
func (b *BleveRetriever) Close() error { return b.index.Close() }

func hitMetadata(fields map[string]any) map[string]any {
	prefix := bleveMetaField + "."
	keys := make([]string, 0, len(fields))
	for k := range fields {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return nil
	}
	sort.Strings(keys)
	md := make(map[string]any, len(keys))
	for _, k := range keys {
		md[strings.TrimPrefix(k, prefix)] = fields[k]
	}
	return md
}
