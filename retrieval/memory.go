package retrieval

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"unicode"
)

// MemoryRetriever is a naive process-local retriever. Documents are ranked by
// the fraction of distinct query terms they contain; ties keep insertion
// order. Suitable for tests, demos and small corpora.
//
// Concurrency: protected by RWMutex.
type MemoryRetriever struct {
	mu   sync.RWMutex
	docs []storedDoc
}

type storedDoc struct {
	Document
	terms map[string]struct{}
}

// NewMemoryRetriever creates a retriever seeded with docs.
func NewMemoryRetriever(docs ...Document) *MemoryRetriever {
	m := &MemoryRetriever{}
	_ = m.Index(context.Background(), docs)
	return m
}

// Index appends documents. Missing ids are generated.
func (m *MemoryRetriever) Index(ctx context.Context, docs []Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range docs {
		if d.ID == "" {
			d.ID = fmt.Sprintf("doc_%d", len(m.docs))
		}
		d.Metadata = copyMetadata(d.Metadata)
		m.docs = append(m.docs, storedDoc{Document: d, terms: termSet(d.Text)})
	}
	return nil
}

// Len returns the number of stored documents.
func (m *MemoryRetriever) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.docs)
}

// Search implements Retriever. Documents sharing no term with query are not
// returned.
func (m *MemoryRetriever) Search(ctx context.Context, query string, k int) ([]Fragment, error) {
	if err := checkK(k); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	qterms := termSet(query)
	if len(qterms) == 0 {
		return []Fragment{}, nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	type scored struct {
		idx   int
		score float64
	}
	var hits []scored
	for i, d := range m.docs {
		matched := 0
		for t := range qterms {
			if _, ok := d.terms[t]; ok {
				matched++
			}
		}
		if matched > 0 {
			hits = append(hits, scored{idx: i, score: float64(matched) / float64(len(qterms))})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score > hits[j].score })

	if len(hits) > k {
		hits = hits[:k]
	}
	out := make([]Fragment, len(hits))
	for i, h := range hits {
		d := m.docs[h.idx]
		out[i] = Fragment{ID: d.ID, Text: d.Text, Score: h.score, Metadata: copyMetadata(d.Metadata)}
	}
	return out, nil
}

func termSet(text string) map[string]struct{} {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		if len(f) > 1 {
			set[f] = struct{}{}
		}
	}
	return set
}
