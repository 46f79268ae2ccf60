package testutil

import (
	"context"
	"sync"

	"github.com/hupe1980/studymesh/retrieval"
)

// RetrieverCall records one Search invocation.
type RetrieverCall struct {
	Query string
	K     int
}

// RecordingRetriever returns canned fragments (or an error) and records every
// call so tests can assert how often and with which k retrieval happened.
type RecordingRetriever struct {
	mu        sync.Mutex
	fragments []retrieval.Fragment
	err       error
	calls     []RetrieverCall
}

// NewRecordingRetriever returns a retriever yielding fragments, truncated to k.
func NewRecordingRetriever(fragments ...retrieval.Fragment) *RecordingRetriever {
	return &RecordingRetriever{fragments: fragments}
}

// FailWith makes every subsequent Search return err (chainable).
func (r *RecordingRetriever) FailWith(err error) *RecordingRetriever {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
	return r
}

// Search implements retrieval.Retriever.
func (r *RecordingRetriever) Search(_ context.Context, query string, k int) ([]retrieval.Fragment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, RetrieverCall{Query: query, K: k})
	if r.err != nil {
		return nil, r.err
	}
	out := r.fragments
	if len(out) > k {
		out = out[:k]
	}
	cp := make([]retrieval.Fragment, len(out))
	copy(cp, out)
	return cp, nil
}

// Calls returns a copy of the recorded calls.
func (r *RecordingRetriever) Calls() []RetrieverCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]RetrieverCall, len(r.calls))
	copy(out, r.calls)
	return out
}
