package session

import (
	"errors"
	"sync"

	"github.com/hupe1980/studymesh/core"
)

// ErrEmptyID is returned for operations without a session id.
var ErrEmptyID = errors.New("session: empty id")

// InMemoryStore is a volatile SessionStore storing sessions in a process
// local map. It is safe for concurrent access. Returned sessions are clones,
// so callers cannot mutate stored history.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*core.Session
	maxTurns int
}

// Option configures an InMemoryStore.
type Option func(*InMemoryStore)

// WithMaxTurns keeps only the most recent n turns per session. n <= 0 keeps
// everything.
func WithMaxTurns(n int) Option {
	return func(s *InMemoryStore) { s.maxTurns = n }
}

// NewInMemoryStore constructs an empty in-memory session store.
func NewInMemoryStore(opts ...Option) *InMemoryStore {
	s := &InMemoryStore{sessions: make(map[string]*core.Session)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns a clone of the session, or a fresh empty session when the id
// is unknown. Unknown ids are not stored until Append.
func (s *InMemoryStore) Get(id string) (*core.Session, error) {
	if id == "" {
		return nil, ErrEmptyID
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if sess, ok := s.sessions[id]; ok {
		return sess.Clone(), nil
	}
	return core.NewSession(id), nil
}

// Append adds turns to the session, creating it lazily.
func (s *InMemoryStore) Append(id string, turns ...core.Content) error {
	if id == "" {
		return ErrEmptyID
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		sess = core.NewSession(id)
		s.sessions[id] = sess
	}
	sess.Append(turns...)

	if s.maxTurns > 0 {
		if h := sess.History(); len(h) > s.maxTurns {
			trimmed := core.NewSession(id)
			trimmed.Created = sess.Created
			trimmed.Append(h[len(h)-s.maxTurns:]...)
			s.sessions[id] = trimmed
		}
	}
	return nil
}

// Delete removes a session. Unknown ids are ignored.
func (s *InMemoryStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}

// Len returns the number of stored sessions.
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
