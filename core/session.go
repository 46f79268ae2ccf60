package core

import (
	"sync"
	"time"
)

// Session is an in-process conversation container. Each completed request
// appends its question/answer turns so follow-up questions within the same
// session can carry history. It is safe for concurrent access.
type Session struct {
	ID      string    `json:"id"`
	Turns   []Content `json:"turns"`
	Created time.Time `json:"created"`
	Updated time.Time `json:"updated"`
	mu      sync.RWMutex
}

// NewSession creates a new empty session with the given ID.
func NewSession(id string) *Session {
	now := time.Now()
	return &Session{ID: id, Turns: []Content{}, Created: now, Updated: now}
}

// Append adds turns to the history updating the Updated timestamp.
func (s *Session) Append(turns ...Content) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Turns = append(s.Turns, turns...)
	s.Updated = time.Now()
}

// History returns a defensive copy of the recorded turns.
func (s *Session) History() []Content {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Content, len(s.Turns))
	copy(out, s.Turns)
	return out
}

// Clone returns a deep copy of the session safe for independent mutation.
func (s *Session) Clone() *Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	clone := &Session{ID: s.ID, Turns: make([]Content, len(s.Turns)), Created: s.Created, Updated: s.Updated}
	copy(clone.Turns, s.Turns)
	return clone
}

// SessionStore keeps conversation history between requests of one session.
// Implementations are process local; durability across restarts is not part
// of the contract.
type SessionStore interface {
	Get(id string) (*Session, error)
	Append(id string, turns ...Content) error
	Delete(id string) error
}
