package session

import (
	"fmt"
	"sync"
	"testing"

	"github.com/hupe1980/studymesh/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ core.SessionStore = (*InMemoryStore)(nil)

func TestInMemoryStore_AppendAndGet(t *testing.T) {
	s := NewInMemoryStore()

	sess, err := s.Get("s1")
	require.NoError(t, err)
	assert.Empty(t, sess.History())
	assert.Equal(t, 0, s.Len())

	require.NoError(t, s.Append("s1",
		core.NewTextContent(core.RoleUser, "q1"),
		core.NewTextContent(core.RoleAssistant, "a1"),
	))
	require.NoError(t, s.Append("s1", core.NewTextContent(core.RoleUser, "q2")))

	sess, err = s.Get("s1")
	require.NoError(t, err)
	h := sess.History()
	require.Len(t, h, 3)
	assert.Equal(t, "q1", h[0].Text())
	assert.Equal(t, "q2", h[2].Text())
	assert.Equal(t, 1, s.Len())
}

func TestInMemoryStore_ReturnsClones(t *testing.T) {
	s := NewInMemoryStore()
	require.NoError(t, s.Append("s1", core.NewTextContent(core.RoleUser, "q1")))

	sess, err := s.Get("s1")
	require.NoError(t, err)
	sess.Append(core.NewTextContent(core.RoleUser, "local only"))

	again, err := s.Get("s1")
	require.NoError(t, err)
	assert.Len(t, again.History(), 1)
}

func TestInMemoryStore_MaxTurns(t *testing.T) {
	s := NewInMemoryStore(WithMaxTurns(2))
	for i := 0; i < 5; i++ {
		require.NoError(t, s.Append("s1", core.NewTextContent(core.RoleUser, fmt.Sprintf("q%d", i))))
	}
	sess, err := s.Get("s1")
	require.NoError(t, err)
	h := sess.History()
	require.Len(t, h, 2)
	assert.Equal(t, "q3", h[0].Text())
	assert.Equal(t, "q4", h[1].Text())
}

func TestInMemoryStore_DeleteAndEmptyID(t *testing.T) {
	s := NewInMemoryStore()
	require.NoError(t, s.Append("s1", core.NewTextContent(core.RoleUser, "q")))
	require.NoError(t, s.Delete("s1"))
	require.NoError(t, s.Delete("missing"))
	assert.Equal(t, 0, s.Len())

	_, err := s.Get("")
	assert.ErrorIs(t, err, ErrEmptyID)
	assert.ErrorIs(t, s.Append(""), ErrEmptyID)
}

func TestInMemoryStore_Concurrent(t *testing.T) {
	s := NewInMemoryStore()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = s.Append("shared", core.NewTextContent(core.RoleUser, fmt.Sprint(i)))
		}(i)
	}
	wg.Wait()

	sess, err := s.Get("shared")
	require.NoError(t, err)
	assert.Len(t, sess.History(), 20)
}
