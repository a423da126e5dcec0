package pev

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionsGeneratesID(t *testing.T) {
	s := NewSessions(10)
	id, turns := s.Touch("")
	require.NotEmpty(t, id)
	_, err := uuid.Parse(id)
	assert.NoError(t, err)
	assert.Equal(t, 1, turns)
}

func TestSessionsTurnCount(t *testing.T) {
	s := NewSessions(10)
	id, _ := s.Touch("")
	for want := 2; want <= 5; want++ {
		got, turns := s.Touch(id)
		assert.Equal(t, id, got)
		assert.Equal(t, want, turns)
	}
	assert.Equal(t, 1, s.Len())
}

func TestSessionsEvictsLeastRecentlyUsed(t *testing.T) {
	s := NewSessions(2)
	a, _ := s.Touch("")
	b, _ := s.Touch("")

	// Touch a so b becomes the eviction candidate.
	s.Touch(a)
	s.Touch("")
	assert.Equal(t, 2, s.Len())

	_, turns := s.Touch(a)
	assert.Equal(t, 3, turns, "a survived eviction")
	_, turns = s.Touch(b)
	assert.Equal(t, 1, turns, "b was evicted and restarted")
}
