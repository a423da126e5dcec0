package pev

import (
	"container/list"
	"sync"

	"github.com/google/uuid"
)

// Sessions tracks conversation sessions with LRU eviction. Session ids are
// caller-supplied or generated; each query bumps the session's turn count.
type Sessions struct {
	mu    sync.Mutex
	cap   int
	order *list.List
	byID  map[string]*list.Element
}

type session struct {
	id    string
	turns int
}

// NewSessions creates a session table holding at most capacity sessions.
func NewSessions(capacity int) *Sessions {
	if capacity <= 0 {
		capacity = 1000
	}
	return &Sessions{
		cap:   capacity,
		order: list.New(),
		byID:  make(map[string]*list.Element),
	}
}

// Touch records one turn for the session and returns its id and new turn
// count. An empty id starts a new session with a generated uuid. The least
// recently used session is evicted when the table is full.
func (s *Sessions) Touch(id string) (string, int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id == "" {
		id = uuid.NewString()
	}
	if el, ok := s.byID[id]; ok {
		sess := el.Value.(*session)
		sess.turns++
		s.order.MoveToFront(el)
		return sess.id, sess.turns
	}

	if s.order.Len() >= s.cap {
		oldest := s.order.Back()
		if oldest != nil {
			s.order.Remove(oldest)
			delete(s.byID, oldest.Value.(*session).id)
		}
	}
	sess := &session{id: id, turns: 1}
	s.byID[id] = s.order.PushFront(sess)
	return sess.id, sess.turns
}

// Len reports the number of tracked sessions.
func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.order.Len()
}
