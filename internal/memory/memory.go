// Package memory holds per-session conversation history for the lifetime of
// the process. Sessions are created implicitly on first append and isolated
// from one another; nothing here is durable across restarts.
package memory

import "sync"

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is one conversation entry in a session's append-only log.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Store is the injectable session-store abstraction. Implementations must
// keep sessions isolated and Recent must return a snapshot, never a view
// into the live log.
type Store interface {
	Append(sessionID, role, content string)
	Recent(sessionID string, n int) []Turn
	Reset(sessionID string)
}

// InMemoryStore is the process-lifetime Store used in production.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[string][]Turn
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{sessions: make(map[string][]Turn)}
}

func (s *InMemoryStore) Append(sessionID, role, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sessionID] = append(s.sessions[sessionID], Turn{Role: role, Content: content})
}

// Recent returns the last n turns in chronological order. A missing session
// or non-positive n yields an empty slice.
func (s *InMemoryStore) Recent(sessionID string, n int) []Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()

	turns := s.sessions[sessionID]
	if n <= 0 || len(turns) == 0 {
		return nil
	}
	if n > len(turns) {
		n = len(turns)
	}

	window := make([]Turn, n)
	copy(window, turns[len(turns)-n:])
	return window
}

// Reset discards the session's turns. Resetting an unknown session is a
// no-op.
func (s *InMemoryStore) Reset(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
}
