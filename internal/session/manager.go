package session

import (
	"log/slog"
	"sync"
)

// Manager tracks all active call sessions. Safe for concurrent use.
type Manager struct {
	log *slog.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager creates an empty Manager.
func NewManager(log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{
		log:      log,
		sessions: make(map[string]*Session),
	}
}

// Create registers a new session for an incoming call. An existing session
// with the same call ID is replaced.
func (m *Manager) Create(callID string, line Line, opts ...Option) *Session {
	opts = append([]Option{WithLogger(m.log)}, opts...)
	s := New(callID, line, opts...)

	m.mu.Lock()
	m.sessions[callID] = s
	m.mu.Unlock()

	m.log.Info("session created", slog.String("call_id", callID))
	return s
}

// Get returns the session for a call ID.
func (m *Manager) Get(callID string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[callID]
	return s, ok
}

// Remove ends and drops a session, returning it for CDR writing.
func (m *Manager) Remove(callID string) (*Session, bool) {
	m.mu.Lock()
	s, ok := m.sessions[callID]
	delete(m.sessions, callID)
	m.mu.Unlock()
	if !ok {
		return nil, false
	}

	s.mu.Lock()
	s.active = false
	s.mu.Unlock()
	s.metrics.End()
	s.history.Clear()

	m.log.Info("session removed",
		slog.String("call_id", callID),
		slog.Duration("duration", s.metrics.Snapshot().Duration()),
	)
	return s, true
}

// ActiveCount returns the number of tracked sessions.
func (m *Manager) ActiveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
