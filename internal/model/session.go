package model

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// UserSession a connected websocket session for one user. Assistant
// replies are pushed here when the user happens to be connected.
type UserSession struct {
	UserID        string
	SessionID     string
	Conn          *websocket.Conn
	ClientIP      string
	LastHeartbeat time.Time
	MissedBeats   int
	mu            sync.Mutex
}

// UpdateHeartbeat resets the heartbeat clock.
func (s *UserSession) UpdateHeartbeat() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.LastHeartbeat = time.Now()
	s.MissedBeats = 0
}

// IncrementMissedBeats records a missed heartbeat.
func (s *UserSession) IncrementMissedBeats() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.MissedBeats++
}

// ShouldBeCleaned reports whether the session is considered dead.
func (s *UserSession) ShouldBeCleaned() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.MissedBeats >= 3
}

// WriteMessage writes a JSON frame to the socket. Safe for concurrent use.
func (s *UserSession) WriteMessage(message any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Conn.WriteJSON(message)
}
