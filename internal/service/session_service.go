package service

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/agentswarm/agentswarm-go/internal/model"
)

// SessionService tracks connected websocket sessions by user so assistant
// replies can be pushed live. At most one session per user; a new
// connection replaces the old one.
type SessionService struct {
	sessions map[string]*model.UserSession
	mu       sync.RWMutex
	logger   *zap.Logger
}

// NewSessionService creates the session registry.
func NewSessionService(logger *zap.Logger) *SessionService {
	return &SessionService{
		sessions: make(map[string]*model.UserSession),
		logger:   logger,
	}
}

// Register adds a session, closing any previous one for the same user.
func (s *SessionService) Register(session *model.UserSession) {
	s.mu.Lock()
	old := s.sessions[session.UserID]
	s.sessions[session.UserID] = session
	s.mu.Unlock()

	if old != nil {
		_ = old.Conn.Close()
	}

	s.logger.Info("websocket session registered",
		zap.String("user_id", session.UserID),
		zap.String("session_id", session.SessionID))
}

// Unregister removes a session if it is still the active one for the user.
func (s *SessionService) Unregister(session *model.UserSession) {
	s.mu.Lock()
	if current, ok := s.sessions[session.UserID]; ok && current.SessionID == session.SessionID {
		delete(s.sessions, session.UserID)
	}
	s.mu.Unlock()

	s.logger.Info("websocket session closed",
		zap.String("user_id", session.UserID),
		zap.String("session_id", session.SessionID))
}

// SendToUser pushes a JSON payload to the user's session, if connected.
func (s *SessionService) SendToUser(userID string, payload any) error {
	s.mu.RLock()
	session, ok := s.sessions[userID]
	s.mu.RUnlock()

	if !ok {
		return fmt.Errorf("no active session for user %s", userID)
	}
	return session.WriteMessage(payload)
}

// OnlineCount reports the number of connected sessions.
func (s *SessionService) OnlineCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// StartCleanup sweeps dead sessions periodically until stop is closed.
func (s *SessionService) StartCleanup(interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.sweep()
			case <-stop:
				return
			}
		}
	}()
}

func (s *SessionService) sweep() {
	s.mu.Lock()
	var dead []*model.UserSession
	for userID, session := range s.sessions {
		session.IncrementMissedBeats()
		if session.ShouldBeCleaned() {
			delete(s.sessions, userID)
			dead = append(dead, session)
		}
	}
	s.mu.Unlock()

	for _, session := range dead {
		_ = session.Conn.Close()
		s.logger.Info("stale websocket session cleaned",
			zap.String("user_id", session.UserID),
			zap.String("session_id", session.SessionID))
	}
}
