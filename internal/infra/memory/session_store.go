package memory

import (
	"context"
	"slices"
	"sync"

	"quiz-ledger-service/internal/domain"
)

// SessionStore is an in-memory implementation of app.SessionRepository.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]domain.AttemptSession
}

func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[string]domain.AttemptSession)}
}

func (s *SessionStore) Save(_ context.Context, session domain.AttemptSession) error {
	session.Selected = slices.Clone(session.Selected)
	s.mu.Lock()
	s.sessions[ledgerKey(session.StudentID, session.QuizID)] = session
	s.mu.Unlock()
	return nil
}

func (s *SessionStore) Get(_ context.Context, studentID, quizID string) (domain.AttemptSession, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[ledgerKey(studentID, quizID)]
	if !ok {
		return domain.AttemptSession{}, false, nil
	}
	session.Selected = slices.Clone(session.Selected)
	return session, true, nil
}

func (s *SessionStore) Update(_ context.Context, session domain.AttemptSession) (bool, error) {
	key := ledgerKey(session.StudentID, session.QuizID)
	session.Selected = slices.Clone(session.Selected)
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.sessions[key]
	if !ok || !current.StartedAt.Equal(session.StartedAt) {
		return false, nil
	}
	s.sessions[key] = session
	return true, nil
}

func (s *SessionStore) Delete(_ context.Context, studentID, quizID string) (bool, error) {
	key := ledgerKey(studentID, quizID)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[key]; !ok {
		return false, nil
	}
	delete(s.sessions, key)
	return true, nil
}
