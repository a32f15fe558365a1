package memory

import (
	"context"
	"sync"

	"quiz-ledger-service/internal/domain"
)

// LedgerStore keeps ledgers and attempt facts in process memory.
type LedgerStore struct {
	mu      sync.RWMutex
	ledgers map[string]domain.Ledger
	facts   map[string][]domain.AttemptFact
}

func NewLedgerStore() *LedgerStore {
	return &LedgerStore{
		ledgers: make(map[string]domain.Ledger),
		facts:   make(map[string][]domain.AttemptFact),
	}
}

func (s *LedgerStore) GetLedger(_ context.Context, studentID, quizID string) (domain.Ledger, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if l, ok := s.ledgers[ledgerKey(studentID, quizID)]; ok {
		return l.Clone(), nil
	}
	return domain.NewLedger(studentID, quizID), nil
}

func (s *LedgerStore) CommitAttempt(_ context.Context, expectedAttempts int, l domain.Ledger, fact domain.AttemptFact) error {
	key := ledgerKey(l.StudentID, l.QuizID)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ledgers[key].AttemptsUsed != expectedAttempts {
		return domain.ErrConcurrentSubmission
	}
	s.ledgers[key] = l.Clone()
	s.facts[fact.QuizID] = append(s.facts[fact.QuizID], fact)
	return nil
}

func (s *LedgerStore) ListFacts(_ context.Context, quizID string) ([]domain.AttemptFact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	facts := s.facts[quizID]
	out := make([]domain.AttemptFact, len(facts))
	copy(out, facts)
	return out, nil
}

// AppendFact records a fact without touching any ledger. Used to load facts
// imported from elsewhere, including malformed legacy ones.
func (s *LedgerStore) AppendFact(fact domain.AttemptFact) {
	s.mu.Lock()
	s.facts[fact.QuizID] = append(s.facts[fact.QuizID], fact)
	s.mu.Unlock()
}

func ledgerKey(studentID, quizID string) string {
	return quizID + "/" + studentID
}
