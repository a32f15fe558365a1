package memory

import (
	"context"
	"sync"

	"quiz-ledger-service/internal/domain"
)

// Guard is a process-local submission lock keyed by (student, quiz).
type Guard struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func NewGuard() *Guard {
	return &Guard{held: make(map[string]struct{})}
}

func (g *Guard) Acquire(_ context.Context, studentID, quizID string) (func(), error) {
	key := ledgerKey(studentID, quizID)

	g.mu.Lock()
	defer g.mu.Unlock()
	if _, busy := g.held[key]; busy {
		return nil, domain.ErrConcurrentSubmission
	}
	g.held[key] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			delete(g.held, key)
			g.mu.Unlock()
		})
	}, nil
}
