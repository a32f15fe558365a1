package app

import (
	"sync"

	"quiz-ledger-service/internal/domain"
	"quiz-ledger-service/internal/observability"
)

// leaderboardHub fans leaderboard snapshots out to live subscribers per quiz.
type leaderboardHub struct {
	mu          sync.Mutex
	subscribers map[string]map[chan domain.Leaderboard]struct{}
}

func newLeaderboardHub() *leaderboardHub {
	return &leaderboardHub{subscribers: make(map[string]map[chan domain.Leaderboard]struct{})}
}

func (h *leaderboardHub) subscribe(quizID string, initial domain.Leaderboard) (<-chan domain.Leaderboard, func()) {
	ch := make(chan domain.Leaderboard, 8)
	ch <- initial

	h.mu.Lock()
	if h.subscribers[quizID] == nil {
		h.subscribers[quizID] = make(map[chan domain.Leaderboard]struct{})
	}
	h.subscribers[quizID][ch] = struct{}{}
	h.mu.Unlock()
	observability.LeaderboardListeners().Inc()

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		subs := h.subscribers[quizID]
		if _, ok := subs[ch]; !ok {
			return
		}
		delete(subs, ch)
		if len(subs) == 0 {
			delete(h.subscribers, quizID)
		}
		close(ch)
		observability.LeaderboardListeners().Dec()
	}
	return ch, cancel
}

func (h *leaderboardHub) watched(quizID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers[quizID]) > 0
}

func (h *leaderboardHub) broadcast(lb domain.Leaderboard) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subscribers[lb.QuizID] {
		select {
		case ch <- lb:
		default:
			// Slow listener: drop its oldest snapshot so broadcast never blocks.
			select {
			case <-ch:
			default:
			}
			ch <- lb
		}
	}
}
