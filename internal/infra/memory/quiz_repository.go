package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"quiz-ledger-service/internal/domain"
)

// QuizLoader fetches quiz specs from the system of record.
type QuizLoader interface {
	LoadQuiz(ctx context.Context, quizID string) (domain.QuizSpec, error)
}

// QuizRepository is a read-through cache of quiz specs. Concurrent misses for
// the same quiz collapse into one loader call.
type QuizRepository struct {
	loader QuizLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group

	rndMu sync.Mutex
	rnd   *rand.Rand

	mu      sync.RWMutex
	entries map[string]quizEntry
}

type quizEntry struct {
	spec      domain.QuizSpec
	expiresAt time.Time
}

func NewQuizRepository(loader QuizLoader, ttl time.Duration) *QuizRepository {
	return &QuizRepository{
		loader:  loader,
		ttl:     ttl,
		clock:   time.Now,
		rnd:     rand.New(rand.NewSource(time.Now().UnixNano())),
		entries: make(map[string]quizEntry),
	}
}

func (r *QuizRepository) GetQuiz(ctx context.Context, quizID string) (domain.QuizSpec, error) {
	if spec, ok := r.lookup(quizID); ok {
		return spec, nil
	}

	v, err, _ := r.sf.Do(quizID, func() (any, error) {
		if spec, ok := r.lookup(quizID); ok {
			return spec, nil
		}
		spec, err := r.loader.LoadQuiz(ctx, quizID)
		if err != nil {
			return domain.QuizSpec{}, err
		}
		r.mu.Lock()
		r.entries[quizID] = quizEntry{spec: spec, expiresAt: r.clock().Add(r.jitteredTTL())}
		r.mu.Unlock()
		return spec, nil
	})
	if err != nil {
		return domain.QuizSpec{}, err
	}
	return v.(domain.QuizSpec), nil
}

// Invalidate drops a cached quiz, e.g. after the mentor publishes it.
func (r *QuizRepository) Invalidate(quizID string) {
	r.mu.Lock()
	delete(r.entries, quizID)
	r.mu.Unlock()
}

func (r *QuizRepository) lookup(quizID string) (domain.QuizSpec, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[quizID]
	if !ok || !e.expiresAt.After(r.clock()) {
		return domain.QuizSpec{}, false
	}
	return e.spec, true
}

// jitteredTTL stretches the TTL by up to 10% so entries loaded together do not expire together.
func (r *QuizRepository) jitteredTTL() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(int64(r.ttl)/10+1))
}

// StaticQuizLoader serves quiz specs from a fixed map. It backs demos and tests.
type StaticQuizLoader struct {
	mu      sync.RWMutex
	quizzes map[string]domain.QuizSpec
}

func NewStaticQuizLoader(quizzes map[string]domain.QuizSpec) *StaticQuizLoader {
	copied := make(map[string]domain.QuizSpec, len(quizzes))
	for id, q := range quizzes {
		copied[id] = q
	}
	return &StaticQuizLoader{quizzes: copied}
}

func (l *StaticQuizLoader) LoadQuiz(_ context.Context, quizID string) (domain.QuizSpec, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if q, ok := l.quizzes[quizID]; ok {
		return q, nil
	}
	return domain.QuizSpec{}, domain.ErrQuizNotFound
}

// Put adds or replaces a quiz.
func (l *StaticQuizLoader) Put(spec domain.QuizSpec) {
	l.mu.Lock()
	l.quizzes[spec.ID] = spec
	l.mu.Unlock()
}
