package redis

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"quiz-ledger-service/internal/domain"
	"quiz-ledger-service/internal/ingest"
)

// QuizLoader fetches quiz specs from the system of record.
type QuizLoader interface {
	LoadQuiz(ctx context.Context, quizID string) (domain.QuizSpec, error)
}

// QuizRepository caches quiz specs in Redis and falls back to a loader on miss.
// Quizzes are stored in their document shape: SET quiz:{quizID}:spec <json>.
type QuizRepository struct {
	client *redis.Client
	loader QuizLoader
	ttl    time.Duration
	sf     singleflight.Group

	rndMu sync.Mutex
	rnd   *rand.Rand
}

func NewQuizRepository(client *redis.Client, loader QuizLoader, ttl time.Duration) *QuizRepository {
	return &QuizRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *QuizRepository) GetQuiz(ctx context.Context, quizID string) (domain.QuizSpec, error) {
	if spec, ok := r.cached(ctx, quizID); ok {
		return spec, nil
	}

	v, err, _ := r.sf.Do(quizID, func() (any, error) {
		// another caller may have filled it while we waited
		if spec, ok := r.cached(ctx, quizID); ok {
			return spec, nil
		}
		spec, err := r.loader.LoadQuiz(ctx, quizID)
		if err != nil {
			return domain.QuizSpec{}, err
		}
		if raw, err := ingest.EncodeQuiz(spec); err == nil {
			_ = r.client.Set(ctx, specKey(quizID), raw, r.jitteredTTL()).Err()
		}
		return spec, nil
	})
	if err != nil {
		return domain.QuizSpec{}, err
	}
	return v.(domain.QuizSpec), nil
}

// Invalidate drops the cached quiz so the next read reloads it.
func (r *QuizRepository) Invalidate(ctx context.Context, quizID string) error {
	return r.client.Del(ctx, specKey(quizID)).Err()
}

// cached treats unreadable entries as misses; the loader is the source of truth.
func (r *QuizRepository) cached(ctx context.Context, quizID string) (domain.QuizSpec, bool) {
	raw, err := r.client.Get(ctx, specKey(quizID)).Bytes()
	if err != nil {
		return domain.QuizSpec{}, false
	}
	spec, err := ingest.DecodeQuiz(quizID, raw)
	if err != nil {
		return domain.QuizSpec{}, false
	}
	return spec, true
}

func specKey(quizID string) string {
	return "quiz:" + quizID + ":spec"
}

func (r *QuizRepository) jitteredTTL() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
