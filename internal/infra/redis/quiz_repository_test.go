package redis

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"quiz-ledger-service/internal/domain"
	"quiz-ledger-service/internal/infra/memory"
)

func TestQuizRepositoryCachesInRedis(t *testing.T) {
	mr, client := newRedis(t)

	loader := &countingLoader{QuizLoader: memory.NewStaticQuizLoader(map[string]domain.QuizSpec{
		"quiz-1": sampleQuiz(),
	})}
	repo := NewQuizRepository(client, loader, time.Minute)

	if _, err := repo.GetQuiz(context.Background(), "quiz-1"); err != nil {
		t.Fatalf("get quiz: %v", err)
	}
	if !mr.Exists("quiz:quiz-1:spec") {
		t.Fatalf("expected spec cached in redis")
	}
	if ttl := mr.TTL("quiz:quiz-1:spec"); ttl < time.Minute || ttl > time.Minute+6*time.Second {
		t.Fatalf("expected jittered ttl around a minute, got %v", ttl)
	}

	// A second repository shares the cache, as another instance would.
	other := NewQuizRepository(client, loader, time.Minute)
	spec, err := other.GetQuiz(context.Background(), "quiz-1")
	if err != nil {
		t.Fatalf("get quiz from second repo: %v", err)
	}
	if loader.calls.Load() != 1 {
		t.Fatalf("expected cache hit, loader calls=%d", loader.calls.Load())
	}
	if spec.TotalPossibleScore() != 5 || spec.Questions[1].Points != 3 || !spec.Published {
		t.Fatalf("cached spec lost fields: %+v", spec)
	}
}

func TestQuizRepositoryReloadsUnreadableEntry(t *testing.T) {
	mr, client := newRedis(t)
	loader := &countingLoader{QuizLoader: memory.NewStaticQuizLoader(map[string]domain.QuizSpec{
		"quiz-1": sampleQuiz(),
	})}
	repo := NewQuizRepository(client, loader, time.Minute)

	if err := mr.Set("quiz:quiz-1:spec", "{broken"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := repo.GetQuiz(context.Background(), "quiz-1"); err != nil {
		t.Fatalf("get quiz: %v", err)
	}
	if loader.calls.Load() != 1 {
		t.Fatalf("expected reload from loader, calls=%d", loader.calls.Load())
	}

	if err := repo.Invalidate(context.Background(), "quiz-1"); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if mr.Exists("quiz:quiz-1:spec") {
		t.Fatalf("expected cache entry removed")
	}
}

func TestQuizRepositoryMissingQuiz(t *testing.T) {
	_, client := newRedis(t)
	repo := NewQuizRepository(client, memory.NewStaticQuizLoader(nil), time.Minute)
	if _, err := repo.GetQuiz(context.Background(), "nope"); !errors.Is(err, domain.ErrQuizNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

type countingLoader struct {
	memory.QuizLoader
	calls atomic.Int32
}

func (l *countingLoader) LoadQuiz(ctx context.Context, quizID string) (domain.QuizSpec, error) {
	l.calls.Add(1)
	return l.QuizLoader.LoadQuiz(ctx, quizID)
}

func sampleQuiz() domain.QuizSpec {
	return domain.QuizSpec{
		ID:                "quiz-1",
		MentorID:          "mentor-1",
		Subject:           "Arithmetic",
		PointsPerQuestion: 2,
		AllowedAttempts:   3,
		Published:         true,
		Questions: []domain.Question{
			{ID: "q1", Prompt: "What is 2 + 2?", Options: []string{"3", "4"}, CorrectOption: 1},
			{ID: "q2", Prompt: "What is 3 * 3?", Options: []string{"9", "6"}, CorrectOption: 0, Points: 3},
		},
	}
}

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}
