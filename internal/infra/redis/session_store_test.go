package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"quiz-ledger-service/internal/domain"
)

func TestSessionStoreSetsAndClearsKeys(t *testing.T) {
	mr, client := newRedis(t)
	store := NewSessionStore(client, time.Hour)
	ctx := context.Background()

	session := domain.AttemptSession{
		StudentID: "s1",
		QuizID:    "quiz-1",
		Selected:  []int{1, domain.NoAnswer},
		StartedAt: time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC),
		Deadline:  time.Date(2026, 2, 1, 8, 10, 0, 0, time.UTC),
	}
	if err := store.Save(ctx, session); err != nil {
		t.Fatalf("save: %v", err)
	}
	if !mr.Exists("quiz:session:quiz-1:s1") {
		t.Fatalf("expected redis key to be set")
	}
	if mr.TTL("quiz:session:quiz-1:s1") != time.Hour {
		t.Fatalf("expected session ttl")
	}

	got, ok, err := store.Get(ctx, "s1", "quiz-1")
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if !got.Deadline.Equal(session.Deadline) || got.Selected[1] != domain.NoAnswer {
		t.Fatalf("session did not survive the round trip: %+v", got)
	}

	claimed, err := store.Delete(ctx, "s1", "quiz-1")
	if err != nil || !claimed {
		t.Fatalf("expected first delete to claim, got %v %v", claimed, err)
	}
	if claimed, _ := store.Delete(ctx, "s1", "quiz-1"); claimed {
		t.Fatalf("second delete must not claim")
	}
	if mr.Exists("quiz:session:quiz-1:s1") {
		t.Fatalf("expected redis key to be removed")
	}
}

func TestSessionUpdateIsConditional(t *testing.T) {
	mr, client := newRedis(t)
	store := NewSessionStore(client, time.Hour)
	ctx := context.Background()
	started := time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)
	session := domain.AttemptSession{StudentID: "s1", QuizID: "quiz-1", Selected: []int{-1, -1}, StartedAt: started}

	if ok, err := store.Update(ctx, session); ok || err != nil {
		t.Fatalf("update must not create a session, got %v %v", ok, err)
	}
	if mr.Exists("quiz:session:quiz-1:s1") {
		t.Fatalf("update created a key")
	}

	if err := store.Save(ctx, session); err != nil {
		t.Fatalf("save: %v", err)
	}
	session.Selected = []int{0, 1}
	if ok, err := store.Update(ctx, session); !ok || err != nil {
		t.Fatalf("expected update, got %v %v", ok, err)
	}
	got, _, _ := store.Get(ctx, "s1", "quiz-1")
	if got.Selected[1] != 1 {
		t.Fatalf("update not stored: %+v", got)
	}

	_, _ = store.Delete(ctx, "s1", "quiz-1")
	if ok, _ := store.Update(ctx, session); ok {
		t.Fatalf("update must not resurrect a closed attempt")
	}
	if mr.Exists("quiz:session:quiz-1:s1") {
		t.Fatalf("closed attempt came back")
	}
}

func TestGuardIsExclusiveAndOwned(t *testing.T) {
	mr, client := newRedis(t)
	guard := NewGuard(client, 5*time.Second)
	ctx := context.Background()

	release, err := guard.Acquire(ctx, "s1", "quiz-1")
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if _, err := guard.Acquire(ctx, "s1", "quiz-1"); !errors.Is(err, domain.ErrConcurrentSubmission) {
		t.Fatalf("expected conflict, got %v", err)
	}

	// The lock expired and someone else took it; a late release must not free their lock.
	mr.FastForward(6 * time.Second)
	if _, err := guard.Acquire(ctx, "s1", "quiz-1"); err != nil {
		t.Fatalf("acquire after expiry: %v", err)
	}
	release()
	if !mr.Exists("lock:submission:quiz-1:s1") {
		t.Fatalf("stale release removed another holder's lock")
	}
}
