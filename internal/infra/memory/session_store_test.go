package memory

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"quiz-ledger-service/internal/domain"
	"quiz-ledger-service/internal/ingest"
)

func TestSessionStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewSessionStore()

	session := domain.AttemptSession{StudentID: "s1", QuizID: "quiz-1", Selected: []int{-1, -1}, StartedAt: time.Now()}
	if err := store.Save(ctx, session); err != nil {
		t.Fatalf("save: %v", err)
	}
	session.Selected[0] = 3 // must not leak into the store

	got, ok, err := store.Get(ctx, "s1", "quiz-1")
	if err != nil || !ok {
		t.Fatalf("expected session present, ok=%v err=%v", ok, err)
	}
	if got.Selected[0] != -1 {
		t.Fatalf("stored session aliased caller slice: %v", got.Selected)
	}

	claimed, _ := store.Delete(ctx, "s1", "quiz-1")
	again, _ := store.Delete(ctx, "s1", "quiz-1")
	if !claimed || again {
		t.Fatalf("expected exactly one successful delete, got %v then %v", claimed, again)
	}
	if _, ok, _ := store.Get(ctx, "s1", "quiz-1"); ok {
		t.Fatalf("expected session removed")
	}
}

func TestSessionUpdateOnlyTouchesOpenAttempt(t *testing.T) {
	ctx := context.Background()
	store := NewSessionStore()
	started := time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)
	session := domain.AttemptSession{StudentID: "s1", QuizID: "quiz-1", Selected: []int{-1, -1}, StartedAt: started}

	if ok, _ := store.Update(ctx, session); ok {
		t.Fatalf("update must not create a session")
	}
	_ = store.Save(ctx, session)
	session.Selected = []int{1, -1}
	if ok, err := store.Update(ctx, session); !ok || err != nil {
		t.Fatalf("expected update of open attempt, got %v %v", ok, err)
	}
	if got, _, _ := store.Get(ctx, "s1", "quiz-1"); got.Selected[0] != 1 {
		t.Fatalf("update not stored: %v", got.Selected)
	}

	_ = store.Save(ctx, domain.AttemptSession{StudentID: "s1", QuizID: "quiz-1", StartedAt: started.Add(time.Hour)})
	if ok, _ := store.Update(ctx, session); ok {
		t.Fatalf("update must not overwrite a newer attempt")
	}
	_, _ = store.Delete(ctx, "s1", "quiz-1")
	if ok, _ := store.Update(ctx, session); ok {
		t.Fatalf("update must not resurrect a closed attempt")
	}
	if _, ok, _ := store.Get(ctx, "s1", "quiz-1"); ok {
		t.Fatalf("closed attempt came back")
	}
}

func TestLedgerStoreCommitIsCompareAndSwap(t *testing.T) {
	ctx := context.Background()
	store := NewLedgerStore()

	l, err := store.GetLedger(ctx, "s1", "quiz-1")
	if err != nil {
		t.Fatalf("get ledger: %v", err)
	}
	if l.AttemptsUsed != 0 || l.HasAttempts() {
		t.Fatalf("expected fresh ledger, got %+v", l)
	}

	next := l.Clone()
	next.AttemptsUsed = 1
	next.Attempts = []domain.AttemptRecord{{AttemptNumber: 1, Score: 3}}
	fact := domain.AttemptFact{ID: "f1", QuizID: "quiz-1", StudentID: "s1", AttemptNumber: 1, Score: 3}

	if err := store.CommitAttempt(ctx, 0, next, fact); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if err := store.CommitAttempt(ctx, 0, next, fact); !errors.Is(err, domain.ErrConcurrentSubmission) {
		t.Fatalf("expected stale commit to conflict, got %v", err)
	}

	facts, _ := store.ListFacts(ctx, "quiz-1")
	if len(facts) != 1 {
		t.Fatalf("expected one fact after rejected commit, got %d", len(facts))
	}
	stored, _ := store.GetLedger(ctx, "s1", "quiz-1")
	if stored.AttemptsUsed != 1 || stored.Attempts[0].Score != 3 {
		t.Fatalf("unexpected stored ledger %+v", stored)
	}
}

func TestGuardAdmitsOneHolder(t *testing.T) {
	g := NewGuard()
	ctx := context.Background()

	var admitted atomic.Int32
	var wg sync.WaitGroup
	releases := make(chan func(), 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := g.Acquire(ctx, "s1", "quiz-1")
			if err == nil {
				admitted.Add(1)
				releases <- release
				return
			}
			if !errors.Is(err, domain.ErrConcurrentSubmission) {
				t.Errorf("unexpected error %v", err)
			}
		}()
	}
	wg.Wait()
	close(releases)

	if admitted.Load() != 1 {
		t.Fatalf("expected one holder, got %d", admitted.Load())
	}
	for release := range releases {
		release()
		release()
	}
	if _, err := g.Acquire(ctx, "s1", "quiz-1"); err != nil {
		t.Fatalf("expected guard free after release: %v", err)
	}
	if _, err := g.Acquire(ctx, "s2", "quiz-1"); err != nil {
		t.Fatalf("other students are independent: %v", err)
	}
}

func TestProfileDirectoryResolve(t *testing.T) {
	dir := NewProfileDirectory(map[string]ingest.Profile{
		"s1": {FirstName: "Ada", LastName: "Lovelace"},
		"s2": {Email: "grace.hopper@example.com"},
		"s3": {},
	})
	ctx := context.Background()

	name, err := dir.Resolve(ctx, "s1")
	if err != nil || name.FullName() != "Ada Lovelace" {
		t.Fatalf("unexpected name %+v err %v", name, err)
	}
	name, err = dir.Resolve(ctx, "s2")
	if err != nil || name.FullName() != "Grace Hopper" {
		t.Fatalf("expected email fallback, got %+v err %v", name, err)
	}
	if _, err := dir.Resolve(ctx, "s3"); !errors.Is(err, domain.ErrProfileNotFound) {
		t.Fatalf("expected empty profile to be unresolvable, got %v", err)
	}
	if _, err := dir.Resolve(ctx, "missing"); !errors.Is(err, domain.ErrProfileNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
