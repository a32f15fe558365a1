package app_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"quiz-ledger-service/internal/app"
	"quiz-ledger-service/internal/domain"
	"quiz-ledger-service/internal/infra/memory"
	"quiz-ledger-service/internal/ingest"
)

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

type fixture struct {
	loader      *memory.StaticQuizLoader
	ledgers     *memory.LedgerStore
	sessions    *memory.SessionStore
	guard       *memory.Guard
	profiles    *memory.ProfileDirectory
	submissions *app.SubmissionService
	attempts    *app.AttemptService
	board       *app.LeaderboardService
	timers      *fakeTimers

	mu  sync.Mutex
	now time.Time
}

func newFixture(t *testing.T, quizzes ...domain.QuizSpec) *fixture {
	t.Helper()
	f := &fixture{
		loader:   memory.NewStaticQuizLoader(nil),
		ledgers:  memory.NewLedgerStore(),
		sessions: memory.NewSessionStore(),
		guard:    memory.NewGuard(),
		profiles: memory.NewProfileDirectory(map[string]ingest.Profile{
			"s1": {FirstName: "Ada", LastName: "Lovelace"},
			"s2": {FirstName: "Alan", LastName: "Turing"},
		}),
		timers: &fakeTimers{},
		now:    t0,
	}
	for _, q := range quizzes {
		f.loader.Put(q)
	}
	logger := zerolog.Nop()
	repo := memory.NewQuizRepository(f.loader, 0)
	f.board = app.NewLeaderboardService(repo, f.ledgers, f.profiles, logger)
	f.submissions = app.NewSubmissionService(repo, f.ledgers, f.guard, f.board, logger).WithClock(f.clock)
	f.attempts = app.NewAttemptService(repo, f.ledgers, f.sessions, f.submissions, logger).WithScheduler(f.clock, f.timers.schedule)
	return f
}

func (f *fixture) clock() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fixture) advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

type fakeTimers struct {
	mu      sync.Mutex
	pending []*fakeTimer
}

type fakeTimer struct {
	after   time.Duration
	fn      func()
	stopped bool
}

func (ft *fakeTimers) schedule(d time.Duration, fn func()) func() bool {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	timer := &fakeTimer{after: d, fn: fn}
	ft.pending = append(ft.pending, timer)
	return func() bool {
		ft.mu.Lock()
		defer ft.mu.Unlock()
		was := !timer.stopped
		timer.stopped = true
		return was
	}
}

// fire runs every timer that has not been stopped.
func (ft *fakeTimers) fire() int {
	ft.mu.Lock()
	var due []*fakeTimer
	for _, timer := range ft.pending {
		if !timer.stopped {
			timer.stopped = true
			due = append(due, timer)
		}
	}
	ft.mu.Unlock()
	for _, timer := range due {
		timer.fn()
	}
	return len(due)
}

func mcq(id string, questions, points, allowed int) domain.QuizSpec {
	spec := domain.QuizSpec{
		ID:                id,
		Subject:           "Science",
		PointsPerQuestion: points,
		AllowedAttempts:   allowed,
		Published:         true,
	}
	for i := 0; i < questions; i++ {
		spec.Questions = append(spec.Questions, domain.Question{
			ID:            "q" + string(rune('a'+i)),
			Options:       []string{"w", "x", "y", "z"},
			CorrectOption: 2,
		})
	}
	return spec
}

// answers returns a complete answer set with the first `correct` answers right.
func answers(spec domain.QuizSpec, correct int) []int {
	out := make([]int, spec.TotalQuestions())
	for i := range out {
		if i < correct {
			out[i] = spec.Questions[i].CorrectOption
		} else {
			out[i] = (spec.Questions[i].CorrectOption + 1) % len(spec.Questions[i].Options)
		}
	}
	return out
}

func TestSubmitTwoAttemptsThenLimit(t *testing.T) {
	ctx := context.Background()
	spec := mcq("quiz-1", 10, 1, 2)
	f := newFixture(t, spec)

	first, err := f.submissions.Submit(ctx, "s1", "quiz-1", answers(spec, 5))
	if err != nil {
		t.Fatalf("first submit: %v", err)
	}
	if first.Record.AttemptNumber != 1 || first.Record.Score != 5 || first.Remaining != 1 {
		t.Fatalf("unexpected first result %+v", first)
	}
	if first.CompletionRate != 50 {
		t.Fatalf("expected 50%% completion, got %v", first.CompletionRate)
	}

	f.advance(time.Minute)
	second, err := f.submissions.Submit(ctx, "s1", "quiz-1", answers(spec, 8))
	if err != nil {
		t.Fatalf("second submit: %v", err)
	}
	l := second.Ledger
	if l.AttemptsUsed != 2 || l.BestScore != 8 || l.BestAttemptNumber != 2 || l.LastScore != 8 {
		t.Fatalf("unexpected ledger %+v", l)
	}

	_, err = f.submissions.Submit(ctx, "s1", "quiz-1", answers(spec, 10))
	if !errors.Is(err, domain.ErrAttemptLimitExceeded) {
		t.Fatalf("expected limit error, got %v", err)
	}
	stored, _ := f.ledgers.GetLedger(ctx, "s1", "quiz-1")
	if stored.AttemptsUsed != 2 || stored.BestScore != 8 {
		t.Fatalf("rejected submission changed ledger: %+v", stored)
	}
	facts, _ := f.ledgers.ListFacts(ctx, "quiz-1")
	if len(facts) != 2 {
		t.Fatalf("expected 2 facts, got %d", len(facts))
	}
}

func TestSubmitRejectsIncompleteAnswers(t *testing.T) {
	ctx := context.Background()
	spec := mcq("quiz-1", 3, 1, 1)
	f := newFixture(t, spec)

	cases := [][]int{
		{2, 2},
		{2, domain.NoAnswer, 2},
		{2, 9, 2},
	}
	for _, answers := range cases {
		if _, err := f.submissions.Submit(ctx, "s1", "quiz-1", answers); !errors.Is(err, domain.ErrIncompleteSubmission) {
			t.Fatalf("answers %v: expected incomplete, got %v", answers, err)
		}
	}
	l, _ := f.ledgers.GetLedger(ctx, "s1", "quiz-1")
	if l.AttemptsUsed != 0 {
		t.Fatalf("incomplete submissions must not consume attempts, used %d", l.AttemptsUsed)
	}
}

func TestSubmitRejectsDraftAndUnknownQuiz(t *testing.T) {
	ctx := context.Background()
	draft := mcq("draft", 2, 1, 1)
	draft.Published = false
	f := newFixture(t, draft)

	if _, err := f.submissions.Submit(ctx, "s1", "draft", answers(draft, 2)); !errors.Is(err, domain.ErrQuizNotPublished) {
		t.Fatalf("expected not published, got %v", err)
	}
	if _, err := f.submissions.Submit(ctx, "s1", "nope", []int{0}); !errors.Is(err, domain.ErrQuizNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestSubmitConflictsWhileAnotherIsInFlight(t *testing.T) {
	ctx := context.Background()
	spec := mcq("quiz-1", 2, 1, 3)
	f := newFixture(t, spec)

	release, err := f.guard.Acquire(ctx, "s1", "quiz-1")
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if _, err := f.submissions.Submit(ctx, "s1", "quiz-1", answers(spec, 2)); !errors.Is(err, domain.ErrConcurrentSubmission) {
		t.Fatalf("expected conflict, got %v", err)
	}
	release()

	if _, err := f.submissions.Submit(ctx, "s1", "quiz-1", answers(spec, 2)); err != nil {
		t.Fatalf("submit after release: %v", err)
	}
}

func TestConcurrentSubmitsNeverExceedCeiling(t *testing.T) {
	ctx := context.Background()
	spec := mcq("quiz-1", 2, 1, 2)
	f := newFixture(t, spec)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = f.submissions.Submit(ctx, "s1", "quiz-1", answers(spec, 1))
		}()
	}
	wg.Wait()

	l, _ := f.ledgers.GetLedger(ctx, "s1", "quiz-1")
	if l.AttemptsUsed > 2 || len(l.Attempts) != l.AttemptsUsed {
		t.Fatalf("ceiling breached: %+v", l)
	}
	for i, a := range l.Attempts {
		if a.AttemptNumber != i+1 {
			t.Fatalf("attempt numbers not contiguous: %+v", l.Attempts)
		}
	}
}

type failingLedgers struct {
	app.LedgerStore
}

func (failingLedgers) CommitAttempt(context.Context, int, domain.Ledger, domain.AttemptFact) error {
	return errors.New("disk full")
}

func TestPersistenceFailureLeavesLedgerUnchanged(t *testing.T) {
	ctx := context.Background()
	spec := mcq("quiz-1", 2, 1, 2)
	loader := memory.NewStaticQuizLoader(map[string]domain.QuizSpec{"quiz-1": spec})
	store := memory.NewLedgerStore()
	svc := app.NewSubmissionService(memory.NewQuizRepository(loader, 0), failingLedgers{store}, memory.NewGuard(), nil, zerolog.Nop())

	_, err := svc.Submit(ctx, "s1", "quiz-1", answers(spec, 2))
	if !errors.Is(err, domain.ErrPersistence) {
		t.Fatalf("expected persistence error, got %v", err)
	}
	l, _ := store.GetLedger(ctx, "s1", "quiz-1")
	if l.AttemptsUsed != 0 || l.HasAttempts() {
		t.Fatalf("failed commit must leave ledger untouched: %+v", l)
	}
}

type recordingFeed struct {
	mu    sync.Mutex
	facts []domain.AttemptFact
	err   error
}

func (r *recordingFeed) Publish(_ context.Context, fact domain.AttemptFact) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.facts = append(r.facts, fact)
	return r.err
}

func TestFeedFailureDoesNotFailSubmission(t *testing.T) {
	ctx := context.Background()
	spec := mcq("quiz-1", 2, 5, 1)
	loader := memory.NewStaticQuizLoader(map[string]domain.QuizSpec{"quiz-1": spec})
	ok := &recordingFeed{}
	broken := &recordingFeed{err: errors.New("broker down")}
	svc := app.NewSubmissionService(memory.NewQuizRepository(loader, 0), memory.NewLedgerStore(), memory.NewGuard(), app.FanoutFeed{ok, broken}, zerolog.Nop())

	res, err := svc.Submit(ctx, "s1", "quiz-1", answers(spec, 1))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if res.Record.Score != 5 || res.TotalPossible != 10 {
		t.Fatalf("unexpected result %+v", res)
	}
	if len(ok.facts) != 1 || len(broken.facts) != 1 {
		t.Fatalf("expected both feeds to see the fact, got %d and %d", len(ok.facts), len(broken.facts))
	}
	fact := ok.facts[0]
	if fact.StudentID != "s1" || fact.AttemptNumber != 1 || fact.Score != 5 || fact.ID == "" {
		t.Fatalf("unexpected fact %+v", fact)
	}
}
