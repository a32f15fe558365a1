package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"quiz-ledger-service/internal/domain"
	"quiz-ledger-service/internal/ledger"
	"quiz-ledger-service/internal/observability"
)

// ExpiryHandler is told about the forced submission of a timed-out attempt.
type ExpiryHandler func(result SubmissionResult, err error)

// AttemptService tracks attempts between start and submit and forces
// submission when a timed attempt runs out.
type AttemptService struct {
	quizzes     QuizRepository
	ledgers     LedgerStore
	sessions    SessionRepository
	submissions *SubmissionService
	logger      zerolog.Logger
	now         func() time.Time
	schedule    func(d time.Duration, fn func()) (stop func() bool)

	mu     sync.Mutex
	timers map[string]pendingExpiry
}

type pendingExpiry struct {
	stop     func() bool
	onExpire ExpiryHandler
}

func NewAttemptService(quizzes QuizRepository, ledgers LedgerStore, sessions SessionRepository, submissions *SubmissionService, logger zerolog.Logger) *AttemptService {
	return &AttemptService{
		quizzes:     quizzes,
		ledgers:     ledgers,
		sessions:    sessions,
		submissions: submissions,
		logger:      logger.With().Str("component", "attempt_service").Logger(),
		now:         time.Now,
		schedule: func(d time.Duration, fn func()) func() bool {
			return time.AfterFunc(d, fn).Stop
		},
		timers: make(map[string]pendingExpiry),
	}
}

// WithScheduler is test-only; it replaces the clock and the timer factory.
func (s *AttemptService) WithScheduler(now func() time.Time, schedule func(d time.Duration, fn func()) func() bool) *AttemptService {
	s.now = now
	s.schedule = schedule
	return s
}

// Start opens a new attempt. Timed quizzes get a deadline of
// PerQuestionTimerMinutes for the whole attempt; onExpire may be nil.
func (s *AttemptService) Start(ctx context.Context, studentID, quizID string, onExpire ExpiryHandler) (domain.AttemptSession, error) {
	spec, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return domain.AttemptSession{}, err
	}
	if !spec.Published {
		return domain.AttemptSession{}, domain.ErrQuizNotPublished
	}

	if existing, ok, err := s.sessions.Get(ctx, studentID, quizID); err != nil {
		return domain.AttemptSession{}, fmt.Errorf("%w: read session: %w", domain.ErrPersistence, err)
	} else if ok {
		if !existing.Expired(s.now()) {
			return domain.AttemptSession{}, domain.ErrAttemptInProgress
		}
		// An expired session left behind by a restart is settled before a new one opens.
		s.Expire(ctx, studentID, quizID)
	}

	current, err := s.ledgers.GetLedger(ctx, studentID, quizID)
	if err != nil {
		return domain.AttemptSession{}, fmt.Errorf("%w: read ledger: %w", domain.ErrPersistence, err)
	}
	if !ledger.CanAttempt(current, spec) {
		return domain.AttemptSession{}, domain.ErrAttemptLimitExceeded
	}

	now := s.now()
	session := domain.AttemptSession{
		StudentID: studentID,
		QuizID:    quizID,
		Selected:  ledger.PadAnswers(spec, nil),
		StartedAt: now,
	}
	if spec.Timed() {
		session.Deadline = now.Add(time.Duration(spec.PerQuestionTimerMinutes) * time.Minute)
	}
	if err := s.sessions.Save(ctx, session); err != nil {
		return domain.AttemptSession{}, fmt.Errorf("%w: save session: %w", domain.ErrPersistence, err)
	}

	if spec.Timed() {
		s.arm(studentID, quizID, session.Deadline.Sub(now), onExpire)
	}
	s.logger.Debug().Str("quiz_id", quizID).Str("student_id", studentID).Time("deadline", session.Deadline).Msg("attempt started")
	return session, nil
}

// Select records the chosen option for one question. option may be
// domain.NoAnswer to clear a previous choice.
func (s *AttemptService) Select(ctx context.Context, studentID, quizID string, question, option int) (domain.AttemptSession, error) {
	session, err := s.open(ctx, studentID, quizID)
	if err != nil {
		return domain.AttemptSession{}, err
	}
	spec, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return domain.AttemptSession{}, err
	}
	if question < 0 || question >= spec.TotalQuestions() {
		return domain.AttemptSession{}, fmt.Errorf("%w: question %d out of range", domain.ErrIncompleteSubmission, question+1)
	}
	if option != domain.NoAnswer {
		if opts := spec.Questions[question].Options; option < 0 || (len(opts) > 0 && option >= len(opts)) {
			return domain.AttemptSession{}, fmt.Errorf("%w: option %d out of range", domain.ErrIncompleteSubmission, option)
		}
	}

	session.Selected = ledger.PadAnswers(spec, session.Selected)
	session.Selected[question] = option
	updated, err := s.sessions.Update(ctx, session)
	if err != nil {
		return domain.AttemptSession{}, fmt.Errorf("%w: save session: %w", domain.ErrPersistence, err)
	}
	if !updated {
		// submitted or expired since it was read
		return domain.AttemptSession{}, domain.ErrAttemptNotStarted
	}
	return session, nil
}

// Submit completes the open attempt. Incomplete answer sets leave the
// attempt open so the student can finish it.
func (s *AttemptService) Submit(ctx context.Context, studentID, quizID string) (SubmissionResult, error) {
	session, err := s.open(ctx, studentID, quizID)
	if err != nil {
		return SubmissionResult{}, err
	}
	spec, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return SubmissionResult{}, err
	}
	if err := ledger.Validate(spec, session.Selected); err != nil {
		return SubmissionResult{}, err
	}

	claimed, err := s.sessions.Delete(ctx, studentID, quizID)
	if err != nil {
		return SubmissionResult{}, fmt.Errorf("%w: close session: %w", domain.ErrPersistence, err)
	}
	if !claimed {
		// the timer got there first
		return SubmissionResult{}, domain.ErrAttemptNotStarted
	}
	onExpire := s.disarm(studentID, quizID)

	result, err := s.submissions.Submit(ctx, studentID, quizID, session.Selected)
	if errors.Is(err, domain.ErrPersistence) || errors.Is(err, domain.ErrConcurrentSubmission) {
		// Nothing was committed; reopen so the student can retry.
		s.reopen(ctx, session, onExpire)
	}
	return result, err
}

// reopen restores a claimed session and its timer after a submission that
// committed nothing.
func (s *AttemptService) reopen(ctx context.Context, session domain.AttemptSession, onExpire ExpiryHandler) {
	if err := s.sessions.Save(ctx, session); err != nil {
		s.logger.Error().Err(err).Str("quiz_id", session.QuizID).Str("student_id", session.StudentID).Msg("failed to reopen attempt")
		return
	}
	if !session.Deadline.IsZero() {
		s.arm(session.StudentID, session.QuizID, max(session.Deadline.Sub(s.now()), 0), onExpire)
	}
}

// Abandon discards the open attempt without consuming an attempt.
func (s *AttemptService) Abandon(ctx context.Context, studentID, quizID string) error {
	s.disarm(studentID, quizID)
	if _, err := s.sessions.Delete(ctx, studentID, quizID); err != nil {
		return fmt.Errorf("%w: close session: %w", domain.ErrPersistence, err)
	}
	return nil
}

// Expire forces submission of the open attempt with whatever is selected.
// It is a no-op when the attempt was already submitted.
func (s *AttemptService) Expire(ctx context.Context, studentID, quizID string) (SubmissionResult, bool, error) {
	handler := s.disarm(studentID, quizID)

	session, ok, err := s.sessions.Get(ctx, studentID, quizID)
	if err != nil || !ok {
		return SubmissionResult{}, false, err
	}
	claimed, err := s.sessions.Delete(ctx, studentID, quizID)
	if err != nil || !claimed {
		return SubmissionResult{}, false, err
	}

	observability.ForcedSubmissions().Inc()
	result, err := s.submissions.ForceSubmit(ctx, studentID, quizID, session.Selected)
	if err != nil {
		s.logger.Error().Err(err).Str("quiz_id", quizID).Str("student_id", studentID).Msg("forced submission failed")
	}
	if handler != nil {
		handler(result, err)
	}
	return result, true, err
}

// open returns the in-progress session, settling it first if its deadline passed.
func (s *AttemptService) open(ctx context.Context, studentID, quizID string) (domain.AttemptSession, error) {
	session, ok, err := s.sessions.Get(ctx, studentID, quizID)
	if err != nil {
		return domain.AttemptSession{}, fmt.Errorf("%w: read session: %w", domain.ErrPersistence, err)
	}
	if !ok {
		return domain.AttemptSession{}, domain.ErrAttemptNotStarted
	}
	if session.Expired(s.now()) {
		s.Expire(ctx, studentID, quizID)
		return domain.AttemptSession{}, domain.ErrAttemptNotStarted
	}
	return session, nil
}

func (s *AttemptService) arm(studentID, quizID string, d time.Duration, onExpire ExpiryHandler) {
	key := sessionKey(studentID, quizID)
	stop := s.schedule(d, func() {
		s.Expire(context.Background(), studentID, quizID)
	})
	s.mu.Lock()
	s.timers[key] = pendingExpiry{stop: stop, onExpire: onExpire}
	s.mu.Unlock()
}

func (s *AttemptService) disarm(studentID, quizID string) ExpiryHandler {
	key := sessionKey(studentID, quizID)
	s.mu.Lock()
	pending, ok := s.timers[key]
	delete(s.timers, key)
	s.mu.Unlock()
	if !ok {
		return nil
	}
	pending.stop()
	return pending.onExpire
}

func sessionKey(studentID, quizID string) string {
	return quizID + ":" + studentID
}
