package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"quiz-ledger-service/internal/domain"
	"quiz-ledger-service/internal/ledger"
	"quiz-ledger-service/internal/observability"
)

// SubmissionResult is what a successful submission returns to the caller.
type SubmissionResult struct {
	Ledger         domain.Ledger        `json:"ledger"`
	Record         domain.AttemptRecord `json:"record"`
	TotalPossible  int                  `json:"totalPossible"`
	CompletionRate float64              `json:"completionRate"`
	Remaining      int                  `json:"remaining"`
}

// SubmissionService turns completed answer sets into committed attempts.
type SubmissionService struct {
	quizzes QuizRepository
	ledgers LedgerStore
	guard   SubmissionGuard
	feed    AttemptFeed
	logger  zerolog.Logger
	tracer  trace.Tracer
	now     func() time.Time
	newID   func() string
}

func NewSubmissionService(quizzes QuizRepository, ledgers LedgerStore, guard SubmissionGuard, feed AttemptFeed, logger zerolog.Logger) *SubmissionService {
	return &SubmissionService{
		quizzes: quizzes,
		ledgers: ledgers,
		guard:   guard,
		feed:    feed,
		logger:  logger.With().Str("component", "submission_service").Logger(),
		tracer:  otel.Tracer("quiz-ledger-service/internal/app/submission"),
		now:     time.Now,
		newID:   uuid.NewString,
	}
}

// WithClock is test-only for deterministic timestamps.
func (s *SubmissionService) WithClock(now func() time.Time) *SubmissionService {
	s.now = now
	return s
}

// Submit scores a complete answer set and appends it to the student's ledger.
func (s *SubmissionService) Submit(ctx context.Context, studentID, quizID string, answers []int) (SubmissionResult, error) {
	return s.submit(ctx, studentID, quizID, answers, false)
}

// ForceSubmit is the timer expiry path: unanswered questions score zero,
// everything else (ceiling, single writer, atomic commit) is as in Submit.
func (s *SubmissionService) ForceSubmit(ctx context.Context, studentID, quizID string, selected []int) (SubmissionResult, error) {
	return s.submit(ctx, studentID, quizID, selected, true)
}

func (s *SubmissionService) submit(ctx context.Context, studentID, quizID string, answers []int, forced bool) (result SubmissionResult, err error) {
	ctx, span := s.tracer.Start(ctx, "submissions.submit", trace.WithAttributes(
		attribute.String("quiz.id", quizID),
		attribute.String("student.id", studentID),
		attribute.Bool("submission.forced", forced),
	))
	defer span.End()
	defer func() {
		observability.Submissions().WithLabelValues(outcome(err)).Inc()
		if err != nil {
			span.RecordError(err)
		}
	}()

	spec, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return SubmissionResult{}, err
	}
	if !spec.Published {
		return SubmissionResult{}, domain.ErrQuizNotPublished
	}

	if forced {
		answers = ledger.PadAnswers(spec, answers)
	} else if err := ledger.Validate(spec, answers); err != nil {
		return SubmissionResult{}, err
	}

	release, err := s.guard.Acquire(ctx, studentID, quizID)
	if err != nil {
		if errors.Is(err, domain.ErrConcurrentSubmission) {
			return SubmissionResult{}, err
		}
		return SubmissionResult{}, fmt.Errorf("%w: acquire submission lock: %w", domain.ErrPersistence, err)
	}
	defer release()

	current, err := s.ledgers.GetLedger(ctx, studentID, quizID)
	if err != nil {
		return SubmissionResult{}, fmt.Errorf("%w: read ledger: %w", domain.ErrPersistence, err)
	}

	score := ledger.Score(spec, answers)
	next, record, err := ledger.Apply(current, spec, score, s.now())
	if err != nil {
		return SubmissionResult{}, err
	}
	if forced {
		record.Forced = true
		next.Attempts[len(next.Attempts)-1].Forced = true
	}

	fact := ledger.Fact(s.newID(), next, record)
	if err := s.ledgers.CommitAttempt(ctx, current.AttemptsUsed, next, fact); err != nil {
		if errors.Is(err, domain.ErrConcurrentSubmission) {
			return SubmissionResult{}, err
		}
		return SubmissionResult{}, fmt.Errorf("%w: commit attempt: %w", domain.ErrPersistence, err)
	}

	if s.feed != nil {
		if err := s.feed.Publish(ctx, fact); err != nil {
			s.logger.Warn().Err(err).Str("quiz_id", quizID).Msg("failed to publish attempt fact")
		}
	}

	s.logger.Info().
		Str("quiz_id", quizID).
		Str("student_id", studentID).
		Int("attempt", record.AttemptNumber).
		Int("score", record.Score).
		Bool("forced", forced).
		Msg("attempt committed")

	total := spec.TotalPossibleScore()
	return SubmissionResult{
		Ledger:         next,
		Record:         record,
		TotalPossible:  total,
		CompletionRate: ledger.CompletionRate(record.Score, total),
		Remaining:      ledger.AttemptsRemaining(next, spec),
	}, nil
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "accepted"
	case errors.Is(err, domain.ErrIncompleteSubmission):
		return "incomplete"
	case errors.Is(err, domain.ErrAttemptLimitExceeded):
		return "limit_exceeded"
	case errors.Is(err, domain.ErrConcurrentSubmission):
		return "conflict"
	case errors.Is(err, domain.ErrPersistence):
		return "persistence"
	case errors.Is(err, domain.ErrQuizNotFound), errors.Is(err, domain.ErrQuizNotPublished):
		return "unavailable"
	default:
		return "error"
	}
}
