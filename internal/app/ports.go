package app

import (
	"context"
	"errors"

	"quiz-ledger-service/internal/domain"
)

// QuizRepository loads quiz content (from cache/backing store).
type QuizRepository interface {
	GetQuiz(ctx context.Context, quizID string) (domain.QuizSpec, error)
}

// LedgerStore persists attempt ledgers and the quiz-scoped attempt facts.
type LedgerStore interface {
	// GetLedger returns the stored ledger, or a fresh zero ledger when none exists.
	GetLedger(ctx context.Context, studentID, quizID string) (domain.Ledger, error)
	// CommitAttempt replaces the ledger and appends fact in one atomic step. It
	// fails with domain.ErrConcurrentSubmission when the stored AttemptsUsed no
	// longer equals expectedAttempts, and writes nothing on any failure.
	CommitAttempt(ctx context.Context, expectedAttempts int, ledger domain.Ledger, fact domain.AttemptFact) error
	// ListFacts returns every attempt fact recorded for a quiz, in no particular order.
	ListFacts(ctx context.Context, quizID string) ([]domain.AttemptFact, error)
}

// SubmissionGuard admits at most one in-flight submission per (student, quiz).
type SubmissionGuard interface {
	// Acquire returns domain.ErrConcurrentSubmission when the pair is already held.
	Acquire(ctx context.Context, studentID, quizID string) (release func(), err error)
}

// SessionRepository abstracts how in-progress attempts are stored (in-memory, Redis, etc).
type SessionRepository interface {
	Save(ctx context.Context, session domain.AttemptSession) error
	Get(ctx context.Context, studentID, quizID string) (domain.AttemptSession, bool, error)
	// Update replaces the stored session only while the same attempt (by
	// StartedAt) is still open, and reports whether it did.
	Update(ctx context.Context, session domain.AttemptSession) (bool, error)
	// Delete reports whether the session existed; only one caller ever observes true.
	Delete(ctx context.Context, studentID, quizID string) (bool, error)
}

// ProfileResolver maps a student ID to a display name.
type ProfileResolver interface {
	Resolve(ctx context.Context, studentID string) (domain.StudentName, error)
}

// AttemptFeed receives every committed attempt fact.
type AttemptFeed interface {
	Publish(ctx context.Context, fact domain.AttemptFact) error
}

// FanoutFeed publishes to several feeds and joins their errors.
type FanoutFeed []AttemptFeed

func (f FanoutFeed) Publish(ctx context.Context, fact domain.AttemptFact) error {
	var errs []error
	for _, feed := range f {
		if feed == nil {
			continue
		}
		if err := feed.Publish(ctx, fact); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
