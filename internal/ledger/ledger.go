// Package ledger holds the pure attempt-ledger rules: scoring, appending an
// attempt under the attempt ceiling, and the read accessors used by the
// student and mentor views. Nothing here performs I/O.
package ledger

import (
	"time"

	"quiz-ledger-service/internal/domain"
)

// Apply appends a scored attempt to l and returns the updated copy and the new record.
// l itself is never modified, so a rejected or uncommitted attempt leaves the caller's
// ledger exactly as it was.
func Apply(l domain.Ledger, spec domain.QuizSpec, score int, now time.Time) (domain.Ledger, domain.AttemptRecord, error) {
	if l.AttemptsUsed >= spec.AllowedAttempts {
		return l, domain.AttemptRecord{}, domain.ErrAttemptLimitExceeded
	}

	// Timestamps never go backwards within one ledger.
	if n := len(l.Attempts); n > 0 && now.Before(l.Attempts[n-1].Timestamp) {
		now = l.Attempts[n-1].Timestamp
	}

	next := l.Clone()
	record := domain.AttemptRecord{
		AttemptNumber: l.AttemptsUsed + 1,
		Score:         score,
		Timestamp:     now,
	}
	next.Attempts = append(next.Attempts, record)
	next.LastScore = score
	// The first attempt always sets best so BestAttemptNumber points at a real
	// attempt even when it scored 0; later ties keep the earlier attempt.
	if !l.HasAttempts() || score > l.BestScore {
		next.BestScore = score
		next.BestAttemptNumber = record.AttemptNumber
		next.BestScoreTimestamp = record.Timestamp
	}
	next.AttemptsUsed = l.AttemptsUsed + 1
	return next, record, nil
}

// AttemptsRemaining is the number of attempts left, never negative.
func AttemptsRemaining(l domain.Ledger, spec domain.QuizSpec) int {
	remaining := spec.AllowedAttempts - l.AttemptsUsed
	if remaining < 0 {
		return 0
	}
	return remaining
}

// CanAttempt reports whether the student may start another attempt.
// Students only take published quizzes; publishing locks editing, not taking.
func CanAttempt(l domain.Ledger, spec domain.QuizSpec) bool {
	return spec.Published && AttemptsRemaining(l, spec) > 0
}

// Fact projects an attempt record into the quiz-scoped feed entry.
func Fact(id string, l domain.Ledger, record domain.AttemptRecord) domain.AttemptFact {
	return domain.AttemptFact{
		ID:            id,
		QuizID:        l.QuizID,
		StudentID:     l.StudentID,
		AttemptNumber: record.AttemptNumber,
		Score:         record.Score,
		Timestamp:     record.Timestamp,
	}
}
