package domain

import "errors"

var (
	// ErrIncompleteSubmission is returned when not every question carries a valid answer.
	ErrIncompleteSubmission = errors.New("incomplete submission")
	// ErrAttemptLimitExceeded is returned when the ledger already holds AllowedAttempts attempts.
	ErrAttemptLimitExceeded = errors.New("attempt limit exceeded")
	// ErrConcurrentSubmission is returned when another submission for the same ledger is in flight.
	ErrConcurrentSubmission = errors.New("concurrent submission in flight")
	// ErrPersistence wraps store failures; the ledger is unchanged and the caller may retry.
	ErrPersistence = errors.New("persistence failure")
	// ErrIdentityResolution indicates a display name lookup failed.
	ErrIdentityResolution = errors.New("identity resolution failed")
	// ErrQuizNotFound indicates the quiz content could not be loaded.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrQuizNotPublished is returned when students act on a draft quiz.
	ErrQuizNotPublished = errors.New("quiz not published")
	// ErrInvalidQuiz indicates a stored quiz document failed validation.
	ErrInvalidQuiz = errors.New("invalid quiz document")
	// ErrProfileNotFound indicates no profile exists for a student.
	ErrProfileNotFound = errors.New("profile not found")
	// ErrAttemptNotStarted is returned when acting on an attempt that is not in progress.
	ErrAttemptNotStarted = errors.New("attempt not started")
	// ErrAttemptInProgress is returned when starting an attempt while one is open.
	ErrAttemptInProgress = errors.New("attempt already in progress")
)
