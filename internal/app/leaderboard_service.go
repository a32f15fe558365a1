package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"quiz-ledger-service/internal/domain"
	"quiz-ledger-service/internal/ledger"
	"quiz-ledger-service/internal/observability"
	"quiz-ledger-service/internal/ranking"
)

// Progress is a student's own view of one quiz.
type Progress struct {
	QuizID        string        `json:"quizId"`
	StudentID     string        `json:"studentId"`
	AttemptsUsed  int           `json:"attemptsUsed"`
	Allowed       int           `json:"allowedAttempts"`
	Remaining     int           `json:"remaining"`
	CanAttempt    bool          `json:"canAttempt"`
	BestScore     *int          `json:"bestScore"` // nil means no attempts, not a zero score
	BestAttempt   int           `json:"bestAttemptNumber,omitempty"`
	LastScore     *int          `json:"lastScore"`
	TotalPossible int           `json:"totalPossible"`
	History       []ledger.Slot `json:"history"`
	// Standing is the student's own row, unranked. Nil before the first attempt.
	Standing *domain.LeaderboardRow `json:"standing,omitempty"`
}

// LeaderboardService builds mentor leaderboards and student progress views.
// It only reads ledgers and facts and is safe to run alongside submissions.
type LeaderboardService struct {
	quizzes  QuizRepository
	ledgers  LedgerStore
	profiles ProfileResolver
	logger   zerolog.Logger
	tracer   trace.Tracer
	now      func() time.Time
	hub      *leaderboardHub
}

func NewLeaderboardService(quizzes QuizRepository, ledgers LedgerStore, profiles ProfileResolver, logger zerolog.Logger) *LeaderboardService {
	return &LeaderboardService{
		quizzes:  quizzes,
		ledgers:  ledgers,
		profiles: profiles,
		logger:   logger.With().Str("component", "leaderboard_service").Logger(),
		tracer:   otel.Tracer("quiz-ledger-service/internal/app/leaderboard"),
		now:      time.Now,
		hub:      newLeaderboardHub(),
	}
}

// Leaderboard ranks every student with at least one attempt on a published quiz.
func (s *LeaderboardService) Leaderboard(ctx context.Context, quizID string) (domain.Leaderboard, error) {
	ctx, span := s.tracer.Start(ctx, "leaderboard.rank", trace.WithAttributes(attribute.String("quiz.id", quizID)))
	defer span.End()
	started := time.Now()
	defer func() { observability.RankDuration().Observe(time.Since(started).Seconds()) }()

	spec, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return domain.Leaderboard{}, err
	}
	if !spec.Published {
		return domain.Leaderboard{}, domain.ErrQuizNotPublished
	}

	facts, err := s.ledgers.ListFacts(ctx, quizID)
	if err != nil {
		span.RecordError(err)
		return domain.Leaderboard{}, fmt.Errorf("list attempt facts: %w", err)
	}

	names := s.resolveNames(ctx, facts)
	total := spec.TotalPossibleScore()
	rows, excluded := ranking.RowsFromFacts(facts, func(studentID string) domain.StudentName {
		return names[studentID]
	}, total, spec.AllowedAttempts)
	if excluded > 0 {
		observability.ExcludedFacts().Add(float64(excluded))
		s.logger.Warn().Str("quiz_id", quizID).Int("excluded", excluded).Msg("unreadable attempt facts left out of leaderboard")
	}

	return domain.Leaderboard{
		QuizID:        quizID,
		TotalPossible: total,
		Rows:          ranking.Rank(rows),
		Excluded:      excluded,
		UpdatedAt:     s.now(),
	}, nil
}

// Progress returns the student's attempts, remaining count and fixed-size history.
func (s *LeaderboardService) Progress(ctx context.Context, studentID, quizID string) (Progress, error) {
	spec, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return Progress{}, err
	}
	l, err := s.ledgers.GetLedger(ctx, studentID, quizID)
	if err != nil {
		return Progress{}, fmt.Errorf("%w: read ledger: %w", domain.ErrPersistence, err)
	}

	p := Progress{
		QuizID:        quizID,
		StudentID:     studentID,
		AttemptsUsed:  l.AttemptsUsed,
		Allowed:       spec.AllowedAttempts,
		Remaining:     ledger.AttemptsRemaining(l, spec),
		CanAttempt:    ledger.CanAttempt(l, spec),
		TotalPossible: spec.TotalPossibleScore(),
		History:       ledger.Slots(l, spec),
	}
	if best, ok := l.Best(); ok {
		p.BestScore = &best
		p.BestAttempt = l.BestAttemptNumber
	}
	if last, ok := l.Last(); ok {
		p.LastScore = &last
	}
	if row, ok := ranking.RowFromLedger(l, domain.StudentName{}, p.TotalPossible); ok {
		p.Standing = &row
	}
	return p, nil
}

// Summary aggregates the leaderboard for the mentor dashboard. Drafts report
// zero students since nobody can attempt them.
func (s *LeaderboardService) Summary(ctx context.Context, quizID string) (domain.QuizSummary, error) {
	spec, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return domain.QuizSummary{}, err
	}
	summary := domain.QuizSummary{QuizID: quizID, Subject: spec.Subject, Published: spec.Published}
	if !spec.Published {
		return summary, nil
	}

	lb, err := s.Leaderboard(ctx, quizID)
	if err != nil {
		return domain.QuizSummary{}, err
	}
	summary.TotalStudents = len(lb.Rows)
	bestSum := 0
	for _, r := range lb.Rows {
		summary.TotalAttempts += r.TotalAttempts
		bestSum += r.BestScore
	}
	if len(lb.Rows) > 0 {
		summary.AverageBestScore = float64(bestSum) / float64(len(lb.Rows))
	}
	return summary, nil
}

// Subscribe returns a channel that receives leaderboard updates for a quiz.
// The caller must invoke the returned cancel function to avoid leaks.
func (s *LeaderboardService) Subscribe(ctx context.Context, quizID string) (<-chan domain.Leaderboard, func(), error) {
	initial, err := s.Leaderboard(ctx, quizID)
	if err != nil {
		return nil, nil, err
	}
	ch, cancel := s.hub.subscribe(quizID, initial)
	return ch, cancel, nil
}

// Publish implements AttemptFeed: a new fact re-ranks the quiz for live subscribers.
func (s *LeaderboardService) Publish(ctx context.Context, fact domain.AttemptFact) error {
	if !s.hub.watched(fact.QuizID) {
		return nil
	}
	lb, err := s.Leaderboard(ctx, fact.QuizID)
	if err != nil {
		return err
	}
	s.hub.broadcast(lb)
	return nil
}

// Notify is the handler for facts arriving from other instances.
func (s *LeaderboardService) Notify(ctx context.Context, fact domain.AttemptFact) {
	if err := s.Publish(ctx, fact); err != nil {
		s.logger.Warn().Err(err).Str("quiz_id", fact.QuizID).Msg("failed to refresh live leaderboard")
	}
}

func (s *LeaderboardService) resolveNames(ctx context.Context, facts []domain.AttemptFact) map[string]domain.StudentName {
	names := make(map[string]domain.StudentName)
	for _, f := range facts {
		if f.StudentID == "" {
			continue
		}
		if _, seen := names[f.StudentID]; seen {
			continue
		}
		name, err := s.profiles.Resolve(ctx, f.StudentID)
		if err != nil || (name.FirstName == "" && name.LastName == "") {
			if err == nil {
				err = domain.ErrProfileNotFound
			}
			if !errors.Is(err, domain.ErrProfileNotFound) {
				err = fmt.Errorf("%w: %w", domain.ErrIdentityResolution, err)
			}
			s.logger.Debug().Err(err).Str("student_id", f.StudentID).Msg("using placeholder name")
			observability.IdentityFallbacks().Inc()
			name = domain.PlaceholderName(f.StudentID)
		}
		names[f.StudentID] = name
	}
	return names
}
