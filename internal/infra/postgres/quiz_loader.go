package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"quiz-ledger-service/internal/domain"
	"quiz-ledger-service/internal/ingest"
)

// QuizLoader loads quiz documents (JSONB) from Postgres.
type QuizLoader struct {
	pool *pgxpool.Pool
}

func NewQuizLoader(pool *pgxpool.Pool) *QuizLoader {
	return &QuizLoader{pool: pool}
}

func (l *QuizLoader) LoadQuiz(ctx context.Context, quizID string) (domain.QuizSpec, error) {
	var raw []byte
	err := l.pool.QueryRow(ctx, `SELECT data FROM quizzes WHERE id=$1`, quizID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.QuizSpec{}, domain.ErrQuizNotFound
	}
	if err != nil {
		return domain.QuizSpec{}, fmt.Errorf("load quiz: %w", err)
	}
	return ingest.DecodeQuiz(quizID, raw)
}

// ProfileResolver reads student names from the profiles table.
type ProfileResolver struct {
	pool *pgxpool.Pool
}

func NewProfileResolver(pool *pgxpool.Pool) *ProfileResolver {
	return &ProfileResolver{pool: pool}
}

func (r *ProfileResolver) Resolve(ctx context.Context, studentID string) (domain.StudentName, error) {
	var p ingest.Profile
	err := r.pool.QueryRow(ctx, `
		SELECT COALESCE(first_name, ''), COALESCE(last_name, ''), COALESCE(display_name, ''), COALESCE(email, '')
		FROM profiles WHERE id=$1`, studentID).Scan(&p.FirstName, &p.LastName, &p.DisplayName, &p.Email)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.StudentName{}, domain.ErrProfileNotFound
	}
	if err != nil {
		return domain.StudentName{}, fmt.Errorf("load profile: %w", err)
	}
	name, ok := ingest.StudentName(p)
	if !ok {
		return domain.StudentName{}, domain.ErrProfileNotFound
	}
	return name, nil
}
