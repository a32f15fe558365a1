package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/driver/pgdriver"

	"quiz-ledger-service/internal/domain"
)

type ledgerRow struct {
	bun.BaseModel `bun:"table:attempt_ledgers"`

	QuizID            string                 `bun:"quiz_id,pk"`
	StudentID         string                 `bun:"student_id,pk"`
	AttemptsUsed      int                    `bun:"attempts_used,notnull"`
	Attempts          []domain.AttemptRecord `bun:"attempts,type:jsonb,notnull"`
	BestScore         int                    `bun:"best_score,notnull"`
	BestAttemptNumber int                    `bun:"best_attempt_number,notnull"`
	BestScoreAt       time.Time              `bun:"best_score_at,nullzero"`
	LastScore         int                    `bun:"last_score,notnull"`
	UpdatedAt         time.Time              `bun:"updated_at,notnull,default:current_timestamp"`
}

type factRow struct {
	bun.BaseModel `bun:"table:attempt_facts"`

	ID            string    `bun:"id,pk"`
	QuizID        string    `bun:"quiz_id,notnull"`
	StudentID     string    `bun:"student_id,notnull"`
	AttemptNumber int       `bun:"attempt_number,notnull"`
	Score         int       `bun:"score,notnull"`
	RecordedAt    time.Time `bun:"recorded_at,nullzero"`
}

// LedgerStore persists ledgers and facts with bun. A commit locks the ledger
// row, checks the attempt count and writes both rows in one transaction; the
// unique (quiz_id, student_id, attempt_number) index on facts backs it up.
type LedgerStore struct {
	db *bun.DB
}

func NewLedgerStore(db *bun.DB) *LedgerStore {
	return &LedgerStore{db: db}
}

func (s *LedgerStore) GetLedger(ctx context.Context, studentID, quizID string) (domain.Ledger, error) {
	row := new(ledgerRow)
	err := s.db.NewSelect().Model(row).
		Where("quiz_id = ?", quizID).
		Where("student_id = ?", studentID).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.NewLedger(studentID, quizID), nil
	}
	if err != nil {
		return domain.Ledger{}, fmt.Errorf("select ledger: %w", err)
	}
	return row.toDomain(), nil
}

func (s *LedgerStore) CommitAttempt(ctx context.Context, expectedAttempts int, l domain.Ledger, fact domain.AttemptFact) error {
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		current := new(ledgerRow)
		err := tx.NewSelect().Model(current).
			Where("quiz_id = ?", l.QuizID).
			Where("student_id = ?", l.StudentID).
			For("UPDATE").
			Scan(ctx)
		exists := true
		if errors.Is(err, sql.ErrNoRows) {
			exists, current.AttemptsUsed = false, 0
		} else if err != nil {
			return fmt.Errorf("lock ledger: %w", err)
		}
		if current.AttemptsUsed != expectedAttempts {
			return domain.ErrConcurrentSubmission
		}

		next := ledgerRowFrom(l)
		if exists {
			_, err = tx.NewUpdate().Model(next).WherePK().ExcludeColumn("quiz_id", "student_id").Exec(ctx)
		} else {
			_, err = tx.NewInsert().Model(next).Exec(ctx)
		}
		if err != nil {
			return fmt.Errorf("write ledger: %w", err)
		}

		if _, err := tx.NewInsert().Model(factRowFrom(fact)).Exec(ctx); err != nil {
			return fmt.Errorf("insert fact: %w", err)
		}
		return nil
	})
	if integrityViolation(err) {
		// two first attempts raced on the insert, or the fact already exists
		return domain.ErrConcurrentSubmission
	}
	return err
}

func (s *LedgerStore) ListFacts(ctx context.Context, quizID string) ([]domain.AttemptFact, error) {
	var rows []factRow
	if err := s.db.NewSelect().Model(&rows).Where("quiz_id = ?", quizID).Scan(ctx); err != nil {
		return nil, fmt.Errorf("select facts: %w", err)
	}
	facts := make([]domain.AttemptFact, 0, len(rows))
	for _, r := range rows {
		facts = append(facts, domain.AttemptFact{
			ID:            r.ID,
			QuizID:        r.QuizID,
			StudentID:     r.StudentID,
			AttemptNumber: r.AttemptNumber,
			Score:         r.Score,
			Timestamp:     r.RecordedAt.UTC(),
		})
	}
	return facts, nil
}

func integrityViolation(err error) bool {
	var pgErr pgdriver.Error
	return errors.As(err, &pgErr) && pgErr.IntegrityViolation()
}

func ledgerRowFrom(l domain.Ledger) *ledgerRow {
	attempts := l.Attempts
	if attempts == nil {
		attempts = []domain.AttemptRecord{}
	}
	return &ledgerRow{
		QuizID:            l.QuizID,
		StudentID:         l.StudentID,
		AttemptsUsed:      l.AttemptsUsed,
		Attempts:          attempts,
		BestScore:         l.BestScore,
		BestAttemptNumber: l.BestAttemptNumber,
		BestScoreAt:       l.BestScoreTimestamp,
		LastScore:         l.LastScore,
		UpdatedAt:         time.Now().UTC(),
	}
}

func (r *ledgerRow) toDomain() domain.Ledger {
	return domain.Ledger{
		StudentID:          r.StudentID,
		QuizID:             r.QuizID,
		AttemptsUsed:       r.AttemptsUsed,
		Attempts:           r.Attempts,
		BestScore:          r.BestScore,
		BestAttemptNumber:  r.BestAttemptNumber,
		BestScoreTimestamp: r.BestScoreAt.UTC(),
		LastScore:          r.LastScore,
	}
}

func factRowFrom(f domain.AttemptFact) *factRow {
	return &factRow{
		ID:            f.ID,
		QuizID:        f.QuizID,
		StudentID:     f.StudentID,
		AttemptNumber: f.AttemptNumber,
		Score:         f.Score,
		RecordedAt:    f.Timestamp,
	}
}
