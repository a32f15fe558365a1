package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"quiz-ledger-service/internal/domain"
	"quiz-ledger-service/internal/ingest"
)

// LedgerStore keeps ledgers and attempt facts in Redis.
//
//	ledger:{quizID}:{studentID}  JSON ledger
//	quiz:{quizID}:attempts       list of JSON attempt facts
//
// Commits run under WATCH on the ledger key, so a concurrent writer aborts the
// transaction instead of overwriting it.
type LedgerStore struct {
	client *redis.Client
}

func NewLedgerStore(client *redis.Client) *LedgerStore {
	return &LedgerStore{client: client}
}

func (s *LedgerStore) GetLedger(ctx context.Context, studentID, quizID string) (domain.Ledger, error) {
	return readLedger(ctx, s.client, studentID, quizID)
}

func (s *LedgerStore) CommitAttempt(ctx context.Context, expectedAttempts int, l domain.Ledger, fact domain.AttemptFact) error {
	ledgerRaw, err := json.Marshal(l)
	if err != nil {
		return fmt.Errorf("encode ledger: %w", err)
	}
	factRaw, err := ingest.EncodeFact(fact)
	if err != nil {
		return fmt.Errorf("encode fact: %w", err)
	}

	key := ledgerKey(l.StudentID, l.QuizID)
	err = s.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := readLedger(ctx, tx, l.StudentID, l.QuizID)
		if err != nil {
			return err
		}
		if current.AttemptsUsed != expectedAttempts {
			return domain.ErrConcurrentSubmission
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, ledgerRaw, 0)
			pipe.RPush(ctx, factsKey(fact.QuizID), factRaw)
			return nil
		})
		return err
	}, key)
	if errors.Is(err, redis.TxFailedErr) {
		return domain.ErrConcurrentSubmission
	}
	return err
}

// ListFacts returns all facts for a quiz. Entries that are not JSON at all
// come back as empty facts so the leaderboard counts them as excluded.
func (s *LedgerStore) ListFacts(ctx context.Context, quizID string) ([]domain.AttemptFact, error) {
	raws, err := s.client.LRange(ctx, factsKey(quizID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list facts: %w", err)
	}
	facts := make([]domain.AttemptFact, 0, len(raws))
	for _, raw := range raws {
		fact, err := ingest.DecodeFact([]byte(raw))
		if err != nil {
			fact = domain.AttemptFact{QuizID: quizID}
		}
		facts = append(facts, fact)
	}
	return facts, nil
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func readLedger(ctx context.Context, c getter, studentID, quizID string) (domain.Ledger, error) {
	raw, err := c.Get(ctx, ledgerKey(studentID, quizID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.NewLedger(studentID, quizID), nil
	}
	if err != nil {
		return domain.Ledger{}, fmt.Errorf("read ledger: %w", err)
	}
	var l domain.Ledger
	if err := json.Unmarshal(raw, &l); err != nil {
		return domain.Ledger{}, fmt.Errorf("decode ledger: %w", err)
	}
	return l, nil
}

func ledgerKey(studentID, quizID string) string {
	return "ledger:" + quizID + ":" + studentID
}

func factsKey(quizID string) string {
	return "quiz:" + quizID + ":attempts"
}
