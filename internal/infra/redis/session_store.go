package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"quiz-ledger-service/internal/domain"
)

// SessionStore keeps in-progress attempts in Redis so any instance can
// continue or expire them. Keys carry a TTL as a backstop for sessions whose
// owner never came back; it should comfortably exceed the longest quiz timer.
type SessionStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{client: client, ttl: ttl}
}

func (s *SessionStore) Save(ctx context.Context, session domain.AttemptSession) error {
	raw, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	return s.client.Set(ctx, s.key(session.StudentID, session.QuizID), raw, s.ttl).Err()
}

func (s *SessionStore) Get(ctx context.Context, studentID, quizID string) (domain.AttemptSession, bool, error) {
	raw, err := s.client.Get(ctx, s.key(studentID, quizID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.AttemptSession{}, false, nil
	}
	if err != nil {
		return domain.AttemptSession{}, false, err
	}
	var session domain.AttemptSession
	if err := json.Unmarshal(raw, &session); err != nil {
		return domain.AttemptSession{}, false, fmt.Errorf("decode session: %w", err)
	}
	return session, true, nil
}

// Update writes under WATCH so a session deleted or replaced by another
// instance in the meantime is never written back.
func (s *SessionStore) Update(ctx context.Context, session domain.AttemptSession) (bool, error) {
	raw, err := json.Marshal(session)
	if err != nil {
		return false, fmt.Errorf("encode session: %w", err)
	}
	key := s.key(session.StudentID, session.QuizID)
	updated := false
	err = s.client.Watch(ctx, func(tx *redis.Tx) error {
		stored, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return nil
		}
		if err != nil {
			return err
		}
		var current domain.AttemptSession
		if err := json.Unmarshal(stored, &current); err != nil {
			return fmt.Errorf("decode session: %w", err)
		}
		if !current.StartedAt.Equal(session.StartedAt) {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, raw, s.ttl)
			return nil
		})
		if err == nil {
			updated = true
		}
		return err
	}, key)
	if errors.Is(err, redis.TxFailedErr) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return updated, nil
}

// Delete relies on DEL returning the number of removed keys, so only one of
// several racing callers sees true.
func (s *SessionStore) Delete(ctx context.Context, studentID, quizID string) (bool, error) {
	n, err := s.client.Del(ctx, s.key(studentID, quizID)).Result()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *SessionStore) key(studentID, quizID string) string {
	return "quiz:session:" + quizID + ":" + studentID
}
