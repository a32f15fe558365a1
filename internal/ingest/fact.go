package ingest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"quiz-ledger-service/internal/domain"
)

// factDocument tolerates facts written by older clients, where numbers and
// timestamps were not always typed consistently.
type factDocument struct {
	ID            string `json:"id"`
	QuizID        string `json:"quizId"`
	StudentID     string `json:"studentId"`
	AttemptNumber any    `json:"attemptNumber"`
	Score         any    `json:"score"`
	Timestamp     any    `json:"timestamp"`
}

// DecodeFact parses a stored attempt fact. Fields that cannot be read come
// back zeroed (attempt 0, score -1) so the leaderboard drops the fact.
func DecodeFact(raw []byte) (domain.AttemptFact, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc factDocument
	if err := dec.Decode(&doc); err != nil {
		return domain.AttemptFact{}, fmt.Errorf("decode attempt fact: %w", err)
	}
	return domain.AttemptFact{
		ID:            doc.ID,
		QuizID:        doc.QuizID,
		StudentID:     doc.StudentID,
		AttemptNumber: Int(doc.AttemptNumber, 0),
		Score:         Int(doc.Score, -1),
		Timestamp:     Timestamp(doc.Timestamp),
	}, nil
}

func EncodeFact(fact domain.AttemptFact) ([]byte, error) {
	return json.Marshal(fact)
}

// FactEvent is the envelope broadcast between service instances when an
// attempt is committed. Source lets a node ignore its own events.
type FactEvent struct {
	Source string             `json:"source"`
	Fact   domain.AttemptFact `json:"fact"`
	SentAt time.Time          `json:"sentAt"`
}

func EncodeFactEvent(source string, fact domain.AttemptFact) ([]byte, error) {
	return json.Marshal(FactEvent{Source: source, Fact: fact, SentAt: time.Now().UTC()})
}

func DecodeFactEvent(raw []byte) (FactEvent, error) {
	var event FactEvent
	if err := json.Unmarshal(raw, &event); err != nil {
		return FactEvent{}, fmt.Errorf("decode fact event: %w", err)
	}
	return event, nil
}
