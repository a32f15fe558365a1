package ingest

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"

	"quiz-ledger-service/internal/domain"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// quizDocument is the stored quiz shape written by the authoring flow.
type quizDocument struct {
	Subject   string             `json:"subject"`
	MentorID  string             `json:"userId"`
	Attempts  any                `json:"attempts"`
	Score     any                `json:"score"`
	Timer     any                `json:"timer"`
	Published any                `json:"published"`
	Questions []questionDocument `json:"questions"`
}

type questionDocument struct {
	ID               string   `json:"id"`
	Question         string   `json:"question"`
	Options          []string `json:"options"`
	CorrectOption    any      `json:"correctOption"`
	ScorePerQuestion any      `json:"scorePerQuestion"`
}

type quizRules struct {
	Subject           string `validate:"required"`
	PointsPerQuestion int    `validate:"gt=0"`
	AllowedAttempts   int    `validate:"min=1,max=3"`
	Timer             int    `validate:"gte=0"`
	Questions         int    `validate:"gt=0"`
}

// DecodeQuiz parses a stored quiz document into a validated QuizSpec.
func DecodeQuiz(id string, raw []byte) (domain.QuizSpec, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc quizDocument
	if err := dec.Decode(&doc); err != nil {
		return domain.QuizSpec{}, fmt.Errorf("%w: %v", domain.ErrInvalidQuiz, err)
	}

	spec := domain.QuizSpec{
		ID:                      id,
		MentorID:                doc.MentorID,
		Subject:                 doc.Subject,
		PointsPerQuestion:       Int(doc.Score, 1),
		AllowedAttempts:         Int(doc.Attempts, 1),
		PerQuestionTimerMinutes: Int(doc.Timer, 0),
		Published:               Published(doc.Published),
		Questions:               make([]domain.Question, 0, len(doc.Questions)),
	}
	for i, q := range doc.Questions {
		qid := q.ID
		if qid == "" {
			qid = fmt.Sprintf("q%d", i+1)
		}
		spec.Questions = append(spec.Questions, domain.Question{
			ID:            qid,
			Prompt:        q.Question,
			Options:       q.Options,
			CorrectOption: Int(q.CorrectOption, 0),
			Points:        Int(q.ScorePerQuestion, 0),
		})
	}

	if err := ValidateQuiz(spec); err != nil {
		return domain.QuizSpec{}, err
	}
	return spec, nil
}

// ValidateQuiz enforces the authoring invariants the attempt engine relies on.
func ValidateQuiz(spec domain.QuizSpec) error {
	rules := quizRules{
		Subject:           spec.Subject,
		PointsPerQuestion: spec.PointsPerQuestion,
		AllowedAttempts:   spec.AllowedAttempts,
		Timer:             spec.PerQuestionTimerMinutes,
		Questions:         spec.TotalQuestions(),
	}
	if err := validate.Struct(rules); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidQuiz, err)
	}
	for i, q := range spec.Questions {
		if q.CorrectOption < 0 || (len(q.Options) > 0 && q.CorrectOption >= len(q.Options)) {
			return fmt.Errorf("%w: question %d has no valid correct option", domain.ErrInvalidQuiz, i+1)
		}
		if q.Points < 0 {
			return fmt.Errorf("%w: question %d has negative points", domain.ErrInvalidQuiz, i+1)
		}
	}
	return nil
}

// EncodeQuiz writes spec in the stored document shape.
func EncodeQuiz(spec domain.QuizSpec) ([]byte, error) {
	doc := quizDocument{
		Subject:   spec.Subject,
		MentorID:  spec.MentorID,
		Attempts:  spec.AllowedAttempts,
		Score:     spec.PointsPerQuestion,
		Timer:     spec.PerQuestionTimerMinutes,
		Published: spec.Published,
		Questions: make([]questionDocument, 0, len(spec.Questions)),
	}
	for _, q := range spec.Questions {
		qd := questionDocument{
			ID:            q.ID,
			Question:      q.Prompt,
			Options:       q.Options,
			CorrectOption: q.CorrectOption,
		}
		if q.Points > 0 {
			qd.ScorePerQuestion = q.Points
		}
		doc.Questions = append(doc.Questions, qd)
	}
	return json.Marshal(doc)
}
