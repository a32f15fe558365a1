package ledger

import (
	"fmt"

	"quiz-ledger-service/internal/domain"
)

// Validate checks that answers is a complete submission for spec.
func Validate(spec domain.QuizSpec, answers []int) error {
	if len(answers) != spec.TotalQuestions() {
		return fmt.Errorf("%w: got %d answers for %d questions", domain.ErrIncompleteSubmission, len(answers), spec.TotalQuestions())
	}
	for i, a := range answers {
		if !definedOption(spec.Questions[i], a) {
			return fmt.Errorf("%w: question %d has no valid answer", domain.ErrIncompleteSubmission, i+1)
		}
	}
	return nil
}

// PadAnswers fits a partial answer set to the quiz, filling the gaps with
// domain.NoAnswer and replacing out-of-range selections. Used on timer expiry.
func PadAnswers(spec domain.QuizSpec, answers []int) []int {
	out := make([]int, spec.TotalQuestions())
	for i := range out {
		out[i] = domain.NoAnswer
		if i < len(answers) && definedOption(spec.Questions[i], answers[i]) {
			out[i] = answers[i]
		}
	}
	return out
}

// Score sums the points of every exactly-matching answer.
func Score(spec domain.QuizSpec, answers []int) int {
	score := 0
	for i, q := range spec.Questions {
		if i >= len(answers) {
			break
		}
		if answers[i] != domain.NoAnswer && answers[i] == q.CorrectOption {
			score += spec.QuestionPoints(i)
		}
	}
	return score
}

// CompletionRate returns score as a percentage of the quiz maximum.
func CompletionRate(score, totalPossible int) float64 {
	if totalPossible <= 0 {
		return 0
	}
	return float64(score) / float64(totalPossible) * 100
}

func definedOption(q domain.Question, answer int) bool {
	if answer < 0 {
		return false
	}
	if len(q.Options) > 0 && answer >= len(q.Options) {
		return false
	}
	return true
}
