package ledger

import (
	"iter"

	"quiz-ledger-service/internal/domain"
)

// Slot is one position in a student's attempt history.
type Slot struct {
	Number    int                  `json:"number"`
	Attempted bool                 `json:"attempted"`
	Record    domain.AttemptRecord `json:"record"`
	Best      bool                 `json:"best"`
}

// History yields exactly spec.AllowedAttempts slots keyed by zero-based index.
// Slots past AttemptsUsed report Attempted=false, so the view keeps a fixed
// shape regardless of progress. The sequence can be ranged over repeatedly.
func History(l domain.Ledger, spec domain.QuizSpec) iter.Seq2[int, Slot] {
	return func(yield func(int, Slot) bool) {
		for i := 0; i < spec.AllowedAttempts; i++ {
			slot := Slot{Number: i + 1}
			if i < len(l.Attempts) {
				slot.Attempted = true
				slot.Record = l.Attempts[i]
				slot.Best = l.Attempts[i].AttemptNumber == l.BestAttemptNumber
			}
			if !yield(i, slot) {
				return
			}
		}
	}
}

// Slots collects History into a slice for serialization.
func Slots(l domain.Ledger, spec domain.QuizSpec) []Slot {
	out := make([]Slot, 0, spec.AllowedAttempts)
	for _, s := range History(l, spec) {
		out = append(out, s)
	}
	return out
}
