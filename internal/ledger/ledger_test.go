package ledger

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"quiz-ledger-service/internal/domain"
)

var t0 = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func quiz(questions, points, allowed int) domain.QuizSpec {
	spec := domain.QuizSpec{
		ID:                "quiz-1",
		Subject:           "Math",
		PointsPerQuestion: points,
		AllowedAttempts:   allowed,
		Published:         true,
	}
	for i := 0; i < questions; i++ {
		spec.Questions = append(spec.Questions, domain.Question{
			ID:            "q" + string(rune('1'+i)),
			Options:       []string{"a", "b", "c", "d"},
			CorrectOption: 1,
		})
	}
	return spec
}

func submit(t *testing.T, l domain.Ledger, spec domain.QuizSpec, score int, at time.Time) domain.Ledger {
	t.Helper()
	next, _, err := Apply(l, spec, score, at)
	require.NoError(t, err)
	return next
}

func TestScenarioTwoAttemptsThenLimit(t *testing.T) {
	spec := quiz(10, 1, 2)
	l := domain.NewLedger("s1", spec.ID)

	l = submit(t, l, spec, 5, t0)
	l = submit(t, l, spec, 8, t0.Add(time.Minute))

	require.Equal(t, 2, l.AttemptsUsed)
	require.Equal(t, 8, l.BestScore)
	require.Equal(t, 2, l.BestAttemptNumber)
	require.Equal(t, 8, l.LastScore)
	require.Equal(t, t0.Add(time.Minute), l.BestScoreTimestamp)

	before := l.Clone()
	after, _, err := Apply(l, spec, 10, t0.Add(2*time.Minute))
	require.ErrorIs(t, err, domain.ErrAttemptLimitExceeded)
	require.True(t, reflect.DeepEqual(before, after), "ledger must be unchanged on rejection")
	require.True(t, reflect.DeepEqual(before, l))
}

func TestAttemptNumbersAreContiguous(t *testing.T) {
	spec := quiz(4, 1, 3)
	l := domain.NewLedger("s1", spec.ID)
	for i, score := range []int{2, 4, 1} {
		l = submit(t, l, spec, score, t0.Add(time.Duration(i)*time.Second))
	}
	require.Len(t, l.Attempts, l.AttemptsUsed)
	for i, a := range l.Attempts {
		require.Equal(t, i+1, a.AttemptNumber)
	}
}

func TestBestScoreKeepsFirstOfTiedAttempts(t *testing.T) {
	spec := quiz(10, 1, 3)
	l := domain.NewLedger("s1", spec.ID)
	l = submit(t, l, spec, 7, t0)
	l = submit(t, l, spec, 7, t0.Add(time.Minute))
	l = submit(t, l, spec, 3, t0.Add(2*time.Minute))

	require.Equal(t, 7, l.BestScore)
	require.Equal(t, 1, l.BestAttemptNumber)
	require.Equal(t, t0, l.BestScoreTimestamp)
	require.Equal(t, 3, l.LastScore)
}

func TestZeroScoreIsDistinctFromNoAttempts(t *testing.T) {
	spec := quiz(3, 1, 2)
	empty := domain.NewLedger("s1", spec.ID)
	_, ok := empty.Best()
	require.False(t, ok)

	l := submit(t, empty, spec, 0, t0)
	best, ok := l.Best()
	require.True(t, ok)
	require.Equal(t, 0, best)
	require.Equal(t, 1, l.BestAttemptNumber)
}

func TestApplyDoesNotAliasInput(t *testing.T) {
	spec := quiz(3, 1, 3)
	l := submit(t, domain.NewLedger("s1", spec.ID), spec, 1, t0)
	l.Attempts = append(make([]domain.AttemptRecord, 0, 8), l.Attempts...)

	next := submit(t, l, spec, 2, t0.Add(time.Second))
	next.Attempts[0].Score = 99
	require.Equal(t, 1, l.Attempts[0].Score)
	require.Len(t, l.Attempts, 1)
}

func TestTimestampsNeverDecrease(t *testing.T) {
	spec := quiz(3, 1, 2)
	l := submit(t, domain.NewLedger("s1", spec.ID), spec, 1, t0)
	l = submit(t, l, spec, 2, t0.Add(-time.Hour))
	require.False(t, l.Attempts[1].Timestamp.Before(l.Attempts[0].Timestamp))
}

func TestAttemptsRemainingAndCanAttempt(t *testing.T) {
	spec := quiz(3, 1, 2)
	l := domain.NewLedger("s1", spec.ID)
	require.Equal(t, 2, AttemptsRemaining(l, spec))
	require.True(t, CanAttempt(l, spec))

	l.AttemptsUsed = 5
	require.Equal(t, 0, AttemptsRemaining(l, spec))
	require.False(t, CanAttempt(l, spec))

	draft := spec
	draft.Published = false
	require.False(t, CanAttempt(domain.NewLedger("s1", spec.ID), draft))
	require.True(t, draft.Editable())
	require.False(t, spec.Editable())
}

func TestHistoryHasFixedShape(t *testing.T) {
	spec := quiz(3, 1, 3)
	l := submit(t, domain.NewLedger("s1", spec.ID), spec, 2, t0)

	seq := History(l, spec)
	for pass := 0; pass < 2; pass++ {
		var slots []Slot
		for i, s := range seq {
			require.Equal(t, i+1, s.Number)
			slots = append(slots, s)
		}
		require.Len(t, slots, 3)
		require.True(t, slots[0].Attempted)
		require.True(t, slots[0].Best)
		require.False(t, slots[1].Attempted)
		require.False(t, slots[2].Attempted)
	}
}

func TestHistoryStopsEarly(t *testing.T) {
	spec := quiz(3, 1, 3)
	seen := 0
	for range History(domain.NewLedger("s1", spec.ID), spec) {
		seen++
		break
	}
	require.Equal(t, 1, seen)
}

func TestScoreExactMatch(t *testing.T) {
	spec := quiz(5, 2, 1)

	require.Equal(t, 10, Score(spec, []int{1, 1, 1, 1, 1}))
	require.Equal(t, spec.TotalPossibleScore(), Score(spec, []int{1, 1, 1, 1, 1}))
	require.Equal(t, 0, Score(spec, []int{0, 2, 3, 0, 0}))

	// three correct of five, two points each
	score := Score(spec, []int{1, 0, 1, 3, 1})
	require.Equal(t, 6, score)
	require.InDelta(t, 60.0, CompletionRate(score, spec.TotalPossibleScore()), 1e-9)
}

func TestScoreUsesPerQuestionOverride(t *testing.T) {
	spec := quiz(3, 2, 1)
	spec.Questions[2].Points = 5
	require.Equal(t, 9, spec.TotalPossibleScore())
	require.Equal(t, 7, Score(spec, []int{1, 0, 1}))
}

func TestValidateRejectsIncomplete(t *testing.T) {
	spec := quiz(3, 1, 1)
	cases := map[string][]int{
		"short":        {1, 1},
		"long":         {1, 1, 1, 1},
		"unanswered":   {1, domain.NoAnswer, 1},
		"out of range": {1, 4, 1},
	}
	for name, answers := range cases {
		t.Run(name, func(t *testing.T) {
			err := Validate(spec, answers)
			require.True(t, errors.Is(err, domain.ErrIncompleteSubmission), "got %v", err)
		})
	}
	require.NoError(t, Validate(spec, []int{0, 1, 3}))
}

func TestPadAnswersForTimerExpiry(t *testing.T) {
	spec := quiz(5, 1, 1)
	padded := PadAnswers(spec, []int{1, 1})
	require.Equal(t, []int{1, 1, domain.NoAnswer, domain.NoAnswer, domain.NoAnswer}, padded)
	require.Equal(t, 2, Score(spec, padded))

	require.Equal(t, []int{domain.NoAnswer, 1}, PadAnswers(quiz(2, 1, 1), []int{9, 1, 1}))
}
