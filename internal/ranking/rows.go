package ranking

import (
	"cmp"
	"slices"

	"quiz-ledger-service/internal/domain"
	"quiz-ledger-service/internal/ledger"
)

// NameLookup returns the display name for a student.
type NameLookup func(studentID string) domain.StudentName

// RowsFromFacts folds a quiz's attempt facts into one row per student.
// Facts that cannot belong to a valid ledger, including attempt numbers past
// allowedAttempts, are dropped and counted in excluded; the remaining
// students still get their rows. A non-positive bound disables that check.
func RowsFromFacts(facts []domain.AttemptFact, names NameLookup, totalPossible, allowedAttempts int) (rows []domain.LeaderboardRow, excluded int) {
	byStudent := make(map[string][]domain.AttemptFact)
	order := make([]string, 0)
	for _, f := range facts {
		if !validFact(f, totalPossible, allowedAttempts) {
			excluded++
			continue
		}
		if _, ok := byStudent[f.StudentID]; !ok {
			order = append(order, f.StudentID)
		}
		byStudent[f.StudentID] = append(byStudent[f.StudentID], f)
	}

	rows = make([]domain.LeaderboardRow, 0, len(order))
	for _, studentID := range order {
		attempts := byStudent[studentID]
		slices.SortStableFunc(attempts, func(a, b domain.AttemptFact) int {
			return cmp.Compare(a.AttemptNumber, b.AttemptNumber)
		})
		deduped := attempts[:0]
		for _, f := range attempts {
			if n := len(deduped); n > 0 && f.AttemptNumber == deduped[n-1].AttemptNumber {
				excluded++
				continue
			}
			deduped = append(deduped, f)
		}
		rows = append(rows, rowFromFacts(studentID, deduped, names(studentID), totalPossible))
	}
	return rows, excluded
}

// RowFromLedger derives a row from a student's own ledger. ok is false when
// the ledger has no attempts, since such students are not on the leaderboard.
func RowFromLedger(l domain.Ledger, name domain.StudentName, totalPossible int) (domain.LeaderboardRow, bool) {
	if !l.HasAttempts() {
		return domain.LeaderboardRow{}, false
	}
	sum := 0
	for _, a := range l.Attempts {
		sum += a.Score
	}
	return domain.LeaderboardRow{
		StudentID:          l.StudentID,
		FirstName:          name.FirstName,
		LastName:           name.LastName,
		BestScore:          l.BestScore,
		BestAttemptNumber:  l.BestAttemptNumber,
		BestScoreTimestamp: l.BestScoreTimestamp,
		TotalAttempts:      len(l.Attempts),
		AverageScore:       float64(sum) / float64(len(l.Attempts)),
		CompletionRate:     ledger.CompletionRate(l.BestScore, totalPossible),
	}, true
}

func rowFromFacts(studentID string, facts []domain.AttemptFact, name domain.StudentName, totalPossible int) domain.LeaderboardRow {
	row := domain.LeaderboardRow{
		StudentID:     studentID,
		FirstName:     name.FirstName,
		LastName:      name.LastName,
		TotalAttempts: len(facts),
	}
	sum := 0
	for i, f := range facts {
		sum += f.Score
		if i == 0 || f.Score > row.BestScore {
			row.BestScore = f.Score
			row.BestAttemptNumber = f.AttemptNumber
			row.BestScoreTimestamp = f.Timestamp
		}
	}
	row.AverageScore = float64(sum) / float64(len(facts))
	row.CompletionRate = ledger.CompletionRate(row.BestScore, totalPossible)
	return row
}

func validFact(f domain.AttemptFact, totalPossible, allowedAttempts int) bool {
	if f.StudentID == "" || f.AttemptNumber < 1 || f.Score < 0 {
		return false
	}
	if allowedAttempts > 0 && f.AttemptNumber > allowedAttempts {
		return false
	}
	return totalPossible <= 0 || f.Score <= totalPossible
}
