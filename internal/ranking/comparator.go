// Package ranking orders leaderboard rows with a short-circuiting chain of
// tie-break levels. Every level is exported so it can be tested on its own.
package ranking

import (
	"cmp"
	"math"
	"strings"

	"quiz-ledger-service/internal/domain"
)

// AverageTolerance absorbs float rounding when comparing average scores.
const AverageTolerance = 0.01

// Comparator returns a negative number when a ranks above b, positive when
// b ranks above a, and zero when the level cannot decide.
type Comparator func(a, b domain.LeaderboardRow) int

// Chain applies levels in order and returns the first decisive result.
func Chain(levels ...Comparator) Comparator {
	return func(a, b domain.LeaderboardRow) int {
		for _, level := range levels {
			if c := level(a, b); c != 0 {
				return c
			}
		}
		return 0
	}
}

// Default is the leaderboard order.
var Default = Chain(
	ByBestAttemptNumber,
	ByBestScore,
	ByBestScoreTimestamp,
	ByTotalAttempts,
	ByAverageScore,
	ByName,
	ByStudentID,
)

// ByBestAttemptNumber ranks reaching the best score in fewer tries first.
func ByBestAttemptNumber(a, b domain.LeaderboardRow) int {
	return cmp.Compare(a.BestAttemptNumber, b.BestAttemptNumber)
}

// ByBestScore ranks the higher best score first.
func ByBestScore(a, b domain.LeaderboardRow) int {
	return cmp.Compare(b.BestScore, a.BestScore)
}

// ByBestScoreTimestamp ranks the earlier achievement first. A zero timestamp
// is unknown, and the level abstains unless both sides are known.
func ByBestScoreTimestamp(a, b domain.LeaderboardRow) int {
	if a.BestScoreTimestamp.IsZero() || b.BestScoreTimestamp.IsZero() {
		return 0
	}
	return a.BestScoreTimestamp.Compare(b.BestScoreTimestamp)
}

// ByTotalAttempts ranks fewer total attempts first.
func ByTotalAttempts(a, b domain.LeaderboardRow) int {
	return cmp.Compare(a.TotalAttempts, b.TotalAttempts)
}

// ByAverageScore ranks the higher average first; differences within
// AverageTolerance are a tie.
func ByAverageScore(a, b domain.LeaderboardRow) int {
	if math.Abs(a.AverageScore-b.AverageScore) <= AverageTolerance {
		return 0
	}
	return cmp.Compare(b.AverageScore, a.AverageScore)
}

// ByName orders by "first last", ignoring case.
func ByName(a, b domain.LeaderboardRow) int {
	return strings.Compare(sortName(a), sortName(b))
}

// ByStudentID is the final level; distinct students never compare equal.
func ByStudentID(a, b domain.LeaderboardRow) int {
	return strings.Compare(a.StudentID, b.StudentID)
}

func sortName(r domain.LeaderboardRow) string {
	return strings.ToLower(r.FirstName + " " + r.LastName)
}
