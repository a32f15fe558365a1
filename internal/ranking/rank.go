package ranking

import (
	"slices"

	"quiz-ledger-service/internal/domain"
)

// Rank returns rows in leaderboard order with Rank set from 1. The input is
// not modified, and any permutation of the same rows yields the same output.
func Rank(rows []domain.LeaderboardRow) []domain.LeaderboardRow {
	return RankWith(rows, Default)
}

// RankWith orders rows using a custom comparator chain. Levels that abstain
// on missing data can make order intransitive, so rows are first put in
// student ID order; the result then depends only on the set of rows.
func RankWith(rows []domain.LeaderboardRow, order Comparator) []domain.LeaderboardRow {
	out := slices.Clone(rows)
	slices.SortFunc(out, ByStudentID)
	slices.SortStableFunc(out, order)
	for i := range out {
		out[i].Rank = i + 1
	}
	return out
}
