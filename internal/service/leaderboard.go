package service

import (
	"classpulse/internal/model"
	"sort"
)

// TopN is the size of the leaderboard view broadcast to rooms. The admin
// export returns the full ranked list.
const TopN = 10

// Rank returns the participants ordered by XP descending. The sort is
// stable: equal XP preserves join order. The input slice is not mutated.
func Rank(participants []model.Participant) []model.Participant {
	ranked := make([]model.Participant, len(participants))
	copy(ranked, participants)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].XP > ranked[j].XP
	})
	return ranked
}

// Top returns the first n entries of the ranked list.
func Top(participants []model.Participant, n int) []model.Participant {
	ranked := Rank(participants)
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}
