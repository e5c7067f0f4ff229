package service

// XP awards per participant action. Awards apply to the acting participant
// only, and only when they hold a leaderboard entry.
const (
	XPMCQAnswer  = 5
	XPMCQCorrect = 15 // on top of XPMCQAnswer
	XPWord       = 3
	XPReview     = 2
	XPQuestion   = 4
	XPFeedback   = 5
	XPMinigame   = 5
)

// RankBonus returns the tiered mini-game bonus for a 0-indexed rank at the
// moment of the hit. Later, faster hits never revoke an earlier grant.
func RankBonus(rank int) int {
	switch rank {
	case 0:
		return 20
	case 1:
		return 12
	case 2:
		return 8
	}
	return 0
}
