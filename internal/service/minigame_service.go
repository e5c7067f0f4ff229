package service

import (
	"classpulse/internal/cache"
	"classpulse/internal/model"
	"classpulse/internal/repository"
	"classpulse/internal/sanitize"
	"context"
	"fmt"
	"sort"
)

// SentinelTime stands in for a reaction time that failed numeric parsing.
// The hit still counts but ranks last.
const SentinelTime = 9999

// MinigameService arbitrates reaction-dash rounds: round lifecycle,
// duplicate and stale-round rejection, ranking, and tiered XP.
type MinigameService struct {
	repo        repository.SessionRepo
	leaderboard cache.LeaderboardCache
	broadcaster Broadcaster
}

// NewMinigameService creates a new mini-game service.
func NewMinigameService(repo repository.SessionRepo, leaderboard cache.LeaderboardCache) *MinigameService {
	return &MinigameService{
		repo:        repo,
		leaderboard: leaderboard,
	}
}

// SetBroadcaster sets the broadcaster for WebSocket events.
func (s *MinigameService) SetBroadcaster(b Broadcaster) {
	s.broadcaster = b
}

// NewRound arms a fresh round under roundID. Previous rounds keep their
// accumulated results.
func (s *MinigameService) NewRound(ctx context.Context, code, roundID string) error {
	if err := s.repo.ArmRound(ctx, code, roundID); err != nil {
		return err
	}
	return s.rebroadcast(ctx, code)
}

// Start releases an armed round and stamps the go instant.
func (s *MinigameService) Start(ctx context.Context, code string, goAt int64) error {
	started, err := s.repo.StartRound(ctx, code, goAt)
	if err != nil {
		return err
	}
	if !started {
		return fmt.Errorf("no armed round in room %s", code)
	}
	return s.rebroadcast(ctx, code)
}

// Hit records one participant's reaction time. Hits for a stale round, a
// round not yet started, or from a participant who already scored this
// round are dropped silently. The XP tier is granted from the submitter's
// rank at this instant; later, faster hits never claw it back.
func (s *MinigameService) Hit(ctx context.Context, connID, code, roundID, userID, name, avatar string, time float64) error {
	result := model.HitResult{
		ID:     userID,
		Name:   sanitize.Clean(name, 20),
		Avatar: avatar,
		Time:   time,
	}

	if err := s.repo.EnsureRound(ctx, code, roundID); err != nil {
		return err
	}
	accepted, err := s.repo.PushHit(ctx, code, roundID, result)
	if err != nil {
		return err
	}
	if !accepted {
		return nil
	}

	session, err := s.repo.GetActive(ctx, code)
	if err != nil || session == nil {
		return err
	}
	round := session.Minigame.Round(roundID)
	if round == nil {
		return nil
	}

	sorted := sortedResults(round.Results)
	rank := -1
	for i, r := range sorted {
		if r.ID == userID {
			rank = i
			break
		}
	}

	xp := XPMinigame + RankBonus(rank)
	if granted, err := s.repo.AddXP(ctx, code, userID, xp); err == nil && granted {
		mirrorXPIncr(ctx, s.leaderboard, code, userID, xp)
	}

	session, err = s.repo.GetActive(ctx, code)
	if err != nil || session == nil {
		return err
	}
	if s.broadcaster != nil {
		s.broadcaster.BroadcastToRoom(code, EventMGResults, map[string]interface{}{
			"roundId": roundID,
			"results": sorted,
		})
		broadcastLeaderboard(ctx, s.broadcaster, s.leaderboard, session)
		if rank == 0 {
			s.broadcaster.SendToConn(connID, EventMGWin, nil)
		}
	}
	return nil
}

// sortedResults orders hits ascending by reaction time. The sort is stable
// so ties keep submission order.
func sortedResults(results []model.HitResult) []model.HitResult {
	sorted := make([]model.HitResult, len(results))
	copy(sorted, results)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Time < sorted[j].Time
	})
	return sorted
}

func (s *MinigameService) rebroadcast(ctx context.Context, code string) error {
	session, err := s.repo.GetByCode(ctx, code)
	if err != nil {
		return err
	}
	if session == nil {
		return fmt.Errorf("session %s not found", code)
	}
	broadcastState(s.broadcaster, session)
	return nil
}
