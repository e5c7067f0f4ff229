package service

import (
	"classpulse/internal/cache"
	"classpulse/internal/model"
	"classpulse/internal/repository"
	"classpulse/internal/sanitize"
	"context"
	"fmt"
	"log"
)

// ParticipantService handles students joining rooms.
type ParticipantService struct {
	repo        repository.SessionRepo
	leaderboard cache.LeaderboardCache
	broadcaster Broadcaster
}

// NewParticipantService creates a new participant service.
func NewParticipantService(repo repository.SessionRepo, leaderboard cache.LeaderboardCache) *ParticipantService {
	return &ParticipantService{
		repo:        repo,
		leaderboard: leaderboard,
	}
}

// SetBroadcaster sets the broadcaster for WebSocket events.
func (s *ParticipantService) SetBroadcaster(b Broadcaster) {
	s.broadcaster = b
}

// Join upserts a participant into the room. A locked room rejects userIds
// it has never seen but lets existing participants back in with their XP
// intact. The joiner gets a private full snapshot; the room gets a
// refreshed top-10 leaderboard.
func (s *ParticipantService) Join(ctx context.Context, connID, code, userID, name, avatar string) (*model.Session, error) {
	session, err := s.repo.GetActive(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if session == nil {
		return nil, fmt.Errorf("invalid or inactive code")
	}
	if session.Locked && session.Participant(userID) == nil {
		return nil, fmt.Errorf("locked")
	}

	p := model.Participant{
		UserID: userID,
		Name:   sanitize.Clean(name, 20),
		Avatar: avatar,
	}
	if _, err := s.repo.UpsertParticipant(ctx, code, p); err != nil {
		return nil, fmt.Errorf("failed to register participant: %w", err)
	}

	session, err = s.repo.GetActive(ctx, code)
	if err != nil || session == nil {
		return nil, fmt.Errorf("failed to reload session: %w", err)
	}

	if s.leaderboard != nil {
		if joined := session.Participant(userID); joined != nil {
			if err := s.leaderboard.SetScore(ctx, code, userID, joined.XP); err != nil {
				log.Printf("leaderboard mirror set failed for room %s: %v", code, err)
			}
			if err := s.leaderboard.SetInfo(ctx, code, userID, joined.Name, joined.Avatar); err != nil {
				log.Printf("leaderboard info set failed for room %s: %v", code, err)
			}
		}
	}

	if s.broadcaster != nil {
		s.broadcaster.SendToConn(connID, EventState, session)
		broadcastLeaderboard(ctx, s.broadcaster, s.leaderboard, session)
	}
	return session, nil
}
