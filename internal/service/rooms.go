package service

import (
	"classpulse/internal/cache"
	"classpulse/internal/model"
	"context"
	"log"
)

// broadcastState pushes the full session snapshot to the room.
func broadcastState(b Broadcaster, s *model.Session) {
	if b == nil || s == nil {
		return
	}
	b.BroadcastToRoom(s.Code, EventState, s)
}

// broadcastLeaderboard pushes the top-N view. The Redis mirror serves the
// read when warm; the session document is the fallback and the authority.
func broadcastLeaderboard(ctx context.Context, b Broadcaster, lb cache.LeaderboardCache, s *model.Session) {
	if b == nil || s == nil {
		return
	}
	if lb != nil {
		if entries, err := lb.GetTop(ctx, s.Code, TopN); err == nil && len(entries) > 0 {
			b.BroadcastToRoom(s.Code, EventLeaderboard, entries)
			return
		}
	}
	b.BroadcastToRoom(s.Code, EventLeaderboard, Top(s.Leaderboard, TopN))
}

// mirrorXPIncr keeps the Redis ZSET in step with a granted delta.
func mirrorXPIncr(ctx context.Context, lb cache.LeaderboardCache, code, userID string, delta int) {
	if lb == nil {
		return
	}
	if err := lb.IncrScore(ctx, code, userID, delta); err != nil {
		log.Printf("leaderboard mirror incr failed for room %s: %v", code, err)
	}
}
