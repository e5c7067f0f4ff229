package cache

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// LeaderboardCache mirrors per-room XP in a Redis ZSET, with a companion
// hash for display info. The session document stays authoritative; the
// mirror serves the frequent top-N broadcast reads.
type LeaderboardCache interface {
	SetScore(ctx context.Context, roomCode, userID string, xp int) error
	IncrScore(ctx context.Context, roomCode, userID string, delta int) error
	SetInfo(ctx context.Context, roomCode, userID, name, avatar string) error
	GetTop(ctx context.Context, roomCode string, limit int) ([]Entry, error)
	Clear(ctx context.Context, roomCode string) error
}

// Entry is a single ranked leaderboard row.
type Entry struct {
	UserID string `json:"userId"`
	Name   string `json:"name"`
	Avatar string `json:"avatar"`
	XP     int    `json:"xp"`
}

type memberInfo struct {
	Name   string `json:"name"`
	Avatar string `json:"avatar"`
}

type leaderboardCache struct {
	client *redis.Client
}

// NewLeaderboardCache creates a new leaderboard cache.
func NewLeaderboardCache(client *redis.Client) LeaderboardCache {
	return &leaderboardCache{client: client}
}

func (c *leaderboardCache) key(roomCode string) string {
	return fmt.Sprintf("room:%s:lb", roomCode)
}

func (c *leaderboardCache) infoKey(roomCode string) string {
	return fmt.Sprintf("room:%s:lbinfo", roomCode)
}

func (c *leaderboardCache) SetScore(ctx context.Context, roomCode, userID string, xp int) error {
	return c.client.ZAdd(ctx, c.key(roomCode), redis.Z{
		Score:  float64(xp),
		Member: userID,
	}).Err()
}

func (c *leaderboardCache) IncrScore(ctx context.Context, roomCode, userID string, delta int) error {
	return c.client.ZIncrBy(ctx, c.key(roomCode), float64(delta), userID).Err()
}

func (c *leaderboardCache) SetInfo(ctx context.Context, roomCode, userID, name, avatar string) error {
	data, err := json.Marshal(memberInfo{Name: name, Avatar: avatar})
	if err != nil {
		return err
	}
	return c.client.HSet(ctx, c.infoKey(roomCode), userID, data).Err()
}

func (c *leaderboardCache) GetTop(ctx context.Context, roomCode string, limit int) ([]Entry, error) {
	results, err := c.client.ZRevRangeWithScores(ctx, c.key(roomCode), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, len(results))
	for i, z := range results {
		userID, _ := z.Member.(string)
		entries[i] = Entry{UserID: userID, XP: int(z.Score)}
	}

	if len(entries) > 0 {
		fields := make([]string, len(entries))
		for i, e := range entries {
			fields[i] = e.UserID
		}
		infos, err := c.client.HMGet(ctx, c.infoKey(roomCode), fields...).Result()
		if err == nil {
			for i, raw := range infos {
				s, ok := raw.(string)
				if !ok {
					continue
				}
				var info memberInfo
				if json.Unmarshal([]byte(s), &info) == nil {
					entries[i].Name = info.Name
					entries[i].Avatar = info.Avatar
				}
			}
		}
	}
	return entries, nil
}

func (c *leaderboardCache) Clear(ctx context.Context, roomCode string) error {
	return c.client.Del(ctx, c.key(roomCode), c.infoKey(roomCode)).Err()
}
