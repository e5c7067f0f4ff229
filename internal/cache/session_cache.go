package cache

import (
	"classpulse/internal/model"
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// SessionCache holds short-lived session snapshots for the admin read
// endpoints. Every mutating path invalidates; a miss falls through to Mongo.
type SessionCache interface {
	Set(ctx context.Context, session *model.Session) error
	Get(ctx context.Context, code string) (*model.Session, error)
	Delete(ctx context.Context, code string) error
}

const sessionTTL = 30 * time.Second

type sessionCache struct {
	client *redis.Client
}

func NewSessionCache(client *redis.Client) SessionCache {
	return &sessionCache{client: client}
}

func (c *sessionCache) Set(ctx context.Context, session *model.Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, "session:"+session.Code, data, sessionTTL).Err()
}

func (c *sessionCache) Get(ctx context.Context, code string) (*model.Session, error) {
	data, err := c.client.Get(ctx, "session:"+code).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}
	var session model.Session
	if err := json.Unmarshal([]byte(data), &session); err != nil {
		return nil, err
	}
	return &session, nil
}

func (c *sessionCache) Delete(ctx context.Context, code string) error {
	return c.client.Del(ctx, "session:"+code).Err()
}
