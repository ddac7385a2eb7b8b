package presence

import (
	"context"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
)

const connectionTTL = 24 * time.Hour

// RedisTracker implements Tracker over shared Redis sets so several server
// processes can observe one presence table. Set commands are atomic, which
// preserves the exactly-once transition guarantee across processes.
type RedisTracker struct {
	client *redis.Client
}

// NewRedisTracker connects to redisURL and verifies connectivity.
func NewRedisTracker(ctx context.Context, redisURL string) (*RedisTracker, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("presence: parse redis url: %w", err)
	}
	c := redis.NewClient(opt)
	if err := c.Ping(ctx).Err(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("presence: ping: %w", err)
	}
	return &RedisTracker{client: c}, nil
}

var _ Tracker = (*RedisTracker)(nil)

func key(userID string) string { return "presence:" + userID }

func (t *RedisTracker) AddConnection(ctx context.Context, userID, connID string) (bool, error) {
	pipe := t.client.TxPipeline()
	before := pipe.SCard(ctx, key(userID))
	pipe.SAdd(ctx, key(userID), connID)
	pipe.Expire(ctx, key(userID), connectionTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("presence: add connection: %w", err)
	}
	return before.Val() == 0, nil
}

func (t *RedisTracker) RemoveConnection(ctx context.Context, userID, connID string) (bool, error) {
	pipe := t.client.TxPipeline()
	removed := pipe.SRem(ctx, key(userID), connID)
	after := pipe.SCard(ctx, key(userID))
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("presence: remove connection: %w", err)
	}
	return removed.Val() > 0 && after.Val() == 0, nil
}

func (t *RedisTracker) IsOnline(ctx context.Context, userID string) (bool, error) {
	n, err := t.client.SCard(ctx, key(userID)).Result()
	if err != nil {
		return false, fmt.Errorf("presence: is online: %w", err)
	}
	return n > 0, nil
}

func (t *RedisTracker) BulkOnline(ctx context.Context, userIDs []string) ([]string, error) {
	pipe := t.client.Pipeline()
	cards := make([]*redis.IntCmd, len(userIDs))
	for i, id := range userIDs {
		cards[i] = pipe.SCard(ctx, key(id))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("presence: bulk online: %w", err)
	}

	online := make([]string, 0, len(userIDs))
	for i, cmd := range cards {
		if cmd.Val() > 0 {
			online = append(online, userIDs[i])
		}
	}
	return online, nil
}

func (t *RedisTracker) Close() error {
	return t.client.Close()
}
