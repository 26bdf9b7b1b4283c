package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Debayan00100101/chatt/internal/models"
)

// MessageCache keeps the most recent materialization of the message list in
// Redis for the duration of roughly one poll interval, so a burst of clients
// polling together hits the database once. Cache misses and errors fall
// through to the database; the cache is never authoritative.
type MessageCache struct {
	cli    *redis.Client
	prefix string
	ttl    time.Duration
	log    *zap.SugaredLogger
}

func NewRedis(addr, password string, db int, prefix string, ttl time.Duration, log *zap.SugaredLogger) (*MessageCache, error) {
	cli := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := cli.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	if prefix == "" {
		prefix = "chatt"
	}
	return &MessageCache{cli: cli, prefix: prefix, ttl: ttl, log: log}, nil
}

func (c *MessageCache) key() string { return c.prefix + ":messages:recent" }

func (c *MessageCache) GetMessages(ctx context.Context) ([]models.Message, bool) {
	b, err := c.cli.Get(ctx, c.key()).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		c.log.Warnw("message cache get", "err", err)
		return nil, false
	}
	var msgs []models.Message
	if err := json.Unmarshal(b, &msgs); err != nil {
		c.log.Warnw("message cache decode", "err", err)
		return nil, false
	}
	return msgs, true
}

func (c *MessageCache) SetMessages(ctx context.Context, msgs []models.Message) {
	b, err := json.Marshal(msgs)
	if err != nil {
		return
	}
	if err := c.cli.Set(ctx, c.key(), b, c.ttl).Err(); err != nil {
		c.log.Warnw("message cache set", "err", err)
	}
}

func (c *MessageCache) Invalidate(ctx context.Context) {
	if err := c.cli.Del(ctx, c.key()).Err(); err != nil {
		c.log.Warnw("message cache invalidate", "err", err)
	}
}

func (c *MessageCache) Close() error {
	return c.cli.Close()
}
