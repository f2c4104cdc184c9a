package events

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// #region config

// RedisBusConfig describes the Redis Stream the engine publishes to.
type RedisBusConfig struct {
	Address  string
	Password string
	DB       int
	Stream   string
	Timeout  time.Duration
}

// #endregion config

// #region redis-bus

// RedisBus publishes observer events onto a Redis Stream via XADD so
// out-of-process observers (notification surface, dashboards) can follow
// the engine without being linked into it.
type RedisBus struct {
	client  *redis.Client
	stream  string
	timeout time.Duration
}

// NewRedisBus connects and pings the Redis server.
func NewRedisBus(cfg RedisBusConfig) (*RedisBus, error) {
	if cfg.Address == "" {
		return nil, errors.New("redis address must not be empty")
	}
	stream := cfg.Stream
	if stream == "" {
		stream = "agency:events"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	return &RedisBus{client: client, stream: stream, timeout: timeout}, nil
}

// Publish appends the event to the stream. Delivery failures are logged,
// never propagated: an unreachable observer must not fail an action.
func (b *RedisBus) Publish(event Event) {
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
	defer cancel()
	err := b.client.XAdd(ctx, &redis.XAddArgs{
		Stream: b.stream,
		Values: map[string]any{
			"type":        string(event.Type),
			"action_id":   event.ActionID,
			"action_type": event.ActionType,
			"resource":    event.Resource,
			"detail":      event.Detail,
			"created_at":  event.CreatedAt.Format(time.RFC3339Nano),
		},
	}).Err()
	if err != nil {
		log.Printf("[EVENTS] redis publish failed: %v", err)
	}
}

// Close shuts down the Redis connection.
func (b *RedisBus) Close() error {
	if b == nil || b.client == nil {
		return nil
	}
	return b.client.Close()
}

// #endregion redis-bus
