package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"jointvibe/internal/backend"
)

const redisChannelPrefix = "realtime:"

// RedisHub carries changes over Redis pub/sub, one channel per table.
type RedisHub struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisHub creates a hub on top of an existing Redis client.
func NewRedisHub(client *redis.Client, logger *zap.Logger) *RedisHub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisHub{client: client, logger: logger}
}

// Publish encodes change as JSON and publishes it on the table channel.
func (h *RedisHub) Publish(ctx context.Context, change backend.Change) error {
	data, err := json.Marshal(change)
	if err != nil {
		return fmt.Errorf("encode change: %w", err)
	}
	return h.client.Publish(ctx, redisChannelPrefix+change.Table, data).Err()
}

// Subscribe listens on the table channel until ctx ends or cancel is called.
func (h *RedisHub) Subscribe(ctx context.Context, table string) (<-chan backend.Change, func(), error) {
	ps := h.client.Subscribe(ctx, redisChannelPrefix+table)
	// Wait for the subscription to be confirmed so no publish is missed.
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, nil, fmt.Errorf("subscribe to %s: %w", table, err)
	}

	subCtx, stop := context.WithCancel(ctx)
	decoded := make(chan backend.Change)
	out := make(chan backend.Change, subscriberBuffer)

	go func() {
		defer close(decoded)
		msgs := ps.Channel()
		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var change backend.Change
				if err := json.Unmarshal([]byte(msg.Payload), &change); err != nil {
					h.logger.Warn("discarding malformed change",
						zap.String("channel", msg.Channel),
						zap.Error(err))
					continue
				}
				select {
				case decoded <- change:
				case <-subCtx.Done():
					return
				}
			}
		}
	}()
	go forward(subCtx, decoded, out)

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			stop()
			if err := ps.Close(); err != nil {
				h.logger.Debug("closing pubsub", zap.Error(err))
			}
		})
	}
	return out, cancel, nil
}

// Close is a no-op; the Redis client is owned by the caller.
func (h *RedisHub) Close() error {
	return nil
}
