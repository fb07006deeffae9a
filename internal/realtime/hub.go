// Package realtime fans committed backend changes out to subscribers.
package realtime

import (
	"context"

	"jointvibe/internal/backend"
)

// Hub publishes and delivers change events per table.
type Hub interface {
	backend.Bus
	Close() error
}

var (
	_ Hub = (*MemoryHub)(nil)
	_ Hub = (*RedisHub)(nil)
	_ Hub = (*RabbitMQHub)(nil)
)

// subscriberBuffer is the per-subscriber channel capacity.
const subscriberBuffer = 64

// forward copies decoded events into out until ctx ends or in closes.
func forward(ctx context.Context, in <-chan backend.Change, out chan<- backend.Change) {
	defer close(out)
	for {
		select {
		case <-ctx.Done():
			return
		case change, ok := <-in:
			if !ok {
				return
			}
			select {
			case out <- change:
			case <-ctx.Done():
				return
			}
		}
	}
}
