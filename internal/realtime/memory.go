package realtime

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"jointvibe/internal/backend"
)

// MemoryHub delivers changes within the process.
type MemoryHub struct {
	mu     sync.Mutex
	nextID int
	subs   map[string]map[int]chan backend.Change
	closed bool
	logger *zap.Logger
}

// NewMemoryHub creates an in-process hub.
func NewMemoryHub(logger *zap.Logger) *MemoryHub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MemoryHub{
		subs:   make(map[string]map[int]chan backend.Change),
		logger: logger,
	}
}

// Publish delivers change to every subscriber of its table. A subscriber whose
// buffer is full misses the event.
func (h *MemoryHub) Publish(ctx context.Context, change backend.Change) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, ch := range h.subs[change.Table] {
		select {
		case ch <- change:
		default:
			h.logger.Warn("dropping change for slow subscriber",
				zap.String("table", change.Table),
				zap.Int("subscriber", id))
		}
	}
	return nil
}

// Subscribe registers a subscriber for table.
func (h *MemoryHub) Subscribe(ctx context.Context, table string) (<-chan backend.Change, func(), error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan backend.Change, subscriberBuffer)
	if h.closed {
		close(ch)
		return ch, func() {}, nil
	}

	id := h.nextID
	h.nextID++
	if h.subs[table] == nil {
		h.subs[table] = make(map[int]chan backend.Change)
	}
	h.subs[table][id] = ch

	done := make(chan struct{})
	var once sync.Once
	cancel := func() {
		once.Do(func() {
			close(done)
			h.mu.Lock()
			defer h.mu.Unlock()
			if _, ok := h.subs[table][id]; ok {
				delete(h.subs[table], id)
				close(ch)
			}
		})
	}

	go func() {
		select {
		case <-ctx.Done():
			cancel()
		case <-done:
		}
	}()

	return ch, cancel, nil
}

// Close ends every subscription.
func (h *MemoryHub) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	for table, subs := range h.subs {
		for id, ch := range subs {
			close(ch)
			delete(subs, id)
		}
		delete(h.subs, table)
	}
	h.closed = true
	return nil
}
