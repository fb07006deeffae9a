package service

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"jointvibe/internal/domain"
)

// trackerBuffer is the capacity of a tracker's update channel.
const trackerBuffer = 16

// OrderTracker follows one order through realtime change events. Incoming
// statuses go through the order state machine: duplicates are no-ops, and
// events that would leave a terminal state or move backwards are ignored.
type OrderTracker struct {
	mu          sync.Mutex
	order       domain.Order
	updates     chan domain.Order
	closed      bool
	unsubscribe func()
	logger      *zap.Logger
}

func newOrderTracker(order *domain.Order, logger *zap.Logger) *OrderTracker {
	return &OrderTracker{
		order:   *order,
		updates: make(chan domain.Order, trackerBuffer),
		logger:  logger,
	}
}

// Track starts following an order. The tracker must be closed by the caller.
func (s *OrderService) Track(ctx context.Context, orderID string) (*OrderTracker, error) {
	if orderID == "" {
		return nil, ErrInvalidOrderID
	}

	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	t := newOrderTracker(order, s.logger.With(zap.String("order_id", orderID)))
	unsubscribe, err := s.orderRepo.Watch(ctx, orderID, func(o *domain.Order) {
		t.Apply(o)
	})
	if err != nil {
		return nil, err
	}
	t.mu.Lock()
	t.unsubscribe = unsubscribe
	t.mu.Unlock()

	// Catch up on anything that changed before the subscription was live.
	latest, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		t.Close()
		return nil, err
	}
	t.Apply(latest)

	return t, nil
}

// Order returns a snapshot of the tracked order.
func (t *OrderTracker) Order() domain.Order {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.order
}

// Status returns the current status of the tracked order.
func (t *OrderTracker) Status() domain.OrderStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.order.Status
}

// Updates delivers every accepted status change. It is closed by Close.
func (t *OrderTracker) Updates() <-chan domain.Order {
	return t.updates
}

// Apply feeds an observed order state into the tracker and reports whether
// it changed the tracked status.
func (t *OrderTracker) Apply(incoming *domain.Order) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed || incoming == nil || incoming.ID != t.order.ID {
		return false
	}

	cur := t.order.Status
	if incoming.Status == cur {
		return false
	}
	if !domain.Reachable(t.order.Type, cur, incoming.Status) {
		t.logger.Debug("ignoring out of order status",
			zap.String("current", string(cur)),
			zap.String("incoming", string(incoming.Status)))
		return false
	}

	t.order.Status = incoming.Status
	t.order.UpdatedAt = incoming.UpdatedAt

	select {
	case t.updates <- t.order:
	default:
		t.logger.Warn("tracker update dropped, consumer is slow")
	}
	return true
}

// Close ends the subscription and closes the update channel.
func (t *OrderTracker) Close() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	unsubscribe := t.unsubscribe
	close(t.updates)
	t.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
}
