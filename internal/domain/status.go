package domain

// OrderStatus represents the lifecycle state of an order.
type OrderStatus string

const (
	OrderStatusPending        OrderStatus = "pending"
	OrderStatusVenueConfirmed OrderStatus = "venue_confirmed"
	OrderStatusPreparing      OrderStatus = "preparing"
	OrderStatusReadyForPickup OrderStatus = "ready_for_pickup"
	OrderStatusOnTheWay       OrderStatus = "on_the_way"
	OrderStatusDelivered      OrderStatus = "delivered"
	OrderStatusCompleted      OrderStatus = "completed"
	OrderStatusCancelled      OrderStatus = "cancelled"
)

// OrderType distinguishes delivered orders from orders collected at the venue.
type OrderType string

const (
	OrderTypeDelivery OrderType = "delivery"
	OrderTypePickup   OrderType = "pickup"
)

// Valid reports whether t is a known order type.
func (t OrderType) Valid() bool {
	return t == OrderTypeDelivery || t == OrderTypePickup
}

// forward holds the non-cancel transitions for each order type.
var forward = map[OrderType]map[OrderStatus]OrderStatus{
	OrderTypeDelivery: {
		OrderStatusPending:        OrderStatusVenueConfirmed,
		OrderStatusVenueConfirmed: OrderStatusPreparing,
		OrderStatusPreparing:      OrderStatusReadyForPickup,
		OrderStatusReadyForPickup: OrderStatusOnTheWay,
		OrderStatusOnTheWay:       OrderStatusDelivered,
		OrderStatusDelivered:      OrderStatusCompleted,
	},
	OrderTypePickup: {
		OrderStatusPending:        OrderStatusVenueConfirmed,
		OrderStatusVenueConfirmed: OrderStatusPreparing,
		OrderStatusPreparing:      OrderStatusReadyForPickup,
		OrderStatusReadyForPickup: OrderStatusCompleted,
	},
}

// Valid reports whether s is a known order status.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusVenueConfirmed, OrderStatusPreparing,
		OrderStatusReadyForPickup, OrderStatusOnTheWay, OrderStatusDelivered,
		OrderStatusCompleted, OrderStatusCancelled:
		return true
	}
	return false
}

// IsTerminal reports whether no further transitions are allowed from s.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusCompleted || s == OrderStatusCancelled
}

// Next returns the forward successor of from for the order type, if any.
func Next(t OrderType, from OrderStatus) (OrderStatus, bool) {
	next, ok := forward[t][from]
	return next, ok
}

// CanTransition reports whether an order of type t may move from one status to another.
func CanTransition(t OrderType, from, to OrderStatus) bool {
	return ValidateTransition(t, from, to) == nil
}

// ValidateTransition checks a single status step against the lifecycle for t.
// Same-status steps are rejected here; callers treat them as no-ops.
func ValidateTransition(t OrderType, from, to OrderStatus) error {
	if !t.Valid() {
		return ErrInvalidOrderType
	}
	if !from.Valid() || !to.Valid() {
		return ErrInvalidStatus
	}
	if from.IsTerminal() {
		return ErrOrderTerminal
	}
	if to == OrderStatusCancelled {
		return nil
	}
	if next, ok := forward[t][from]; ok && next == to {
		return nil
	}
	return ErrInvalidTransition
}

// Path returns the statuses an order of type t visits from pending to completion.
func Path(t OrderType) []OrderStatus {
	path := []OrderStatus{OrderStatusPending}
	cur := OrderStatusPending
	for {
		next, ok := forward[t][cur]
		if !ok {
			return path
		}
		path = append(path, next)
		cur = next
	}
}

// Reachable reports whether an order of type t at from can ever get to to:
// cancelled from any non-terminal state, otherwise any later state on the path.
func Reachable(t OrderType, from, to OrderStatus) bool {
	if !t.Valid() || !from.Valid() || !to.Valid() || from.IsTerminal() {
		return false
	}
	if to == OrderStatusCancelled {
		return true
	}
	seen := false
	for _, s := range Path(t) {
		if s == from {
			seen = true
			continue
		}
		if seen && s == to {
			return true
		}
	}
	return false
}
