package repository

import (
	"context"

	"jointvibe/internal/domain"
)

// OrderRepository defines the persistence operations for orders and their history.
type OrderRepository interface {
	// Create persists an order together with its line items.
	Create(ctx context.Context, order *domain.Order) error

	// GetByID retrieves an order with its line items.
	GetByID(ctx context.Context, id string) (*domain.Order, error)

	// ListByVenue retrieves the most recent orders of a venue, newest first.
	ListByVenue(ctx context.Context, venueID string, limit uint64) ([]*domain.Order, error)

	// ListByCustomer retrieves the orders of a customer, newest first.
	ListByCustomer(ctx context.Context, customerID string, limit uint64) ([]*domain.Order, error)

	// UpdateStatus moves an order from one status to another. It returns
	// ErrConflict when the stored status is no longer from.
	UpdateStatus(ctx context.Context, id string, from, to domain.OrderStatus) (*domain.Order, error)

	// AppendHistory records a status change.
	AppendHistory(ctx context.Context, change *domain.OrderStatusChange) error

	// History lists the status changes of an order, oldest first.
	History(ctx context.Context, orderID string) ([]*domain.OrderStatusChange, error)

	// Watch calls onChange with the new state of the order whenever it is
	// written. Line items are not loaded.
	Watch(ctx context.Context, orderID string, onChange func(*domain.Order)) (func(), error)

	// WatchVenue is like Watch for every order of a venue.
	WatchVenue(ctx context.Context, venueID string, onChange func(*domain.Order)) (func(), error)
}
