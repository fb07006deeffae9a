package repository

import (
	"context"

	"jointvibe/internal/domain"
)

// DeliveryRepository defines the persistence operations for deliveries.
type DeliveryRepository interface {
	// Create persists a new delivery.
	Create(ctx context.Context, delivery *domain.Delivery) error

	// GetByID retrieves a delivery by ID.
	GetByID(ctx context.Context, id string) (*domain.Delivery, error)

	// GetByOrderID retrieves the delivery of an order.
	GetByOrderID(ctx context.Context, orderID string) (*domain.Delivery, error)

	// ListByStatus retrieves deliveries in the given status, oldest first.
	ListByStatus(ctx context.Context, status domain.DeliveryStatus) ([]*domain.Delivery, error)

	// ListByDriver retrieves the deliveries assigned to a driver, newest first.
	ListByDriver(ctx context.Context, driverID string) ([]*domain.Delivery, error)

	// Assign sets the driver of a requested delivery and marks it accepted.
	// It returns ErrConflict when the delivery is no longer requested.
	Assign(ctx context.Context, id, driverID string) (*domain.Delivery, error)

	// UpdateStatus moves a delivery from one status to another. It returns
	// ErrConflict when the stored status is no longer from.
	UpdateStatus(ctx context.Context, id string, from, to domain.DeliveryStatus) (*domain.Delivery, error)
}
