package repository

import (
	"context"

	"jointvibe/internal/domain"
)

// DriverRepository defines the persistence operations for drivers. Status
// changes go through UpdateStatus; location lives in Redis.
type DriverRepository interface {
	Create(ctx context.Context, driver *domain.Driver) error
	GetByID(ctx context.Context, id string) (*domain.Driver, error)

	// GetByPhone finds the driver registered with phone, which is unique.
	GetByPhone(ctx context.Context, phone string) (*domain.Driver, error)

	// List retrieves drivers ordered by ID; an empty status lists every driver.
	List(ctx context.Context, status domain.DriverStatus) ([]*domain.Driver, error)

	UpdateStatus(ctx context.Context, id string, status domain.DriverStatus) error
}
