package gateway

import (
	"context"

	"github.com/google/uuid"

	"jointvibe/internal/backend"
	"jointvibe/internal/domain"
	"jointvibe/internal/repository"
)

// DriverRepository is a backend implementation of repository.DriverRepository.
type DriverRepository struct {
	b backend.Backend
}

var _ repository.DriverRepository = (*DriverRepository)(nil)

// NewDriverRepository creates a driver repository.
func NewDriverRepository(b backend.Backend) *DriverRepository {
	return &DriverRepository{b: b}
}

// Create adds a new driver.
func (r *DriverRepository) Create(ctx context.Context, driver *domain.Driver) error {
	if driver.ID == "" {
		driver.ID = uuid.NewString()
	}
	if driver.CreatedAt.IsZero() {
		driver.CreatedAt = now()
	}
	_, err := r.b.Insert(ctx, tableDrivers, backend.Record{
		"id":         driver.ID,
		"name":       driver.Name,
		"phone":      driver.Phone,
		"status":     string(driver.Status),
		"created_at": driver.CreatedAt,
	})
	return mapError(err)
}

// GetByID retrieves a driver by ID.
func (r *DriverRepository) GetByID(ctx context.Context, id string) (*domain.Driver, error) {
	rec, err := first(r.b.Query(ctx, tableDrivers, backend.Filter{"id": id}))
	if err != nil {
		return nil, err
	}
	return driverFromRecord(rec), nil
}

// GetByPhone retrieves a driver by phone number.
func (r *DriverRepository) GetByPhone(ctx context.Context, phone string) (*domain.Driver, error) {
	rec, err := first(r.b.Query(ctx, tableDrivers, backend.Filter{"phone": phone}))
	if err != nil {
		return nil, err
	}
	return driverFromRecord(rec), nil
}

// List retrieves drivers, optionally only those in status.
func (r *DriverRepository) List(ctx context.Context, status domain.DriverStatus) ([]*domain.Driver, error) {
	var filter backend.Filter
	if status != "" {
		filter = backend.Filter{"status": string(status)}
	}
	rows, err := r.b.Query(ctx, tableDrivers, filter, backend.OrderBy("id", false))
	if err != nil {
		return nil, err
	}

	drivers := make([]*domain.Driver, 0, len(rows))
	for _, row := range rows {
		drivers = append(drivers, driverFromRecord(row))
	}
	return drivers, nil
}

// UpdateStatus updates the status of a driver.
func (r *DriverRepository) UpdateStatus(ctx context.Context, id string, status domain.DriverStatus) error {
	_, err := r.b.Update(ctx, tableDrivers, backend.Filter{"id": id}, backend.Record{"status": string(status)})
	return mapError(err)
}

func driverFromRecord(rec backend.Record) *domain.Driver {
	return &domain.Driver{
		ID:        rec.String("id"),
		Name:      rec.String("name"),
		Phone:     rec.String("phone"),
		Status:    domain.DriverStatus(rec.String("status")),
		CreatedAt: rec.Time("created_at"),
	}
}
