package gateway

import (
	"context"

	"github.com/google/uuid"

	"jointvibe/internal/backend"
	"jointvibe/internal/domain"
	"jointvibe/internal/repository"
)

// DeliveryRepository is a backend implementation of repository.DeliveryRepository.
type DeliveryRepository struct {
	b backend.Backend
}

var _ repository.DeliveryRepository = (*DeliveryRepository)(nil)

// NewDeliveryRepository creates a delivery repository.
func NewDeliveryRepository(b backend.Backend) *DeliveryRepository {
	return &DeliveryRepository{b: b}
}

func (r *DeliveryRepository) Create(ctx context.Context, d *domain.Delivery) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = now()
	}
	d.UpdatedAt = d.CreatedAt

	var driver any
	if d.DriverID != "" {
		driver = d.DriverID
	}
	_, err := r.b.Insert(ctx, tableDeliveries, backend.Record{
		"id":               d.ID,
		"order_id":         d.OrderID,
		"driver_id":        driver,
		"pickup_lat":       d.Pickup.Lat,
		"pickup_lng":       d.Pickup.Lng,
		"pickup_address":   d.Pickup.Address,
		"dropoff_lat":      d.Dropoff.Lat,
		"dropoff_lng":      d.Dropoff.Lng,
		"dropoff_address":  d.Dropoff.Address,
		"distance_km":      d.DistanceKm,
		"duration_minutes": d.DurationMinutes,
		"fare":             d.Fare,
		"driver_earnings":  d.DriverEarnings,
		"platform_fee":     d.PlatformFee,
		"status":           string(d.Status),
		"created_at":       d.CreatedAt,
		"updated_at":       d.UpdatedAt,
	})
	return mapError(err)
}

func (r *DeliveryRepository) GetByID(ctx context.Context, id string) (*domain.Delivery, error) {
	rec, err := first(r.b.Query(ctx, tableDeliveries, backend.Filter{"id": id}))
	if err != nil {
		return nil, err
	}
	return DeliveryFromRecord(rec)
}

func (r *DeliveryRepository) GetByOrderID(ctx context.Context, orderID string) (*domain.Delivery, error) {
	rec, err := first(r.b.Query(ctx, tableDeliveries, backend.Filter{"order_id": orderID}))
	if err != nil {
		return nil, err
	}
	return DeliveryFromRecord(rec)
}

func (r *DeliveryRepository) ListByStatus(ctx context.Context, status domain.DeliveryStatus) ([]*domain.Delivery, error) {
	return r.list(ctx, backend.Filter{"status": string(status)}, backend.OrderBy("created_at", false))
}

func (r *DeliveryRepository) ListByDriver(ctx context.Context, driverID string) ([]*domain.Delivery, error) {
	return r.list(ctx, backend.Filter{"driver_id": driverID}, backend.OrderBy("created_at", true))
}

func (r *DeliveryRepository) list(ctx context.Context, filter backend.Filter, opts ...backend.QueryOption) ([]*domain.Delivery, error) {
	rows, err := r.b.Query(ctx, tableDeliveries, filter, opts...)
	if err != nil {
		return nil, err
	}

	deliveries := make([]*domain.Delivery, 0, len(rows))
	for _, row := range rows {
		d, err := DeliveryFromRecord(row)
		if err != nil {
			return nil, err
		}
		deliveries = append(deliveries, d)
	}
	return deliveries, nil
}

// Assign hands a requested delivery to a driver.
func (r *DeliveryRepository) Assign(ctx context.Context, id, driverID string) (*domain.Delivery, error) {
	rec, err := compareAndSet(ctx, r.b, tableDeliveries, id, "status", string(domain.DeliveryStatusRequested), backend.Record{
		"status":     string(domain.DeliveryStatusAccepted),
		"driver_id":  driverID,
		"updated_at": now(),
	})
	if err != nil {
		return nil, err
	}
	return DeliveryFromRecord(rec)
}

func (r *DeliveryRepository) UpdateStatus(ctx context.Context, id string, from, to domain.DeliveryStatus) (*domain.Delivery, error) {
	rec, err := compareAndSet(ctx, r.b, tableDeliveries, id, "status", string(from), backend.Record{
		"status":     string(to),
		"updated_at": now(),
	})
	if err != nil {
		return nil, err
	}
	return DeliveryFromRecord(rec)
}

// DeliveryFromRecord converts a deliveries row into a domain delivery.
func DeliveryFromRecord(rec backend.Record) (*domain.Delivery, error) {
	fare, err := rec.Decimal("fare")
	if err != nil {
		return nil, err
	}
	earnings, err := rec.Decimal("driver_earnings")
	if err != nil {
		return nil, err
	}
	fee, err := rec.Decimal("platform_fee")
	if err != nil {
		return nil, err
	}

	return &domain.Delivery{
		ID:       rec.String("id"),
		OrderID:  rec.String("order_id"),
		DriverID: rec.String("driver_id"),
		Pickup: domain.Location{
			Lat:     rec.Float("pickup_lat"),
			Lng:     rec.Float("pickup_lng"),
			Address: rec.String("pickup_address"),
		},
		Dropoff: domain.Location{
			Lat:     rec.Float("dropoff_lat"),
			Lng:     rec.Float("dropoff_lng"),
			Address: rec.String("dropoff_address"),
		},
		DistanceKm:      rec.Float("distance_km"),
		DurationMinutes: rec.Float("duration_minutes"),
		Fare:            fare,
		DriverEarnings:  earnings,
		PlatformFee:     fee,
		Status:          domain.DeliveryStatus(rec.String("status")),
		CreatedAt:       rec.Time("created_at"),
		UpdatedAt:       rec.Time("updated_at"),
	}, nil
}
