package domain

import (
	"time"

	"github.com/govalues/decimal"
)

// DeliveryStatus mirrors the driver side of a delivery order.
type DeliveryStatus string

const (
	DeliveryStatusRequested DeliveryStatus = "requested"
	DeliveryStatusAccepted  DeliveryStatus = "accepted"
	DeliveryStatusArrived   DeliveryStatus = "arrived"
	DeliveryStatusPickedUp  DeliveryStatus = "picked_up"
	DeliveryStatusCompleted DeliveryStatus = "completed"
	DeliveryStatusCancelled DeliveryStatus = "cancelled"
)

// IsTerminal reports whether the delivery can no longer change.
func (s DeliveryStatus) IsTerminal() bool {
	return s == DeliveryStatusCompleted || s == DeliveryStatusCancelled
}

// Delivery is the courier record attached to a delivery order.
type Delivery struct {
	ID              string
	OrderID         string
	DriverID        string // empty until accepted
	Pickup          Location
	Dropoff         Location
	DistanceKm      float64
	DurationMinutes float64
	Fare            decimal.Decimal
	DriverEarnings  decimal.Decimal
	PlatformFee     decimal.Decimal
	Status          DeliveryStatus
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
