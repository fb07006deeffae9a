package domain

import "time"

// DriverStatus represents the current status of a driver.
type DriverStatus string

const (
	DriverStatusOnline     DriverStatus = "ONLINE"
	DriverStatusOffline    DriverStatus = "OFFLINE"
	DriverStatusOnDelivery DriverStatus = "ON_DELIVERY"
)

// Valid reports whether s is a known driver status.
func (s DriverStatus) Valid() bool {
	return s == DriverStatusOnline || s == DriverStatusOffline || s == DriverStatusOnDelivery
}

// Driver is a courier who accepts delivery orders.
type Driver struct {
	ID        string
	Name      string
	Phone     string
	Status    DriverStatus
	CreatedAt time.Time
}
