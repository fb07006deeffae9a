package redis

import (
	"context"
	"time"

	"jointvibe/internal/domain"
)

// LocationStoreInterface defines the interface for driver location operations.
type LocationStoreInterface interface {
	UpdateLocation(ctx context.Context, driverID string, lat, lng float64) error
	FindNearbyDrivers(ctx context.Context, lat, lng, radiusKm float64) ([]DriverLocation, error)
	RemoveLocation(ctx context.Context, driverID string) error
}

// LockStoreInterface defines the interface for distributed locking.
type LockStoreInterface interface {
	AcquireDeliveryLock(ctx context.Context, deliveryID, owner string, ttl time.Duration) (bool, error)
	ReleaseDeliveryLock(ctx context.Context, deliveryID, owner string) error
}

// DriverCacheInterface caches driver records; a miss returns nil, nil.
type DriverCacheInterface interface {
	GetDriver(ctx context.Context, driverID string) (*CachedDriver, error)
	SetDriver(ctx context.Context, driver *CachedDriver) error
	InvalidateDriver(ctx context.Context, driverID string) error
}

// MenuCacheInterface defines the explicit load/save/invalidate menu cache.
type MenuCacheInterface interface {
	LoadMenu(ctx context.Context, venueID string) (*domain.Menu, error)
	SaveMenu(ctx context.Context, menu *domain.Menu) error
	InvalidateMenu(ctx context.Context, venueID string) error
}

// SessionStoreInterface remembers the venue a user is checked in at.
type SessionStoreInterface interface {
	LoadVenue(ctx context.Context, userID string) (string, error)
	SaveVenue(ctx context.Context, userID, venueID string) error
	ClearVenue(ctx context.Context, userID string) error
}

// Ensure concrete types implement interfaces.
var (
	_ LocationStoreInterface = (*LocationStore)(nil)
	_ LockStoreInterface     = (*LockStore)(nil)
	_ DriverCacheInterface   = (*CacheStore)(nil)
	_ MenuCacheInterface     = (*CacheStore)(nil)
	_ SessionStoreInterface  = (*SessionStore)(nil)
)
