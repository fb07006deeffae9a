package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"jointvibe/internal/domain"
	"jointvibe/internal/redis"
	"jointvibe/internal/repository"
)

// DriverService handles driver operations.
type DriverService struct {
	locationStore redis.LocationStoreInterface
	cacheStore    redis.DriverCacheInterface
	driverRepo    repository.DriverRepository
	logger        *zap.Logger
}

// NewDriverService creates a new DriverService. cacheStore may be nil.
func NewDriverService(
	locationStore redis.LocationStoreInterface,
	cacheStore redis.DriverCacheInterface,
	driverRepo repository.DriverRepository,
	logger *zap.Logger,
) *DriverService {
	return &DriverService{
		locationStore: locationStore,
		cacheStore:    cacheStore,
		driverRepo:    driverRepo,
		logger:        logger,
	}
}

// RegisterDriverRequest contains the parameters for registering a driver.
type RegisterDriverRequest struct {
	Name  string
	Phone string
}

// Register creates an offline driver. Phone numbers are unique.
func (s *DriverService) Register(ctx context.Context, req RegisterDriverRequest) (*domain.Driver, error) {
	if req.Name == "" {
		return nil, ErrInvalidName
	}
	if req.Phone == "" {
		return nil, ErrInvalidPhone
	}

	if _, err := s.driverRepo.GetByPhone(ctx, req.Phone); err == nil {
		return nil, ErrDriverExists
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	driver := &domain.Driver{
		Name:   req.Name,
		Phone:  req.Phone,
		Status: domain.DriverStatusOffline,
	}
	if err := s.driverRepo.Create(ctx, driver); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, ErrDriverExists
		}
		return nil, err
	}

	s.logger.Info("driver registered", zap.String("driver_id", driver.ID))
	return driver, nil
}

// GetDriver retrieves a driver, from cache when possible.
func (s *DriverService) GetDriver(ctx context.Context, driverID string) (*domain.Driver, error) {
	if driverID == "" {
		return nil, ErrInvalidDriverID
	}

	if s.cacheStore != nil {
		if cached, err := s.cacheStore.GetDriver(ctx, driverID); err == nil && cached != nil {
			return &domain.Driver{
				ID:        cached.ID,
				Name:      cached.Name,
				Phone:     cached.Phone,
				Status:    domain.DriverStatus(cached.Status),
				CreatedAt: cached.CreatedAt,
			}, nil
		}
	}

	driver, err := s.driverRepo.GetByID(ctx, driverID)
	if err != nil {
		return nil, err
	}
	s.cacheDriver(ctx, driver)
	return driver, nil
}

// ListDrivers lists drivers, filtered by status when one is given.
func (s *DriverService) ListDrivers(ctx context.Context, status domain.DriverStatus) ([]*domain.Driver, error) {
	if status != "" && !status.Valid() {
		return nil, ErrInvalidDriverStatus
	}
	return s.driverRepo.List(ctx, status)
}

// AvailableNearby returns the IDs of ONLINE drivers within radiusKm of the
// point, nearest first. Drivers on a delivery keep pinging and stay in the
// geo index, so every hit is checked against its status.
func (s *DriverService) AvailableNearby(ctx context.Context, lat, lng, radiusKm float64) ([]string, error) {
	nearby, err := s.locationStore.FindNearbyDrivers(ctx, lat, lng, radiusKm)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(nearby))
	for _, loc := range nearby {
		driver, err := s.GetDriver(ctx, loc.DriverID)
		if err != nil {
			s.logger.Warn("skipping nearby driver", zap.String("driver_id", loc.DriverID), zap.Error(err))
			continue
		}
		if driver.Status == domain.DriverStatusOnline {
			ids = append(ids, driver.ID)
		}
	}
	return ids, nil
}

// Forget drops a driver from the cache after their status changed elsewhere.
func (s *DriverService) Forget(ctx context.Context, driverID string) {
	if s == nil || s.cacheStore == nil || driverID == "" {
		return
	}
	if err := s.cacheStore.InvalidateDriver(ctx, driverID); err != nil {
		s.logger.Warn("invalidate driver cache", zap.String("driver_id", driverID), zap.Error(err))
	}
}

// UpdateLocationRequest contains the parameters for updating driver location.
type UpdateLocationRequest struct {
	DriverID string
	Lat      float64
	Lng      float64
}

// UpdateLocation updates a driver's location in Redis. An offline driver
// becomes ONLINE; a driver on a delivery keeps that status.
func (s *DriverService) UpdateLocation(ctx context.Context, req UpdateLocationRequest) error {
	if req.DriverID == "" {
		return ErrInvalidDriverID
	}
	if !domain.IsValidLatitude(req.Lat) || !domain.IsValidLongitude(req.Lng) {
		return domain.ErrInvalidLocation
	}

	driver, err := s.driverRepo.GetByID(ctx, req.DriverID)
	if err != nil {
		return err
	}

	// Update location in Redis (primary real-time data store)
	if err := s.locationStore.UpdateLocation(ctx, req.DriverID, req.Lat, req.Lng); err != nil {
		return err
	}

	if driver.Status == domain.DriverStatusOffline {
		if err := s.driverRepo.UpdateStatus(ctx, req.DriverID, domain.DriverStatusOnline); err != nil {
			return err
		}
		driver.Status = domain.DriverStatusOnline
	}

	s.cacheDriver(ctx, driver)
	return nil
}

// SetDriverOffline sets a driver as offline and drops them from the geo index.
func (s *DriverService) SetDriverOffline(ctx context.Context, driverID string) error {
	if driverID == "" {
		return ErrInvalidDriverID
	}

	if err := s.driverRepo.UpdateStatus(ctx, driverID, domain.DriverStatusOffline); err != nil {
		return err
	}

	// Remove from Redis GEO index
	if err := s.locationStore.RemoveLocation(ctx, driverID); err != nil {
		return err
	}

	if s.cacheStore != nil {
		_ = s.cacheStore.InvalidateDriver(ctx, driverID)
	}
	return nil
}

func (s *DriverService) cacheDriver(ctx context.Context, driver *domain.Driver) {
	if s.cacheStore == nil {
		return
	}
	_ = s.cacheStore.SetDriver(ctx, &redis.CachedDriver{
		ID:        driver.ID,
		Name:      driver.Name,
		Phone:     driver.Phone,
		Status:    string(driver.Status),
		CreatedAt: driver.CreatedAt,
	})
}
