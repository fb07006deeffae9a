package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"jointvibe/internal/backend"
	"jointvibe/internal/domain"
	"jointvibe/internal/redis"
	"jointvibe/internal/repository"
	"jointvibe/internal/repository/gateway"
)

// deliveryLockTTL bounds how long an acceptance may hold the delivery lock.
const deliveryLockTTL = 10 * time.Second

// DeliveryService handles the driver side of delivery orders.
type DeliveryService struct {
	b                   backend.Backend
	deliveryRepo        repository.DeliveryRepository
	orderRepo           repository.OrderRepository
	driverRepo          repository.DriverRepository
	driverService       *DriverService
	lockStore           redis.LockStoreInterface
	notificationService *NotificationService
	logger              *zap.Logger
}

// NewDeliveryService creates a new DeliveryService. lockStore may be nil, in
// which case acceptance relies on the compare-and-set alone. driverService,
// when set, has its driver cache cleared on every driver status change.
func NewDeliveryService(
	b backend.Backend,
	deliveryRepo repository.DeliveryRepository,
	orderRepo repository.OrderRepository,
	driverRepo repository.DriverRepository,
	driverService *DriverService,
	lockStore redis.LockStoreInterface,
	notificationService *NotificationService,
	logger *zap.Logger,
) *DeliveryService {
	return &DeliveryService{
		b:                   b,
		deliveryRepo:        deliveryRepo,
		orderRepo:           orderRepo,
		driverRepo:          driverRepo,
		driverService:       driverService,
		lockStore:           lockStore,
		notificationService: notificationService,
		logger:              logger,
	}
}

// GetDelivery retrieves a delivery by ID.
func (s *DeliveryService) GetDelivery(ctx context.Context, deliveryID string) (*domain.Delivery, error) {
	if deliveryID == "" {
		return nil, ErrInvalidDeliveryID
	}
	return s.deliveryRepo.GetByID(ctx, deliveryID)
}

// ListOpen lists deliveries still waiting for a driver, oldest first.
func (s *DeliveryService) ListOpen(ctx context.Context) ([]*domain.Delivery, error) {
	return s.deliveryRepo.ListByStatus(ctx, domain.DeliveryStatusRequested)
}

// ListByDriver lists the deliveries of a driver.
func (s *DeliveryService) ListByDriver(ctx context.Context, driverID string) ([]*domain.Delivery, error) {
	if driverID == "" {
		return nil, ErrInvalidDriverID
	}
	return s.deliveryRepo.ListByDriver(ctx, driverID)
}

// DeliveryActionRequest identifies a driver acting on a delivery.
type DeliveryActionRequest struct {
	DeliveryID string
	DriverID   string
}

func (r DeliveryActionRequest) validate() error {
	if r.DeliveryID == "" {
		return ErrInvalidDeliveryID
	}
	if r.DriverID == "" {
		return ErrInvalidDriverID
	}
	return nil
}

// Accept assigns a requested delivery to the driver. Of several drivers
// accepting the same delivery exactly one succeeds; the rest get ErrDeliveryTaken.
func (s *DeliveryService) Accept(ctx context.Context, req DeliveryActionRequest) (*domain.Delivery, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	driver, err := s.driverRepo.GetByID(ctx, req.DriverID)
	if err != nil {
		return nil, err
	}
	switch driver.Status {
	case domain.DriverStatusOnline:
	case domain.DriverStatusOnDelivery:
		return nil, ErrDriverBusy
	default:
		return nil, ErrDriverOffline
	}

	if s.lockStore != nil {
		locked, err := s.lockStore.AcquireDeliveryLock(ctx, req.DeliveryID, req.DriverID, deliveryLockTTL)
		if err != nil {
			return nil, fmt.Errorf("acquire delivery lock: %w", err)
		}
		if !locked {
			return nil, ErrDeliveryTaken
		}
		defer func() {
			if err := s.lockStore.ReleaseDeliveryLock(context.WithoutCancel(ctx), req.DeliveryID, req.DriverID); err != nil {
				s.logger.Warn("release delivery lock", zap.String("delivery_id", req.DeliveryID), zap.Error(err))
			}
		}()
	}

	delivery, err := s.deliveryRepo.GetByID(ctx, req.DeliveryID)
	if err != nil {
		return nil, err
	}
	if delivery.Status != domain.DeliveryStatusRequested {
		return nil, ErrDeliveryTaken
	}

	var accepted *domain.Delivery
	err = s.b.WithinTx(ctx, func(tx backend.Backend) error {
		var err error
		accepted, err = gateway.NewDeliveryRepository(tx).Assign(ctx, req.DeliveryID, req.DriverID)
		if err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return ErrDeliveryTaken
			}
			return err
		}
		return gateway.NewDriverRepository(tx).UpdateStatus(ctx, req.DriverID, domain.DriverStatusOnDelivery)
	})
	if err != nil {
		return nil, err
	}
	s.driverService.Forget(ctx, req.DriverID)

	s.logger.Info("delivery accepted",
		zap.String("delivery_id", accepted.ID),
		zap.String("driver_id", req.DriverID))

	if order, err := s.orderRepo.GetByID(ctx, accepted.OrderID); err == nil {
		s.notificationService.NotifyDeliveryAccepted(ctx, order, driver)
	}
	return accepted, nil
}

// Arrive marks that the driver reached the venue.
func (s *DeliveryService) Arrive(ctx context.Context, req DeliveryActionRequest) (*domain.Delivery, error) {
	delivery, err := s.step(ctx, req, domain.DeliveryStatusAccepted, domain.DeliveryStatusArrived, nil)
	if err != nil {
		return nil, err
	}

	if order, err := s.orderRepo.GetByID(ctx, delivery.OrderID); err == nil {
		s.notificationService.NotifyDriverArrived(ctx, order, req.DriverID)
	}
	return delivery, nil
}

// PickUp marks that the driver collected the order; the order goes on_the_way.
// The venue must have marked the order ready first.
func (s *DeliveryService) PickUp(ctx context.Context, req DeliveryActionRequest) (*domain.Delivery, error) {
	var order *domain.Order
	delivery, err := s.step(ctx, req, domain.DeliveryStatusArrived, domain.DeliveryStatusPickedUp,
		func(tx backend.Backend, d *domain.Delivery) error {
			var err error
			order, err = s.advanceOrder(ctx, tx, d.OrderID, req.DriverID, domain.OrderStatusOnTheWay)
			return err
		})
	if err != nil {
		return nil, err
	}

	s.notificationService.NotifyOrderStatusChanged(ctx, order, domain.OrderStatusReadyForPickup)
	return delivery, nil
}

// Complete marks the delivery done; the order is delivered and then
// completed, and the driver is available again.
func (s *DeliveryService) Complete(ctx context.Context, req DeliveryActionRequest) (*domain.Delivery, error) {
	var order *domain.Order
	delivery, err := s.step(ctx, req, domain.DeliveryStatusPickedUp, domain.DeliveryStatusCompleted,
		func(tx backend.Backend, d *domain.Delivery) error {
			var err error
			if order, err = s.advanceOrder(ctx, tx, d.OrderID, req.DriverID, domain.OrderStatusDelivered); err != nil {
				return err
			}
			if order, err = transitionOrder(ctx, tx, order, domain.OrderStatusCompleted, domain.ActorDriver, req.DriverID); err != nil {
				return err
			}
			return gateway.NewDriverRepository(tx).UpdateStatus(ctx, req.DriverID, domain.DriverStatusOnline)
		})
	if err != nil {
		return nil, err
	}
	s.driverService.Forget(ctx, req.DriverID)

	s.notificationService.NotifyOrderStatusChanged(ctx, order, domain.OrderStatusDelivered)
	return delivery, nil
}

// step moves a delivery owned by the driver from one status to the next and
// runs then in the same transaction.
func (s *DeliveryService) step(
	ctx context.Context,
	req DeliveryActionRequest,
	from, to domain.DeliveryStatus,
	then func(tx backend.Backend, d *domain.Delivery) error,
) (*domain.Delivery, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	delivery, err := s.deliveryRepo.GetByID(ctx, req.DeliveryID)
	if err != nil {
		return nil, err
	}
	if delivery.DriverID != req.DriverID {
		return nil, ErrDriverNotAssigned
	}
	if delivery.Status != from {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidDeliveryTransition, delivery.Status, to)
	}

	var updated *domain.Delivery
	err = s.b.WithinTx(ctx, func(tx backend.Backend) error {
		var err error
		updated, err = gateway.NewDeliveryRepository(tx).UpdateStatus(ctx, delivery.ID, from, to)
		if err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return fmt.Errorf("%w: %s -> %s", ErrInvalidDeliveryTransition, from, to)
			}
			return err
		}
		if then != nil {
			return then(tx, updated)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("delivery status changed",
		zap.String("delivery_id", delivery.ID),
		zap.String("from", string(from)),
		zap.String("to", string(to)))
	return updated, nil
}

func (s *DeliveryService) advanceOrder(ctx context.Context, tx backend.Backend, orderID, driverID string, to domain.OrderStatus) (*domain.Order, error) {
	order, err := gateway.NewOrderRepository(tx).GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return transitionOrder(ctx, tx, order, to, domain.ActorDriver, driverID)
}
