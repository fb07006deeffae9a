package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/govalues/decimal"
	"go.uber.org/zap"

	"jointvibe/internal/backend"
	"jointvibe/internal/domain"
	"jointvibe/internal/repository"
	"jointvibe/internal/repository/gateway"
)

// OrderConfig holds the order pricing and dispatch settings.
type OrderConfig struct {
	TaxRate              decimal.Decimal
	DriverSearchRadiusKm float64
}

// OrderService handles order placement and the order lifecycle.
type OrderService struct {
	b                   backend.Backend
	orderRepo           repository.OrderRepository
	venueRepo           repository.VenueRepository
	menuService         *MenuService
	driverService       *DriverService
	fares               *FareCalculator
	notificationService *NotificationService
	cfg                 OrderConfig
	logger              *zap.Logger
}

// NewOrderService creates a new OrderService.
func NewOrderService(
	b backend.Backend,
	orderRepo repository.OrderRepository,
	venueRepo repository.VenueRepository,
	menuService *MenuService,
	driverService *DriverService,
	fares *FareCalculator,
	notificationService *NotificationService,
	cfg OrderConfig,
	logger *zap.Logger,
) *OrderService {
	return &OrderService{
		b:                   b,
		orderRepo:           orderRepo,
		venueRepo:           venueRepo,
		menuService:         menuService,
		driverService:       driverService,
		fares:               fares,
		notificationService: notificationService,
		cfg:                 cfg,
		logger:              logger,
	}
}

// CartItem is one position of a cart as submitted by a customer.
type CartItem struct {
	MenuItemID string
	Quantity   int
	Size       string
	Modifier   string
}

// PlaceOrderRequest contains the parameters for placing an order.
type PlaceOrderRequest struct {
	VenueID    string
	CustomerID string
	Type       domain.OrderType
	Items      []CartItem
	Dropoff    *domain.Location // required for delivery orders
	Notes      string

	// ExpectedTotal is the total the client displayed. When set it must match
	// the server-side total.
	ExpectedTotal *decimal.Decimal
}

// PlaceOrderResult is the outcome of a successful placement.
type PlaceOrderResult struct {
	Order    *domain.Order
	Delivery *domain.Delivery // nil for pickup orders
}

// PlaceOrder prices the cart from the venue menu and persists the order, its
// items, its first history entry and, for deliveries, the delivery record in
// one transaction.
func (s *OrderService) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (*PlaceOrderResult, error) {
	if err := s.validatePlaceRequest(req); err != nil {
		return nil, err
	}

	venue, err := s.venueRepo.GetByID(ctx, req.VenueID)
	if err != nil {
		return nil, err
	}
	if !venue.Approved {
		return nil, ErrVenueNotApproved
	}

	menu, err := s.menuService.GetMenu(ctx, req.VenueID)
	if err != nil {
		return nil, err
	}
	lines, err := priceCart(menu, req.Items)
	if err != nil {
		return nil, err
	}

	var (
		estimate    *domain.FareEstimate
		deliveryFee *decimal.Decimal
	)
	if req.Type == domain.OrderTypeDelivery {
		est, err := s.fares.EstimateBetween(venue.Location, *req.Dropoff, nil)
		if err != nil {
			return nil, err
		}
		estimate = &est
		deliveryFee = &est.Fare
	}

	totals, err := domain.ComputeTotals(lines, s.cfg.TaxRate, deliveryFee)
	if err != nil {
		return nil, err
	}
	if req.ExpectedTotal != nil && req.ExpectedTotal.Cmp(totals.Total) != 0 {
		return nil, fmt.Errorf("%w: expected %s, computed %s", domain.ErrTotalMismatch, req.ExpectedTotal, totals.Total)
	}

	order := &domain.Order{
		VenueID:    req.VenueID,
		CustomerID: req.CustomerID,
		Type:       req.Type,
		Items:      lines,
		Status:     domain.OrderStatusPending,
		Notes:      req.Notes,
	}
	order.Apply(totals)
	if req.Type == domain.OrderTypeDelivery {
		order.DeliveryAddress = req.Dropoff.Address
	}
	if err := order.CheckTotal(); err != nil {
		return nil, err
	}

	var delivery *domain.Delivery
	err = s.b.WithinTx(ctx, func(tx backend.Backend) error {
		txOrderRepo := gateway.NewOrderRepository(tx)
		txDeliveryRepo := gateway.NewDeliveryRepository(tx)

		if err := txOrderRepo.Create(ctx, order); err != nil {
			return fmt.Errorf("create order: %w", err)
		}
		if err := txOrderRepo.AppendHistory(ctx, &domain.OrderStatusChange{
			OrderID:   order.ID,
			To:        domain.OrderStatusPending,
			ActorRole: domain.ActorCustomer,
			ActorID:   req.CustomerID,
			ChangedAt: order.CreatedAt,
		}); err != nil {
			return fmt.Errorf("record history: %w", err)
		}

		if estimate == nil {
			return nil
		}
		delivery = &domain.Delivery{
			OrderID:         order.ID,
			Pickup:          venue.Location,
			Dropoff:         *req.Dropoff,
			DistanceKm:      estimate.DistanceKm,
			DurationMinutes: estimate.DurationMinutes,
			Fare:            estimate.Fare,
			DriverEarnings:  estimate.DriverEarnings,
			PlatformFee:     estimate.PlatformFee,
			Status:          domain.DeliveryStatusRequested,
		}
		if err := txDeliveryRepo.Create(ctx, delivery); err != nil {
			return fmt.Errorf("create delivery: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("order placed",
		zap.String("order_id", order.ID),
		zap.String("venue_id", order.VenueID),
		zap.String("type", string(order.Type)),
		zap.String("total", order.Total.String()))

	s.notificationService.NotifyOrderPlaced(ctx, order)
	if delivery != nil {
		s.dispatch(ctx, delivery)
	}

	return &PlaceOrderResult{Order: order, Delivery: delivery}, nil
}

// dispatch tells online drivers near the venue about a new delivery.
func (s *OrderService) dispatch(ctx context.Context, delivery *domain.Delivery) {
	if s.driverService == nil {
		return
	}
	ids, err := s.driverService.AvailableNearby(ctx, delivery.Pickup.Lat, delivery.Pickup.Lng, s.cfg.DriverSearchRadiusKm)
	if err != nil {
		s.logger.Warn("nearby driver search failed", zap.String("delivery_id", delivery.ID), zap.Error(err))
		return
	}
	s.notificationService.NotifyDeliveryRequested(ctx, delivery, ids)
}

func (s *OrderService) validatePlaceRequest(req PlaceOrderRequest) error {
	if req.VenueID == "" {
		return ErrInvalidVenueID
	}
	if req.CustomerID == "" {
		return ErrInvalidCustomerID
	}
	if !req.Type.Valid() {
		return domain.ErrInvalidOrderType
	}
	if len(req.Items) == 0 {
		return domain.ErrEmptyCart
	}
	for _, item := range req.Items {
		if item.Quantity <= 0 {
			return domain.ErrInvalidQuantity
		}
	}
	if req.Type == domain.OrderTypeDelivery {
		if req.Dropoff == nil || req.Dropoff.Address == "" || !req.Dropoff.Valid() {
			return ErrDeliveryAddressRequired
		}
	}
	return nil
}

// priceCart resolves every cart item against the menu.
func priceCart(menu *domain.Menu, cart []CartItem) ([]domain.LineItem, error) {
	lines := make([]domain.LineItem, 0, len(cart))
	for _, c := range cart {
		item, ok := menu.Item(c.MenuItemID)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownMenuItem, c.MenuItemID)
		}
		if !item.Available {
			return nil, fmt.Errorf("%w: %s", ErrMenuItemUnavailable, item.Name)
		}
		price, ok := item.PriceFor(c.Size)
		if !ok {
			return nil, fmt.Errorf("%w: %s %s", ErrUnknownSize, item.Name, c.Size)
		}
		lines = append(lines, domain.LineItem{
			MenuItemID: item.ID,
			Name:       item.Name,
			Quantity:   c.Quantity,
			UnitPrice:  price,
			Size:       c.Size,
			Modifier:   c.Modifier,
		})
	}
	return lines, nil
}

// GetOrder retrieves an order with its items.
func (s *OrderService) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	if orderID == "" {
		return nil, ErrInvalidOrderID
	}
	return s.orderRepo.GetByID(ctx, orderID)
}

// History lists the status changes of an order.
func (s *OrderService) History(ctx context.Context, orderID string) ([]*domain.OrderStatusChange, error) {
	if orderID == "" {
		return nil, ErrInvalidOrderID
	}
	return s.orderRepo.History(ctx, orderID)
}

// ListVenueOrders lists the most recent orders of a venue.
func (s *OrderService) ListVenueOrders(ctx context.Context, venueID string, limit uint64) ([]*domain.Order, error) {
	if venueID == "" {
		return nil, ErrInvalidVenueID
	}
	return s.orderRepo.ListByVenue(ctx, venueID, limit)
}

// ListCustomerOrders lists the orders of a customer.
func (s *OrderService) ListCustomerOrders(ctx context.Context, customerID string, limit uint64) ([]*domain.Order, error) {
	if customerID == "" {
		return nil, ErrInvalidCustomerID
	}
	return s.orderRepo.ListByCustomer(ctx, customerID, limit)
}

// UpdateStatusRequest contains the parameters for an order status change.
type UpdateStatusRequest struct {
	OrderID   string
	To        domain.OrderStatus
	ActorRole domain.ActorRole
	ActorID   string
}

// UpdateStatus moves an order to a new status on behalf of an actor. Asking
// for the status the order already has is a no-op.
func (s *OrderService) UpdateStatus(ctx context.Context, req UpdateStatusRequest) (*domain.Order, error) {
	if req.OrderID == "" {
		return nil, ErrInvalidOrderID
	}
	if !req.ActorRole.Valid() || (req.ActorRole != domain.ActorSystem && req.ActorID == "") {
		return nil, ErrInvalidActor
	}

	order, err := s.orderRepo.GetByID(ctx, req.OrderID)
	if err != nil {
		return nil, err
	}
	if order.Status == req.To {
		return order, nil
	}
	if err := domain.ValidateTransition(order.Type, order.Status, req.To); err != nil {
		return nil, fmt.Errorf("%s -> %s: %w", order.Status, req.To, err)
	}
	if deliveryDriven(order.Type, req.To) {
		return nil, fmt.Errorf("%w: %s", ErrDeliveryDriven, req.To)
	}
	if err := s.authorize(order, req); err != nil {
		return nil, err
	}

	from := order.Status
	var (
		updated     *domain.Order
		freedDriver string
	)
	err = s.b.WithinTx(ctx, func(tx backend.Backend) error {
		var err error
		updated, err = transitionOrder(ctx, tx, order, req.To, req.ActorRole, req.ActorID)
		if err != nil {
			return err
		}
		if req.To == domain.OrderStatusCancelled && order.Type == domain.OrderTypeDelivery {
			freedDriver, err = cancelDelivery(ctx, tx, order.ID)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	s.driverService.Forget(ctx, freedDriver)

	s.logger.Info("order status changed",
		zap.String("order_id", order.ID),
		zap.String("from", string(from)),
		zap.String("to", string(updated.Status)),
		zap.String("actor_role", string(req.ActorRole)))

	s.notificationService.NotifyOrderStatusChanged(ctx, updated, from)
	return updated, nil
}

// CancelOrder cancels an order on behalf of an actor.
func (s *OrderService) CancelOrder(ctx context.Context, orderID string, role domain.ActorRole, actorID string) (*domain.Order, error) {
	return s.UpdateStatus(ctx, UpdateStatusRequest{
		OrderID:   orderID,
		To:        domain.OrderStatusCancelled,
		ActorRole: role,
		ActorID:   actorID,
	})
}

// authorize checks that the actor may move the order to req.To.
func (s *OrderService) authorize(order *domain.Order, req UpdateStatusRequest) error {
	if !actorMayTransition(req.ActorRole, order.Type, order.Status, req.To) {
		return fmt.Errorf("%w: %s cannot move order to %s", ErrActorNotAllowed, req.ActorRole, req.To)
	}

	switch req.ActorRole {
	case domain.ActorCustomer:
		if req.ActorID != order.CustomerID {
			return ErrActorNotAllowed
		}
	case domain.ActorVenue:
		if req.ActorID != order.VenueID {
			return ErrActorNotAllowed
		}
	}
	return nil
}

// deliveryDriven reports whether status to of an order of type t belongs to
// the delivery flow. Those steps move the delivery record and the driver
// together, so only DeliveryService may take them.
func deliveryDriven(t domain.OrderType, to domain.OrderStatus) bool {
	if t != domain.OrderTypeDelivery {
		return false
	}
	switch to {
	case domain.OrderStatusOnTheWay, domain.OrderStatusDelivered, domain.OrderStatusCompleted:
		return true
	}
	return false
}

// actorMayTransition is the role table of the order lifecycle. Drivers have
// no entry: they act through their delivery.
func actorMayTransition(role domain.ActorRole, t domain.OrderType, from, to domain.OrderStatus) bool {
	switch role {
	case domain.ActorAdmin, domain.ActorSystem:
		return true
	case domain.ActorCustomer:
		return to == domain.OrderStatusCancelled && from == domain.OrderStatusPending
	case domain.ActorVenue:
		switch to {
		case domain.OrderStatusVenueConfirmed, domain.OrderStatusPreparing,
			domain.OrderStatusReadyForPickup, domain.OrderStatusCancelled:
			return true
		case domain.OrderStatusCompleted:
			return t == domain.OrderTypePickup
		}
	}
	return false
}

// transitionOrder applies one validated status step inside tx with a
// compare-and-set on the previous status, and appends the history entry.
func transitionOrder(ctx context.Context, tx backend.Backend, order *domain.Order, to domain.OrderStatus, role domain.ActorRole, actorID string) (*domain.Order, error) {
	if err := domain.ValidateTransition(order.Type, order.Status, to); err != nil {
		return nil, fmt.Errorf("%s -> %s: %w", order.Status, to, err)
	}

	txOrderRepo := gateway.NewOrderRepository(tx)
	updated, err := txOrderRepo.UpdateStatus(ctx, order.ID, order.Status, to)
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, ErrStatusConflict
		}
		return nil, err
	}

	if err := txOrderRepo.AppendHistory(ctx, &domain.OrderStatusChange{
		OrderID:   order.ID,
		From:      order.Status,
		To:        to,
		ActorRole: role,
		ActorID:   actorID,
		ChangedAt: updated.UpdatedAt,
	}); err != nil {
		return nil, fmt.Errorf("record history: %w", err)
	}

	updated.Items = order.Items
	return updated, nil
}

// cancelDelivery cancels the open delivery of an order and frees its driver.
// It returns the ID of the freed driver, if any.
func cancelDelivery(ctx context.Context, tx backend.Backend, orderID string) (string, error) {
	txDeliveryRepo := gateway.NewDeliveryRepository(tx)
	delivery, err := txDeliveryRepo.GetByOrderID(ctx, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", nil
		}
		return "", err
	}
	if delivery.Status.IsTerminal() {
		return "", nil
	}

	if _, err := txDeliveryRepo.UpdateStatus(ctx, delivery.ID, delivery.Status, domain.DeliveryStatusCancelled); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return "", ErrStatusConflict
		}
		return "", err
	}
	if delivery.DriverID == "" {
		return "", nil
	}
	err = gateway.NewDriverRepository(tx).UpdateStatus(ctx, delivery.DriverID, domain.DriverStatusOnline)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return "", err
	}
	return delivery.DriverID, nil
}
