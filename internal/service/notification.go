package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"jointvibe/internal/domain"
)

// NotificationType represents the type of notification.
type NotificationType string

const (
	NotificationOrderPlaced         NotificationType = "ORDER_PLACED"
	NotificationOrderStatusChanged  NotificationType = "ORDER_STATUS_CHANGED"
	NotificationOrderCancelled      NotificationType = "ORDER_CANCELLED"
	NotificationDeliveryRequested   NotificationType = "DELIVERY_REQUESTED"
	NotificationDeliveryAccepted    NotificationType = "DELIVERY_ACCEPTED"
	NotificationDriverArrived       NotificationType = "DRIVER_ARRIVED"
	NotificationVenueApproved       NotificationType = "VENUE_APPROVED"
	NotificationWithdrawalProcessed NotificationType = "WITHDRAWAL_PROCESSED"
)

// Notification represents a notification to be sent.
type Notification struct {
	ID          string
	Type        NotificationType
	RecipientID string // user, venue or driver ID
	Title       string
	Message     string
	Data        map[string]any
	CreatedAt   time.Time
}

// Sender delivers notifications over one channel.
type Sender interface {
	Send(ctx context.Context, n Notification) error
}

// LogSender writes notifications to the log.
type LogSender struct {
	logger *zap.Logger
}

// NewLogSender creates a LogSender.
func NewLogSender(logger *zap.Logger) *LogSender {
	return &LogSender{logger: logger}
}

// Send logs the notification.
func (s *LogSender) Send(ctx context.Context, n Notification) error {
	s.logger.Info("notification",
		zap.String("id", n.ID),
		zap.String("type", string(n.Type)),
		zap.String("recipient", n.RecipientID),
		zap.String("title", n.Title),
		zap.String("message", n.Message))
	return nil
}

// NotificationService fans notifications out to every configured sender.
// Delivery failures are logged and never returned to the caller.
type NotificationService struct {
	senders []Sender
	logger  *zap.Logger
}

// NewNotificationService creates a new NotificationService.
func NewNotificationService(logger *zap.Logger, senders ...Sender) *NotificationService {
	return &NotificationService{senders: senders, logger: logger}
}

// NotifyOrderPlaced tells the venue about a new order.
func (s *NotificationService) NotifyOrderPlaced(ctx context.Context, order *domain.Order) {
	s.send(ctx, Notification{
		Type:        NotificationOrderPlaced,
		RecipientID: order.VenueID,
		Title:       "New Order",
		Message:     fmt.Sprintf("New %s order %s, total $%s", order.Type, shortID(order.ID), order.Total),
		Data: map[string]any{
			"order_id": order.ID,
			"type":     string(order.Type),
			"total":    order.Total.String(),
			"items":    len(order.Items),
		},
	})
}

// NotifyDeliveryRequested tells nearby drivers that a delivery is waiting.
func (s *NotificationService) NotifyDeliveryRequested(ctx context.Context, delivery *domain.Delivery, driverIDs []string) {
	for _, driverID := range driverIDs {
		s.send(ctx, Notification{
			Type:        NotificationDeliveryRequested,
			RecipientID: driverID,
			Title:       "New Delivery Request",
			Message: fmt.Sprintf("Delivery near you: %.1f km, earn $%s. Pickup at (%.4f, %.4f)",
				delivery.DistanceKm, delivery.DriverEarnings, delivery.Pickup.Lat, delivery.Pickup.Lng),
			Data: map[string]any{
				"delivery_id": delivery.ID,
				"order_id":    delivery.OrderID,
				"earnings":    delivery.DriverEarnings.String(),
			},
		})
	}
}

// NotifyOrderStatusChanged tells the customer their order moved on.
func (s *NotificationService) NotifyOrderStatusChanged(ctx context.Context, order *domain.Order, from domain.OrderStatus) {
	if order.Status == domain.OrderStatusCancelled {
		s.send(ctx, Notification{
			Type:        NotificationOrderCancelled,
			RecipientID: order.CustomerID,
			Title:       "Order Cancelled",
			Message:     fmt.Sprintf("Order %s was cancelled", shortID(order.ID)),
			Data:        map[string]any{"order_id": order.ID, "from": string(from)},
		})
		return
	}

	s.send(ctx, Notification{
		Type:        NotificationOrderStatusChanged,
		RecipientID: order.CustomerID,
		Title:       "Order Update",
		Message:     fmt.Sprintf("Order %s is now %s", shortID(order.ID), order.Status),
		Data: map[string]any{
			"order_id": order.ID,
			"from":     string(from),
			"to":       string(order.Status),
		},
	})
}

// NotifyDeliveryAccepted tells the customer which driver is on the way.
func (s *NotificationService) NotifyDeliveryAccepted(ctx context.Context, order *domain.Order, driver *domain.Driver) {
	s.send(ctx, Notification{
		Type:        NotificationDeliveryAccepted,
		RecipientID: order.CustomerID,
		Title:       "Driver Assigned",
		Message:     fmt.Sprintf("%s will deliver order %s", driver.Name, shortID(order.ID)),
		Data: map[string]any{
			"order_id":    order.ID,
			"driver_id":   driver.ID,
			"driver_name": driver.Name,
		},
	})
}

// NotifyDriverArrived tells the venue the driver is waiting for the order.
func (s *NotificationService) NotifyDriverArrived(ctx context.Context, order *domain.Order, driverID string) {
	s.send(ctx, Notification{
		Type:        NotificationDriverArrived,
		RecipientID: order.VenueID,
		Title:       "Driver Arrived",
		Message:     fmt.Sprintf("Driver is waiting for order %s", shortID(order.ID)),
		Data:        map[string]any{"order_id": order.ID, "driver_id": driverID},
	})
}

// NotifyVenueApproved tells a venue it can start taking orders.
func (s *NotificationService) NotifyVenueApproved(ctx context.Context, venue *domain.Venue) {
	s.send(ctx, Notification{
		Type:        NotificationVenueApproved,
		RecipientID: venue.ID,
		Title:       "Venue Approved",
		Message:     fmt.Sprintf("%s is now live on Joint Vibe", venue.Name),
		Data:        map[string]any{"venue_id": venue.ID},
	})
}

// NotifyWithdrawalProcessed tells the wallet owner the outcome of a withdrawal.
func (s *NotificationService) NotifyWithdrawalProcessed(ctx context.Context, wallet *domain.Wallet, tx *domain.WalletTransaction) {
	s.send(ctx, Notification{
		Type:        NotificationWithdrawalProcessed,
		RecipientID: wallet.OwnerID,
		Title:       "Withdrawal " + string(tx.Status),
		Message:     fmt.Sprintf("Your withdrawal of $%s was %s", tx.USDAmount, tx.Status),
		Data: map[string]any{
			"wallet_id":      wallet.ID,
			"transaction_id": tx.ID,
			"status":         string(tx.Status),
		},
	})
}

func (s *NotificationService) send(ctx context.Context, n Notification) {
	if s == nil {
		return
	}
	n.ID = uuid.NewString()
	n.CreatedAt = time.Now()

	for _, sender := range s.senders {
		if err := sender.Send(ctx, n); err != nil {
			s.logger.Warn("notification delivery failed",
				zap.String("type", string(n.Type)),
				zap.String("recipient", n.RecipientID),
				zap.Error(err))
		}
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
