package gateway

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"jointvibe/internal/backend"
	"jointvibe/internal/domain"
	"jointvibe/internal/repository"
)

// OrderRepository is a backend implementation of repository.OrderRepository.
type OrderRepository struct {
	b backend.Backend
}

var _ repository.OrderRepository = (*OrderRepository)(nil)

// NewOrderRepository creates an order repository.
func NewOrderRepository(b backend.Backend) *OrderRepository {
	return &OrderRepository{b: b}
}

// Create persists the order and its items in one transaction.
func (r *OrderRepository) Create(ctx context.Context, order *domain.Order) error {
	if order.ID == "" {
		order.ID = uuid.NewString()
	}
	ts := now()
	if order.CreatedAt.IsZero() {
		order.CreatedAt = ts
	}
	order.UpdatedAt = order.CreatedAt

	return r.b.WithinTx(ctx, func(tx backend.Backend) error {
		if _, err := tx.Insert(ctx, tableOrders, orderRecord(order)); err != nil {
			return fmt.Errorf("insert order: %w", mapError(err))
		}
		for i := range order.Items {
			item := &order.Items[i]
			if item.ID == "" {
				item.ID = uuid.NewString()
			}
			item.OrderID = order.ID
			if _, err := tx.Insert(ctx, tableOrderItems, lineItemRecord(item, i)); err != nil {
				return fmt.Errorf("insert order item: %w", mapError(err))
			}
		}
		return nil
	})
}

// GetByID retrieves an order with its line items.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	rec, err := first(r.b.Query(ctx, tableOrders, backend.Filter{"id": id}))
	if err != nil {
		return nil, err
	}
	order, err := OrderFromRecord(rec)
	if err != nil {
		return nil, err
	}

	rows, err := r.b.Query(ctx, tableOrderItems, backend.Filter{"order_id": id}, backend.OrderBy("position", false))
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		item, err := lineItemFromRecord(row)
		if err != nil {
			return nil, err
		}
		order.Items = append(order.Items, item)
	}
	return order, nil
}

func (r *OrderRepository) ListByVenue(ctx context.Context, venueID string, limit uint64) ([]*domain.Order, error) {
	return r.list(ctx, backend.Filter{"venue_id": venueID}, limit)
}

func (r *OrderRepository) ListByCustomer(ctx context.Context, customerID string, limit uint64) ([]*domain.Order, error) {
	return r.list(ctx, backend.Filter{"customer_id": customerID}, limit)
}

func (r *OrderRepository) list(ctx context.Context, filter backend.Filter, limit uint64) ([]*domain.Order, error) {
	opts := []backend.QueryOption{backend.OrderBy("created_at", true)}
	if limit > 0 {
		opts = append(opts, backend.Limit(limit))
	}
	rows, err := r.b.Query(ctx, tableOrders, filter, opts...)
	if err != nil {
		return nil, err
	}

	orders := make([]*domain.Order, 0, len(rows))
	for _, row := range rows {
		o, err := OrderFromRecord(row)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, nil
}

// UpdateStatus performs a compare-and-set on the order status.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id string, from, to domain.OrderStatus) (*domain.Order, error) {
	rec, err := compareAndSet(ctx, r.b, tableOrders, id, "status", string(from), backend.Record{
		"status":     string(to),
		"updated_at": now(),
	})
	if err != nil {
		return nil, err
	}
	return OrderFromRecord(rec)
}

func (r *OrderRepository) AppendHistory(ctx context.Context, change *domain.OrderStatusChange) error {
	if change.ID == "" {
		change.ID = uuid.NewString()
	}
	if change.ChangedAt.IsZero() {
		change.ChangedAt = now()
	}

	var from any
	if change.From != "" {
		from = string(change.From)
	}
	_, err := r.b.Insert(ctx, tableOrderHistory, backend.Record{
		"id":          change.ID,
		"order_id":    change.OrderID,
		"from_status": from,
		"to_status":   string(change.To),
		"actor_role":  string(change.ActorRole),
		"actor_id":    change.ActorID,
		"changed_at":  change.ChangedAt,
	})
	return mapError(err)
}

func (r *OrderRepository) History(ctx context.Context, orderID string) ([]*domain.OrderStatusChange, error) {
	rows, err := r.b.Query(ctx, tableOrderHistory, backend.Filter{"order_id": orderID}, backend.OrderBy("changed_at", false))
	if err != nil {
		return nil, err
	}

	history := make([]*domain.OrderStatusChange, 0, len(rows))
	for _, row := range rows {
		history = append(history, &domain.OrderStatusChange{
			ID:        row.String("id"),
			OrderID:   row.String("order_id"),
			From:      domain.OrderStatus(row.String("from_status")),
			To:        domain.OrderStatus(row.String("to_status")),
			ActorRole: domain.ActorRole(row.String("actor_role")),
			ActorID:   row.String("actor_id"),
			ChangedAt: row.Time("changed_at"),
		})
	}
	return history, nil
}

func (r *OrderRepository) Watch(ctx context.Context, orderID string, onChange func(*domain.Order)) (func(), error) {
	return r.watch(ctx, backend.Filter{"id": orderID}, onChange)
}

func (r *OrderRepository) WatchVenue(ctx context.Context, venueID string, onChange func(*domain.Order)) (func(), error) {
	return r.watch(ctx, backend.Filter{"venue_id": venueID}, onChange)
}

func (r *OrderRepository) watch(ctx context.Context, filter backend.Filter, onChange func(*domain.Order)) (func(), error) {
	return r.b.Subscribe(ctx, tableOrders, filter, func(c backend.Change) {
		order, err := OrderFromRecord(c.Record)
		if err != nil {
			return
		}
		onChange(order)
	})
}

func orderRecord(o *domain.Order) backend.Record {
	var address any
	if o.DeliveryAddress != "" {
		address = o.DeliveryAddress
	}
	return backend.Record{
		"id":               o.ID,
		"venue_id":         o.VenueID,
		"customer_id":      o.CustomerID,
		"type":             string(o.Type),
		"subtotal":         o.Subtotal,
		"tax":              o.Tax,
		"delivery_fee":     o.DeliveryFee,
		"total":            o.Total,
		"status":           string(o.Status),
		"delivery_address": address,
		"notes":            o.Notes,
		"created_at":       o.CreatedAt,
		"updated_at":       o.UpdatedAt,
	}
}

// OrderFromRecord converts an orders row into a domain order without items.
func OrderFromRecord(rec backend.Record) (*domain.Order, error) {
	subtotal, err := rec.Decimal("subtotal")
	if err != nil {
		return nil, err
	}
	tax, err := rec.Decimal("tax")
	if err != nil {
		return nil, err
	}
	fee, err := rec.NullDecimal("delivery_fee")
	if err != nil {
		return nil, err
	}
	total, err := rec.Decimal("total")
	if err != nil {
		return nil, err
	}

	return &domain.Order{
		ID:              rec.String("id"),
		VenueID:         rec.String("venue_id"),
		CustomerID:      rec.String("customer_id"),
		Type:            domain.OrderType(rec.String("type")),
		Subtotal:        subtotal,
		Tax:             tax,
		DeliveryFee:     fee,
		Total:           total,
		Status:          domain.OrderStatus(rec.String("status")),
		DeliveryAddress: rec.String("delivery_address"),
		Notes:           rec.String("notes"),
		CreatedAt:       rec.Time("created_at"),
		UpdatedAt:       rec.Time("updated_at"),
	}, nil
}

func lineItemRecord(li *domain.LineItem, position int) backend.Record {
	return backend.Record{
		"id":           li.ID,
		"order_id":     li.OrderID,
		"menu_item_id": li.MenuItemID,
		"name":         li.Name,
		"quantity":     li.Quantity,
		"unit_price":   li.UnitPrice,
		"size":         li.Size,
		"modifier":     li.Modifier,
		"position":     position,
	}
}

func lineItemFromRecord(rec backend.Record) (domain.LineItem, error) {
	price, err := rec.Decimal("unit_price")
	if err != nil {
		return domain.LineItem{}, err
	}
	return domain.LineItem{
		ID:         rec.String("id"),
		OrderID:    rec.String("order_id"),
		MenuItemID: rec.String("menu_item_id"),
		Name:       rec.String("name"),
		Quantity:   int(rec.Int("quantity")),
		UnitPrice:  price,
		Size:       rec.String("size"),
		Modifier:   rec.String("modifier"),
	}, nil
}
