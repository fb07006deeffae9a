package domain

import (
	"time"

	"github.com/govalues/decimal"
)

// ActorRole identifies who triggered a status change.
type ActorRole string

const (
	ActorCustomer ActorRole = "customer"
	ActorVenue    ActorRole = "venue"
	ActorDriver   ActorRole = "driver"
	ActorAdmin    ActorRole = "admin"
	ActorSystem   ActorRole = "system"
)

// Valid reports whether r is a known actor role.
func (r ActorRole) Valid() bool {
	switch r {
	case ActorCustomer, ActorVenue, ActorDriver, ActorAdmin, ActorSystem:
		return true
	}
	return false
}

// LineItem is a single cart position of an order.
type LineItem struct {
	ID         string
	OrderID    string
	MenuItemID string
	Name       string
	Quantity   int
	UnitPrice  decimal.Decimal
	Size       string
	Modifier   string
}

// LineTotal returns quantity times unit price.
func (li LineItem) LineTotal() (decimal.Decimal, error) {
	if li.Quantity <= 0 {
		return decimal.Decimal{}, ErrInvalidQuantity
	}
	if li.UnitPrice.IsNeg() {
		return decimal.Decimal{}, ErrInvalidPrice
	}
	qty, err := decimal.New(int64(li.Quantity), 0)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return mulMoney(li.UnitPrice, qty)
}

// Order is a customer order placed at a venue.
type Order struct {
	ID              string
	VenueID         string
	CustomerID      string
	Type            OrderType
	Items           []LineItem
	Subtotal        decimal.Decimal
	Tax             decimal.Decimal
	DeliveryFee     *decimal.Decimal // nil for pickup orders
	Total           decimal.Decimal
	Status          OrderStatus
	DeliveryAddress string
	Notes           string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Totals is the monetary breakdown of an order.
type Totals struct {
	Subtotal    decimal.Decimal
	Tax         decimal.Decimal
	DeliveryFee *decimal.Decimal
	Total       decimal.Decimal
}

// ComputeTotals prices a cart: subtotal of all lines, tax on the subtotal
// rounded to cents, and the optional delivery fee.
func ComputeTotals(items []LineItem, taxRate decimal.Decimal, deliveryFee *decimal.Decimal) (Totals, error) {
	if len(items) == 0 {
		return Totals{}, ErrEmptyCart
	}
	if taxRate.IsNeg() {
		return Totals{}, ErrInvalidPrice
	}

	subtotal := decimal.Zero
	for _, item := range items {
		line, err := item.LineTotal()
		if err != nil {
			return Totals{}, err
		}
		if subtotal, err = addMoney(subtotal, line); err != nil {
			return Totals{}, err
		}
	}
	subtotal = RoundMoney(subtotal)

	tax, err := mulMoney(subtotal, taxRate)
	if err != nil {
		return Totals{}, err
	}
	tax = RoundMoney(tax)

	total, err := addMoney(subtotal, tax)
	if err != nil {
		return Totals{}, err
	}

	var fee *decimal.Decimal
	if deliveryFee != nil {
		if deliveryFee.IsNeg() {
			return Totals{}, ErrInvalidPrice
		}
		f := RoundMoney(*deliveryFee)
		fee = &f
		if total, err = addMoney(total, f); err != nil {
			return Totals{}, err
		}
	}

	return Totals{
		Subtotal:    subtotal,
		Tax:         tax,
		DeliveryFee: fee,
		Total:       RoundMoney(total),
	}, nil
}

// Apply copies the totals onto the order.
func (o *Order) Apply(t Totals) {
	o.Subtotal = t.Subtotal
	o.Tax = t.Tax
	o.DeliveryFee = t.DeliveryFee
	o.Total = t.Total
}

// CheckTotal verifies that total equals subtotal + tax + delivery fee.
func (o *Order) CheckTotal() error {
	sum, err := addMoney(o.Subtotal, o.Tax)
	if err != nil {
		return err
	}
	if o.DeliveryFee != nil {
		if sum, err = addMoney(sum, *o.DeliveryFee); err != nil {
			return err
		}
	}
	if sum.Cmp(o.Total) != 0 {
		return ErrTotalMismatch
	}
	return nil
}

// OrderStatusChange records one transition in an order's history.
type OrderStatusChange struct {
	ID        string
	OrderID   string
	From      OrderStatus
	To        OrderStatus
	ActorRole ActorRole
	ActorID   string
	ChangedAt time.Time
}
