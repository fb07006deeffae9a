package domain

import "errors"

var (
	// ErrInvalidInput is returned for negative or non-finite fare inputs.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidStatus is returned for unknown order statuses.
	ErrInvalidStatus = errors.New("invalid order status")

	// ErrInvalidOrderType is returned for unknown order types.
	ErrInvalidOrderType = errors.New("invalid order type")

	// ErrOrderTerminal is returned when mutating a completed or cancelled order.
	ErrOrderTerminal = errors.New("order is in a terminal state")

	// ErrInvalidTransition is returned when a status step is not part of the lifecycle.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrEmptyCart is returned when an order has no line items.
	ErrEmptyCart = errors.New("cart is empty")

	// ErrInvalidQuantity is returned for non-positive line item quantities.
	ErrInvalidQuantity = errors.New("quantity must be positive")

	// ErrInvalidPrice is returned for negative prices and fees.
	ErrInvalidPrice = errors.New("price must not be negative")

	// ErrTotalMismatch is returned when an order total does not add up.
	ErrTotalMismatch = errors.New("order total does not match its components")

	// ErrInvalidLocation is returned when coordinates are out of range.
	ErrInvalidLocation = errors.New("invalid location")
)
