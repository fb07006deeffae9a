package service

import "errors"

var (
	// ErrInvalidVenueID is returned when venue ID is empty.
	ErrInvalidVenueID = errors.New("invalid venue id")

	// ErrInvalidOrderID is returned when order ID is empty.
	ErrInvalidOrderID = errors.New("invalid order id")

	// ErrInvalidCustomerID is returned when customer ID is empty.
	ErrInvalidCustomerID = errors.New("invalid customer id")

	// ErrInvalidDriverID is returned when driver ID is empty.
	ErrInvalidDriverID = errors.New("invalid driver id")

	// ErrInvalidDeliveryID is returned when delivery ID is empty.
	ErrInvalidDeliveryID = errors.New("invalid delivery id")

	// ErrInvalidWalletID is returned when wallet ID is empty.
	ErrInvalidWalletID = errors.New("invalid wallet id")

	// ErrInvalidUserID is returned when user ID is empty.
	ErrInvalidUserID = errors.New("invalid user id")

	// ErrInvalidName is returned when a required name is empty.
	ErrInvalidName = errors.New("invalid name")

	// ErrInvalidPhone is returned when a driver phone number is empty.
	ErrInvalidPhone = errors.New("invalid phone")

	// ErrInvalidDriverStatus is returned when filtering by an unknown driver status.
	ErrInvalidDriverStatus = errors.New("invalid driver status")

	// ErrInvalidAmount is returned for non-positive money or token amounts.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrInvalidActor is returned for unknown actor roles or missing actor IDs.
	ErrInvalidActor = errors.New("invalid actor")

	// ErrActorNotAllowed is returned when the actor may not perform the transition.
	ErrActorNotAllowed = errors.New("actor not allowed to perform this action")

	// ErrStatusConflict is returned when the order status changed concurrently.
	ErrStatusConflict = errors.New("order status changed concurrently")

	// ErrVenueNotApproved is returned when ordering from an unapproved venue.
	ErrVenueNotApproved = errors.New("venue is not approved")

	// ErrUnknownMenuItem is returned when a cart references an item not on the menu.
	ErrUnknownMenuItem = errors.New("unknown menu item")

	// ErrMenuItemUnavailable is returned when a cart references an unavailable item.
	ErrMenuItemUnavailable = errors.New("menu item unavailable")

	// ErrUnknownSize is returned when a cart asks for a size the item does not offer.
	ErrUnknownSize = errors.New("unknown size for menu item")

	// ErrDeliveryAddressRequired is returned for delivery orders without a valid dropoff.
	ErrDeliveryAddressRequired = errors.New("delivery address and coordinates required")

	// ErrDeliveryTaken is returned when another driver accepted the delivery first.
	ErrDeliveryTaken = errors.New("delivery already taken")

	// ErrDriverNotAssigned is returned when a driver acts on a delivery assigned to someone else.
	ErrDriverNotAssigned = errors.New("driver not assigned to this delivery")

	// ErrInvalidDeliveryTransition is returned for out-of-order delivery steps.
	ErrInvalidDeliveryTransition = errors.New("invalid delivery transition")

	// ErrDriverBusy is returned when a driver already has a delivery in progress.
	ErrDriverBusy = errors.New("driver already on a delivery")

	// ErrDriverOffline is returned when an offline driver tries to accept a delivery.
	ErrDriverOffline = errors.New("driver is offline")

	// ErrDeliveryDriven is returned when a status of a delivery order is set
	// directly instead of through its delivery.
	ErrDeliveryDriven = errors.New("status is set by the delivery flow")

	// ErrDriverExists is returned when registering a phone number twice.
	ErrDriverExists = errors.New("driver already registered")

	// ErrWalletExists is returned when an owner already has a wallet.
	ErrWalletExists = errors.New("wallet already exists")

	// ErrWalletFrozen is returned for fund movements on a frozen wallet.
	ErrWalletFrozen = errors.New("wallet is frozen")

	// ErrInsufficientFunds is returned when a wallet balance cannot cover an amount.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrTransactionNotPending is returned when processing an already processed transaction.
	ErrTransactionNotPending = errors.New("transaction is not pending")

	// ErrNotAWithdrawal is returned when approving or rejecting a non-withdrawal transaction.
	ErrNotAWithdrawal = errors.New("transaction is not a withdrawal")
)
