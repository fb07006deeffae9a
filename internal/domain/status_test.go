package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusVenueConfirmed,
	OrderStatusPreparing,
	OrderStatusReadyForPickup,
	OrderStatusOnTheWay,
	OrderStatusDelivered,
	OrderStatusCompleted,
	OrderStatusCancelled,
}

func TestValidateTransition_DeliveryPath(t *testing.T) {
	path := Path(OrderTypeDelivery)
	require.Equal(t, []OrderStatus{
		OrderStatusPending,
		OrderStatusVenueConfirmed,
		OrderStatusPreparing,
		OrderStatusReadyForPickup,
		OrderStatusOnTheWay,
		OrderStatusDelivered,
		OrderStatusCompleted,
	}, path)

	for i := 0; i+1 < len(path); i++ {
		assert.NoError(t, ValidateTransition(OrderTypeDelivery, path[i], path[i+1]), "%s -> %s", path[i], path[i+1])
	}
}

func TestValidateTransition_PickupSkipsOnTheWay(t *testing.T) {
	path := Path(OrderTypePickup)
	assert.NotContains(t, path, OrderStatusOnTheWay)
	assert.NotContains(t, path, OrderStatusDelivered)
	assert.Equal(t, OrderStatusCompleted, path[len(path)-1])

	assert.ErrorIs(t, ValidateTransition(OrderTypePickup, OrderStatusReadyForPickup, OrderStatusOnTheWay), ErrInvalidTransition)
	assert.NoError(t, ValidateTransition(OrderTypePickup, OrderStatusReadyForPickup, OrderStatusCompleted))

	// Nothing in the pickup lifecycle may lead into on_the_way.
	for _, from := range allStatuses {
		assert.False(t, CanTransition(OrderTypePickup, from, OrderStatusOnTheWay), "pickup %s -> on_the_way", from)
	}
}

func TestValidateTransition_TerminalStatesAreFinal(t *testing.T) {
	for _, typ := range []OrderType{OrderTypeDelivery, OrderTypePickup} {
		for _, from := range []OrderStatus{OrderStatusCompleted, OrderStatusCancelled} {
			for _, to := range allStatuses {
				err := ValidateTransition(typ, from, to)
				assert.ErrorIs(t, err, ErrOrderTerminal, "%s: %s -> %s", typ, from, to)
			}
		}
	}
}

func TestValidateTransition_CancelFromAnyNonTerminal(t *testing.T) {
	for _, from := range Path(OrderTypeDelivery) {
		if from.IsTerminal() {
			continue
		}
		assert.NoError(t, ValidateTransition(OrderTypeDelivery, from, OrderStatusCancelled), from)
	}
}

func TestValidateTransition_Rejects(t *testing.T) {
	testCases := []struct {
		name    string
		typ     OrderType
		from    OrderStatus
		to      OrderStatus
		wantErr error
	}{
		{"skip ahead", OrderTypeDelivery, OrderStatusPending, OrderStatusPreparing, ErrInvalidTransition},
		{"backwards", OrderTypeDelivery, OrderStatusPreparing, OrderStatusVenueConfirmed, ErrInvalidTransition},
		{"same status", OrderTypeDelivery, OrderStatusPreparing, OrderStatusPreparing, ErrInvalidTransition},
		{"unknown status", OrderTypeDelivery, OrderStatusPending, OrderStatus("shipped"), ErrInvalidStatus},
		{"unknown type", OrderType("dine_in"), OrderStatusPending, OrderStatusVenueConfirmed, ErrInvalidOrderType},
		{"delivered before on the way", OrderTypeDelivery, OrderStatusReadyForPickup, OrderStatusDelivered, ErrInvalidTransition},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.ErrorIs(t, ValidateTransition(tc.typ, tc.from, tc.to), tc.wantErr)
		})
	}
}

func TestNext(t *testing.T) {
	next, ok := Next(OrderTypePickup, OrderStatusReadyForPickup)
	assert.True(t, ok)
	assert.Equal(t, OrderStatusCompleted, next)

	_, ok = Next(OrderTypeDelivery, OrderStatusCompleted)
	assert.False(t, ok)
}

func TestReachable(t *testing.T) {
	assert.True(t, Reachable(OrderTypeDelivery, OrderStatusPreparing, OrderStatusOnTheWay))
	assert.True(t, Reachable(OrderTypePickup, OrderStatusPending, OrderStatusCancelled))
	assert.False(t, Reachable(OrderTypeDelivery, OrderStatusOnTheWay, OrderStatusPreparing))
	assert.False(t, Reachable(OrderTypePickup, OrderStatusPreparing, OrderStatusOnTheWay))
	assert.False(t, Reachable(OrderTypeDelivery, OrderStatusCancelled, OrderStatusCompleted))
	assert.False(t, Reachable(OrderTypeDelivery, OrderStatusPending, OrderStatusPending))
}
