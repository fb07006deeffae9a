package tests

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jointvibe/internal/backend"
	"jointvibe/internal/domain"
	"jointvibe/internal/repository"
	"jointvibe/internal/repository/gateway"
	"jointvibe/internal/service"
)

// ──────────────────────────────────────────────
// 3. ORDER LIFECYCLE
// ──────────────────────────────────────────────

func placePickup(t *testing.T, h *Harness) *domain.Order {
	t.Helper()
	venue, lagerID, _ := h.SeedVenue(t)
	res, err := h.OrderService.PlaceOrder(context.Background(), service.PlaceOrderRequest{
		VenueID:    venue.ID,
		CustomerID: "customer-1",
		Type:       domain.OrderTypePickup,
		Items:      []service.CartItem{{MenuItemID: lagerID, Quantity: 1}},
	})
	require.NoError(t, err)
	return res.Order
}

func venueStep(t *testing.T, h *Harness, order *domain.Order, to domain.OrderStatus) *domain.Order {
	t.Helper()
	updated, err := h.OrderService.UpdateStatus(context.Background(), service.UpdateStatusRequest{
		OrderID:   order.ID,
		To:        to,
		ActorRole: domain.ActorVenue,
		ActorID:   order.VenueID,
	})
	require.NoError(t, err)
	return updated
}

func TestOrderLifecycle_PickupHappyPath(t *testing.T) {
	t.Parallel()
	h := NewHarness(t)
	order := placePickup(t, h)

	for _, to := range []domain.OrderStatus{
		domain.OrderStatusVenueConfirmed,
		domain.OrderStatusPreparing,
		domain.OrderStatusReadyForPickup,
		domain.OrderStatusCompleted,
	} {
		order = venueStep(t, h, order, to)
		assert.Equal(t, to, order.Status)
	}

	history, err := h.OrderService.History(context.Background(), order.ID)
	require.NoError(t, err)
	require.Len(t, history, 5)
	assert.Equal(t, domain.OrderStatusReadyForPickup, history[4].From)
	assert.Equal(t, domain.OrderStatusCompleted, history[4].To)
	assert.Equal(t, domain.ActorVenue, history[4].ActorRole)
}

func TestOrderLifecycle_SkippingStatusRejected(t *testing.T) {
	t.Parallel()
	h := NewHarness(t)
	order := placePickup(t, h)

	_, err := h.OrderService.UpdateStatus(context.Background(), service.UpdateStatusRequest{
		OrderID:   order.ID,
		To:        domain.OrderStatusPreparing,
		ActorRole: domain.ActorVenue,
		ActorID:   order.VenueID,
	})
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestOrderLifecycle_SameStatusIsNoop(t *testing.T) {
	t.Parallel()
	h := NewHarness(t)
	order := placePickup(t, h)

	got, err := h.OrderService.UpdateStatus(context.Background(), service.UpdateStatusRequest{
		OrderID:   order.ID,
		To:        domain.OrderStatusPending,
		ActorRole: domain.ActorVenue,
		ActorID:   order.VenueID,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusPending, got.Status)

	history, err := h.OrderService.History(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestOrderLifecycle_ActorGating(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		role    domain.ActorRole
		actorID func(o *domain.Order) string
		to      domain.OrderStatus
		wantErr error
	}{
		{
			name:    "customer cannot confirm",
			role:    domain.ActorCustomer,
			actorID: func(o *domain.Order) string { return o.CustomerID },
			to:      domain.OrderStatusVenueConfirmed,
			wantErr: service.ErrActorNotAllowed,
		},
		{
			name:    "other venue cannot confirm",
			role:    domain.ActorVenue,
			actorID: func(o *domain.Order) string { return "another-venue" },
			to:      domain.OrderStatusVenueConfirmed,
			wantErr: service.ErrActorNotAllowed,
		},
		{
			name:    "other customer cannot cancel",
			role:    domain.ActorCustomer,
			actorID: func(o *domain.Order) string { return "someone-else" },
			to:      domain.OrderStatusCancelled,
			wantErr: service.ErrActorNotAllowed,
		},
		{
			name:    "driver cannot touch pickup orders",
			role:    domain.ActorDriver,
			actorID: func(o *domain.Order) string { return "driver-1" },
			to:      domain.OrderStatusVenueConfirmed,
			wantErr: service.ErrActorNotAllowed,
		},
		{
			name:    "missing actor id",
			role:    domain.ActorVenue,
			actorID: func(o *domain.Order) string { return "" },
			to:      domain.OrderStatusVenueConfirmed,
			wantErr: service.ErrInvalidActor,
		},
		{
			name:    "customer cancels own pending order",
			role:    domain.ActorCustomer,
			actorID: func(o *domain.Order) string { return o.CustomerID },
			to:      domain.OrderStatusCancelled,
		},
		{
			name:    "admin may confirm",
			role:    domain.ActorAdmin,
			actorID: func(o *domain.Order) string { return "admin-1" },
			to:      domain.OrderStatusVenueConfirmed,
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			h := NewHarness(t)
			order := placePickup(t, h)

			_, err := h.OrderService.UpdateStatus(context.Background(), service.UpdateStatusRequest{
				OrderID:   order.ID,
				To:        tc.to,
				ActorRole: tc.role,
				ActorID:   tc.actorID(order),
			})
			if tc.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func TestOrderLifecycle_CustomerCannotCancelOnceConfirmed(t *testing.T) {
	t.Parallel()
	h := NewHarness(t)
	order := placePickup(t, h)
	venueStep(t, h, order, domain.OrderStatusVenueConfirmed)

	_, err := h.OrderService.CancelOrder(context.Background(), order.ID, domain.ActorCustomer, order.CustomerID)
	assert.ErrorIs(t, err, service.ErrActorNotAllowed)
}

func TestOrderLifecycle_TerminalOrderIsFinal(t *testing.T) {
	t.Parallel()
	h := NewHarness(t)
	order := placePickup(t, h)

	_, err := h.OrderService.CancelOrder(context.Background(), order.ID, domain.ActorVenue, order.VenueID)
	require.NoError(t, err)

	_, err = h.OrderService.UpdateStatus(context.Background(), service.UpdateStatusRequest{
		OrderID:   order.ID,
		To:        domain.OrderStatusVenueConfirmed,
		ActorRole: domain.ActorAdmin,
		ActorID:   "admin-1",
	})
	assert.ErrorIs(t, err, domain.ErrOrderTerminal)
}

func TestOrderLifecycle_ConcurrentChangeConflicts(t *testing.T) {
	t.Parallel()
	h := NewHarness(t)
	order := placePickup(t, h)

	// A stale copy still believes the order is pending after the venue
	// confirmed it; the compare-and-set must refuse it.
	venueStep(t, h, order, domain.OrderStatusVenueConfirmed)

	err := h.Backend.WithinTx(context.Background(), func(tx backend.Backend) error {
		_, err := gateway.NewOrderRepository(tx).UpdateStatus(context.Background(), order.ID,
			domain.OrderStatusPending, domain.OrderStatusCancelled)
		return err
	})
	require.Error(t, err)

	stored, err := h.Orders.GetByID(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusVenueConfirmed, stored.Status)
}

// ──────────────────────────────────────────────
// 4. ORDER TRACKING
// ──────────────────────────────────────────────

func waitForUpdate(t *testing.T, tracker *service.OrderTracker) domain.Order {
	t.Helper()
	select {
	case o, ok := <-tracker.Updates():
		if !ok {
			t.Fatal("updates channel closed")
		}
		return o
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for order update")
	}
	return domain.Order{}
}

func TestOrderTracker_FollowsStatusChanges(t *testing.T) {
	t.Parallel()
	h := NewHarness(t)
	order := placePickup(t, h)

	tracker, err := h.OrderService.Track(context.Background(), order.ID)
	require.NoError(t, err)
	defer tracker.Close()

	venueStep(t, h, order, domain.OrderStatusVenueConfirmed)
	got := waitForUpdate(t, tracker)
	assert.Equal(t, domain.OrderStatusVenueConfirmed, got.Status)

	venueStep(t, h, order, domain.OrderStatusPreparing)
	got = waitForUpdate(t, tracker)
	assert.Equal(t, domain.OrderStatusPreparing, got.Status)
	assert.Equal(t, domain.OrderStatusPreparing, tracker.Status())
}

func TestOrderTracker_IgnoresStaleAndDuplicateEvents(t *testing.T) {
	t.Parallel()
	h := NewHarness(t)
	order := placePickup(t, h)

	tracker, err := h.OrderService.Track(context.Background(), order.ID)
	require.NoError(t, err)
	defer tracker.Close()

	confirmed := *order
	confirmed.Status = domain.OrderStatusVenueConfirmed
	assert.True(t, tracker.Apply(&confirmed))
	assert.False(t, tracker.Apply(&confirmed), "duplicate event")

	stale := *order
	stale.Status = domain.OrderStatusPending
	assert.False(t, tracker.Apply(&stale), "backwards event")

	other := confirmed
	other.ID = "another-order"
	other.Status = domain.OrderStatusPreparing
	assert.False(t, tracker.Apply(&other), "foreign event")

	cancelled := *order
	cancelled.Status = domain.OrderStatusCancelled
	assert.True(t, tracker.Apply(&cancelled))

	revived := *order
	revived.Status = domain.OrderStatusPreparing
	assert.False(t, tracker.Apply(&revived), "terminal status is final")
	assert.Equal(t, domain.OrderStatusCancelled, tracker.Status())
}

func TestOrderTracker_CloseEndsUpdates(t *testing.T) {
	t.Parallel()
	h := NewHarness(t)
	order := placePickup(t, h)

	tracker, err := h.OrderService.Track(context.Background(), order.ID)
	require.NoError(t, err)
	tracker.Close()
	tracker.Close()

	_, ok := <-tracker.Updates()
	assert.False(t, ok)

	confirmed := *order
	confirmed.Status = domain.OrderStatusVenueConfirmed
	assert.False(t, tracker.Apply(&confirmed))
}

func TestOrderTracker_UnknownOrder(t *testing.T) {
	t.Parallel()
	h := NewHarness(t)

	_, err := h.OrderService.Track(context.Background(), "missing")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}
