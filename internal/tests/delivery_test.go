package tests

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jointvibe/internal/domain"
	"jointvibe/internal/service"
)

// ──────────────────────────────────────────────
// 5. DELIVERY ACCEPTANCE AND LOCKING
// ──────────────────────────────────────────────

func TestDeliveryLocking_AcquireLock(t *testing.T) {
	t.Parallel()

	lockStore := NewMockLockStore()
	ctx := context.Background()

	acquired, err := lockStore.AcquireDeliveryLock(ctx, "delivery-1", "driver-a", deliveryLockTTL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !acquired {
		t.Error("expected lock to be acquired")
	}
	if !lockStore.IsLocked("delivery-1") {
		t.Error("expected delivery to be locked")
	}

	acquired, err = lockStore.AcquireDeliveryLock(ctx, "delivery-1", "driver-b", deliveryLockTTL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if acquired {
		t.Error("expected second acquisition to fail")
	}

	// A driver that does not hold the lock cannot release it.
	if err := lockStore.ReleaseDeliveryLock(ctx, "delivery-1", "driver-b"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !lockStore.IsLocked("delivery-1") {
		t.Error("expected lock to survive a release by another owner")
	}

	if err := lockStore.ReleaseDeliveryLock(ctx, "delivery-1", "driver-a"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if lockStore.IsLocked("delivery-1") {
		t.Error("expected lock to be released by its owner")
	}
}

func TestDeliveryAccept_AssignsDriver(t *testing.T) {
	t.Parallel()
	h := NewHarness(t)
	venue, lagerID, friesID := h.SeedVenue(t)
	res := h.PlaceDelivery(t, venue.ID, lagerID, friesID)
	driver := h.SeedDriver(t, "555-0001")

	accepted, err := h.DeliveryService.Accept(context.Background(), service.DeliveryActionRequest{
		DeliveryID: res.Delivery.ID,
		DriverID:   driver.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.DeliveryStatusAccepted, accepted.Status)
	assert.Equal(t, driver.ID, accepted.DriverID)

	stored, err := h.Drivers.GetByID(context.Background(), driver.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DriverStatusOnDelivery, stored.Status)

	// Lock is released after acceptance.
	assert.False(t, h.Locks.IsLocked(res.Delivery.ID))
	assert.Equal(t, int32(1), atomic.LoadInt32(&h.Locks.ReleaseCallCount))
	assert.Len(t, h.Sent.OfType(service.NotificationDeliveryAccepted), 1)

	open, err := h.DeliveryService.ListOpen(context.Background())
	require.NoError(t, err)
	assert.Empty(t, open)
}

func TestDeliveryAccept_LockHeldElsewhere(t *testing.T) {
	t.Parallel()
	h := NewHarness(t)
	venue, lagerID, friesID := h.SeedVenue(t)
	res := h.PlaceDelivery(t, venue.ID, lagerID, friesID)
	driver := h.SeedDriver(t, "555-0001")

	h.Locks.ForceAcquireFailure = true
	_, err := h.DeliveryService.Accept(context.Background(), service.DeliveryActionRequest{
		DeliveryID: res.Delivery.ID,
		DriverID:   driver.ID,
	})
	assert.ErrorIs(t, err, service.ErrDeliveryTaken)

	stored, err := h.Deliveries.GetByID(context.Background(), res.Delivery.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DeliveryStatusRequested, stored.Status)
}

func TestDeliveryAccept_BusyDriverRejected(t *testing.T) {
	t.Parallel()
	h := NewHarness(t)
	venue, lagerID, friesID := h.SeedVenue(t)
	first := h.PlaceDelivery(t, venue.ID, lagerID, friesID)
	second := h.PlaceDelivery(t, venue.ID, lagerID, friesID)
	driver := h.SeedDriver(t, "555-0001")
	ctx := context.Background()

	_, err := h.DeliveryService.Accept(ctx, service.DeliveryActionRequest{DeliveryID: first.Delivery.ID, DriverID: driver.ID})
	require.NoError(t, err)

	_, err = h.DeliveryService.Accept(ctx, service.DeliveryActionRequest{DeliveryID: second.Delivery.ID, DriverID: driver.ID})
	assert.ErrorIs(t, err, service.ErrDriverBusy)
}

func TestDeliveryAccept_OfflineDriverRejected(t *testing.T) {
	t.Parallel()
	h := NewHarness(t)
	venue, lagerID, friesID := h.SeedVenue(t)
	res := h.PlaceDelivery(t, venue.ID, lagerID, friesID)
	ctx := context.Background()

	// Registered but never pinged, so still OFFLINE.
	driver, err := h.DriverService.Register(ctx, service.RegisterDriverRequest{Name: "Ann", Phone: "555-0009"})
	require.NoError(t, err)

	_, err = h.DeliveryService.Accept(ctx, service.DeliveryActionRequest{DeliveryID: res.Delivery.ID, DriverID: driver.ID})
	assert.ErrorIs(t, err, service.ErrDriverOffline)

	stored, err := h.Deliveries.GetByID(ctx, res.Delivery.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DeliveryStatusRequested, stored.Status)
	assert.Zero(t, atomic.LoadInt32(&h.Locks.AcquireCallCount))
}

func TestDeliveryAccept_ClearsCachedDriverStatus(t *testing.T) {
	t.Parallel()
	h := NewHarness(t)
	venue, lagerID, friesID := h.SeedVenue(t)
	res := h.PlaceDelivery(t, venue.ID, lagerID, friesID)
	driver := h.SeedDriver(t, "555-0001")
	ctx := context.Background()

	require.NoError(t, h.DriverService.UpdateLocation(ctx, service.UpdateLocationRequest{
		DriverID: driver.ID, Lat: VenueLocation.Lat, Lng: VenueLocation.Lng,
	}))
	require.Equal(t, domain.DriverStatusOnline, h.DriverCache.Cached(driver.ID))

	_, err := h.DeliveryService.Accept(ctx, service.DeliveryActionRequest{DeliveryID: res.Delivery.ID, DriverID: driver.ID})
	require.NoError(t, err)
	assert.Empty(t, h.DriverCache.Cached(driver.ID))

	got, err := h.DriverService.GetDriver(ctx, driver.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DriverStatusOnDelivery, got.Status)
}

func TestDeliveryAccept_ConcurrentDriversExactlyOneWins(t *testing.T) {
	t.Parallel()

	// Without the lock store only the compare-and-set protects the delivery.
	for _, withLock := range []bool{true, false} {
		withLock := withLock
		t.Run(fmt.Sprintf("lock=%v", withLock), func(t *testing.T) {
			t.Parallel()
			h := NewHarness(t)
			venue, lagerID, friesID := h.SeedVenue(t)
			res := h.PlaceDelivery(t, venue.ID, lagerID, friesID)

			const numDrivers = 10
			drivers := make([]*domain.Driver, numDrivers)
			for i := range drivers {
				drivers[i] = h.SeedDriver(t, fmt.Sprintf("555-%04d", i))
			}

			deliveries := h.DeliveryService
			if !withLock {
				deliveries = service.NewDeliveryService(h.Backend, h.Deliveries, h.Orders, h.Drivers,
					h.DriverService, nil, nil, zapNop())
			}

			var (
				wg        sync.WaitGroup
				successes int32
				taken     int32
				start     = make(chan struct{})
			)
			for _, d := range drivers {
				wg.Add(1)
				go func(driverID string) {
					defer wg.Done()
					<-start
					_, err := deliveries.Accept(context.Background(), service.DeliveryActionRequest{
						DeliveryID: res.Delivery.ID,
						DriverID:   driverID,
					})
					switch {
					case err == nil:
						atomic.AddInt32(&successes, 1)
					case errors.Is(err, service.ErrDeliveryTaken):
						atomic.AddInt32(&taken, 1)
					default:
						t.Errorf("unexpected error: %v", err)
					}
				}(d.ID)
			}
			close(start)
			wg.Wait()

			assert.Equal(t, int32(1), successes, "exactly one driver must win")
			assert.Equal(t, int32(numDrivers-1), taken)

			stored, err := h.Deliveries.GetByID(context.Background(), res.Delivery.ID)
			require.NoError(t, err)
			assert.Equal(t, domain.DeliveryStatusAccepted, stored.Status)

			busy := 0
			all, err := h.Drivers.List(context.Background(), "")
			require.NoError(t, err)
			for _, d := range all {
				if d.Status == domain.DriverStatusOnDelivery {
					busy++
					assert.Equal(t, stored.DriverID, d.ID)
				}
			}
			assert.Equal(t, 1, busy)
		})
	}
}

// ──────────────────────────────────────────────
// 6. DELIVERY FLOW
// ──────────────────────────────────────────────

func TestDeliveryFlow_EndToEnd(t *testing.T) {
	t.Parallel()
	h := NewHarness(t)
	venue, lagerID, friesID := h.SeedVenue(t)
	res := h.PlaceDelivery(t, venue.ID, lagerID, friesID)
	driver := h.SeedDriver(t, "555-0001")
	ctx := context.Background()
	req := service.DeliveryActionRequest{DeliveryID: res.Delivery.ID, DriverID: driver.ID}

	_, err := h.DeliveryService.Accept(ctx, req)
	require.NoError(t, err)
	_, err = h.DeliveryService.Arrive(ctx, req)
	require.NoError(t, err)
	assert.Len(t, h.Sent.OfType(service.NotificationDriverArrived), 1)

	// The venue has not finished the order yet.
	_, err = h.DeliveryService.PickUp(ctx, req)
	require.ErrorIs(t, err, domain.ErrInvalidTransition)
	stored, err := h.Deliveries.GetByID(ctx, res.Delivery.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DeliveryStatusArrived, stored.Status, "failed pickup must roll back")

	order := res.Order
	for _, to := range []domain.OrderStatus{
		domain.OrderStatusVenueConfirmed,
		domain.OrderStatusPreparing,
		domain.OrderStatusReadyForPickup,
	} {
		order = venueStep(t, h, order, to)
	}

	picked, err := h.DeliveryService.PickUp(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, domain.DeliveryStatusPickedUp, picked.Status)

	o, err := h.Orders.GetByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusOnTheWay, o.Status)

	done, err := h.DeliveryService.Complete(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, domain.DeliveryStatusCompleted, done.Status)

	o, err = h.Orders.GetByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusCompleted, o.Status)

	d, err := h.Drivers.GetByID(ctx, driver.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DriverStatusOnline, d.Status)

	history, err := h.OrderService.History(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, history, 7)
	assert.Equal(t, domain.OrderStatusDelivered, history[5].To)
	assert.Equal(t, domain.ActorDriver, history[6].ActorRole)
}

func TestDeliveryFlow_OrderStatusCannotSkipDelivery(t *testing.T) {
	t.Parallel()
	h := NewHarness(t)
	venue, lagerID, friesID := h.SeedVenue(t)
	res := h.PlaceDelivery(t, venue.ID, lagerID, friesID)
	driver := h.SeedDriver(t, "555-0001")
	ctx := context.Background()
	req := service.DeliveryActionRequest{DeliveryID: res.Delivery.ID, DriverID: driver.ID}

	_, err := h.DeliveryService.Accept(ctx, req)
	require.NoError(t, err)
	order := res.Order
	for _, to := range []domain.OrderStatus{
		domain.OrderStatusVenueConfirmed,
		domain.OrderStatusPreparing,
		domain.OrderStatusReadyForPickup,
	} {
		order = venueStep(t, h, order, to)
	}

	for _, actor := range []struct {
		role domain.ActorRole
		id   string
	}{
		{domain.ActorDriver, driver.ID},
		{domain.ActorAdmin, "admin-1"},
		{domain.ActorSystem, ""},
	} {
		_, err := h.OrderService.UpdateStatus(ctx, service.UpdateStatusRequest{
			OrderID:   order.ID,
			To:        domain.OrderStatusOnTheWay,
			ActorRole: actor.role,
			ActorID:   actor.id,
		})
		assert.ErrorIs(t, err, service.ErrDeliveryDriven, "actor %s", actor.role)
	}

	stored, err := h.Orders.GetByID(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, domain.OrderStatusReadyForPickup, stored.Status)

	// The delivery flow still runs to the end.
	_, err = h.DeliveryService.Arrive(ctx, req)
	require.NoError(t, err)
	_, err = h.DeliveryService.PickUp(ctx, req)
	require.NoError(t, err)
	done, err := h.DeliveryService.Complete(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, domain.DeliveryStatusCompleted, done.Status)

	stored, err = h.Orders.GetByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusCompleted, stored.Status)

	drv, err := h.Drivers.GetByID(ctx, driver.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DriverStatusOnline, drv.Status)
}

func TestDeliveryFlow_OtherDriverCannotAct(t *testing.T) {
	t.Parallel()
	h := NewHarness(t)
	venue, lagerID, friesID := h.SeedVenue(t)
	res := h.PlaceDelivery(t, venue.ID, lagerID, friesID)
	driver := h.SeedDriver(t, "555-0001")
	intruder := h.SeedDriver(t, "555-0002")
	ctx := context.Background()

	_, err := h.DeliveryService.Accept(ctx, service.DeliveryActionRequest{DeliveryID: res.Delivery.ID, DriverID: driver.ID})
	require.NoError(t, err)

	_, err = h.DeliveryService.Arrive(ctx, service.DeliveryActionRequest{DeliveryID: res.Delivery.ID, DriverID: intruder.ID})
	assert.ErrorIs(t, err, service.ErrDriverNotAssigned)

	_, err = h.OrderService.UpdateStatus(ctx, service.UpdateStatusRequest{
		OrderID:   res.Order.ID,
		To:        domain.OrderStatusCancelled,
		ActorRole: domain.ActorDriver,
		ActorID:   intruder.ID,
	})
	assert.ErrorIs(t, err, service.ErrActorNotAllowed)
}

func TestDeliveryFlow_OutOfOrderStepRejected(t *testing.T) {
	t.Parallel()
	h := NewHarness(t)
	venue, lagerID, friesID := h.SeedVenue(t)
	res := h.PlaceDelivery(t, venue.ID, lagerID, friesID)
	driver := h.SeedDriver(t, "555-0001")
	ctx := context.Background()
	req := service.DeliveryActionRequest{DeliveryID: res.Delivery.ID, DriverID: driver.ID}

	_, err := h.DeliveryService.Accept(ctx, req)
	require.NoError(t, err)

	_, err = h.DeliveryService.Complete(ctx, req)
	assert.ErrorIs(t, err, service.ErrInvalidDeliveryTransition)
}

func TestDeliveryFlow_CancellationFreesDriver(t *testing.T) {
	t.Parallel()
	h := NewHarness(t)
	venue, lagerID, friesID := h.SeedVenue(t)
	res := h.PlaceDelivery(t, venue.ID, lagerID, friesID)
	driver := h.SeedDriver(t, "555-0001")
	ctx := context.Background()

	_, err := h.DeliveryService.Accept(ctx, service.DeliveryActionRequest{DeliveryID: res.Delivery.ID, DriverID: driver.ID})
	require.NoError(t, err)

	// Warm the cache with the busy status.
	_, err = h.DriverService.GetDriver(ctx, driver.ID)
	require.NoError(t, err)
	require.Equal(t, domain.DriverStatusOnDelivery, h.DriverCache.Cached(driver.ID))

	_, err = h.OrderService.CancelOrder(ctx, res.Order.ID, domain.ActorVenue, venue.ID)
	require.NoError(t, err)
	assert.Empty(t, h.DriverCache.Cached(driver.ID))

	d, err := h.Deliveries.GetByID(ctx, res.Delivery.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DeliveryStatusCancelled, d.Status)

	drv, err := h.Drivers.GetByID(ctx, driver.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DriverStatusOnline, drv.Status)

	assert.Len(t, h.Sent.OfType(service.NotificationOrderCancelled), 1)
}
