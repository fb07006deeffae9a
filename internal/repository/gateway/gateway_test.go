package gateway

import (
	"context"
	"testing"

	"github.com/govalues/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jointvibe/internal/backend"
	"jointvibe/internal/domain"
	"jointvibe/internal/repository"
)

func TestOrderRepository_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	repo := NewOrderRepository(backend.NewMemory(nil, nil))

	fee := decimal.MustParse("6.00")
	order := &domain.Order{
		VenueID:    "v1",
		CustomerID: "c1",
		Type:       domain.OrderTypeDelivery,
		Items: []domain.LineItem{
			{MenuItemID: "m1", Name: "Lager", Quantity: 2, UnitPrice: decimal.MustParse("4.50"), Size: "pint"},
			{MenuItemID: "m2", Name: "Fries", Quantity: 1, UnitPrice: decimal.MustParse("3.00")},
		},
		Subtotal:        decimal.MustParse("12.00"),
		Tax:             decimal.MustParse("1.20"),
		DeliveryFee:     &fee,
		Total:           decimal.MustParse("19.20"),
		Status:          domain.OrderStatusPending,
		DeliveryAddress: "1 Main St",
	}
	require.NoError(t, repo.Create(ctx, order))
	require.NotEmpty(t, order.ID)

	got, err := repo.GetByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderTypeDelivery, got.Type)
	assert.Equal(t, "19.20", got.Total.String())
	require.NotNil(t, got.DeliveryFee)
	assert.Equal(t, "6.00", got.DeliveryFee.String())
	require.Len(t, got.Items, 2)
	assert.Equal(t, "Lager", got.Items[0].Name)
	assert.Equal(t, 2, got.Items[0].Quantity)
	assert.Equal(t, "pint", got.Items[0].Size)
	assert.NoError(t, got.CheckTotal())

	_, err = repo.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestOrderRepository_UpdateStatusCompareAndSet(t *testing.T) {
	ctx := context.Background()
	repo := NewOrderRepository(backend.NewMemory(nil, nil))

	order := &domain.Order{VenueID: "v1", Type: domain.OrderTypePickup, Status: domain.OrderStatusPending}
	require.NoError(t, repo.Create(ctx, order))

	updated, err := repo.UpdateStatus(ctx, order.ID, domain.OrderStatusPending, domain.OrderStatusVenueConfirmed)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusVenueConfirmed, updated.Status)
	assert.Nil(t, updated.DeliveryFee)

	_, err = repo.UpdateStatus(ctx, order.ID, domain.OrderStatusPending, domain.OrderStatusCancelled)
	assert.ErrorIs(t, err, repository.ErrConflict)

	_, err = repo.UpdateStatus(ctx, "missing", domain.OrderStatusPending, domain.OrderStatusCancelled)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestOrderRepository_History(t *testing.T) {
	ctx := context.Background()
	repo := NewOrderRepository(backend.NewMemory(nil, nil))

	require.NoError(t, repo.AppendHistory(ctx, &domain.OrderStatusChange{
		OrderID: "o1", To: domain.OrderStatusPending, ActorRole: domain.ActorCustomer, ActorID: "c1",
	}))
	require.NoError(t, repo.AppendHistory(ctx, &domain.OrderStatusChange{
		OrderID: "o1", From: domain.OrderStatusPending, To: domain.OrderStatusVenueConfirmed, ActorRole: domain.ActorVenue,
	}))

	history, err := repo.History(ctx, "o1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Empty(t, history[0].From)
	assert.Equal(t, domain.OrderStatusVenueConfirmed, history[1].To)
}

func TestDeliveryRepository_AssignOnce(t *testing.T) {
	ctx := context.Background()
	repo := NewDeliveryRepository(backend.NewMemory(nil, nil))

	d := &domain.Delivery{
		OrderID: "o1",
		Pickup:  domain.Location{Lat: 1, Lng: 2},
		Dropoff: domain.Location{Lat: 1.01, Lng: 2.01, Address: "home"},
		Fare:    decimal.MustParse("7.50"),
		Status:  domain.DeliveryStatusRequested,
	}
	require.NoError(t, repo.Create(ctx, d))

	got, err := repo.Assign(ctx, d.ID, "driver-a")
	require.NoError(t, err)
	assert.Equal(t, "driver-a", got.DriverID)
	assert.Equal(t, domain.DeliveryStatusAccepted, got.Status)
	assert.Equal(t, "home", got.Dropoff.Address)

	_, err = repo.Assign(ctx, d.ID, "driver-b")
	assert.ErrorIs(t, err, repository.ErrConflict)

	byOrder, err := repo.GetByOrderID(ctx, "o1")
	require.NoError(t, err)
	assert.Equal(t, "driver-a", byOrder.DriverID)
}

func TestMenuRepository_UpsertWithSizes(t *testing.T) {
	ctx := context.Background()
	repo := NewMenuRepository(backend.NewMemory(nil, nil))

	item := &domain.MenuItem{
		VenueID:   "v1",
		Name:      "IPA",
		Price:     decimal.MustParse("5.00"),
		Available: true,
		SizePrices: map[string]decimal.Decimal{
			"pint": decimal.MustParse("6.50"),
		},
	}
	require.NoError(t, repo.Upsert(ctx, item))

	item.Price = decimal.MustParse("5.50")
	require.NoError(t, repo.Upsert(ctx, item))

	items, err := repo.ListByVenue(ctx, "v1")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "5.50", items[0].Price.String())
	p, ok := items[0].PriceFor("pint")
	require.True(t, ok)
	assert.Equal(t, "6.50", p.String())

	other := &domain.MenuItem{ID: item.ID, VenueID: "v2", Name: "stolen", Price: decimal.One}
	assert.ErrorIs(t, repo.Upsert(ctx, other), repository.ErrConflict)
}

func TestWalletRepository_OneWalletPerOwner(t *testing.T) {
	ctx := context.Background()
	repo := NewWalletRepository(backend.NewMemory(nil, nil))

	w := &domain.Wallet{OwnerType: domain.OwnerUser, OwnerID: "u1", TokenBalance: decimal.Zero, USDBalance: decimal.Zero}
	require.NoError(t, repo.Create(ctx, w))

	dup := &domain.Wallet{OwnerType: domain.OwnerUser, OwnerID: "u1"}
	assert.ErrorIs(t, repo.Create(ctx, dup), repository.ErrConflict)

	// Same id under a different owner type is a different wallet.
	venue := &domain.Wallet{OwnerType: domain.OwnerVenue, OwnerID: "u1"}
	assert.NoError(t, repo.Create(ctx, venue))

	got, err := repo.GetByOwner(ctx, domain.OwnerUser, "u1")
	require.NoError(t, err)
	assert.Equal(t, w.ID, got.ID)
}
