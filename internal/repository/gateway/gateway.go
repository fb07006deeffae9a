// Package gateway implements the repository interfaces on top of the backend
// gateway. Repositories built from a transactional backend take part in that
// transaction.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"jointvibe/internal/backend"
	"jointvibe/internal/repository"
)

const (
	tableOrders       = "orders"
	tableOrderItems   = "order_items"
	tableOrderHistory = "order_status_history"
	tableDeliveries   = "deliveries"
	tableVenues       = "venues"
	tableMenuItems    = "menu_items"
	tableDrivers      = "drivers"
	tableWallets      = "wallets"
	tableWalletTxs    = "wallet_transactions"
)

// now is the clock used for timestamps.
var now = func() time.Time { return time.Now().UTC() }

// first returns the first row or repository.ErrNotFound.
func first(rows []backend.Record, err error) (backend.Record, error) {
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, repository.ErrNotFound
	}
	return rows[0], nil
}

// mapError translates backend sentinels into repository ones.
func mapError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, backend.ErrNotFound):
		return repository.ErrNotFound
	case errors.Is(err, backend.ErrConflict):
		return fmt.Errorf("%w: %v", repository.ErrConflict, err)
	}
	return err
}

// compareAndSet updates the row identified by id only while column still holds
// from. A miss is reported as ErrNotFound when the row is gone and ErrConflict
// otherwise.
func compareAndSet(ctx context.Context, b backend.Backend, table, id, column, from string, patch backend.Record) (backend.Record, error) {
	rows, err := b.Update(ctx, table, backend.Filter{"id": id, column: from}, patch)
	if err == nil {
		return rows[0], nil
	}
	if !errors.Is(err, backend.ErrNotFound) {
		return nil, mapError(err)
	}

	if _, err := first(b.Query(ctx, table, backend.Filter{"id": id})); err != nil {
		return nil, err
	}
	return nil, repository.ErrConflict
}
