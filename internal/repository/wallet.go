package repository

import (
	"context"

	"github.com/govalues/decimal"

	"jointvibe/internal/domain"
)

// WalletRepository defines the persistence operations for wallets and their
// transactions. Balance and status mutations are meant to run inside backend
// functions, on a repository bound to the function's transaction.
type WalletRepository interface {
	// Create opens a wallet. It returns ErrConflict when the owner already has one.
	Create(ctx context.Context, wallet *domain.Wallet) error

	GetByID(ctx context.Context, id string) (*domain.Wallet, error)
	GetByOwner(ctx context.Context, ownerType domain.OwnerType, ownerID string) (*domain.Wallet, error)
	List(ctx context.Context) ([]*domain.Wallet, error)

	// GetForUpdate retrieves a wallet and locks it for the rest of the transaction.
	GetForUpdate(ctx context.Context, id string) (*domain.Wallet, error)

	// SetBalances overwrites both balances of a wallet.
	SetBalances(ctx context.Context, id string, tokens, usd decimal.Decimal) error

	// SetFrozen sets the frozen flag of a wallet.
	SetFrozen(ctx context.Context, id string, frozen bool) error

	// CreateTransaction records a wallet transaction.
	CreateTransaction(ctx context.Context, tx *domain.WalletTransaction) error

	GetTransaction(ctx context.Context, id string) (*domain.WalletTransaction, error)

	// ListTransactions retrieves the transactions of a wallet, newest first.
	ListTransactions(ctx context.Context, walletID string) ([]*domain.WalletTransaction, error)

	// UpdateTransactionStatus moves a transaction from one status to another
	// and stamps its processing time. It returns ErrConflict when the stored
	// status is no longer from.
	UpdateTransactionStatus(ctx context.Context, id string, from, to domain.TransactionStatus) error
}
