package domain

import (
	"time"

	"github.com/govalues/decimal"
)

// OwnerType tells whether a wallet belongs to a user or a venue.
type OwnerType string

const (
	OwnerUser  OwnerType = "user"
	OwnerVenue OwnerType = "venue"
)

// Valid reports whether t is a known owner type.
func (t OwnerType) Valid() bool {
	return t == OwnerUser || t == OwnerVenue
}

// Wallet holds JV token and USD balances. Balances only change through
// wallet transactions processed by privileged backend functions.
type Wallet struct {
	ID           string
	OwnerType    OwnerType
	OwnerID      string
	TokenBalance decimal.Decimal
	USDBalance   decimal.Decimal
	Frozen       bool
	UpdatedAt    time.Time
}

// TransactionKind is the type of wallet movement.
type TransactionKind string

const (
	TransactionMint       TransactionKind = "mint"
	TransactionConvert    TransactionKind = "convert"
	TransactionWithdrawal TransactionKind = "withdrawal"
)

// TransactionStatus is the processing state of a wallet transaction.
type TransactionStatus string

const (
	TransactionPending   TransactionStatus = "pending"
	TransactionApproved  TransactionStatus = "approved"
	TransactionRejected  TransactionStatus = "rejected"
	TransactionCompleted TransactionStatus = "completed"
)

// WalletTransaction is the record through which a wallet balance changes.
type WalletTransaction struct {
	ID          string
	WalletID    string
	Kind        TransactionKind
	TokenAmount decimal.Decimal
	USDAmount   decimal.Decimal
	Status      TransactionStatus
	ActorID     string
	CreatedAt   time.Time
	ProcessedAt time.Time
}
