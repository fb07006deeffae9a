package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/govalues/decimal"

	"jointvibe/internal/backend"
	"jointvibe/internal/domain"
	"jointvibe/internal/repository"
	"jointvibe/internal/repository/gateway"
)

// Names of the privileged wallet functions.
const (
	FuncApproveWithdrawal = "approve_withdrawal"
	FuncRejectWithdrawal  = "reject_withdrawal"
	FuncMintTokens        = "mint_tokens"
	FuncConvertTokens     = "convert_tokens"
	FuncSetWalletFrozen   = "set_wallet_frozen"
)

// RegisterWalletFunctions installs the wallet functions in the registry.
// tokenRate is the USD value of one JV token.
func RegisterWalletFunctions(reg *backend.Registry, tokenRate decimal.Decimal) {
	reg.Register(FuncApproveWithdrawal, approveWithdrawal)
	reg.Register(FuncRejectWithdrawal, rejectWithdrawal)
	reg.Register(FuncMintTokens, mintTokens)
	reg.Register(FuncConvertTokens, convertTokens(tokenRate))
	reg.Register(FuncSetWalletFrozen, setWalletFrozen)
}

func approveWithdrawal(ctx context.Context, tx backend.Backend, payload backend.Record) (backend.Record, error) {
	wallets := gateway.NewWalletRepository(tx)

	t, err := pendingWithdrawal(ctx, wallets, payload.String("transaction_id"))
	if err != nil {
		return nil, err
	}
	w, err := wallets.GetForUpdate(ctx, t.WalletID)
	if err != nil {
		return nil, err
	}
	if w.Frozen {
		return nil, ErrWalletFrozen
	}
	if w.USDBalance.Cmp(t.USDAmount) < 0 {
		return nil, ErrInsufficientFunds
	}

	usd, err := w.USDBalance.Sub(t.USDAmount)
	if err != nil {
		return nil, err
	}
	if err := wallets.SetBalances(ctx, w.ID, w.TokenBalance, domain.RoundMoney(usd)); err != nil {
		return nil, err
	}
	if err := settle(ctx, wallets, t.ID, domain.TransactionApproved); err != nil {
		return nil, err
	}
	return transactionResult(t.ID, w.ID), nil
}

func rejectWithdrawal(ctx context.Context, tx backend.Backend, payload backend.Record) (backend.Record, error) {
	wallets := gateway.NewWalletRepository(tx)

	t, err := pendingWithdrawal(ctx, wallets, payload.String("transaction_id"))
	if err != nil {
		return nil, err
	}
	if err := settle(ctx, wallets, t.ID, domain.TransactionRejected); err != nil {
		return nil, err
	}
	return transactionResult(t.ID, t.WalletID), nil
}

func mintTokens(ctx context.Context, tx backend.Backend, payload backend.Record) (backend.Record, error) {
	wallets := gateway.NewWalletRepository(tx)

	amount, err := positiveAmount(payload, "amount")
	if err != nil {
		return nil, err
	}
	w, err := movableWallet(ctx, wallets, payload.String("wallet_id"))
	if err != nil {
		return nil, err
	}

	tokens, err := w.TokenBalance.Add(amount)
	if err != nil {
		return nil, err
	}
	if err := wallets.SetBalances(ctx, w.ID, tokens, w.USDBalance); err != nil {
		return nil, err
	}

	t := &domain.WalletTransaction{
		WalletID:    w.ID,
		Kind:        domain.TransactionMint,
		TokenAmount: amount,
		USDAmount:   decimal.Zero,
		Status:      domain.TransactionCompleted,
		ActorID:     payload.String("actor_id"),
	}
	if err := wallets.CreateTransaction(ctx, t); err != nil {
		return nil, err
	}
	return transactionResult(t.ID, w.ID), nil
}

func convertTokens(rate decimal.Decimal) backend.Function {
	return func(ctx context.Context, tx backend.Backend, payload backend.Record) (backend.Record, error) {
		wallets := gateway.NewWalletRepository(tx)

		amount, err := positiveAmount(payload, "amount")
		if err != nil {
			return nil, err
		}
		w, err := movableWallet(ctx, wallets, payload.String("wallet_id"))
		if err != nil {
			return nil, err
		}
		if w.TokenBalance.Cmp(amount) < 0 {
			return nil, ErrInsufficientFunds
		}

		usdAmount, err := amount.Mul(rate)
		if err != nil {
			return nil, err
		}
		usdAmount = domain.RoundMoney(usdAmount)

		tokens, err := w.TokenBalance.Sub(amount)
		if err != nil {
			return nil, err
		}
		usd, err := w.USDBalance.Add(usdAmount)
		if err != nil {
			return nil, err
		}
		if err := wallets.SetBalances(ctx, w.ID, tokens, domain.RoundMoney(usd)); err != nil {
			return nil, err
		}

		t := &domain.WalletTransaction{
			WalletID:    w.ID,
			Kind:        domain.TransactionConvert,
			TokenAmount: amount,
			USDAmount:   usdAmount,
			Status:      domain.TransactionCompleted,
			ActorID:     payload.String("actor_id"),
		}
		if err := wallets.CreateTransaction(ctx, t); err != nil {
			return nil, err
		}
		return transactionResult(t.ID, w.ID), nil
	}
}

func setWalletFrozen(ctx context.Context, tx backend.Backend, payload backend.Record) (backend.Record, error) {
	wallets := gateway.NewWalletRepository(tx)

	id := payload.String("wallet_id")
	if _, err := wallets.GetForUpdate(ctx, id); err != nil {
		return nil, err
	}
	if err := wallets.SetFrozen(ctx, id, payload.Bool("frozen")); err != nil {
		return nil, err
	}
	return backend.Record{"wallet_id": id}, nil
}

func pendingWithdrawal(ctx context.Context, wallets *gateway.WalletRepository, id string) (*domain.WalletTransaction, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: transaction id", ErrInvalidWalletID)
	}
	t, err := wallets.GetTransaction(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.Kind != domain.TransactionWithdrawal {
		return nil, ErrNotAWithdrawal
	}
	if t.Status != domain.TransactionPending {
		return nil, ErrTransactionNotPending
	}
	return t, nil
}

func movableWallet(ctx context.Context, wallets *gateway.WalletRepository, id string) (*domain.Wallet, error) {
	if id == "" {
		return nil, ErrInvalidWalletID
	}
	w, err := wallets.GetForUpdate(ctx, id)
	if err != nil {
		return nil, err
	}
	if w.Frozen {
		return nil, ErrWalletFrozen
	}
	return w, nil
}

func settle(ctx context.Context, wallets *gateway.WalletRepository, id string, to domain.TransactionStatus) error {
	err := wallets.UpdateTransactionStatus(ctx, id, domain.TransactionPending, to)
	if errors.Is(err, repository.ErrConflict) {
		return ErrTransactionNotPending
	}
	return err
}

func positiveAmount(payload backend.Record, key string) (decimal.Decimal, error) {
	amount, err := payload.Decimal(key)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: %v", ErrInvalidAmount, err)
	}
	if !amount.IsPos() {
		return decimal.Decimal{}, ErrInvalidAmount
	}
	return amount, nil
}

func transactionResult(transactionID, walletID string) backend.Record {
	return backend.Record{"transaction_id": transactionID, "wallet_id": walletID}
}
