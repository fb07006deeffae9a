package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/govalues/decimal"
	"go.uber.org/zap"

	"jointvibe/internal/backend"
	"jointvibe/internal/domain"
	"jointvibe/internal/repository"
)

// WalletService reads wallets and requests privileged wallet operations.
// Balances are only changed by the backend functions in functions.go.
type WalletService struct {
	b                   backend.Backend
	walletRepo          repository.WalletRepository
	notificationService *NotificationService
	logger              *zap.Logger
}

// NewWalletService creates a new WalletService.
func NewWalletService(
	b backend.Backend,
	walletRepo repository.WalletRepository,
	notificationService *NotificationService,
	logger *zap.Logger,
) *WalletService {
	return &WalletService{
		b:                   b,
		walletRepo:          walletRepo,
		notificationService: notificationService,
		logger:              logger,
	}
}

// OpenWallet creates the wallet of an owner.
func (s *WalletService) OpenWallet(ctx context.Context, ownerType domain.OwnerType, ownerID string) (*domain.Wallet, error) {
	if !ownerType.Valid() || ownerID == "" {
		return nil, ErrInvalidUserID
	}

	w := &domain.Wallet{
		OwnerType:    ownerType,
		OwnerID:      ownerID,
		TokenBalance: decimal.Zero,
		USDBalance:   domain.RoundMoney(decimal.Zero),
	}
	if err := s.walletRepo.Create(ctx, w); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, ErrWalletExists
		}
		return nil, err
	}
	return w, nil
}

// GetWallet retrieves a wallet by ID.
func (s *WalletService) GetWallet(ctx context.Context, walletID string) (*domain.Wallet, error) {
	if walletID == "" {
		return nil, ErrInvalidWalletID
	}
	return s.walletRepo.GetByID(ctx, walletID)
}

// GetWalletByOwner retrieves the wallet of an owner.
func (s *WalletService) GetWalletByOwner(ctx context.Context, ownerType domain.OwnerType, ownerID string) (*domain.Wallet, error) {
	if !ownerType.Valid() || ownerID == "" {
		return nil, ErrInvalidUserID
	}
	return s.walletRepo.GetByOwner(ctx, ownerType, ownerID)
}

// ListWallets lists every wallet.
func (s *WalletService) ListWallets(ctx context.Context) ([]*domain.Wallet, error) {
	return s.walletRepo.List(ctx)
}

// Transactions lists the transactions of a wallet, newest first.
func (s *WalletService) Transactions(ctx context.Context, walletID string) ([]*domain.WalletTransaction, error) {
	if walletID == "" {
		return nil, ErrInvalidWalletID
	}
	if _, err := s.walletRepo.GetByID(ctx, walletID); err != nil {
		return nil, err
	}
	return s.walletRepo.ListTransactions(ctx, walletID)
}

// RequestWithdrawal records a pending withdrawal for an admin to process.
func (s *WalletService) RequestWithdrawal(ctx context.Context, walletID string, amount decimal.Decimal, actorID string) (*domain.WalletTransaction, error) {
	if walletID == "" {
		return nil, ErrInvalidWalletID
	}
	// Sub-cent requests round to zero and are refused.
	amount = domain.RoundMoney(amount)
	if !amount.IsPos() {
		return nil, ErrInvalidAmount
	}

	w, err := s.walletRepo.GetByID(ctx, walletID)
	if err != nil {
		return nil, err
	}
	if w.Frozen {
		return nil, ErrWalletFrozen
	}
	if w.USDBalance.Cmp(amount) < 0 {
		return nil, ErrInsufficientFunds
	}

	t := &domain.WalletTransaction{
		WalletID:    walletID,
		Kind:        domain.TransactionWithdrawal,
		TokenAmount: decimal.Zero,
		USDAmount:   amount,
		Status:      domain.TransactionPending,
		ActorID:     actorID,
	}
	if err := s.walletRepo.CreateTransaction(ctx, t); err != nil {
		return nil, err
	}

	s.logger.Info("withdrawal requested",
		zap.String("wallet_id", walletID),
		zap.String("transaction_id", t.ID),
		zap.String("amount", t.USDAmount.String()))
	return t, nil
}

// ApproveWithdrawal pays out a pending withdrawal.
func (s *WalletService) ApproveWithdrawal(ctx context.Context, transactionID, adminID string) (*domain.WalletTransaction, error) {
	return s.processWithdrawal(ctx, FuncApproveWithdrawal, transactionID, adminID)
}

// RejectWithdrawal declines a pending withdrawal without moving funds.
func (s *WalletService) RejectWithdrawal(ctx context.Context, transactionID, adminID string) (*domain.WalletTransaction, error) {
	return s.processWithdrawal(ctx, FuncRejectWithdrawal, transactionID, adminID)
}

func (s *WalletService) processWithdrawal(ctx context.Context, fn, transactionID, adminID string) (*domain.WalletTransaction, error) {
	if transactionID == "" {
		return nil, fmt.Errorf("%w: transaction id", ErrInvalidWalletID)
	}

	if _, err := s.b.InvokeFunction(ctx, fn, backend.Record{
		"transaction_id": transactionID,
		"actor_id":       adminID,
	}); err != nil {
		return nil, err
	}

	t, err := s.walletRepo.GetTransaction(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if w, err := s.walletRepo.GetByID(ctx, t.WalletID); err == nil {
		s.notificationService.NotifyWithdrawalProcessed(ctx, w, t)
	}
	return t, nil
}

// MintTokens credits JV tokens to a wallet.
func (s *WalletService) MintTokens(ctx context.Context, walletID string, amount decimal.Decimal, adminID string) (*domain.Wallet, error) {
	return s.move(ctx, FuncMintTokens, walletID, amount, adminID)
}

// ConvertTokens turns JV tokens into USD at the configured rate.
func (s *WalletService) ConvertTokens(ctx context.Context, walletID string, amount decimal.Decimal, actorID string) (*domain.Wallet, error) {
	return s.move(ctx, FuncConvertTokens, walletID, amount, actorID)
}

func (s *WalletService) move(ctx context.Context, fn, walletID string, amount decimal.Decimal, actorID string) (*domain.Wallet, error) {
	if walletID == "" {
		return nil, ErrInvalidWalletID
	}
	if !amount.IsPos() {
		return nil, ErrInvalidAmount
	}

	if _, err := s.b.InvokeFunction(ctx, fn, backend.Record{
		"wallet_id": walletID,
		"amount":    amount,
		"actor_id":  actorID,
	}); err != nil {
		return nil, err
	}
	return s.walletRepo.GetByID(ctx, walletID)
}

// SetFrozen freezes or unfreezes a wallet.
func (s *WalletService) SetFrozen(ctx context.Context, walletID string, frozen bool, adminID string) (*domain.Wallet, error) {
	if walletID == "" {
		return nil, ErrInvalidWalletID
	}

	if _, err := s.b.InvokeFunction(ctx, FuncSetWalletFrozen, backend.Record{
		"wallet_id": walletID,
		"frozen":    frozen,
		"actor_id":  adminID,
	}); err != nil {
		return nil, err
	}

	s.logger.Info("wallet freeze changed",
		zap.String("wallet_id", walletID),
		zap.Bool("frozen", frozen),
		zap.String("admin_id", adminID))
	return s.walletRepo.GetByID(ctx, walletID)
}
