package gateway

import (
	"context"

	"github.com/google/uuid"
	"github.com/govalues/decimal"

	"jointvibe/internal/backend"
	"jointvibe/internal/domain"
	"jointvibe/internal/repository"
)

// WalletRepository is a backend implementation of repository.WalletRepository.
type WalletRepository struct {
	b backend.Backend
}

var _ repository.WalletRepository = (*WalletRepository)(nil)

// NewWalletRepository creates a wallet repository.
func NewWalletRepository(b backend.Backend) *WalletRepository {
	return &WalletRepository{b: b}
}

// Create opens a wallet, refusing a second wallet for the same owner.
func (r *WalletRepository) Create(ctx context.Context, w *domain.Wallet) error {
	if w.ID == "" {
		w.ID = uuid.NewString()
	}
	w.UpdatedAt = now()

	return r.b.WithinTx(ctx, func(tx backend.Backend) error {
		existing, err := tx.Query(ctx, tableWallets, ownerFilter(w.OwnerType, w.OwnerID))
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			return repository.ErrConflict
		}
		_, err = tx.Insert(ctx, tableWallets, backend.Record{
			"id":            w.ID,
			"owner_type":    string(w.OwnerType),
			"owner_id":      w.OwnerID,
			"token_balance": w.TokenBalance,
			"usd_balance":   w.USDBalance,
			"frozen":        w.Frozen,
			"updated_at":    w.UpdatedAt,
		})
		return mapError(err)
	})
}

func (r *WalletRepository) GetByID(ctx context.Context, id string) (*domain.Wallet, error) {
	return r.get(ctx, backend.Filter{"id": id})
}

func (r *WalletRepository) GetByOwner(ctx context.Context, ownerType domain.OwnerType, ownerID string) (*domain.Wallet, error) {
	return r.get(ctx, ownerFilter(ownerType, ownerID))
}

func (r *WalletRepository) GetForUpdate(ctx context.Context, id string) (*domain.Wallet, error) {
	return r.get(ctx, backend.Filter{"id": id}, backend.ForUpdate())
}

func (r *WalletRepository) get(ctx context.Context, filter backend.Filter, opts ...backend.QueryOption) (*domain.Wallet, error) {
	rec, err := first(r.b.Query(ctx, tableWallets, filter, opts...))
	if err != nil {
		return nil, err
	}
	return WalletFromRecord(rec)
}

func (r *WalletRepository) List(ctx context.Context) ([]*domain.Wallet, error) {
	rows, err := r.b.Query(ctx, tableWallets, nil, backend.OrderBy("updated_at", true))
	if err != nil {
		return nil, err
	}

	wallets := make([]*domain.Wallet, 0, len(rows))
	for _, row := range rows {
		w, err := WalletFromRecord(row)
		if err != nil {
			return nil, err
		}
		wallets = append(wallets, w)
	}
	return wallets, nil
}

func (r *WalletRepository) SetBalances(ctx context.Context, id string, tokens, usd decimal.Decimal) error {
	_, err := r.b.Update(ctx, tableWallets, backend.Filter{"id": id}, backend.Record{
		"token_balance": tokens,
		"usd_balance":   usd,
		"updated_at":    now(),
	})
	return mapError(err)
}

func (r *WalletRepository) SetFrozen(ctx context.Context, id string, frozen bool) error {
	_, err := r.b.Update(ctx, tableWallets, backend.Filter{"id": id}, backend.Record{
		"frozen":     frozen,
		"updated_at": now(),
	})
	return mapError(err)
}

func (r *WalletRepository) CreateTransaction(ctx context.Context, t *domain.WalletTransaction) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now()
	}
	if t.Status != domain.TransactionPending && t.ProcessedAt.IsZero() {
		t.ProcessedAt = t.CreatedAt
	}

	var processed any
	if !t.ProcessedAt.IsZero() {
		processed = t.ProcessedAt
	}
	_, err := r.b.Insert(ctx, tableWalletTxs, backend.Record{
		"id":           t.ID,
		"wallet_id":    t.WalletID,
		"kind":         string(t.Kind),
		"token_amount": t.TokenAmount,
		"usd_amount":   t.USDAmount,
		"status":       string(t.Status),
		"actor_id":     t.ActorID,
		"created_at":   t.CreatedAt,
		"processed_at": processed,
	})
	return mapError(err)
}

func (r *WalletRepository) GetTransaction(ctx context.Context, id string) (*domain.WalletTransaction, error) {
	rec, err := first(r.b.Query(ctx, tableWalletTxs, backend.Filter{"id": id}))
	if err != nil {
		return nil, err
	}
	return walletTransactionFromRecord(rec)
}

func (r *WalletRepository) ListTransactions(ctx context.Context, walletID string) ([]*domain.WalletTransaction, error) {
	rows, err := r.b.Query(ctx, tableWalletTxs, backend.Filter{"wallet_id": walletID}, backend.OrderBy("created_at", true))
	if err != nil {
		return nil, err
	}

	txs := make([]*domain.WalletTransaction, 0, len(rows))
	for _, row := range rows {
		t, err := walletTransactionFromRecord(row)
		if err != nil {
			return nil, err
		}
		txs = append(txs, t)
	}
	return txs, nil
}

func (r *WalletRepository) UpdateTransactionStatus(ctx context.Context, id string, from, to domain.TransactionStatus) error {
	_, err := compareAndSet(ctx, r.b, tableWalletTxs, id, "status", string(from), backend.Record{
		"status":       string(to),
		"processed_at": now(),
	})
	return err
}

func ownerFilter(ownerType domain.OwnerType, ownerID string) backend.Filter {
	return backend.Filter{"owner_type": string(ownerType), "owner_id": ownerID}
}

// WalletFromRecord converts a wallets row into a domain wallet.
func WalletFromRecord(rec backend.Record) (*domain.Wallet, error) {
	tokens, err := rec.Decimal("token_balance")
	if err != nil {
		return nil, err
	}
	usd, err := rec.Decimal("usd_balance")
	if err != nil {
		return nil, err
	}
	return &domain.Wallet{
		ID:           rec.String("id"),
		OwnerType:    domain.OwnerType(rec.String("owner_type")),
		OwnerID:      rec.String("owner_id"),
		TokenBalance: tokens,
		USDBalance:   usd,
		Frozen:       rec.Bool("frozen"),
		UpdatedAt:    rec.Time("updated_at"),
	}, nil
}

func walletTransactionFromRecord(rec backend.Record) (*domain.WalletTransaction, error) {
	tokens, err := rec.Decimal("token_amount")
	if err != nil {
		return nil, err
	}
	usd, err := rec.Decimal("usd_amount")
	if err != nil {
		return nil, err
	}
	return &domain.WalletTransaction{
		ID:          rec.String("id"),
		WalletID:    rec.String("wallet_id"),
		Kind:        domain.TransactionKind(rec.String("kind")),
		TokenAmount: tokens,
		USDAmount:   usd,
		Status:      domain.TransactionStatus(rec.String("status")),
		ActorID:     rec.String("actor_id"),
		CreatedAt:   rec.Time("created_at"),
		ProcessedAt: rec.Time("processed_at"),
	}, nil
}
