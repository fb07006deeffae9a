package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"jointvibe/internal/domain"
	"jointvibe/internal/service"
)

// WalletHandler handles HTTP requests for wallets.
type WalletHandler struct {
	walletService *service.WalletService
}

// NewWalletHandler creates a new WalletHandler.
func NewWalletHandler(walletService *service.WalletService) *WalletHandler {
	return &WalletHandler{walletService: walletService}
}

// OpenWalletRequest is the HTTP request body for opening a wallet.
type OpenWalletRequest struct {
	OwnerType string `json:"owner_type"`
	OwnerID   string `json:"owner_id"`
}

// AmountRequest is the HTTP request body for wallet movements.
type AmountRequest struct {
	Amount  string `json:"amount"`
	ActorID string `json:"actor_id"`
}

// WalletResponse is the HTTP response for wallet data.
type WalletResponse struct {
	ID           string `json:"id"`
	OwnerType    string `json:"owner_type"`
	OwnerID      string `json:"owner_id"`
	TokenBalance string `json:"token_balance"`
	USDBalance   string `json:"usd_balance"`
	Frozen       bool   `json:"frozen"`
	UpdatedAt    string `json:"updated_at"`
}

func newWalletResponse(w *domain.Wallet) WalletResponse {
	return WalletResponse{
		ID:           w.ID,
		OwnerType:    string(w.OwnerType),
		OwnerID:      w.OwnerID,
		TokenBalance: w.TokenBalance.String(),
		USDBalance:   w.USDBalance.String(),
		Frozen:       w.Frozen,
		UpdatedAt:    formatTime(w.UpdatedAt),
	}
}

// TransactionResponse is the HTTP response for a wallet transaction.
type TransactionResponse struct {
	ID          string `json:"id"`
	WalletID    string `json:"wallet_id"`
	Kind        string `json:"kind"`
	TokenAmount string `json:"token_amount"`
	USDAmount   string `json:"usd_amount"`
	Status      string `json:"status"`
	ActorID     string `json:"actor_id,omitempty"`
	CreatedAt   string `json:"created_at"`
	ProcessedAt string `json:"processed_at,omitempty"`
}

func newTransactionResponse(t *domain.WalletTransaction) TransactionResponse {
	return TransactionResponse{
		ID:          t.ID,
		WalletID:    t.WalletID,
		Kind:        string(t.Kind),
		TokenAmount: t.TokenAmount.String(),
		USDAmount:   t.USDAmount.String(),
		Status:      string(t.Status),
		ActorID:     t.ActorID,
		CreatedAt:   formatTime(t.CreatedAt),
		ProcessedAt: formatTime(t.ProcessedAt),
	}
}

// Open handles POST /v1/wallets
func (h *WalletHandler) Open(c *gin.Context) {
	var req OpenWalletRequest
	if !bindJSON(c, &req) {
		return
	}

	wallet, err := h.walletService.OpenWallet(c.Request.Context(), domain.OwnerType(req.OwnerType), req.OwnerID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusCreated, newWalletResponse(wallet))
}

// GetAll handles GET /v1/wallets, optionally filtered by ?owner_type=&owner_id=
func (h *WalletHandler) GetAll(c *gin.Context) {
	ctx := c.Request.Context()

	if ownerID := c.Query("owner_id"); ownerID != "" {
		ownerType := domain.OwnerType(c.DefaultQuery("owner_type", string(domain.OwnerUser)))
		wallet, err := h.walletService.GetWalletByOwner(ctx, ownerType, ownerID)
		if err != nil {
			respondError(c, err)
			return
		}
		respondJSON(c, http.StatusOK, []WalletResponse{newWalletResponse(wallet)})
		return
	}

	wallets, err := h.walletService.ListWallets(ctx)
	if err != nil {
		respondError(c, err)
		return
	}

	response := make([]WalletResponse, 0, len(wallets))
	for _, w := range wallets {
		response = append(response, newWalletResponse(w))
	}
	respondJSON(c, http.StatusOK, response)
}

// Get handles GET /v1/wallets/:id
func (h *WalletHandler) Get(c *gin.Context) {
	wallet, err := h.walletService.GetWallet(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, newWalletResponse(wallet))
}

// Transactions handles GET /v1/wallets/:id/transactions
func (h *WalletHandler) Transactions(c *gin.Context) {
	txs, err := h.walletService.Transactions(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	response := make([]TransactionResponse, 0, len(txs))
	for _, t := range txs {
		response = append(response, newTransactionResponse(t))
	}
	respondJSON(c, http.StatusOK, response)
}

// RequestWithdrawal handles POST /v1/wallets/:id/withdrawals
func (h *WalletHandler) RequestWithdrawal(c *gin.Context) {
	var req AmountRequest
	if !bindJSON(c, &req) {
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		respondError(c, err)
		return
	}

	t, err := h.walletService.RequestWithdrawal(c.Request.Context(), c.Param("id"), amount, req.ActorID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusCreated, newTransactionResponse(t))
}

// Convert handles POST /v1/wallets/:id/convert
func (h *WalletHandler) Convert(c *gin.Context) {
	var req AmountRequest
	if !bindJSON(c, &req) {
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		respondError(c, err)
		return
	}

	wallet, err := h.walletService.ConvertTokens(c.Request.Context(), c.Param("id"), amount, req.ActorID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, newWalletResponse(wallet))
}
