package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"jointvibe/internal/service"
)

// AdminHandler handles privileged venue and wallet operations.
type AdminHandler struct {
	venueService  *service.VenueService
	walletService *service.WalletService
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(venueService *service.VenueService, walletService *service.WalletService) *AdminHandler {
	return &AdminHandler{
		venueService:  venueService,
		walletService: walletService,
	}
}

// AdminActionRequest is the HTTP request body for admin actions.
type AdminActionRequest struct {
	AdminID string `json:"admin_id"`
}

// MintRequest is the HTTP request body for minting tokens.
type MintRequest struct {
	AdminID string `json:"admin_id"`
	Amount  string `json:"amount"`
}

// adminID reads the acting admin from an optional JSON body.
func adminID(c *gin.Context) (string, bool) {
	var req AdminActionRequest
	if c.Request.ContentLength == 0 {
		return "", true
	}
	if !bindJSON(c, &req) {
		return "", false
	}
	return req.AdminID, true
}

// ApproveVenue handles POST /v1/admin/venues/:id/approve
func (h *AdminHandler) ApproveVenue(c *gin.Context) {
	venue, err := h.venueService.ApproveVenue(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, newVenueResponse(venue))
}

// ApproveWithdrawal handles POST /v1/admin/withdrawals/:id/approve
func (h *AdminHandler) ApproveWithdrawal(c *gin.Context) {
	admin, ok := adminID(c)
	if !ok {
		return
	}

	t, err := h.walletService.ApproveWithdrawal(c.Request.Context(), c.Param("id"), admin)
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, newTransactionResponse(t))
}

// RejectWithdrawal handles POST /v1/admin/withdrawals/:id/reject
func (h *AdminHandler) RejectWithdrawal(c *gin.Context) {
	admin, ok := adminID(c)
	if !ok {
		return
	}

	t, err := h.walletService.RejectWithdrawal(c.Request.Context(), c.Param("id"), admin)
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, newTransactionResponse(t))
}

// FreezeWallet handles POST /v1/admin/wallets/:id/freeze
func (h *AdminHandler) FreezeWallet(c *gin.Context) {
	h.setFrozen(c, true)
}

// UnfreezeWallet handles POST /v1/admin/wallets/:id/unfreeze
func (h *AdminHandler) UnfreezeWallet(c *gin.Context) {
	h.setFrozen(c, false)
}

func (h *AdminHandler) setFrozen(c *gin.Context, frozen bool) {
	admin, ok := adminID(c)
	if !ok {
		return
	}

	wallet, err := h.walletService.SetFrozen(c.Request.Context(), c.Param("id"), frozen, admin)
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, newWalletResponse(wallet))
}

// MintTokens handles POST /v1/admin/wallets/:id/mint
func (h *AdminHandler) MintTokens(c *gin.Context) {
	var req MintRequest
	if !bindJSON(c, &req) {
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		respondError(c, err)
		return
	}

	wallet, err := h.walletService.MintTokens(c.Request.Context(), c.Param("id"), amount, req.AdminID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, newWalletResponse(wallet))
}
