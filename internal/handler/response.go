package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/govalues/decimal"

	"jointvibe/internal/backend"
	"jointvibe/internal/domain"
	"jointvibe/internal/repository"
	"jointvibe/internal/service"
)

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

var errInvalidBody = errors.New("invalid request body")

// respondError sends an error response with the appropriate HTTP status code.
func respondError(c *gin.Context, err error) {
	code := mapErrorToHTTPStatus(err)
	if code == http.StatusInternalServerError {
		_ = c.Error(err)
		c.JSON(code, ErrorResponse{Error: "internal error"})
		return
	}
	c.JSON(code, ErrorResponse{Error: err.Error()})
}

// respondJSON sends a JSON response with the given status code.
func respondJSON(c *gin.Context, code int, data any) {
	c.JSON(code, data)
}

// bindJSON decodes the request body and answers 400 on failure.
func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: errInvalidBody.Error()})
		return false
	}
	return true
}

// mapErrorToHTTPStatus maps domain, service and repository errors to HTTP status codes.
func mapErrorToHTTPStatus(err error) int {
	switch {
	// Not found errors
	case errors.Is(err, repository.ErrNotFound),
		errors.Is(err, backend.ErrNotFound),
		errors.Is(err, service.ErrUnknownMenuItem):
		return http.StatusNotFound

	// Validation errors - Bad Request
	case errors.Is(err, errInvalidBody),
		errors.Is(err, domain.ErrInvalidInput),
		errors.Is(err, domain.ErrInvalidStatus),
		errors.Is(err, domain.ErrInvalidOrderType),
		errors.Is(err, domain.ErrEmptyCart),
		errors.Is(err, domain.ErrInvalidQuantity),
		errors.Is(err, domain.ErrInvalidPrice),
		errors.Is(err, domain.ErrTotalMismatch),
		errors.Is(err, domain.ErrInvalidLocation),
		errors.Is(err, service.ErrInvalidVenueID),
		errors.Is(err, service.ErrInvalidOrderID),
		errors.Is(err, service.ErrInvalidCustomerID),
		errors.Is(err, service.ErrInvalidDriverID),
		errors.Is(err, service.ErrInvalidDeliveryID),
		errors.Is(err, service.ErrInvalidWalletID),
		errors.Is(err, service.ErrInvalidUserID),
		errors.Is(err, service.ErrInvalidName),
		errors.Is(err, service.ErrInvalidPhone),
		errors.Is(err, service.ErrInvalidDriverStatus),
		errors.Is(err, service.ErrInvalidAmount),
		errors.Is(err, service.ErrInvalidActor),
		errors.Is(err, service.ErrUnknownSize),
		errors.Is(err, service.ErrDeliveryAddressRequired),
		errors.Is(err, service.ErrInsufficientFunds),
		errors.Is(err, service.ErrNotAWithdrawal):
		return http.StatusBadRequest

	// Forbidden/Business rule errors
	case errors.Is(err, service.ErrActorNotAllowed),
		errors.Is(err, service.ErrDriverNotAssigned),
		errors.Is(err, service.ErrVenueNotApproved):
		return http.StatusForbidden

	// Conflict errors
	case errors.Is(err, domain.ErrOrderTerminal),
		errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, service.ErrStatusConflict),
		errors.Is(err, service.ErrMenuItemUnavailable),
		errors.Is(err, service.ErrDeliveryTaken),
		errors.Is(err, service.ErrInvalidDeliveryTransition),
		errors.Is(err, service.ErrDriverBusy),
		errors.Is(err, service.ErrDriverOffline),
		errors.Is(err, service.ErrDeliveryDriven),
		errors.Is(err, service.ErrDriverExists),
		errors.Is(err, service.ErrWalletExists),
		errors.Is(err, service.ErrTransactionNotPending),
		errors.Is(err, repository.ErrConflict),
		errors.Is(err, backend.ErrConflict):
		return http.StatusConflict

	case errors.Is(err, service.ErrWalletFrozen):
		return http.StatusLocked

	// Default to internal server error
	default:
		return http.StatusInternalServerError
	}
}

// LocationPayload is a point on the map in requests and responses.
type LocationPayload struct {
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	Address string  `json:"address,omitempty"`
}

func (p LocationPayload) toDomain() domain.Location {
	return domain.Location{Lat: p.Lat, Lng: p.Lng, Address: p.Address}
}

func newLocationPayload(l domain.Location) LocationPayload {
	return LocationPayload{Lat: l.Lat, Lng: l.Lng, Address: l.Address}
}

const defaultListLimit = 50

// parseLimit reads the ?limit= query parameter and answers 400 when it is invalid.
func parseLimit(c *gin.Context) (uint64, bool) {
	raw := c.Query("limit")
	if raw == "" {
		return defaultListLimit, true
	}
	limit, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || limit == 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid limit"})
		return 0, false
	}
	return limit, true
}

// parseAmount parses a decimal money or token amount sent as a JSON string.
func parseAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.Parse(s)
	if err != nil {
		return decimal.Decimal{}, service.ErrInvalidAmount
	}
	return d, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
