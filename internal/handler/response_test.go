package handler

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"jointvibe/internal/backend"
	"jointvibe/internal/domain"
	"jointvibe/internal/repository"
	"jointvibe/internal/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestMapErrorToHTTPStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		want int
	}{
		{repository.ErrNotFound, http.StatusNotFound},
		{fmt.Errorf("get order: %w", repository.ErrNotFound), http.StatusNotFound},
		{backend.ErrNotFound, http.StatusNotFound},
		{domain.ErrEmptyCart, http.StatusBadRequest},
		{domain.ErrTotalMismatch, http.StatusBadRequest},
		{domain.ErrInvalidLocation, http.StatusBadRequest},
		{service.ErrInvalidAmount, http.StatusBadRequest},
		{service.ErrInsufficientFunds, http.StatusBadRequest},
		{fmt.Errorf("%w: customer cannot move order", service.ErrActorNotAllowed), http.StatusForbidden},
		{service.ErrDriverNotAssigned, http.StatusForbidden},
		{domain.ErrOrderTerminal, http.StatusConflict},
		{domain.ErrInvalidTransition, http.StatusConflict},
		{service.ErrDeliveryTaken, http.StatusConflict},
		{service.ErrTransactionNotPending, http.StatusConflict},
		{service.ErrWalletFrozen, http.StatusLocked},
		{errors.New("connection refused"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, mapErrorToHTTPStatus(tt.err))
		})
	}
}

func TestRespondError_HidesInternalErrors(t *testing.T) {
	t.Parallel()

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	respondError(c, errors.New("pq: password authentication failed"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"internal error"}`, w.Body.String())
	assert.Len(t, c.Errors, 1)

	w = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(w)
	respondError(c, service.ErrDriverBusy)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.JSONEq(t, `{"error":"driver already on a delivery"}`, w.Body.String())
}
