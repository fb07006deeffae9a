package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"jointvibe/internal/domain"
	"jointvibe/internal/service"
)

// FareHandler handles fare estimates.
type FareHandler struct {
	fares *service.FareCalculator
}

// NewFareHandler creates a new FareHandler.
func NewFareHandler(fares *service.FareCalculator) *FareHandler {
	return &FareHandler{fares: fares}
}

// EstimateFareRequest is the HTTP request body for a fare estimate. Either
// distance_km or both pickup and dropoff must be given.
type EstimateFareRequest struct {
	DistanceKm      *float64         `json:"distance_km,omitempty"`
	DurationMinutes *float64         `json:"duration_minutes,omitempty"`
	Pickup          *LocationPayload `json:"pickup,omitempty"`
	Dropoff         *LocationPayload `json:"dropoff,omitempty"`
}

// FareEstimateResponse is the HTTP response for a fare estimate.
type FareEstimateResponse struct {
	DistanceKm      float64 `json:"distance_km"`
	DurationMinutes float64 `json:"duration_minutes"`
	Fare            string  `json:"fare"`
	DriverEarnings  string  `json:"driver_earnings"`
	PlatformFee     string  `json:"platform_fee"`
}

func newFareEstimateResponse(e domain.FareEstimate) FareEstimateResponse {
	return FareEstimateResponse{
		DistanceKm:      e.DistanceKm,
		DurationMinutes: e.DurationMinutes,
		Fare:            e.Fare.String(),
		DriverEarnings:  e.DriverEarnings.String(),
		PlatformFee:     e.PlatformFee.String(),
	}
}

// Estimate handles POST /v1/fares/estimate
func (h *FareHandler) Estimate(c *gin.Context) {
	var req EstimateFareRequest
	if !bindJSON(c, &req) {
		return
	}

	var (
		estimate domain.FareEstimate
		err      error
	)
	switch {
	case req.DistanceKm != nil:
		estimate, err = h.fares.Estimate(*req.DistanceKm, req.DurationMinutes)
	case req.Pickup != nil && req.Dropoff != nil:
		estimate, err = h.fares.EstimateBetween(req.Pickup.toDomain(), req.Dropoff.toDomain(), req.DurationMinutes)
	default:
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "distance_km or pickup and dropoff are required"})
		return
	}
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, newFareEstimateResponse(estimate))
}
