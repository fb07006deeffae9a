package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"jointvibe/internal/domain"
	"jointvibe/internal/service"
)

// DeliveryHandler handles read access to deliveries.
type DeliveryHandler struct {
	deliveryService *service.DeliveryService
}

// NewDeliveryHandler creates a new DeliveryHandler.
func NewDeliveryHandler(deliveryService *service.DeliveryService) *DeliveryHandler {
	return &DeliveryHandler{deliveryService: deliveryService}
}

// DeliveryResponse is the HTTP response for delivery data.
type DeliveryResponse struct {
	ID              string          `json:"id"`
	OrderID         string          `json:"order_id"`
	DriverID        string          `json:"driver_id,omitempty"`
	Pickup          LocationPayload `json:"pickup"`
	Dropoff         LocationPayload `json:"dropoff"`
	DistanceKm      float64         `json:"distance_km"`
	DurationMinutes float64         `json:"duration_minutes"`
	Fare            string          `json:"fare"`
	DriverEarnings  string          `json:"driver_earnings"`
	PlatformFee     string          `json:"platform_fee"`
	Status          string          `json:"status"`
	CreatedAt       string          `json:"created_at"`
	UpdatedAt       string          `json:"updated_at"`
}

func newDeliveryResponse(d *domain.Delivery) DeliveryResponse {
	return DeliveryResponse{
		ID:              d.ID,
		OrderID:         d.OrderID,
		DriverID:        d.DriverID,
		Pickup:          newLocationPayload(d.Pickup),
		Dropoff:         newLocationPayload(d.Dropoff),
		DistanceKm:      d.DistanceKm,
		DurationMinutes: d.DurationMinutes,
		Fare:            d.Fare.String(),
		DriverEarnings:  d.DriverEarnings.String(),
		PlatformFee:     d.PlatformFee.String(),
		Status:          string(d.Status),
		CreatedAt:       formatTime(d.CreatedAt),
		UpdatedAt:       formatTime(d.UpdatedAt),
	}
}

// Get handles GET /v1/deliveries/:id
func (h *DeliveryHandler) Get(c *gin.Context) {
	delivery, err := h.deliveryService.GetDelivery(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, newDeliveryResponse(delivery))
}

// GetAll handles GET /v1/deliveries. With ?driver_id= it lists that driver's
// deliveries, otherwise the open requests waiting for a driver.
func (h *DeliveryHandler) GetAll(c *gin.Context) {
	var (
		deliveries []*domain.Delivery
		err        error
	)
	if driverID := c.Query("driver_id"); driverID != "" {
		deliveries, err = h.deliveryService.ListByDriver(c.Request.Context(), driverID)
	} else {
		deliveries, err = h.deliveryService.ListOpen(c.Request.Context())
	}
	if err != nil {
		respondError(c, err)
		return
	}

	response := make([]DeliveryResponse, 0, len(deliveries))
	for _, d := range deliveries {
		response = append(response, newDeliveryResponse(d))
	}
	respondJSON(c, http.StatusOK, response)
}
