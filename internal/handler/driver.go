package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"jointvibe/internal/domain"
	"jointvibe/internal/service"
)

// DriverHandler handles HTTP requests for drivers.
type DriverHandler struct {
	driverService   *service.DriverService
	deliveryService *service.DeliveryService
}

// NewDriverHandler creates a new DriverHandler.
func NewDriverHandler(driverService *service.DriverService, deliveryService *service.DeliveryService) *DriverHandler {
	return &DriverHandler{
		driverService:   driverService,
		deliveryService: deliveryService,
	}
}

// UpdateLocationRequest is the HTTP request body for updating driver location.
type UpdateLocationRequest struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// RegisterDriverRequest is the HTTP request body for driver registration.
type RegisterDriverRequest struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

// DriverResponse is the HTTP response for driver data.
type DriverResponse struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Phone  string `json:"phone"`
	Status string `json:"status"`
}

func newDriverResponse(d *domain.Driver) DriverResponse {
	return DriverResponse{
		ID:     d.ID,
		Name:   d.Name,
		Phone:  d.Phone,
		Status: string(d.Status),
	}
}

// Register handles POST /v1/drivers/register
func (h *DriverHandler) Register(c *gin.Context) {
	var req RegisterDriverRequest
	if !bindJSON(c, &req) {
		return
	}

	driver, err := h.driverService.Register(c.Request.Context(), service.RegisterDriverRequest{
		Name:  req.Name,
		Phone: req.Phone,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, newDriverResponse(driver))
}

// Get handles GET /v1/drivers/:id
func (h *DriverHandler) Get(c *gin.Context) {
	driver, err := h.driverService.GetDriver(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, newDriverResponse(driver))
}

// GetAll handles GET /v1/drivers[?status=ONLINE]
func (h *DriverHandler) GetAll(c *gin.Context) {
	status := domain.DriverStatus(strings.ToUpper(c.Query("status")))
	drivers, err := h.driverService.ListDrivers(c.Request.Context(), status)
	if err != nil {
		respondError(c, err)
		return
	}

	response := make([]DriverResponse, 0, len(drivers))
	for _, d := range drivers {
		response = append(response, newDriverResponse(d))
	}
	respondJSON(c, http.StatusOK, response)
}

// UpdateLocation handles POST /v1/drivers/:id/location
func (h *DriverHandler) UpdateLocation(c *gin.Context) {
	var req UpdateLocationRequest
	if !bindJSON(c, &req) {
		return
	}

	err := h.driverService.UpdateLocation(c.Request.Context(), service.UpdateLocationRequest{
		DriverID: c.Param("id"),
		Lat:      req.Lat,
		Lng:      req.Lng,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// GoOffline handles POST /v1/drivers/:id/offline
func (h *DriverHandler) GoOffline(c *gin.Context) {
	if err := h.driverService.SetDriverOffline(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type deliveryAction func(ctx context.Context, req service.DeliveryActionRequest) (*domain.Delivery, error)

func (h *DriverHandler) handleDeliveryAction(c *gin.Context, action deliveryAction) {
	delivery, err := action(c.Request.Context(), service.DeliveryActionRequest{
		DeliveryID: c.Param("delivery_id"),
		DriverID:   c.Param("id"),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, newDeliveryResponse(delivery))
}

// AcceptDelivery handles POST /v1/drivers/:id/deliveries/:delivery_id/accept
func (h *DriverHandler) AcceptDelivery(c *gin.Context) {
	h.handleDeliveryAction(c, h.deliveryService.Accept)
}

// ArriveAtVenue handles POST /v1/drivers/:id/deliveries/:delivery_id/arrive
func (h *DriverHandler) ArriveAtVenue(c *gin.Context) {
	h.handleDeliveryAction(c, h.deliveryService.Arrive)
}

// PickUp handles POST /v1/drivers/:id/deliveries/:delivery_id/pickup
func (h *DriverHandler) PickUp(c *gin.Context) {
	h.handleDeliveryAction(c, h.deliveryService.PickUp)
}

// CompleteDelivery handles POST /v1/drivers/:id/deliveries/:delivery_id/complete
func (h *DriverHandler) CompleteDelivery(c *gin.Context) {
	h.handleDeliveryAction(c, h.deliveryService.Complete)
}
