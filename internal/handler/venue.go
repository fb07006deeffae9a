package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/govalues/decimal"

	"jointvibe/internal/domain"
	"jointvibe/internal/service"
)

// VenueHandler handles HTTP requests for venues, menus and check-ins.
type VenueHandler struct {
	venueService *service.VenueService
	menuService  *service.MenuService
	orderService *service.OrderService
}

// NewVenueHandler creates a new VenueHandler.
func NewVenueHandler(venueService *service.VenueService, menuService *service.MenuService, orderService *service.OrderService) *VenueHandler {
	return &VenueHandler{
		venueService: venueService,
		menuService:  menuService,
		orderService: orderService,
	}
}

// CreateVenueRequest is the HTTP request body for registering a venue.
type CreateVenueRequest struct {
	Name     string          `json:"name"`
	Location LocationPayload `json:"location"`
}

// VenueResponse is the HTTP response for venue data.
type VenueResponse struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Location  LocationPayload `json:"location"`
	Approved  bool            `json:"approved"`
	CreatedAt string          `json:"created_at"`
}

func newVenueResponse(v *domain.Venue) VenueResponse {
	return VenueResponse{
		ID:        v.ID,
		Name:      v.Name,
		Location:  newLocationPayload(v.Location),
		Approved:  v.Approved,
		CreatedAt: formatTime(v.CreatedAt),
	}
}

// MenuItemRequest is the HTTP request body for creating or editing a menu item.
type MenuItemRequest struct {
	ID         string            `json:"id,omitempty"`
	Name       string            `json:"name"`
	Price      string            `json:"price"`
	SizePrices map[string]string `json:"size_prices,omitempty"`
	Available  *bool             `json:"available,omitempty"`
}

// MenuItemResponse is the HTTP response for a menu item.
type MenuItemResponse struct {
	ID         string            `json:"id"`
	Name       string            `json:"name"`
	Price      string            `json:"price"`
	SizePrices map[string]string `json:"size_prices,omitempty"`
	Available  bool              `json:"available"`
}

func newMenuItemResponse(item domain.MenuItem) MenuItemResponse {
	resp := MenuItemResponse{
		ID:        item.ID,
		Name:      item.Name,
		Price:     item.Price.String(),
		Available: item.Available,
	}
	if len(item.SizePrices) > 0 {
		resp.SizePrices = make(map[string]string, len(item.SizePrices))
		for size, p := range item.SizePrices {
			resp.SizePrices[size] = p.String()
		}
	}
	return resp
}

// MenuResponse is the HTTP response for a venue menu.
type MenuResponse struct {
	VenueID string             `json:"venue_id"`
	Items   []MenuItemResponse `json:"items"`
}

// CheckInRequest is the HTTP request body for checking in at a venue.
type CheckInRequest struct {
	UserID string `json:"user_id"`
}

// Create handles POST /v1/venues
func (h *VenueHandler) Create(c *gin.Context) {
	var req CreateVenueRequest
	if !bindJSON(c, &req) {
		return
	}

	venue, err := h.venueService.CreateVenue(c.Request.Context(), service.CreateVenueRequest{
		Name:     req.Name,
		Location: req.Location.toDomain(),
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, newVenueResponse(venue))
}

// GetAll handles GET /v1/venues?approved=true
func (h *VenueHandler) GetAll(c *gin.Context) {
	approvedOnly, _ := strconv.ParseBool(c.DefaultQuery("approved", "false"))

	venues, err := h.venueService.ListVenues(c.Request.Context(), approvedOnly)
	if err != nil {
		respondError(c, err)
		return
	}

	response := make([]VenueResponse, 0, len(venues))
	for _, v := range venues {
		response = append(response, newVenueResponse(v))
	}
	respondJSON(c, http.StatusOK, response)
}

// Get handles GET /v1/venues/:id
func (h *VenueHandler) Get(c *gin.Context) {
	venue, err := h.venueService.GetVenue(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, newVenueResponse(venue))
}

// GetMenu handles GET /v1/venues/:id/menu
func (h *VenueHandler) GetMenu(c *gin.Context) {
	menu, err := h.menuService.GetMenu(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	response := MenuResponse{VenueID: menu.VenueID, Items: make([]MenuItemResponse, 0, len(menu.Items))}
	for _, item := range menu.Items {
		response.Items = append(response.Items, newMenuItemResponse(item))
	}
	respondJSON(c, http.StatusOK, response)
}

// UpsertMenuItem handles PUT /v1/venues/:id/menu/items
func (h *VenueHandler) UpsertMenuItem(c *gin.Context) {
	var req MenuItemRequest
	if !bindJSON(c, &req) {
		return
	}

	price, err := parseAmount(req.Price)
	if err != nil {
		respondError(c, err)
		return
	}

	var sizes map[string]decimal.Decimal
	if len(req.SizePrices) > 0 {
		sizes = make(map[string]decimal.Decimal, len(req.SizePrices))
		for size, raw := range req.SizePrices {
			p, err := parseAmount(raw)
			if err != nil {
				respondError(c, err)
				return
			}
			sizes[size] = p
		}
	}

	available := true
	if req.Available != nil {
		available = *req.Available
	}

	item, err := h.menuService.UpsertItem(c.Request.Context(), service.UpsertMenuItemRequest{
		ID:         req.ID,
		VenueID:    c.Param("id"),
		Name:       req.Name,
		Price:      price,
		SizePrices: sizes,
		Available:  available,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, newMenuItemResponse(*item))
}

// CheckIn handles POST /v1/venues/:id/checkin
func (h *VenueHandler) CheckIn(c *gin.Context) {
	var req CheckInRequest
	if !bindJSON(c, &req) {
		return
	}

	venue, err := h.venueService.CheckIn(c.Request.Context(), req.UserID, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, newVenueResponse(venue))
}

// CurrentVenue handles GET /v1/users/:id/venue
func (h *VenueHandler) CurrentVenue(c *gin.Context) {
	venue, err := h.venueService.CurrentVenue(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, newVenueResponse(venue))
}

// ListOrders handles GET /v1/venues/:id/orders?limit=N
func (h *VenueHandler) ListOrders(c *gin.Context) {
	limit, ok := parseLimit(c)
	if !ok {
		return
	}

	orders, err := h.orderService.ListVenueOrders(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		respondError(c, err)
		return
	}

	response := make([]OrderResponse, 0, len(orders))
	for _, o := range orders {
		response = append(response, newOrderResponse(o))
	}
	respondJSON(c, http.StatusOK, response)
}
