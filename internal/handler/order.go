package handler

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/govalues/decimal"
	"go.uber.org/zap"

	"jointvibe/internal/domain"
	"jointvibe/internal/service"
)

// OrderHandler handles HTTP requests for orders.
type OrderHandler struct {
	orderService *service.OrderService
	logger       *zap.Logger

	closing   chan struct{}
	closeOnce sync.Once
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(orderService *service.OrderService, logger *zap.Logger) *OrderHandler {
	return &OrderHandler{
		orderService: orderService,
		logger:       logger,
		closing:      make(chan struct{}),
	}
}

// CloseStreams ends every open order event stream. Streams opened
// afterwards stop after their first event. Register it with
// http.Server.RegisterOnShutdown so Shutdown does not wait on them.
func (h *OrderHandler) CloseStreams() {
	h.closeOnce.Do(func() { close(h.closing) })
}

// CartItemRequest is one cart position in a place order request.
type CartItemRequest struct {
	MenuItemID string `json:"menu_item_id"`
	Quantity   int    `json:"quantity"`
	Size       string `json:"size,omitempty"`
	Modifier   string `json:"modifier,omitempty"`
}

// PlaceOrderRequest is the HTTP request body for placing an order.
type PlaceOrderRequest struct {
	VenueID       string            `json:"venue_id"`
	CustomerID    string            `json:"customer_id"`
	Type          string            `json:"type"`
	Items         []CartItemRequest `json:"items"`
	Dropoff       *LocationPayload  `json:"dropoff,omitempty"`
	Notes         string            `json:"notes,omitempty"`
	ExpectedTotal string            `json:"expected_total,omitempty"`
}

// UpdateStatusRequest is the HTTP request body for an order status change.
type UpdateStatusRequest struct {
	Status    string `json:"status"`
	ActorRole string `json:"actor_role"`
	ActorID   string `json:"actor_id"`
}

// CancelOrderRequest is the HTTP request body for cancelling an order.
type CancelOrderRequest struct {
	ActorRole string `json:"actor_role"`
	ActorID   string `json:"actor_id"`
}

// LineItemResponse is one priced cart position of an order.
type LineItemResponse struct {
	MenuItemID string `json:"menu_item_id"`
	Name       string `json:"name"`
	Quantity   int    `json:"quantity"`
	UnitPrice  string `json:"unit_price"`
	Size       string `json:"size,omitempty"`
	Modifier   string `json:"modifier,omitempty"`
}

// StatusChangeResponse is one entry of an order's status history.
type StatusChangeResponse struct {
	From      string `json:"from,omitempty"`
	To        string `json:"to"`
	ActorRole string `json:"actor_role"`
	ActorID   string `json:"actor_id,omitempty"`
	ChangedAt string `json:"changed_at"`
}

// OrderResponse is the HTTP response for order data.
type OrderResponse struct {
	ID              string                 `json:"id"`
	VenueID         string                 `json:"venue_id"`
	CustomerID      string                 `json:"customer_id"`
	Type            string                 `json:"type"`
	Status          string                 `json:"status"`
	Items           []LineItemResponse     `json:"items,omitempty"`
	Subtotal        string                 `json:"subtotal"`
	Tax             string                 `json:"tax"`
	DeliveryFee     string                 `json:"delivery_fee,omitempty"`
	Total           string                 `json:"total"`
	DeliveryAddress string                 `json:"delivery_address,omitempty"`
	Notes           string                 `json:"notes,omitempty"`
	CreatedAt       string                 `json:"created_at"`
	UpdatedAt       string                 `json:"updated_at"`
	History         []StatusChangeResponse `json:"history,omitempty"`
}

func newOrderResponse(o *domain.Order) OrderResponse {
	resp := OrderResponse{
		ID:              o.ID,
		VenueID:         o.VenueID,
		CustomerID:      o.CustomerID,
		Type:            string(o.Type),
		Status:          string(o.Status),
		Subtotal:        o.Subtotal.String(),
		Tax:             o.Tax.String(),
		Total:           o.Total.String(),
		DeliveryAddress: o.DeliveryAddress,
		Notes:           o.Notes,
		CreatedAt:       formatTime(o.CreatedAt),
		UpdatedAt:       formatTime(o.UpdatedAt),
	}
	if o.DeliveryFee != nil {
		resp.DeliveryFee = o.DeliveryFee.String()
	}
	for _, li := range o.Items {
		resp.Items = append(resp.Items, LineItemResponse{
			MenuItemID: li.MenuItemID,
			Name:       li.Name,
			Quantity:   li.Quantity,
			UnitPrice:  li.UnitPrice.String(),
			Size:       li.Size,
			Modifier:   li.Modifier,
		})
	}
	return resp
}

// PlaceOrderResponse is the HTTP response for a placed order.
type PlaceOrderResponse struct {
	Order    OrderResponse     `json:"order"`
	Delivery *DeliveryResponse `json:"delivery,omitempty"`
}

// PlaceOrder handles POST /v1/orders
func (h *OrderHandler) PlaceOrder(c *gin.Context) {
	var req PlaceOrderRequest
	if !bindJSON(c, &req) {
		return
	}

	placeReq := service.PlaceOrderRequest{
		VenueID:    req.VenueID,
		CustomerID: req.CustomerID,
		Type:       domain.OrderType(req.Type),
		Notes:      req.Notes,
	}
	for _, item := range req.Items {
		placeReq.Items = append(placeReq.Items, service.CartItem{
			MenuItemID: item.MenuItemID,
			Quantity:   item.Quantity,
			Size:       item.Size,
			Modifier:   item.Modifier,
		})
	}
	if req.Dropoff != nil {
		dropoff := req.Dropoff.toDomain()
		placeReq.Dropoff = &dropoff
	}
	if req.ExpectedTotal != "" {
		expected, err := decimal.Parse(req.ExpectedTotal)
		if err != nil {
			respondError(c, service.ErrInvalidAmount)
			return
		}
		placeReq.ExpectedTotal = &expected
	}

	result, err := h.orderService.PlaceOrder(c.Request.Context(), placeReq)
	if err != nil {
		respondError(c, err)
		return
	}

	response := PlaceOrderResponse{Order: newOrderResponse(result.Order)}
	if result.Delivery != nil {
		d := newDeliveryResponse(result.Delivery)
		response.Delivery = &d
	}
	respondJSON(c, http.StatusCreated, response)
}

// GetOrder handles GET /v1/orders/:id
func (h *OrderHandler) GetOrder(c *gin.Context) {
	ctx := c.Request.Context()
	orderID := c.Param("id")

	order, err := h.orderService.GetOrder(ctx, orderID)
	if err != nil {
		respondError(c, err)
		return
	}
	history, err := h.orderService.History(ctx, orderID)
	if err != nil {
		respondError(c, err)
		return
	}

	response := newOrderResponse(order)
	for _, ch := range history {
		response.History = append(response.History, StatusChangeResponse{
			From:      string(ch.From),
			To:        string(ch.To),
			ActorRole: string(ch.ActorRole),
			ActorID:   ch.ActorID,
			ChangedAt: formatTime(ch.ChangedAt),
		})
	}
	respondJSON(c, http.StatusOK, response)
}

// ListCustomerOrders handles GET /v1/users/:id/orders?limit=N
func (h *OrderHandler) ListCustomerOrders(c *gin.Context) {
	limit, ok := parseLimit(c)
	if !ok {
		return
	}

	orders, err := h.orderService.ListCustomerOrders(c.Request.Context(), c.Param("id"), limit)
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

// UpdateStatus handles POST /v1/orders/:id/status
func (h *OrderHandler) UpdateStatus(c *gin.Context) {
	var req UpdateStatusRequest
	if !bindJSON(c, &req) {
		return
	}

	order, err := h.orderService.UpdateStatus(c.Request.Context(), service.UpdateStatusRequest{
		OrderID:   c.Param("id"),
		To:        domain.OrderStatus(req.Status),
		ActorRole: domain.ActorRole(req.ActorRole),
		ActorID:   req.ActorID,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, newOrderResponse(order))
}

// CancelOrder handles POST /v1/orders/:id/cancel
func (h *OrderHandler) CancelOrder(c *gin.Context) {
	var req CancelOrderRequest
	if !bindJSON(c, &req) {
		return
	}

	order, err := h.orderService.CancelOrder(c.Request.Context(), c.Param("id"), domain.ActorRole(req.ActorRole), req.ActorID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, newOrderResponse(order))
}

// Events handles GET /v1/orders/:id/events. It streams the order as
// server-sent events until the order is completed or cancelled, the
// client goes away, or the server shuts down.
func (h *OrderHandler) Events(c *gin.Context) {
	ctx := c.Request.Context()

	tracker, err := h.orderService.Track(ctx, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	defer tracker.Close()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Status(http.StatusOK)

	current := tracker.Order()
	c.SSEvent("order", newOrderResponse(&current))
	c.Writer.Flush()
	if current.Status.IsTerminal() {
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-h.closing:
			return
		case order, ok := <-tracker.Updates():
			if !ok {
				return
			}
			c.SSEvent("order", newOrderResponse(&order))
			c.Writer.Flush()
			if order.Status.IsTerminal() {
				h.logger.Debug("order stream finished",
					zap.String("order_id", order.ID),
					zap.String("status", string(order.Status)))
				return
			}
		}
	}
}
