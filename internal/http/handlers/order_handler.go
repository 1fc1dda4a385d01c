// Order HTTP handlers.
//
// This file exposes the order lifecycle:
//   - POST /orders                    (place an order; Idempotency-Key required)
//   - GET  /orders/{id}               (order with parties and status message)
//   - POST /orders/{id}/status        (advance or cancel an order)
//   - POST /orders/{id}/pickup-code   (vendor issues the pickup code)
//
// Callers are identified by a Bearer token or an X-Guest-ID header
// (middleware.Identity). Authorization is decided by the order service.
package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-pickup-backend/internal/domain"
	"github.com/tbourn/go-pickup-backend/internal/services"
)

// OrderItemRequest is one requested dish.
type OrderItemRequest struct {
	DishID              string `json:"dish_id" binding:"required" example:"dish_01"`
	Quantity            int    `json:"quantity" binding:"required,min=1" example:"2"`
	SpecialInstructions string `json:"special_instructions,omitempty" example:"no onions"`
}

// CreateOrderRequest is the JSON payload for placing an order.
type CreateOrderRequest struct {
	VendorID            string             `json:"vendor_id" binding:"required" example:"vendor_01"`
	Items               []OrderItemRequest `json:"items" binding:"required,min=1,dive"`
	PickupTime          time.Time          `json:"pickup_time" binding:"required" example:"2026-01-02T12:30:00Z"`
	SpecialInstructions string             `json:"special_instructions,omitempty" example:"ring the bell"`
	TipCents            int64              `json:"tip_cents" binding:"min=0" example:"150"`
}

// ChangeStatusRequest asks for a status transition.
type ChangeStatusRequest struct {
	Status     string `json:"status" binding:"required" example:"confirmed"`
	PickupCode string `json:"pickup_code,omitempty" example:"042917"`
	Reason     string `json:"reason,omitempty" example:"out of stock"`
}

// CreateOrder godoc
// @ID          createOrder
// @Summary     Place an order
// @Description Validates the request, prices the items and stores the order as pending.
// @Description Retrying with the same Idempotency-Key returns the original order with `Idempotency-Replayed: true`.
// @Tags        Orders
// @Accept      json
// @Produce     json
//
// @Param       Authorization    header  string  false "Bearer token"
// @Param       X-Guest-ID       header  string  false "Guest session id (when not signed in)"
// @Param       Idempotency-Key  header  string  true  "Idempotency key for safe retries (UUID recommended)"  example(7a8d9f4c-1b2a-4c3d-8e9f-0123456789ab)
// @Param       body             body    handlers.CreateOrderRequest  true  "Order payload"
//
// @Success     201  {object}  handlers.SuccessResponse{data=services.OrderDetails}  "Order created"
// @Success     200  {object}  handlers.SuccessResponse{data=services.OrderDetails}  "Replayed"
// @Failure     400  {object}  handlers.ErrorResponse  "Validation failed"
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthenticated"
// @Failure     404  {object}  handlers.ErrorResponse  "Vendor not found"
// @Failure     409  {object}  handlers.ErrorResponse  "Request in progress"
// @Failure     422  {object}  handlers.ErrorResponse  "Vendor inactive, dish unavailable or pickup time too soon"
// @Failure     429  {object}  handlers.ErrorResponse  "Rate limited"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /orders [post]
func (h *Handlers) CreateOrder(c *gin.Context) {
	var req CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid order payload")
		return
	}

	in := services.CreateOrderInput{
		VendorID:            strings.TrimSpace(req.VendorID),
		Items:               make([]services.OrderItemInput, 0, len(req.Items)),
		PickupTime:          req.PickupTime,
		SpecialInstructions: strings.TrimSpace(req.SpecialInstructions),
		TipCents:            req.TipCents,
		IdempotencyKey:      idempotencyKey(c),
	}
	for _, it := range req.Items {
		in.Items = append(in.Items, services.OrderItemInput{
			DishID:              strings.TrimSpace(it.DishID),
			Quantity:            it.Quantity,
			SpecialInstructions: strings.TrimSpace(it.SpecialInstructions),
		})
	}

	out, err := h.orders.CreateOrder(c.Request.Context(), caller(c), in)
	if err != nil {
		failErr(c, err)
		return
	}
	created(c, out)
}

// GetOrder godoc
// @ID          getOrder
// @Summary     Get an order
// @Tags        Orders
// @Produce     json
// @Param       id   path  string  true  "Order ID"
// @Success     200  {object}  handlers.SuccessResponse{data=services.OrderDetails}
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthenticated"
// @Failure     403  {object}  handlers.ErrorResponse  "Not a participant"
// @Failure     404  {object}  handlers.ErrorResponse  "Order not found"
// @Router      /orders/{id} [get]
func (h *Handlers) GetOrder(c *gin.Context) {
	out, err := h.orders.GetOrder(c.Request.Context(), caller(c), c.Param("id"))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, out)
}

// ChangeOrderStatus godoc
// @ID          changeOrderStatus
// @Summary     Change an order's status
// @Description Vendors move an order through confirmed, preparing, ready and completed.
// @Description Buyers confirm pickup with the pickup code. Either side may cancel while allowed.
// @Tags        Orders
// @Accept      json
// @Produce     json
//
// @Param       Idempotency-Key  header  string  false "Idempotency key for safe retries"
// @Param       id               path    string  true  "Order ID"
// @Param       body             body    handlers.ChangeStatusRequest  true  "Target status"
//
// @Success     200  {object}  handlers.SuccessResponse{data=services.OrderDetails}
// @Failure     400  {object}  handlers.ErrorResponse  "Validation failed"
// @Failure     403  {object}  handlers.ErrorResponse  "Role may not perform this transition"
// @Failure     404  {object}  handlers.ErrorResponse  "Order not found"
// @Failure     409  {object}  handlers.ErrorResponse  "Concurrent modification"
// @Failure     422  {object}  handlers.ErrorResponse  "Transition not allowed or pickup code invalid"
// @Failure     429  {object}  handlers.ErrorResponse  "Rate limited"
// @Router      /orders/{id}/status [post]
func (h *Handlers) ChangeOrderStatus(c *gin.Context) {
	var req ChangeStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "status required")
		return
	}

	out, err := h.orders.ChangeStatus(c.Request.Context(), caller(c), c.Param("id"), services.ChangeStatusInput{
		Status:         domain.OrderStatus(strings.ToLower(strings.TrimSpace(req.Status))),
		PickupCode:     strings.TrimSpace(req.PickupCode),
		Reason:         strings.TrimSpace(req.Reason),
		IdempotencyKey: idempotencyKey(c),
	})
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, out)
}

// GeneratePickupCode godoc
// @ID          generatePickupCode
// @Summary     Issue the pickup code
// @Description Returns the live pickup code, issuing a new one when none is valid. Vendor only.
// @Tags        Orders
// @Produce     json
// @Param       Idempotency-Key  header  string  false "Idempotency key for safe retries"
// @Param       id               path    string  true  "Order ID"
// @Success     200  {object}  handlers.SuccessResponse{data=services.PickupCode}
// @Failure     403  {object}  handlers.ErrorResponse  "Not the vendor"
// @Failure     404  {object}  handlers.ErrorResponse  "Order not found"
// @Failure     422  {object}  handlers.ErrorResponse  "Order not awaiting pickup"
// @Failure     429  {object}  handlers.ErrorResponse  "Rate limited"
// @Router      /orders/{id}/pickup-code [post]
func (h *Handlers) GeneratePickupCode(c *gin.Context) {
	out, err := h.orders.GeneratePickupCode(c.Request.Context(), caller(c), c.Param("id"), idempotencyKey(c))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, out)
}
