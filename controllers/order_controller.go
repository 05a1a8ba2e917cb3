package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/home-services-api/services"
)

// CreateOrderRequest represents the request body for booking a service
type CreateOrderRequest struct {
	ServiceID uint   `json:"serviceId" binding:"required"`
	Date      string `json:"date" binding:"required"`
	Time      string `json:"time" binding:"required"`
	Address   string `json:"address" binding:"required"`
	Pincode   string `json:"pincode" binding:"required"`
	Remarks   string `json:"remarks"`
}

// CreateReviewRequest represents the request body for reviewing an order
type CreateReviewRequest struct {
	Rating  int    `json:"rating" binding:"required,min=1,max=5"`
	Comment string `json:"comment" binding:"max=1000"`
}

// OrderController serves the customer side of the order flow
type OrderController struct {
	orders *services.OrderService
}

// NewOrderController creates an order controller
func NewOrderController(orders *services.OrderService) *OrderController {
	return &OrderController{orders: orders}
}

// CreateOrder handles POST /api/v1/orders - books a service (customers only)
func (ctl *OrderController) CreateOrder(c *gin.Context) {
	principal, ok := principalOrAbort(c)
	if !ok {
		return
	}

	var req CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	result, err := ctl.orders.CreateOrder(c.Request.Context(), principal, services.CreateOrderInput{
		ServiceID: req.ServiceID,
		Date:      req.Date,
		Time:      req.Time,
		Address:   req.Address,
		Pincode:   req.Pincode,
		Remarks:   req.Remarks,
	})
	if err != nil {
		handleServiceError(c, err)
		return
	}

	meta := gin.H{"notification": result.Notification}
	if result.Payment != nil {
		meta["payment"] = result.Payment
	}
	respondWithMeta(c, http.StatusCreated, result.Order, meta)
}

// ListMyOrders handles GET /api/v1/orders - the caller's orders
func (ctl *OrderController) ListMyOrders(c *gin.Context) {
	principal, ok := principalOrAbort(c)
	if !ok {
		return
	}

	orders, err := ctl.orders.ListMyOrders(c.Request.Context(), principal)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	respondWithMeta(c, http.StatusOK, orders, gin.H{"count": len(orders)})
}

// GetOrderStatus handles GET /api/v1/orders/:id/status
func (ctl *OrderController) GetOrderStatus(c *gin.Context) {
	principal, ok := principalOrAbort(c)
	if !ok {
		return
	}
	orderID, ok := orderIDParam(c)
	if !ok {
		return
	}

	order, err := ctl.orders.GetOrder(c.Request.Context(), principal, orderID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	respondOK(c, http.StatusOK, gin.H{
		"order_id":   order.ID,
		"status":     order.Status,
		"is_settled": order.IsSettled(),
		"order":      order,
	})
}

// CancelOrder handles POST /api/v1/orders/:id/cancel
func (ctl *OrderController) CancelOrder(c *gin.Context) {
	principal, ok := principalOrAbort(c)
	if !ok {
		return
	}
	orderID, ok := orderIDParam(c)
	if !ok {
		return
	}

	order, err := ctl.orders.CancelOrder(c.Request.Context(), principal, orderID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	respondOK(c, http.StatusOK, order)
}

// CreateReview handles POST /api/v1/orders/:id/review
func (ctl *OrderController) CreateReview(c *gin.Context) {
	principal, ok := principalOrAbort(c)
	if !ok {
		return
	}
	orderID, ok := orderIDParam(c)
	if !ok {
		return
	}

	var req CreateReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	review, err := ctl.orders.CreateReview(c.Request.Context(), principal, orderID, req.Rating, req.Comment)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	respondOK(c, http.StatusCreated, review)
}
