package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/home-services-api/services"
)

// AcceptOrderRequest represents the request body for accepting an order
type AcceptOrderRequest struct {
	OrderID uint `json:"orderId" binding:"required"`
}

// UpdateStatusRequest represents the request body for a partner status update
type UpdateStatusRequest struct {
	OrderID uint   `json:"orderId" binding:"required"`
	Status  string `json:"status" binding:"required"`
}

// PartnerController serves the partner side of the order flow
type PartnerController struct {
	orders *services.OrderService
}

// NewPartnerController creates a partner controller
func NewPartnerController(orders *services.OrderService) *PartnerController {
	return &PartnerController{orders: orders}
}

// ListAvailableOrders handles GET /api/v1/partner/orders/available
func (ctl *PartnerController) ListAvailableOrders(c *gin.Context) {
	principal, ok := principalOrAbort(c)
	if !ok {
		return
	}

	orders, err := ctl.orders.ListAvailableOrders(c.Request.Context(), principal)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	respondWithMeta(c, http.StatusOK, orders, gin.H{"count": len(orders)})
}

// ListAssignedOrders handles GET /api/v1/partner/orders
func (ctl *PartnerController) ListAssignedOrders(c *gin.Context) {
	principal, ok := principalOrAbort(c)
	if !ok {
		return
	}

	orders, err := ctl.orders.ListAssignedOrders(c.Request.Context(), principal)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	respondWithMeta(c, http.StatusOK, orders, gin.H{"count": len(orders)})
}

// AcceptOrder handles POST /api/v1/partner/accept-order
func (ctl *PartnerController) AcceptOrder(c *gin.Context) {
	principal, ok := principalOrAbort(c)
	if !ok {
		return
	}

	var req AcceptOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	order, err := ctl.orders.AcceptOrder(c.Request.Context(), principal, req.OrderID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	respondOK(c, http.StatusOK, order)
}

// UpdateStatus handles POST /api/v1/partner/orders/update-status
func (ctl *PartnerController) UpdateStatus(c *gin.Context) {
	principal, ok := principalOrAbort(c)
	if !ok {
		return
	}

	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	order, err := ctl.orders.UpdateStatus(c.Request.Context(), principal, req.OrderID, req.Status)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	respondOK(c, http.StatusOK, order)
}
