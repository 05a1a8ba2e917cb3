package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/home-services-api/services"
)

// VerifyPaymentRequest carries the fields returned by the gateway checkout
type VerifyPaymentRequest struct {
	OrderID           uint   `json:"orderId" binding:"required"`
	RazorpayOrderID   string `json:"razorpay_order_id"`
	RazorpayPaymentID string `json:"razorpay_payment_id"`
	RazorpaySignature string `json:"razorpay_signature"`
}

// PaymentController settles orders after checkout
type PaymentController struct {
	orders *services.OrderService
}

// NewPaymentController creates a payment controller
func NewPaymentController(orders *services.OrderService) *PaymentController {
	return &PaymentController{orders: orders}
}

// VerifyPayment handles POST /api/v1/payment/verify
func (ctl *PaymentController) VerifyPayment(c *gin.Context) {
	principal, ok := principalOrAbort(c)
	if !ok {
		return
	}

	var req VerifyPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	result, err := ctl.orders.VerifyPayment(c.Request.Context(), principal, services.VerifyPaymentInput{
		OrderID:           req.OrderID,
		RazorpayOrderID:   req.RazorpayOrderID,
		RazorpayPaymentID: req.RazorpayPaymentID,
		RazorpaySignature: req.RazorpaySignature,
	})
	if err != nil {
		handleServiceError(c, err)
		return
	}

	respondWithMeta(c, http.StatusOK, result.Order, gin.H{"already_processed": result.AlreadyProcessed})
}
