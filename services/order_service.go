package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kendall-kelly/home-services-api/logger"
	"github.com/kendall-kelly/home-services-api/models"
	"github.com/kendall-kelly/home-services-api/utils"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// statuses in which an order still owes money
var pendingPaymentStatuses = []string{
	models.OrderStatusPending,
	models.OrderStatusAccepted,
	models.OrderStatusInProgress,
	models.OrderStatusServiceCompleted,
	models.OrderStatusPaymentRequested,
}

var awaitingAssignmentStatuses = []string{
	models.OrderStatusPending,
	models.OrderStatusPaymentCompleted,
}

var errAlreadySettled = errors.New("order already settled")

// OrderSettings are the tunables of the order flow
type OrderSettings struct {
	Currency  string
	Location  *time.Location
	TxTimeout time.Duration
	Now       func() time.Time
}

// OrderDeps are the collaborators of the order flow. Notifier and Images
// may be nil: notifications are then skipped and photo upload is unavailable.
type OrderDeps struct {
	Wallets     *WalletService
	Eligibility *EligibilityService
	Gateway     PaymentGateway
	Notifier    OrderNotifier
	Images      ImageService
}

// OrderService owns every order transition. Each transition is a
// conditional update on the current status, so concurrent callers can
// never both win.
type OrderService struct {
	db       *gorm.DB
	deps     OrderDeps
	settings OrderSettings
}

// NewOrderService creates the order state machine
func NewOrderService(db *gorm.DB, deps OrderDeps, settings OrderSettings) *OrderService {
	if settings.Currency == "" {
		settings.Currency = "INR"
	}
	if settings.Location == nil {
		settings.Location = time.UTC
	}
	if settings.TxTimeout <= 0 {
		settings.TxTimeout = 10 * time.Second
	}
	return &OrderService{db: db, deps: deps, settings: settings}
}

func (s *OrderService) now() time.Time {
	if s.settings.Now != nil {
		return s.settings.Now()
	}
	return time.Now()
}

// CreateOrderInput is a customer's booking request
type CreateOrderInput struct {
	ServiceID uint
	Date      string
	Time      string
	Address   string
	Pincode   string
	Remarks   string
}

// PaymentInfo is what the client needs to open the gateway checkout
type PaymentInfo struct {
	RazorpayOrderID string `json:"razorpay_order_id"`
	Amount          int64  `json:"amount"` // minor units
	Currency        string `json:"currency"`
	KeyID           string `json:"key_id"`
}

// NotificationStatus reports how the new-order fan-out was handed off
type NotificationStatus struct {
	Queued     bool `json:"queued"`
	Recipients int  `json:"recipients"`
}

// CreateOrderResult is the outcome of a successful checkout
type CreateOrderResult struct {
	Order        *models.Order
	Payment      *PaymentInfo
	Notification NotificationStatus
}

// CreateOrder books a service. The wallet covers as much of the price as
// it can; any remainder gets a gateway order. Orders that no partner can
// serve are rejected before anything is written.
func (s *OrderService) CreateOrder(ctx context.Context, p Principal, in CreateOrderInput) (*CreateOrderResult, error) {
	user, err := s.resolveUser(ctx, p)
	if err != nil {
		return nil, err
	}
	if user.Role != models.RoleUser {
		return nil, forbiddenError("Only customers can place orders")
	}

	in.Address = strings.TrimSpace(in.Address)
	in.Pincode = strings.TrimSpace(in.Pincode)
	if in.ServiceID == 0 {
		return nil, validationError("serviceId is required")
	}
	if in.Address == "" {
		return nil, validationError("address is required")
	}
	if !utils.ValidatePincode(in.Pincode) {
		return nil, validationError("pincode must be 6 digits and cannot start with 0")
	}

	var service models.Service
	if err := s.db.WithContext(ctx).Where("id = ? AND is_active = ?", in.ServiceID, true).First(&service).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFoundError("SERVICE_NOT_FOUND", "Service not found")
		}
		return nil, classifyDBError(err)
	}

	slot, err := utils.ParseServiceSlot(in.Date, in.Time, s.settings.Location)
	if err != nil {
		return nil, validationError("%s", err.Error())
	}
	if err := utils.ValidateServiceSlot(slot, s.now().In(s.settings.Location), service.ThresholdDuration()); err != nil {
		return nil, validationError("%s", err.Error())
	}

	partners, err := s.deps.Eligibility.FindEligible(ctx, service.ID, in.Pincode)
	if err != nil {
		return nil, err
	}
	if len(partners) == 0 {
		return nil, NewAppError(ErrNoProvidersAvailable, "NO_PROVIDERS_AVAILABLE", "No service providers are available for this service in your area")
	}

	txCtx, cancel := context.WithTimeout(ctx, s.settings.TxTimeout)
	defer cancel()

	var order models.Order
	var payment *PaymentInfo
	err = s.db.WithContext(txCtx).Transaction(func(tx *gorm.DB) error {
		var wallet models.Wallet
		if err := tx.Where("user_id = ?", user.ID).First(&wallet).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFoundError("WALLET_NOT_FOUND", "Wallet not found")
			}
			return err
		}

		walletAmount := decimal.Min(wallet.Balance, service.Price)
		if walletAmount.IsNegative() {
			walletAmount = decimal.Zero
		}
		remaining := service.Price.Sub(walletAmount)

		order = models.Order{
			ServiceID:       service.ID,
			UserID:          user.ID,
			Status:          models.OrderStatusPending,
			ServiceDate:     in.Date,
			ServiceTime:     in.Time,
			Address:         in.Address,
			Pincode:         in.Pincode,
			Remarks:         strings.TrimSpace(in.Remarks),
			Amount:          service.Price,
			WalletAmount:    walletAmount,
			RemainingAmount: remaining,
			Currency:        s.settings.Currency,
		}
		if err := tx.Create(&order).Error; err != nil {
			return err
		}

		if remaining.IsZero() {
			if walletAmount.IsPositive() {
				if _, err := s.deps.Wallets.Debit(txCtx, tx, wallet.ID, walletAmount, &order.ID, fmt.Sprintf("Payment for order #%d", order.ID)); err != nil {
					return err
				}
			}
			paidAt := s.now()
			mode := models.PaymentModeWallet
			if err := tx.Model(&order).Updates(map[string]interface{}{
				"status":       models.OrderStatusPaymentCompleted,
				"payment_mode": mode,
				"paid_at":      paidAt,
			}).Error; err != nil {
				return err
			}
			order.Status = models.OrderStatusPaymentCompleted
			order.PaymentMode = &mode
			order.PaidAt = &paidAt
		} else {
			minor, err := ToMinorUnits(remaining)
			if err != nil {
				return validationError("%s", err.Error())
			}
			gwOrder, err := s.deps.Gateway.CreateOrder(txCtx, minor, s.settings.Currency, fmt.Sprintf("order_%d", order.ID), map[string]string{
				"order_id": fmt.Sprintf("%d", order.ID),
				"user_id":  fmt.Sprintf("%d", user.ID),
			})
			if err != nil {
				if errors.Is(err, context.DeadlineExceeded) {
					return err
				}
				return gatewayError(err)
			}
			if err := tx.Model(&order).Update("razorpay_order_id", gwOrder.ID).Error; err != nil {
				return err
			}
			order.RazorpayOrderID = &gwOrder.ID
			payment = &PaymentInfo{
				RazorpayOrderID: gwOrder.ID,
				Amount:          minor,
				Currency:        s.settings.Currency,
				KeyID:           s.deps.Gateway.KeyID(),
			}
		}

		return tx.Model(&models.Service{}).
			Where("id = ?", service.ID).
			Update("number_of_orders", gorm.Expr("number_of_orders + ?", 1)).Error
	})
	if err != nil {
		logger.Log.Warn("Order creation failed", zap.Uint("user_id", user.ID), zap.Uint("service_id", service.ID), zap.Error(err))
		return nil, classifyDBError(err)
	}

	order.Service = &service
	result := &CreateOrderResult{
		Order:        &order,
		Payment:      payment,
		Notification: NotificationStatus{Recipients: len(partners)},
	}
	if s.deps.Notifier != nil {
		result.Notification.Queued = s.deps.Notifier.EnqueueNewOrder(order, partners)
	}

	logger.Log.Info("Order created",
		zap.Uint("order_id", order.ID),
		zap.String("status", order.Status),
		zap.String("amount", order.Amount.StringFixed(2)),
		zap.String("wallet_amount", order.WalletAmount.StringFixed(2)),
		zap.Int("eligible_partners", len(partners)),
	)
	return result, nil
}

// AcceptOrder assigns the order to the calling partner. Eligibility is
// re-checked here rather than trusted from the notification.
func (s *OrderService) AcceptOrder(ctx context.Context, p Principal, orderID uint) (*models.Order, error) {
	partner, err := s.resolvePartner(ctx, p)
	if err != nil {
		return nil, err
	}

	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.PartnerID != nil {
		return nil, ErrOrderAlreadyTaken
	}
	if !order.IsAwaitingAssignment() {
		return nil, invalidTransition(order.Status, models.OrderStatusAccepted)
	}

	eligible, err := s.deps.Eligibility.IsEligible(ctx, partner.ID, order.ServiceID, order.Pincode)
	if err != nil {
		return nil, err
	}
	if !eligible {
		return nil, forbiddenError("You are not eligible to accept this order")
	}

	now := s.now()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Order{}).
			Where("id = ? AND partner_id IS NULL AND status IN ?", order.ID, awaitingAssignmentStatuses).
			Updates(map[string]interface{}{
				"partner_id":  partner.ID,
				"status":      gorm.Expr("CASE WHEN status = ? THEN ? ELSE status END", models.OrderStatusPending, models.OrderStatusAccepted),
				"accepted_at": now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrOrderAlreadyTaken
		}
		return tx.Model(&models.Partner{}).Where("id = ?", partner.ID).Update("last_active_at", now).Error
	})
	if err != nil {
		if errors.Is(err, ErrOrderAlreadyTaken) {
			return nil, s.explainLostAccept(ctx, order.ID)
		}
		return nil, classifyDBError(err)
	}

	accepted, err := s.loadOrder(ctx, order.ID, "Service", "Partner", "User")
	if err != nil {
		return nil, err
	}
	if s.deps.Notifier != nil {
		s.deps.Notifier.EnqueueAcceptance(*accepted)
	}

	logger.Log.Info("Order accepted", zap.Uint("order_id", accepted.ID), zap.Uint("partner_id", partner.ID), zap.String("status", accepted.Status))
	return accepted, nil
}

// explainLostAccept tells a lost accept race apart from a vanished order
func (s *OrderService) explainLostAccept(ctx context.Context, orderID uint) error {
	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if order.PartnerID != nil {
		return ErrOrderAlreadyTaken
	}
	return invalidTransition(order.Status, models.OrderStatusAccepted)
}

// CancelOrder cancels an order that no partner has accepted yet.
// There is no cancellation once a partner is assigned.
func (s *OrderService) CancelOrder(ctx context.Context, p Principal, orderID uint) (*models.Order, error) {
	user, err := s.resolveUser(ctx, p)
	if err != nil {
		return nil, err
	}
	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != user.ID {
		return nil, forbiddenError("You can only cancel your own orders")
	}

	res := s.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND user_id = ? AND status = ? AND partner_id IS NULL", order.ID, user.ID, models.OrderStatusPending).
		Update("status", models.OrderStatusCancelled)
	if res.Error != nil {
		return nil, classifyDBError(res.Error)
	}
	if res.RowsAffected == 0 {
		current, err := s.loadOrder(ctx, order.ID)
		if err != nil {
			return nil, err
		}
		return nil, conflictError("ORDER_NOT_CANCELLABLE", fmt.Sprintf("Order in status %s can no longer be cancelled", current.Status))
	}

	logger.Log.Info("Order cancelled", zap.Uint("order_id", order.ID), zap.Uint("user_id", user.ID))
	return s.loadOrder(ctx, order.ID, "Service")
}

// UpdateStatus applies a partner-driven transition to an assigned order
func (s *OrderService) UpdateStatus(ctx context.Context, p Principal, orderID uint, target string) (*models.Order, error) {
	partner, err := s.resolvePartner(ctx, p)
	if err != nil {
		return nil, err
	}
	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.PartnerID == nil || *order.PartnerID != partner.ID {
		return nil, forbiddenError("Order is not assigned to you")
	}

	now := s.now()
	switch strings.ToUpper(strings.TrimSpace(target)) {
	case models.OrderStatusInProgress:
		err = s.transition(ctx, order.ID, partner.ID,
			[]string{models.OrderStatusAccepted, models.OrderStatusPaymentCompleted},
			map[string]interface{}{
				"status":     models.OrderStatusInProgress,
				"started_at": now,
			})

	case models.OrderStatusServiceCompleted, models.OrderStatusCompleted:
		err = s.transition(ctx, order.ID, partner.ID,
			[]string{models.OrderStatusInProgress},
			map[string]interface{}{
				"status": gorm.Expr("CASE WHEN "+models.SettledCondition+" THEN ? ELSE ? END",
					models.OrderStatusCompleted, models.OrderStatusServiceCompleted),
				"completed_at": now,
			})

	case models.OrderStatusPaymentRequested:
		err = s.transition(ctx, order.ID, partner.ID,
			[]string{models.OrderStatusServiceCompleted},
			map[string]interface{}{"status": models.OrderStatusPaymentRequested})

	case models.OrderStatusPaymentCompleted:
		// Cash collected at the door
		err = s.settle(ctx, order, []string{models.OrderStatusServiceCompleted, models.OrderStatusPaymentRequested}, models.PaymentModeCOD, nil)
		if errors.Is(err, errAlreadySettled) {
			current, loadErr := s.loadOrder(ctx, order.ID)
			if loadErr != nil {
				return nil, loadErr
			}
			if current.IsSettled() {
				return nil, conflictError("ALREADY_PAID", "Order has already been paid")
			}
			return nil, invalidTransition(current.Status, models.OrderStatusPaymentCompleted)
		}

	default:
		return nil, validationError("status %q is not a valid partner update", target)
	}
	if err != nil {
		return nil, err
	}

	updated, err := s.loadOrder(ctx, order.ID, "Service", "User")
	if err != nil {
		return nil, err
	}
	if updated.Status == models.OrderStatusPaymentRequested && s.deps.Notifier != nil {
		s.deps.Notifier.EnqueuePaymentRequested(*updated)
	}

	logger.Log.Info("Order status updated",
		zap.Uint("order_id", updated.ID),
		zap.String("from", order.Status),
		zap.String("to", updated.Status),
		zap.Uint("partner_id", partner.ID),
	)
	return updated, nil
}

// VerifyPaymentInput carries the fields the gateway checkout returns
type VerifyPaymentInput struct {
	OrderID           uint
	RazorpayOrderID   string
	RazorpayPaymentID string
	RazorpaySignature string
}

// VerifyPaymentResult is the outcome of a payment verification
type VerifyPaymentResult struct {
	Order            *models.Order
	AlreadyProcessed bool
}

// VerifyPayment settles an order after the customer paid the gateway leg.
// A bad signature leaves the order untouched. Verifying the same payment
// twice is a no-op the second time.
func (s *OrderService) VerifyPayment(ctx context.Context, p Principal, in VerifyPaymentInput) (*VerifyPaymentResult, error) {
	user, err := s.resolveUser(ctx, p)
	if err != nil {
		return nil, err
	}
	order, err := s.loadOrder(ctx, in.OrderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != user.ID {
		return nil, forbiddenError("You can only pay for your own orders")
	}

	if order.IsSettled() {
		return s.alreadySettled(ctx, order, in.RazorpayPaymentID)
	}
	if order.Status == models.OrderStatusCancelled {
		return nil, invalidTransition(order.Status, models.OrderStatusPaymentCompleted)
	}

	mode := models.PaymentModeWallet
	var paymentID *string
	if order.RemainingAmount.IsPositive() {
		if in.RazorpayPaymentID == "" || in.RazorpaySignature == "" {
			return nil, validationError("razorpay_payment_id and razorpay_signature are required")
		}
		if order.RazorpayOrderID == nil || *order.RazorpayOrderID != in.RazorpayOrderID {
			return nil, validationError("razorpay_order_id does not match this order")
		}
		if !s.deps.Gateway.VerifySignature(in.RazorpayOrderID, in.RazorpayPaymentID, in.RazorpaySignature) {
			logger.Log.Warn("Payment signature rejected", zap.Uint("order_id", order.ID), zap.String("payment_id", in.RazorpayPaymentID))
			return nil, NewAppError(ErrInvalidSignature, "INVALID_SIGNATURE", "Payment signature verification failed")
		}
		mode = models.PaymentModeOnline
		paymentID = &in.RazorpayPaymentID
	}

	err = s.settle(ctx, order, pendingPaymentStatuses, mode, paymentID)
	if errors.Is(err, errAlreadySettled) {
		current, loadErr := s.loadOrder(ctx, order.ID)
		if loadErr != nil {
			return nil, loadErr
		}
		return s.alreadySettled(ctx, current, in.RazorpayPaymentID)
	}
	if err != nil {
		return nil, err
	}

	verified, err := s.loadOrder(ctx, order.ID, "Service", "Partner")
	if err != nil {
		return nil, err
	}
	logger.Log.Info("Payment verified", zap.Uint("order_id", verified.ID), zap.String("status", verified.Status), zap.String("mode", mode))
	return &VerifyPaymentResult{Order: verified}, nil
}

func (s *OrderService) alreadySettled(ctx context.Context, order *models.Order, paymentID string) (*VerifyPaymentResult, error) {
	samePayment := order.RazorpayPaymentID != nil && *order.RazorpayPaymentID == paymentID
	walletOnly := order.RemainingAmount.IsZero()
	if !samePayment && !walletOnly {
		return nil, conflictError("ALREADY_PAID", "Order has already been paid")
	}
	current, err := s.loadOrder(ctx, order.ID, "Service", "Partner")
	if err != nil {
		return nil, err
	}
	return &VerifyPaymentResult{Order: current, AlreadyProcessed: true}, nil
}

// settle records payment for the order in one transaction: the status
// moves on, the payment fields are set and the wallet leg is debited if it
// has not been already. It returns errAlreadySettled when the order is no
// longer unpaid in one of the from statuses.
func (s *OrderService) settle(ctx context.Context, order *models.Order, from []string, mode string, paymentID *string) error {
	now := s.now()
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		updates := map[string]interface{}{
			"status": gorm.Expr("CASE WHEN status IN ? THEN ? WHEN status IN ? THEN ? ELSE status END",
				[]string{models.OrderStatusServiceCompleted, models.OrderStatusPaymentRequested}, models.OrderStatusCompleted,
				[]string{models.OrderStatusPending, models.OrderStatusAccepted}, models.OrderStatusPaymentCompleted),
			"paid_at":      now,
			"payment_mode": mode,
		}
		if paymentID != nil {
			updates["razorpay_payment_id"] = *paymentID
		}

		res := tx.Model(&models.Order{}).
			Where("id = ? AND paid_at IS NULL AND razorpay_payment_id IS NULL AND status IN ?", order.ID, from).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errAlreadySettled
		}

		if !order.WalletAmount.IsPositive() {
			return nil
		}
		debited, err := s.deps.Wallets.hasDebitForOrder(ctx, tx, order.ID)
		if err != nil {
			return err
		}
		if debited {
			return nil
		}
		var wallet models.Wallet
		if err := tx.Where("user_id = ?", order.UserID).First(&wallet).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFoundError("WALLET_NOT_FOUND", "Wallet not found")
			}
			return err
		}
		_, err = s.deps.Wallets.Debit(ctx, tx, wallet.ID, order.WalletAmount, &order.ID, fmt.Sprintf("Payment for order #%d", order.ID))
		return err
	})
	if errors.Is(err, errAlreadySettled) {
		return err
	}
	return classifyDBError(err)
}

// transition is a compare-and-swap on the order status for the assigned partner
func (s *OrderService) transition(ctx context.Context, orderID, partnerID uint, from []string, updates map[string]interface{}) error {
	res := s.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND partner_id = ? AND status IN ?", orderID, partnerID, from).
		Updates(updates)
	if res.Error != nil {
		return classifyDBError(res.Error)
	}
	if res.RowsAffected > 0 {
		return nil
	}

	current, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return err
	}
	target, _ := updates["status"].(string)
	return invalidTransition(current.Status, target)
}

// GetOrder returns an order visible to the caller: its customer, its
// assigned partner or an admin.
func (s *OrderService) GetOrder(ctx context.Context, p Principal, orderID uint) (*models.Order, error) {
	user, err := s.resolveUser(ctx, p)
	if err != nil {
		return nil, err
	}
	order, err := s.loadOrder(ctx, orderID, "Service", "Partner")
	if err != nil {
		return nil, err
	}

	switch {
	case user.Role == models.RoleAdmin:
	case order.UserID == user.ID:
	case user.Role == models.RolePartner && order.PartnerID != nil && order.Partner != nil && order.Partner.UserID == user.ID:
	default:
		return nil, forbiddenError("You do not have access to this order")
	}

	s.attachImageURL(ctx, order)
	return order, nil
}

// ListMyOrders returns the caller's orders, newest first
func (s *OrderService) ListMyOrders(ctx context.Context, p Principal) ([]models.Order, error) {
	user, err := s.resolveUser(ctx, p)
	if err != nil {
		return nil, err
	}

	var orders []models.Order
	err = s.db.WithContext(ctx).
		Preload("Service").
		Preload("Partner").
		Where("user_id = ?", user.ID).
		Order("created_at DESC, id DESC").
		Find(&orders).Error
	if err != nil {
		return nil, classifyDBError(err)
	}
	return orders, nil
}

// ListAssignedOrders returns the orders a partner has accepted, newest first
func (s *OrderService) ListAssignedOrders(ctx context.Context, p Principal) ([]models.Order, error) {
	partner, err := s.resolvePartner(ctx, p)
	if err != nil {
		return nil, err
	}

	var orders []models.Order
	err = s.db.WithContext(ctx).
		Preload("Service").
		Where("partner_id = ?", partner.ID).
		Order("created_at DESC, id DESC").
		Find(&orders).Error
	if err != nil {
		return nil, classifyDBError(err)
	}
	return orders, nil
}

// ListAvailableOrders returns unassigned orders the calling partner could accept
func (s *OrderService) ListAvailableOrders(ctx context.Context, p Principal) ([]models.Order, error) {
	partner, err := s.resolvePartner(ctx, p)
	if err != nil {
		return nil, err
	}
	if !partner.Approved || !partner.IsActive {
		return nil, forbiddenError("Partner account is not approved or not active")
	}

	var orders []models.Order
	err = s.db.WithContext(ctx).
		Preload("Service").
		Where("orders.partner_id IS NULL AND orders.status IN ?", awaitingAssignmentStatuses).
		Where("EXISTS (SELECT 1 FROM service_providers sp WHERE sp.partner_id = ? AND sp.service_id = orders.service_id AND sp.is_active = ?)", partner.ID, true).
		Where("EXISTS (SELECT 1 FROM partner_pincodes pp WHERE pp.partner_id = ? AND pp.pincode = orders.pincode AND pp.is_active = ?)", partner.ID, true).
		Order("orders.created_at ASC, orders.id ASC").
		Find(&orders).Error
	if err != nil {
		return nil, classifyDBError(err)
	}
	return orders, nil
}

// CreateReview records the customer's rating of a completed order
func (s *OrderService) CreateReview(ctx context.Context, p Principal, orderID uint, rating int, comment string) (*models.Review, error) {
	user, err := s.resolveUser(ctx, p)
	if err != nil {
		return nil, err
	}
	if rating < 1 || rating > 5 {
		return nil, validationError("rating must be between 1 and 5")
	}
	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != user.ID {
		return nil, forbiddenError("You can only review your own orders")
	}
	if order.Status != models.OrderStatusCompleted || order.PartnerID == nil {
		return nil, conflictError("ORDER_NOT_COMPLETED", "Only completed orders can be reviewed")
	}

	var existing int64
	if err := s.db.WithContext(ctx).Model(&models.Review{}).Where("order_id = ?", order.ID).Count(&existing).Error; err != nil {
		return nil, classifyDBError(err)
	}
	if existing > 0 {
		return nil, conflictError("ALREADY_REVIEWED", "Order has already been reviewed")
	}

	review := models.Review{
		OrderID:   order.ID,
		UserID:    user.ID,
		PartnerID: *order.PartnerID,
		Rating:    rating,
		Comment:   strings.TrimSpace(comment),
	}
	if err := s.db.WithContext(ctx).Create(&review).Error; err != nil {
		err = classifyDBError(err)
		if errors.Is(err, ErrConflict) {
			return nil, conflictError("ALREADY_REVIEWED", "Order has already been reviewed")
		}
		return nil, err
	}
	return &review, nil
}

func (s *OrderService) loadOrder(ctx context.Context, orderID uint, preloads ...string) (*models.Order, error) {
	q := s.db.WithContext(ctx)
	for _, assoc := range preloads {
		q = q.Preload(assoc)
	}
	var order models.Order
	if err := q.First(&order, orderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, classifyDBError(err)
	}
	return &order, nil
}

func (s *OrderService) resolveUser(ctx context.Context, p Principal) (*models.User, error) {
	if p.Auth0ID == "" {
		return nil, NewAppError(ErrUnauthorized, "UNAUTHORIZED", "Authentication required")
	}
	var user models.User
	if err := s.db.WithContext(ctx).Where("auth0_id = ?", p.Auth0ID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFoundError("USER_NOT_FOUND", "User not registered")
		}
		return nil, classifyDBError(err)
	}
	return &user, nil
}

func (s *OrderService) resolvePartner(ctx context.Context, p Principal) (*models.Partner, error) {
	user, err := s.resolveUser(ctx, p)
	if err != nil {
		return nil, err
	}
	if user.Role != models.RolePartner {
		return nil, forbiddenError("Only partners can perform this action")
	}
	var partner models.Partner
	if err := s.db.WithContext(ctx).Where("user_id = ?", user.ID).First(&partner).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFoundError("PARTNER_NOT_FOUND", "Partner profile not found")
		}
		return nil, classifyDBError(err)
	}
	partner.User = user
	return &partner, nil
}

func invalidTransition(from, to string) *AppError {
	if to == "" {
		return conflictError("INVALID_TRANSITION", fmt.Sprintf("Order in status %s cannot make this transition", from))
	}
	return conflictError("INVALID_TRANSITION", fmt.Sprintf("Order cannot move from %s to %s", from, to))
}
