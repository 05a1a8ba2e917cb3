package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order statuses
const (
	OrderStatusPending          = "PENDING"
	OrderStatusAccepted         = "ACCEPTED"
	OrderStatusInProgress       = "IN_PROGRESS"
	OrderStatusServiceCompleted = "SERVICE_COMPLETED"
	OrderStatusPaymentRequested = "PAYMENT_REQUESTED"
	OrderStatusPaymentCompleted = "PAYMENT_COMPLETED"
	OrderStatusCompleted        = "COMPLETED"
	OrderStatusCancelled        = "CANCELLED"
)

// Payment modes
const (
	PaymentModeWallet = "WALLET"
	PaymentModeOnline = "ONLINE"
	PaymentModeCOD    = "COD"
)

// Order is a customer's booking of a service. Orders are never deleted;
// they end in COMPLETED or CANCELLED.
type Order struct {
	ID                   uint            `gorm:"primaryKey" json:"id"`
	ServiceID            uint            `gorm:"not null;index" json:"service_id"`
	Service              *Service        `gorm:"foreignKey:ServiceID" json:"service,omitempty"`
	UserID               uint            `gorm:"not null;index" json:"user_id"`
	User                 *User           `gorm:"foreignKey:UserID" json:"-"`
	PartnerID            *uint           `gorm:"index" json:"partner_id"` // nil until a partner accepts
	Partner              *Partner        `gorm:"foreignKey:PartnerID" json:"partner,omitempty"`
	Status               string          `gorm:"not null;index" json:"status"`
	ServiceDate          string          `gorm:"column:service_date;size:10;not null" json:"date"` // YYYY-MM-DD
	ServiceTime          string          `gorm:"column:service_time;size:5;not null" json:"time"`  // HH:MM
	Address              string          `gorm:"not null" json:"address"`
	Pincode              string          `gorm:"size:6;not null;index" json:"pincode"`
	Remarks              string          `json:"remarks"`
	Amount               decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"amount"`
	WalletAmount         decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"wallet_amount"`
	RemainingAmount      decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"remaining_amount"`
	Currency             string          `gorm:"size:3;not null" json:"currency"`
	RazorpayOrderID      *string         `gorm:"index" json:"razorpay_order_id"`
	RazorpayPaymentID    *string         `gorm:"uniqueIndex" json:"razorpay_payment_id"`
	PaymentMode          *string         `json:"payment_mode"`
	CompletionImageS3Key *string         `json:"-"`
	CompletionImageURL   *string         `gorm:"-" json:"completion_image_url,omitempty"` // computed, presigned
	AcceptedAt           *time.Time      `json:"accepted_at"`
	StartedAt            *time.Time      `json:"started_at"`
	CompletedAt          *time.Time      `json:"completed_at"`
	PaidAt               *time.Time      `json:"paid_at"`
	CreatedAt            time.Time       `json:"created_at"`
	UpdatedAt            time.Time       `json:"updated_at"`
}

// TableName specifies the table name for the Order model
func (Order) TableName() string {
	return "orders"
}

// SettledCondition is IsSettled expressed as SQL over the orders table.
// Conditional updates use it so the decision is taken atomically with the
// write; the two forms must stay in agreement.
const SettledCondition = "(paid_at IS NOT NULL OR razorpay_payment_id IS NOT NULL OR (payment_mode = 'WALLET' AND remaining_amount = 0))"

// IsSettled reports whether the full amount has been accounted for.
// This is the only place the "is it paid" question is answered.
func (o *Order) IsSettled() bool {
	if o.PaidAt != nil || o.RazorpayPaymentID != nil {
		return true
	}
	return o.RemainingAmount.IsZero() && o.PaymentMode != nil && *o.PaymentMode == PaymentModeWallet
}

// AmountsBalanced checks amount == wallet_amount + remaining_amount
func (o *Order) AmountsBalanced() bool {
	return o.Amount.Equal(o.WalletAmount.Add(o.RemainingAmount))
}

// IsTerminal reports whether no further transitions are possible
func (o *Order) IsTerminal() bool {
	return o.Status == OrderStatusCompleted || o.Status == OrderStatusCancelled
}

// IsAwaitingAssignment reports whether the order is still looking for a partner
func (o *Order) IsAwaitingAssignment() bool {
	return o.PartnerID == nil &&
		(o.Status == OrderStatusPending || o.Status == OrderStatusPaymentCompleted)
}
