package models

import (
	"time"

	"gorm.io/datatypes"
)

// Notification kinds
const (
	NotificationNewOrder          = "NEW_ORDER"
	NotificationOrderAccepted     = "ORDER_ACCEPTED"
	NotificationThresholdExceeded = "THRESHOLD_EXCEEDED"
	NotificationPaymentRequested  = "PAYMENT_REQUESTED"
)

// NotificationDelivery records a single send attempt to a single recipient
type NotificationDelivery struct {
	ID        uint              `gorm:"primaryKey" json:"id"`
	OrderID   uint              `gorm:"not null;index:idx_deliveries_order_kind" json:"order_id"`
	Kind      string            `gorm:"not null;index:idx_deliveries_order_kind" json:"kind"`
	Template  string            `gorm:"not null" json:"template"`
	Recipient string            `gorm:"not null" json:"recipient"`
	Payload   datatypes.JSONMap `json:"payload"`
	Success   bool              `gorm:"not null" json:"success"`
	Error     string            `json:"error,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// TableName specifies the table name for the NotificationDelivery model
func (NotificationDelivery) TableName() string {
	return "notification_deliveries"
}
