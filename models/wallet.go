package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Ledger entry types. Everything except DEBIT adds to the balance.
const (
	TransactionCredit        = "CREDIT"
	TransactionDebit         = "DEBIT"
	TransactionReferralBonus = "REFERRAL_BONUS"
	TransactionSignupBonus   = "SIGNUP_BONUS"
)

// Wallet holds a user's prepaid balance in major currency units
type Wallet struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	UserID    uint            `gorm:"uniqueIndex;not null" json:"user_id"`
	Balance   decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"balance"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// TableName specifies the table name for the Wallet model
func (Wallet) TableName() string {
	return "wallets"
}

// Transaction is an append-only ledger row against a wallet
type Transaction struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	WalletID    uint            `gorm:"not null;index" json:"wallet_id"`
	UserID      uint            `gorm:"not null;index" json:"user_id"`
	Amount      decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"amount"`
	Type        string          `gorm:"not null" json:"type"`
	Description string          `json:"description"`
	OrderID     *uint           `gorm:"index" json:"order_id,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// TableName specifies the table name for the Transaction model
func (Transaction) TableName() string {
	return "transactions"
}

// Signed returns the amount with the sign it contributes to the balance
func (t Transaction) Signed() decimal.Decimal {
	if t.Type == TransactionDebit {
		return t.Amount.Neg()
	}
	return t.Amount
}
