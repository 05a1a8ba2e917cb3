package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/kendall-kelly/home-services-api/logger"
	"github.com/kendall-kelly/home-services-api/models"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// WalletService is the only code path that writes wallet balances
type WalletService struct {
	db *gorm.DB
}

// NewWalletService creates a wallet service backed by db
func NewWalletService(db *gorm.DB) *WalletService {
	return &WalletService{db: db}
}

// Debit removes amount from the wallet and appends a DEBIT ledger row.
// tx must be the transaction handle of the order mutation the debit backs;
// the caller commits or rolls back both together.
func (s *WalletService) Debit(ctx context.Context, tx *gorm.DB, walletID uint, amount decimal.Decimal, orderID *uint, description string) (*models.Wallet, error) {
	if !amount.IsPositive() {
		return nil, validationError("debit amount must be positive, got %s", amount)
	}
	tx = tx.WithContext(ctx)

	var wallet models.Wallet
	if err := tx.First(&wallet, walletID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFoundError("WALLET_NOT_FOUND", "Wallet not found")
		}
		return nil, classifyDBError(err)
	}

	if wallet.Balance.LessThan(amount) {
		return nil, insufficientBalanceError()
	}

	// The balance guard in the WHERE clause closes the window between the
	// pre-check above and a concurrent debit of the same wallet.
	result := tx.Model(&models.Wallet{}).
		Where("id = ? AND balance >= ?", walletID, amount).
		Update("balance", gorm.Expr("balance - ?", amount))
	if result.Error != nil {
		return nil, classifyDBError(result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, insufficientBalanceError()
	}

	entry := models.Transaction{
		WalletID:    wallet.ID,
		UserID:      wallet.UserID,
		Amount:      amount,
		Type:        models.TransactionDebit,
		Description: description,
		OrderID:     orderID,
	}
	if err := tx.Create(&entry).Error; err != nil {
		return nil, classifyDBError(err)
	}

	if err := tx.First(&wallet, walletID).Error; err != nil {
		return nil, classifyDBError(err)
	}

	logger.Log.Info("Wallet debited",
		zap.Uint("wallet_id", wallet.ID),
		zap.String("amount", amount.StringFixed(2)),
		zap.String("balance", wallet.Balance.StringFixed(2)),
	)
	return &wallet, nil
}

// hasDebitForOrder reports whether the order's wallet leg was already taken
func (s *WalletService) hasDebitForOrder(ctx context.Context, tx *gorm.DB, orderID uint) (bool, error) {
	var count int64
	err := tx.WithContext(ctx).Model(&models.Transaction{}).
		Where("order_id = ? AND type = ?", orderID, models.TransactionDebit).
		Count(&count).Error
	if err != nil {
		return false, classifyDBError(err)
	}
	return count > 0, nil
}

// openWallet creates the user's wallet with an optional signup bonus.
// Registration is the only caller.
func (s *WalletService) openWallet(ctx context.Context, tx *gorm.DB, userID uint, signupBonus decimal.Decimal) (*models.Wallet, error) {
	wallet := models.Wallet{UserID: userID, Balance: decimal.Zero}
	if err := tx.WithContext(ctx).Create(&wallet).Error; err != nil {
		return nil, classifyDBError(err)
	}

	if signupBonus.IsPositive() {
		if err := s.credit(ctx, tx, &wallet, signupBonus, models.TransactionSignupBonus, "Signup bonus"); err != nil {
			return nil, err
		}
	}
	return &wallet, nil
}

// credit adds a bonus to the wallet. Not reachable from the order flow.
func (s *WalletService) credit(ctx context.Context, tx *gorm.DB, wallet *models.Wallet, amount decimal.Decimal, txType, description string) error {
	if txType == models.TransactionDebit {
		return fmt.Errorf("credit called with debit type")
	}
	tx = tx.WithContext(ctx)

	result := tx.Model(&models.Wallet{}).
		Where("id = ?", wallet.ID).
		Update("balance", gorm.Expr("balance + ?", amount))
	if result.Error != nil {
		return classifyDBError(result.Error)
	}

	entry := models.Transaction{
		WalletID:    wallet.ID,
		UserID:      wallet.UserID,
		Amount:      amount,
		Type:        txType,
		Description: description,
	}
	if err := tx.Create(&entry).Error; err != nil {
		return classifyDBError(err)
	}

	if err := tx.First(wallet, wallet.ID).Error; err != nil {
		return classifyDBError(err)
	}
	return nil
}

// GetWalletByUserID returns the wallet owned by the user
func (s *WalletService) GetWalletByUserID(ctx context.Context, userID uint) (*models.Wallet, error) {
	var wallet models.Wallet
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&wallet).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFoundError("WALLET_NOT_FOUND", "Wallet not found")
		}
		return nil, classifyDBError(err)
	}
	return &wallet, nil
}

// ListTransactions returns the wallet's ledger, newest first
func (s *WalletService) ListTransactions(ctx context.Context, walletID uint) ([]models.Transaction, error) {
	var entries []models.Transaction
	err := s.db.WithContext(ctx).
		Where("wallet_id = ?", walletID).
		Order("created_at DESC, id DESC").
		Find(&entries).Error
	if err != nil {
		return nil, classifyDBError(err)
	}
	return entries, nil
}

// Reconcile returns the signed sum of the ledger alongside the stored
// balance. The two are equal for a consistent wallet.
func (s *WalletService) Reconcile(ctx context.Context, walletID uint) (ledger decimal.Decimal, balance decimal.Decimal, err error) {
	var wallet models.Wallet
	if err := s.db.WithContext(ctx).First(&wallet, walletID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return decimal.Zero, decimal.Zero, notFoundError("WALLET_NOT_FOUND", "Wallet not found")
		}
		return decimal.Zero, decimal.Zero, classifyDBError(err)
	}

	entries, err := s.ListTransactions(ctx, walletID)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}

	ledger = decimal.Zero
	for _, entry := range entries {
		ledger = ledger.Add(entry.Signed())
	}
	return ledger, wallet.Balance, nil
}
