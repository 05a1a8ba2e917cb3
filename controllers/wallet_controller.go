package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/home-services-api/services"
)

// WalletController exposes the caller's wallet
type WalletController struct {
	users   *services.UserService
	wallets *services.WalletService
}

// NewWalletController creates a wallet controller
func NewWalletController(users *services.UserService, wallets *services.WalletService) *WalletController {
	return &WalletController{users: users, wallets: wallets}
}

// GetMyWallet handles GET /api/v1/wallet - balance plus ledger, newest first
func (ctl *WalletController) GetMyWallet(c *gin.Context) {
	principal, ok := principalOrAbort(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	user, err := ctl.users.GetProfile(ctx, principal)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	wallet, err := ctl.wallets.GetWalletByUserID(ctx, user.ID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	entries, err := ctl.wallets.ListTransactions(ctx, wallet.ID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	respondWithMeta(c, http.StatusOK, gin.H{
		"wallet":       wallet,
		"transactions": entries,
	}, gin.H{"count": len(entries)})
}
