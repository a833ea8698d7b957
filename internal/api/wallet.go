package api

import (
	"coin_portal/internal/domain" // Domain models
	"coin_portal/internal/ledger" // Ledger service
	"net/http"                    // HTTP status codes

	"github.com/gin-gonic/gin" // Gin web framework
)

// TransferRequest represents a transfer request
type TransferRequest struct {
	ToEmail string `json:"to_email" binding:"required"`    // Recipient email
	Amount  int64  `json:"amount" binding:"required,gt=0"` // Coins to move
}

// walletView is the balance summary of an account
type walletView struct {
	Balance    int64                `json:"balance"`
	TotalCalls int64                `json:"total_calls"`
	Status     domain.AccountStatus `json:"status"`
	Revision   int64                `json:"revision"`
}

// GetWalletHandler returns the coin balance of the authenticated account
func GetWalletHandler(svc *ledger.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		acc, err := svc.GetAccount(c.Request.Context(), accountID(c))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"wallet": walletView{
			Balance:    acc.Balance,
			TotalCalls: acc.TotalCalls,
			Status:     acc.Status,
			Revision:   acc.Revision,
		}})
	}
}

// TransferHandler moves coins to another account identified by email
func TransferHandler(svc *ledger.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req TransferRequest // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		res, err := svc.Transfer(c.Request.Context(), accountID(c), req.ToEmail, req.Amount)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Transfer successful", "transfer": res})
	}
}

// GetTransactionHistoryHandler returns the transactions of the authenticated account, newest first
func GetTransactionHistoryHandler(svc *ledger.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var page ledger.Page
		if err := c.ShouldBindQuery(&page); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid pagination"})
			return
		}
		page = page.Normalize()
		txs, err := svc.ListTransactions(c.Request.Context(), accountID(c), page)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"transactions": txs,         // Page of transactions
			"page":         page.Number, // Current page
			"page_size":    page.Size,   // Page size
		})
	}
}
