package api

import (
	"coin_portal/internal/domain" // Importing domain models
	"coin_portal/internal/ledger" // Ledger service
	"net/http"                    // HTTP status codes
	"time"                        // Date filters

	"github.com/gin-gonic/gin" // Gin web framework
)

// ListUsersHandler returns one page of accounts
func ListUsersHandler(svc *ledger.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var page ledger.Page
		if err := c.ShouldBindQuery(&page); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid pagination"})
			return
		}
		res, err := svc.ListAccounts(c.Request.Context(), page)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, res)
	}
}

// StatsHandler returns the account totals of the admin overview
func StatsHandler(svc *ledger.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats, err := svc.Stats(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, stats)
	}
}

// parseTimeParam accepts RFC3339 timestamps and plain dates
func parseTimeParam(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return time.Parse(time.DateOnly, raw)
}

// ListTransactionsHandler returns all transactions, with optional filtering by account, type or date
func ListTransactionsHandler(svc *ledger.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var page ledger.Page
		if err := c.ShouldBindQuery(&page); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid pagination"})
			return
		}
		from, err := parseTimeParam(c.Query("from"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid from date"})
			return
		}
		to, err := parseTimeParam(c.Query("to"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid to date"})
			return
		}
		res, err := svc.ListAllTransactions(c.Request.Context(), ledger.TransactionFilter{
			AccountID: c.Query("account_id"),
			Type:      domain.TransactionType(c.Query("type")),
			From:      from,
			To:        to,
			Page:      page,
		})
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, res)
	}
}

// SetStatusRequest activates or suspends an account
type SetStatusRequest struct {
	Status domain.AccountStatus `json:"status" binding:"required"` // active or suspended
}

// SetStatusHandler changes the status of an account
func SetStatusHandler(svc *ledger.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req SetStatusRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		acc, err := svc.SetStatus(c.Request.Context(), accountID(c), c.Param("id"), req.Status)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"account": acc})
	}
}

// AdjustRequest adds or removes coins on an account
type AdjustRequest struct {
	Amount    int64            `json:"amount" binding:"required,gt=0"` // Coins
	Direction ledger.Direction `json:"direction" binding:"required"`   // credit or deduct
	Reason    string           `json:"reason"`                         // Shown to the user
}

// AdjustHandler deducts coins immediately or sends them as a claimable reward
func AdjustHandler(svc *ledger.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req AdjustRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		res, err := svc.AdminAdjust(c.Request.Context(), accountID(c), c.Param("id"), req.Amount, req.Direction, req.Reason)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, res)
	}
}

// DeleteUserHandler deletes an account with its history
func DeleteUserHandler(svc *ledger.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := svc.DeleteAccount(c.Request.Context(), accountID(c), c.Param("id")); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Account deleted"})
	}
}

// SendNotificationRequest targets one account or, with broadcast set, every account
type SendNotificationRequest struct {
	AccountID string `json:"account_id"` // Recipient, ignored for broadcasts
	Broadcast bool   `json:"broadcast"`  // Send to every current account
	ledger.NotificationInput
}

// SendNotificationHandler delivers or broadcasts a notification
func SendNotificationHandler(svc *ledger.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req SendNotificationRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		ctx := c.Request.Context()
		if req.Broadcast {
			res, err := svc.Broadcast(ctx, accountID(c), req.NotificationInput)
			if err != nil {
				respondError(c, err)
				return
			}
			c.JSON(http.StatusCreated, res)
			return
		}
		if req.AccountID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "account_id is required unless broadcast is set"})
			return
		}
		n, err := svc.Deliver(ctx, accountID(c), req.AccountID, req.NotificationInput)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"notification": n})
	}
}

// GetSettingsHandler returns the live business settings
func GetSettingsHandler(svc *ledger.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, svc.Settings().Current())
	}
}

// UpdateSettingsHandler changes the business settings
func UpdateSettingsHandler(svc *ledger.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var patch ledger.SettingsPatch
		if err := c.ShouldBindJSON(&patch); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		updated, err := svc.UpdateSettings(c.Request.Context(), accountID(c), patch)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, updated)
	}
}
