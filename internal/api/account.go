package api

import (
	"coin_portal/internal/ledger"     // Ledger service
	"coin_portal/internal/middleware" // Context keys
	"net/http"                        // HTTP status codes

	"github.com/gin-gonic/gin"   // Gin web framework
	"golang.org/x/crypto/bcrypt" // Password re-authentication
)

// DeleteAccountRequest re-authenticates a self-service deletion
type DeleteAccountRequest struct {
	Password string `json:"password" binding:"required"` // Current password
}

// accountID returns the authenticated account ID set by JWTAuthMiddleware
func accountID(c *gin.Context) string {
	return c.GetString(middleware.AccountIDKey)
}

// GetAccountHandler returns the authenticated account with its unread notification count
func GetAccountHandler(svc *ledger.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		acc, err := svc.GetAccount(ctx, accountID(c))
		if err != nil {
			respondError(c, err)
			return
		}
		unread, err := svc.UnreadCount(ctx, acc.ID)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"account": acc, "unread_notifications": unread})
	}
}

// RegenerateAPIKeyHandler replaces the API key of the authenticated account
func RegenerateAPIKeyHandler(svc *ledger.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := accountID(c)
		key, err := svc.RegenerateAPIKey(c.Request.Context(), id, id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"api_key": key})
	}
}

// DeleteAccountHandler deletes the authenticated account after checking its password
func DeleteAccountHandler(svc *ledger.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req DeleteAccountRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Password is required"})
			return
		}
		ctx := c.Request.Context()
		acc, err := svc.FindAccountByID(ctx, accountID(c)) // Cached copies carry no password hash
		if err != nil {
			respondError(c, err)
			return
		}
		if err := bcrypt.CompareHashAndPassword([]byte(acc.Password), []byte(req.Password)); err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
			return
		}
		if err := svc.DeleteAccount(ctx, acc.ID, acc.ID); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Account deleted"})
	}
}
