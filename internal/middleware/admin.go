package middleware

import (
	"coin_portal/internal/domain" // Importing domain models
	"context"                     // Request context
	"errors"                      // Error inspection
	"net/http"                    // HTTP status codes

	"github.com/gin-gonic/gin"   // Gin web framework
	"github.com/sirupsen/logrus" // Logging library
)

// AccountFinder loads accounts by ID straight from the database. Guards never trust the cache
// for role and status.
type AccountFinder interface {
	FindAccountByID(ctx context.Context, id string) (*domain.Account, error)
}

// loadAccount resolves the authenticated account or aborts the request
func loadAccount(c *gin.Context, accounts AccountFinder) (*domain.Account, bool) {
	accountID := c.GetString(AccountIDKey) // Set by JWTAuthMiddleware
	if accountID == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return nil, false
	}
	acc, err := accounts.FindAccountByID(c.Request.Context(), accountID)
	if errors.Is(err, domain.ErrNotFound) {
		// Token outlived its account
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return nil, false
	}
	if err != nil {
		logrus.WithFields(logrus.Fields{"account_id": accountID, "error": err.Error()}).Error("Failed to load account")
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to load account"})
		return nil, false
	}
	c.Set(AccountKey, acc)
	return acc, true
}

// ActiveOnlyMiddleware rejects suspended accounts
func ActiveOnlyMiddleware(accounts AccountFinder) gin.HandlerFunc {
	return func(c *gin.Context) {
		acc, ok := loadAccount(c, accounts)
		if !ok {
			return
		}
		if !acc.IsActive() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Account suspended"})
			return
		}
		c.Next()
	}
}

// AdminOnlyMiddleware checks the account role on each request
func AdminOnlyMiddleware(accounts AccountFinder) gin.HandlerFunc {
	return func(c *gin.Context) {
		acc, ok := loadAccount(c, accounts)
		if !ok {
			return
		}
		// Suspended admins lose the panel too
		if !acc.IsAdmin() || !acc.IsActive() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Admin access required"})
			return
		}
		c.Next()
	}
}
