package api

import (
	"coin_portal/internal/domain"     // Sentinel errors
	"coin_portal/internal/ledger"     // Ledger service
	"coin_portal/internal/middleware" // Context keys
	"errors"                          // Error inspection
	"net/http"                        // HTTP status codes

	"github.com/gin-gonic/gin" // Gin web framework
)

// GatewayCallHandler bills one call of :endpoint to the API key owner before it is forwarded.
// Forwarding to the third-party provider happens outside this service.
func GatewayCallHandler(svc *ledger.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		endpoint := c.Param("endpoint")
		charge, err := svc.ChargeUsage(c.Request.Context(), c.GetString(middleware.APIKeyKey), endpoint)
		switch {
		case errors.Is(err, domain.ErrInsufficientBalance):
			c.JSON(http.StatusPaymentRequired, gin.H{"error": "Insufficient balance"})
			return
		case errors.Is(err, domain.ErrUnauthorized):
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid API key"})
			return
		case err != nil:
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"endpoint":    endpoint,                  // Billed endpoint
			"charged":     charge.Cost,               // Coins debited
			"balance":     charge.Account.Balance,    // Remaining balance
			"total_calls": charge.Account.TotalCalls, // Calls served so far
		})
	}
}
