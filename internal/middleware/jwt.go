package middleware

import (
	"coin_portal/internal/utils" // JWT utility functions
	"net/http"                   // HTTP status codes
	"strings"                    // String manipulation

	"github.com/gin-gonic/gin" // Gin web framework
)

// Context keys set by the middlewares
const (
	AccountIDKey = "accountID" // Authenticated account ID (string)
	AccountKey   = "account"   // Loaded *domain.Account
	APIKeyKey    = "apiKey"    // Gateway API key (string)
)

// JWTAuthMiddleware validates JWT tokens and extracts the account ID
func JWTAuthMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization") // Get Authorization header
		tokenStr := strings.TrimPrefix(authHeader, "Bearer ")
		if authHeader == "" {
			tokenStr = c.Query("access_token") // Browsers cannot set headers on websocket upgrades
		}
		// Check if a bearer token was supplied
		if tokenStr == "" || (authHeader != "" && !strings.HasPrefix(authHeader, "Bearer ")) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Missing or invalid Authorization header"})
			return
		}
		claims, err := utils.ParseJWT(tokenStr, secret) // Parse the JWT token
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}
		c.Set(AccountIDKey, claims.AccountID) // Store accountID in context
		c.Next()                              // Proceed to the next handler
	}
}

// APIKeyMiddleware requires a well-formed X-API-Key header. The key itself is resolved by the
// usage charge, so a revoked key fails there.
func APIKeyMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := strings.TrimSpace(c.GetHeader("X-API-Key"))
		if !utils.IsAPIKey(key) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Missing or invalid API key"})
			return
		}
		c.Set(APIKeyKey, key)
		c.Next()
	}
}
