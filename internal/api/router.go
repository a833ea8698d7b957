package api

import (
	"coin_portal/internal/ledger"     // Ledger service
	"coin_portal/internal/middleware" // Custom middleware
	"coin_portal/internal/stream"     // Change hub

	"github.com/gin-gonic/gin" // Gin web framework
)

// RegisterRoutes mounts every portal route on r
func RegisterRoutes(r gin.IRouter, svc *ledger.Service, hub *stream.Hub, jwtSecret string) {
	auth := middleware.JWTAuthMiddleware(jwtSecret)
	active := middleware.ActiveOnlyMiddleware(svc)

	// Auth routes
	r.POST("/user", RegisterHandler(svc))               // Registration endpoint
	r.GET("/user/login", LoginHandler(svc, jwtSecret))  // Login endpoint (query)
	r.POST("/user/login", LoginHandler(svc, jwtSecret)) // Login endpoint (JSON)

	// Account routes (reads stay open to suspended accounts)
	accountGroup := r.Group("/account", auth)
	accountGroup.GET("", GetAccountHandler(svc))                        // Account profile
	accountGroup.POST("/api-key", active, RegenerateAPIKeyHandler(svc)) // Rotate API key
	accountGroup.DELETE("", active, DeleteAccountHandler(svc))          // Self-service deletion

	// Wallet routes
	walletGroup := r.Group("/wallet", auth)
	walletGroup.GET("", GetWalletHandler(svc))                          // Balance
	walletGroup.POST("/transfer", active, TransferHandler(svc))         // Transfer endpoint
	walletGroup.GET("/transactions", GetTransactionHistoryHandler(svc)) // Transaction history endpoint

	// Notification routes
	notificationGroup := r.Group("/notifications", auth)
	notificationGroup.GET("", ListNotificationsHandler(svc))                 // Inbox
	notificationGroup.POST("/read-all", active, MarkAllReadHandler(svc))     // Mark everything read
	notificationGroup.POST("/:id/read", active, MarkReadHandler(svc))        // Mark one read
	notificationGroup.POST("/:id/claim", active, ClaimHandler(svc))          // Claim a reward
	notificationGroup.DELETE("/:id", active, DeleteNotificationHandler(svc)) // Delete one

	// Live change stream
	r.GET("/stream", auth, StreamHandler(svc, hub))

	// Admin routes (protected, admin only)
	adminGroup := r.Group("/admin", auth, middleware.AdminOnlyMiddleware(svc))
	adminGroup.GET("/users", ListUsersHandler(svc))                 // List users endpoint
	adminGroup.GET("/stats", StatsHandler(svc))                     // Overview totals
	adminGroup.GET("/transactions", ListTransactionsHandler(svc))   // List transactions endpoint
	adminGroup.POST("/users/:id/status", SetStatusHandler(svc))     // Suspend or reactivate
	adminGroup.POST("/users/:id/adjust", AdjustHandler(svc))        // Credit or deduct coins
	adminGroup.DELETE("/users/:id", DeleteUserHandler(svc))         // Delete an account
	adminGroup.POST("/notifications", SendNotificationHandler(svc)) // Single or broadcast
	adminGroup.GET("/settings", GetSettingsHandler(svc))            // Business settings
	adminGroup.PUT("/settings", UpdateSettingsHandler(svc))         // Update business settings

	// Billing gateway for third-party API calls
	r.POST("/gateway/calls/:endpoint", middleware.APIKeyMiddleware(), GatewayCallHandler(svc))
}
