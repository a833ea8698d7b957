package api

import (
	"coin_portal/internal/ledger" // Ledger service
	"coin_portal/internal/utils"  // Utility functions
	"net/http"                    // HTTP status codes

	"github.com/gin-gonic/gin"   // Gin web framework
	"golang.org/x/crypto/bcrypt" // Password hashing
)

// RegisterRequest is the signup payload
type RegisterRequest struct {
	Email        string `json:"email" binding:"required"`    // Login email
	Password     string `json:"password" binding:"required"` // Plain password, hashed before storage
	DisplayName  string `json:"display_name"`                // Optional display name
	ReferralCode string `json:"referral_code"`               // Optional referral code of another account
}

// LoginRequest is the login payload
type LoginRequest struct {
	Email    string `json:"email" form:"email" binding:"required"`       // Login email
	Password string `json:"password" form:"password" binding:"required"` // Plain password
}

// AuthResponse carries the issued JWT
type AuthResponse struct {
	Token string `json:"token"` // JWT token
}

// isValidPassword checks the password length. bcrypt ignores bytes past 72.
func isValidPassword(password string) bool {
	return len(password) >= 8 && len(password) <= 72
}

// RegisterHandler creates an account funded with the welcome bonus
func RegisterHandler(svc *ledger.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req RegisterRequest // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		// Validate password length
		if !isValidPassword(req.Password) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Password must be 8-72 characters"})
			return
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to hash password"})
			return
		}
		acc, err := svc.CreateAccount(c.Request.Context(), ledger.NewAccount{
			Email:        req.Email,
			DisplayName:  req.DisplayName,
			PasswordHash: string(hash),
			ReferralCode: req.ReferralCode,
		})
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"message": "Account registered successfully", "account": acc})
	}
}

// LoginHandler authenticates an account and returns a JWT token. Suspended accounts may still
// log in to read their notifications; mutations are refused downstream.
func LoginHandler(svc *ledger.Service, jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req LoginRequest // Bind JSON body or query to struct
		if err := c.ShouldBind(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		acc, err := svc.FindAccountByEmail(c.Request.Context(), req.Email)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
			return
		}
		// Compare provided password with stored hash
		if err := bcrypt.CompareHashAndPassword([]byte(acc.Password), []byte(req.Password)); err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
			return
		}
		token, err := utils.GenerateJWT(acc.ID, jwtSecret) // Generate JWT token
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
			return
		}
		c.JSON(http.StatusOK, AuthResponse{Token: token})
	}
}
