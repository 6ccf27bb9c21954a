package middleware

import (
	"net/http" // HTTP status codes
	"strings"  // String manipulation

	"umbra_payment/internal/utils" // JWT utility functions

	"github.com/gin-gonic/gin" // Gin web framework
)

// Context keys set by JWTAuthMiddleware
const (
	UserIDKey = "userID"
	RoleKey   = "role"
)

// abort ends the request with the standard failure envelope
func abort(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, utils.ErrorResponse(code, message, nil))
}

// JWTAuthMiddleware validates bearer tokens and stores the caller in the context
func JWTAuthMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization") // Get Authorization header
		// Check if the Authorization header is present and properly formatted
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			abort(c, http.StatusUnauthorized, "Unauthorized", "Missing or invalid Authorization header")
			return
		}
		tokenStr := strings.TrimPrefix(authHeader, "Bearer ") // Extract the token string
		claims, err := utils.ParseJWT(tokenStr, secret)       // Parse the JWT token
		if err != nil {
			abort(c, http.StatusUnauthorized, "Unauthorized", "Invalid or expired token")
			return
		}
		c.Set(UserIDKey, claims.UserID) // Store userID in context
		c.Set(RoleKey, claims.Role)     // Store role in context
		c.Next()                        // Proceed to the next handler
	}
}

// WalletOwnerMiddleware only lets a caller act on the wallet named by the
// route parameter param, unless the caller is an operator
func WalletOwnerMiddleware(param string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !CanActFor(c, c.Param(param)) {
			abort(c, http.StatusForbidden, "Forbidden", "Token does not grant access to this wallet")
			return
		}
		c.Next()
	}
}

// CanActFor reports whether the authenticated caller may act on userID.
// Without authentication configured every caller may.
func CanActFor(c *gin.Context, userID string) bool {
	caller, exists := c.Get(UserIDKey)
	if !exists {
		return true // Identity check disabled
	}
	if c.GetString(RoleKey) == utils.RoleOperator {
		return true
	}
	return caller == userID
}
