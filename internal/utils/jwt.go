package utils

import (
	"errors" // Error construction
	"time"   // Time for token expiration

	"github.com/golang-jwt/jwt/v5" // JWT library
)

// RoleOperator marks tokens allowed to act on any wallet
const RoleOperator = "operator"

// ErrEmptySubject is returned for tokens that name no user
var ErrEmptySubject = errors.New("token carries no user id")

// JWT Claims
type Claims struct {
	UserID               string `json:"user_id"`        // Wallet owner the token speaks for
	Role                 string `json:"role,omitempty"` // Optional role, e.g. operator
	jwt.RegisteredClaims        // Standard JWT claims
}

// GenerateJWT creates a token for userID valid for ttl. It is used by tests
// and tooling; tokens are normally issued by the identity service.
func GenerateJWT(userID, role, secret string, ttl time.Duration) (string, error) {
	now := time.Now()
	// Set token claims
	claims := Claims{
		UserID: userID, // Custom claim for user ID
		Role:   role,   // Custom claim for role
		// Standard claims
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,                           // Same as user_id
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)), // Token expiry
			IssuedAt:  jwt.NewNumericDate(now),          // Issued at current time
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims) // Create token with claims
	return token.SignedString([]byte(secret))                  // Sign the token with the secret
}

// ParseJWT parses and validates a JWT token string
func ParseJWT(tokenStr, secret string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (any, error) {
		return []byte(secret), nil // Return the secret key for validation
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	// Check for parsing errors
	if err != nil {
		return nil, err // Return error if parsing fails
	}
	// Validate token and extract claims
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, jwt.ErrSignatureInvalid // Invalid token
	}
	if claims.UserID == "" {
		claims.UserID = claims.Subject // Fall back to the standard subject
	}
	if claims.UserID == "" {
		return nil, ErrEmptySubject
	}
	return claims, nil
}
