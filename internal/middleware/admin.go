package middleware

import (
	"net/http" // HTTP status codes

	"umbra_payment/internal/utils" // Role names

	"github.com/gin-gonic/gin" // Gin web framework
)

// OperatorOnlyMiddleware restricts a route to tokens carrying the operator role.
// It is a no-op when no identity check runs in front of it.
func OperatorOnlyMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, exists := c.Get(UserIDKey); !exists {
			c.Next() // Identity check disabled
			return
		}
		// Check if user role is operator
		if c.GetString(RoleKey) != utils.RoleOperator {
			abort(c, http.StatusForbidden, "Forbidden", "Operator access required")
			return
		}
		c.Next()
	}
}
