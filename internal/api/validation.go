package api

import (
	"errors"   // Error inspection
	"fmt"      // Message formatting
	"net/http" // HTTP status codes
	"strings"

	"umbra_payment/internal/domain" // Domain error kinds

	"github.com/gin-gonic/gin"               // Gin web framework
	"github.com/go-playground/validator/v10" // Struct validation
)

var validate = validator.New()

// IdempotencyHeader may carry the idempotency key instead of the body
const IdempotencyHeader = "Idempotency-Key"

// FormatValidationError turns validator errors into per-field messages
func FormatValidationError(err error) map[string]string {
	fields := map[string]string{}
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return fields
	}
	for _, e := range validationErrors {
		field := toSnake(e.Field())
		switch e.Tag() {
		case "required":
			fields[field] = fmt.Sprintf("%s is required", field)
		case "min":
			fields[field] = fmt.Sprintf("%s must be at least %s", field, e.Param())
		case "max":
			fields[field] = fmt.Sprintf("%s must be at most %s", field, e.Param())
		default:
			fields[field] = fmt.Sprintf("%s is invalid (%s)", field, e.Tag())
		}
	}
	return fields
}

// bindJSON decodes and validates the request body into req. It writes the
// failure response itself and reports whether the handler may continue.
func bindJSON(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		writeFailure(c, http.StatusBadRequest, "InvalidRequest", "Invalid request body", nil)
		return false
	}
	if err := validate.Struct(req); err != nil {
		writeFailure(c, http.StatusBadRequest, "InvalidRequest", "Validation error", gin.H{"fields": FormatValidationError(err)})
		return false
	}
	return true
}

// idempotencyKey prefers the body field and falls back to the header
func idempotencyKey(c *gin.Context, fromBody string) (string, error) {
	key := fromBody
	if key == "" {
		key = c.GetHeader(IdempotencyHeader)
	}
	if strings.TrimSpace(key) == "" {
		return "", fmt.Errorf("%w: idempotency_key or %s header is required", domain.ErrInvalidRequest, IdempotencyHeader)
	}
	return key, nil
}

// toSnake turns a Go field name such as IdempotencyKey into idempotency_key
func toSnake(name string) string {
	var b strings.Builder
	for i, r := range name {
		if r >= 'A' && r <= 'Z' {
			if i > 0 && !(name[i-1] >= 'A' && name[i-1] <= 'Z') {
				b.WriteByte('_')
			}
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}
