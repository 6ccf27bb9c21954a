package api

import (
	"errors"   // Matching domain errors
	"net/http" // HTTP status codes

	"umbra_payment/internal/domain" // Domain error kinds
	"umbra_payment/internal/utils"  // Response envelope

	"github.com/gin-gonic/gin"   // Gin web framework
	"github.com/sirupsen/logrus" // Logging library
)

// Response is the envelope of every endpoint, success or failure
type Response = utils.Response

// writeSuccess writes a success envelope
func writeSuccess(c *gin.Context, status int, message string, data any, meta gin.H) {
	c.JSON(status, utils.SuccessResponse(message, data, meta))
}

// writeFailure writes a failure envelope
func writeFailure(c *gin.Context, status int, code, message string, meta gin.H) {
	c.JSON(status, utils.ErrorResponse(code, message, meta))
}

// errorKind maps a domain error to its status and kind code
func errorKind(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrInvalidAmount):
		return http.StatusBadRequest, "InvalidAmount"
	case errors.Is(err, domain.ErrInvalidRequest):
		return http.StatusBadRequest, "InvalidRequest"
	case errors.Is(err, domain.ErrWalletNotFound):
		return http.StatusNotFound, "NotFound"
	case errors.Is(err, domain.ErrPoolNotFound):
		return http.StatusNotFound, "PoolNotFound"
	case errors.Is(err, domain.ErrInsufficientFunds):
		return http.StatusUnprocessableEntity, "InsufficientFunds"
	case errors.Is(err, domain.ErrInvalidPool):
		return http.StatusUnprocessableEntity, "InvalidPool"
	case errors.Is(err, domain.ErrIdempotencyConflict):
		return http.StatusConflict, "Conflict"
	case errors.Is(err, domain.ErrUnavailable):
		return http.StatusServiceUnavailable, "Unavailable"
	default:
		return http.StatusInternalServerError, "Internal"
	}
}

// writeError translates err into a failure envelope. Detail of unexpected
// failures is logged, not returned.
func writeError(c *gin.Context, err error) {
	status, code := errorKind(err)
	message := err.Error()
	if status >= http.StatusInternalServerError {
		// Log the error with context
		logrus.WithFields(logrus.Fields{
			"method": c.Request.Method, // HTTP method
			"path":   c.FullPath(),     // Route
			"kind":   code,             // Error kind
			"error":  err.Error(),      // Error message
		}).Error("Request failed")
		message = "The service could not complete the request, retry with the same idempotency key"
		if code == "Internal" {
			message = "Internal error"
		}
	}
	writeFailure(c, status, code, message, nil)
}

// replayMeta marks idempotent replays and picks the status of the response
func replayMeta(replayed bool) (int, gin.H) {
	if replayed {
		return http.StatusOK, gin.H{"replayed": true}
	}
	return http.StatusCreated, nil
}
