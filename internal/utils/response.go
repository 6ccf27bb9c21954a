package utils

// Response is the envelope of every endpoint, success or failure. All five
// keys are always sent; empty ones are null.
type Response struct {
	Success bool           `json:"success"` // Whether the operation succeeded
	Data    any            `json:"data"`    // Payload on success
	Message *string        `json:"message"` // Human readable detail
	Error   *string        `json:"error"`   // Error kind code on failure
	Meta    map[string]any `json:"meta"`    // Paging cursors, replay flag, field errors
}

// optional maps "" to null
func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// SuccessResponse builds a success envelope
func SuccessResponse(message string, data any, meta map[string]any) Response {
	return Response{Success: true, Data: data, Message: optional(message), Meta: meta}
}

// ErrorResponse builds a failure envelope carrying the error kind code
func ErrorResponse(code, message string, meta map[string]any) Response {
	return Response{Success: false, Message: optional(message), Error: optional(code), Meta: meta}
}
