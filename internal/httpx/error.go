package httpx

import (
	"net/http"

	"github.com/compactconnect/apps/edge/internal/middleware"
)

// Error codes returned in ErrorBody.Code. The middleware package writes
// rate_limited and body_too_large with the same envelope.
const (
	CodeValidation   = "validation_error"
	CodeInvalidBody  = "invalid_body"
	CodeBodyTooLarge = "body_too_large"
	CodeInternal     = "internal_error"
)

type ErrorEnvelope struct {
	Error     ErrorBody `json:"error"`
	RequestID string    `json:"requestId"`
}

type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

func WriteError(w http.ResponseWriter, r *http.Request, status int, code, message string, details any) {
	writeEnvelope(w, status, code, message, details, middleware.RequestIDFromContext(r.Context()))
}

// ValidationErrorHandler adapts the OpenAPI request validator's error callback,
// which receives no request, to the envelope. The request id is read back from
// the response header set by middleware.RequestID.
func ValidationErrorHandler(w http.ResponseWriter, message string, status int) {
	writeEnvelope(w, status, CodeValidation, message, nil, w.Header().Get(middleware.HeaderRequestID))
}

func writeEnvelope(w http.ResponseWriter, status int, code, message string, details any, requestID string) {
	WriteJSON(w, status, ErrorEnvelope{
		Error: ErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
		RequestID: requestID,
	})
}
