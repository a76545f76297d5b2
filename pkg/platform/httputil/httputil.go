// Package httputil centralizes JSON encoding and domain-error translation for
// HTTP handlers so every endpoint returns the same error envelope.
package httputil

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	dErrors "selfid/pkg/domain-errors"
)

// errorResponse is the JSON error envelope.
type errorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// statusFor maps domain error codes to HTTP status codes.
func statusFor(code dErrors.Code) int {
	switch code {
	case dErrors.CodeInvalidInput, dErrors.CodeValidation, dErrors.CodeBadRequest, dErrors.CodeInvariantViolation:
		return http.StatusBadRequest
	case dErrors.CodeUnauthorized:
		return http.StatusUnauthorized
	case dErrors.CodeForbidden:
		return http.StatusForbidden
	case dErrors.CodeNotFound:
		return http.StatusNotFound
	case dErrors.CodeConflict, dErrors.CodeInvalidState:
		return http.StatusConflict
	case dErrors.CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// WriteJSON writes v as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError translates a domain error into the JSON error envelope. Internal
// errors omit the description so infrastructure details never leak to
// callers.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.GetCode(err)
	resp := errorResponse{Error: string(code)}
	if code != dErrors.CodeInternal {
		resp.ErrorDescription = dErrors.Message(err)
	}
	WriteJSON(w, statusFor(code), resp)
}

// Decode parses the request body into T. On failure it writes a bad_request
// envelope and returns ok=false; handlers should return immediately.
func Decode[T any](w http.ResponseWriter, r *http.Request, logger *slog.Logger, ctx context.Context, requestID string) (T, bool) {
	var req T
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if logger != nil {
			logger.WarnContext(ctx, "failed to decode request body",
				"request_id", requestID,
				"error", err,
			)
		}
		WriteError(w, dErrors.New(dErrors.CodeBadRequest, "malformed request body"))
		return req, false
	}
	return req, true
}
