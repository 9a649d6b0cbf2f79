package apiserver

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"circle-go/internal/middleware"
	"circle-go/internal/services"
)

// ErrorResponse is the body of every API error.
type ErrorResponse struct {
	Error string `json:"error"`
}

// writeJSONResponse writes data as JSON with statusCode.
func writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

func writeJSONError(w http.ResponseWriter, message string, statusCode int) {
	writeJSONResponse(w, statusCode, ErrorResponse{Error: message})
}

// writeServiceError maps a service error to its HTTP status. Domain errors
// carry client-safe messages; anything else is logged and reported as 500.
func writeServiceError(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error) {
	status, message := statusFor(err)
	if status >= http.StatusInternalServerError {
		log.Error("request failed",
			"error", err,
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", middleware.RequestIDFromContext(r.Context()),
		)
	}
	writeJSONError(w, message, status)
}

func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, services.ErrValidation),
		errors.Is(err, services.ErrFriendRequestSelf),
		errors.Is(err, services.ErrFriendRequestExists):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, services.ErrInvalidCredentials):
		return http.StatusUnauthorized, err.Error()
	case errors.Is(err, services.ErrNotRecipientOfRequest):
		return http.StatusForbidden, err.Error()
	case errors.Is(err, services.ErrFriendRequestNotFound):
		return http.StatusNotFound, services.ErrFriendRequestNotFound.Error()
	case errors.Is(err, services.ErrRecipientNotFound):
		return http.StatusNotFound, services.ErrRecipientNotFound.Error()
	case errors.Is(err, services.ErrUserNotFound):
		return http.StatusNotFound, services.ErrUserNotFound.Error()
	case errors.Is(err, services.ErrRequestAlreadyAccepted),
		errors.Is(err, services.ErrUserAlreadyExists):
		return http.StatusConflict, err.Error()
	case errors.Is(err, services.ErrServiceUnavailable):
		return http.StatusServiceUnavailable, "service unavailable"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

// decodeJSON reads a JSON request body into dst. Unknown fields are allowed.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	defer r.Body.Close()
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(dst)
}
