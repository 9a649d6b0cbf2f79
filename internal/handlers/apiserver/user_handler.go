package apiserver

import (
	"log/slog"
	"net/http"

	"circle-go/internal/middleware"
	"circle-go/internal/services"
)

// UserHandler serves the /api/users profile routes.
type UserHandler struct {
	userService services.UserService
	log         *slog.Logger
}

// NewUserHandler creates a UserHandler.
func NewUserHandler(userService services.UserService, log *slog.Logger) *UserHandler {
	return &UserHandler{userService: userService, log: log}
}

// GetRecommendedUsers lists users the caller might want to befriend.
func (h *UserHandler) GetRecommendedUsers(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeJSONError(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	users, err := h.userService.GetRecommendedUsers(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, users)
}

// GetMyFriends lists the caller's friends.
func (h *UserHandler) GetMyFriends(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeJSONError(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	friends, err := h.userService.GetFriends(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, friends)
}
