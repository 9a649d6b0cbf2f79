package apiserver

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"circle-go/internal/config"
	"circle-go/internal/middleware"
	"circle-go/internal/models"
	"circle-go/internal/services"
)

// AuthHandler serves the /api/auth routes.
type AuthHandler struct {
	authService services.AuthService
	userService services.UserService
	cookieName  string
	cookieTTL   time.Duration
	secure      bool
	log         *slog.Logger
}

// NewAuthHandler creates an AuthHandler. secure marks the session cookie
// Secure; set it in production.
func NewAuthHandler(authService services.AuthService, userService services.UserService, authCfg config.AuthConfig, secure bool, log *slog.Logger) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		userService: userService,
		cookieName:  authCfg.CookieName,
		cookieTTL:   authCfg.JWTExpiry,
		secure:      secure || authCfg.CookieSecure,
		log:         log,
	}
}

// LoginRequest is the login body.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SessionResponse is returned by signup and login. The token is also set
// as a cookie; header-based clients read it from here.
type SessionResponse struct {
	Success bool         `json:"success"`
	Token   string       `json:"token"`
	User    *models.User `json:"user"`
}

// Signup creates an account and starts a session.
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req services.SignupInput
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	token, user, err := h.authService.Signup(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}

	h.setSessionCookie(w, token)
	writeJSONResponse(w, http.StatusCreated, SessionResponse{Success: true, Token: token, User: user})
}

// Login starts a session for an existing account.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	token, user, err := h.authService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}

	h.setSessionCookie(w, token)
	writeJSONResponse(w, http.StatusOK, SessionResponse{Success: true, Token: token, User: user})
}

// Logout clears the session cookie. Tokens are not revoked server-side;
// header-based clients must drop theirs.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteStrictMode,
	})
	writeJSONResponse(w, http.StatusOK, map[string]interface{}{"success": true, "message": "Logged out successfully"})
}

// CheckUsername reports whether a handle is free: 200 if so, 409 if taken.
func (h *AuthHandler) CheckUsername(w http.ResponseWriter, r *http.Request) {
	username := mux.Vars(r)["username"]

	available, err := h.authService.IsUsernameAvailable(r.Context(), username)
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}
	status := http.StatusOK
	if !available {
		status = http.StatusConflict
	}
	writeJSONResponse(w, status, map[string]interface{}{"username": username, "available": available})
}

// Me returns the authenticated user.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeJSONError(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]interface{}{"success": true, "user": user})
}

// Onboard completes the authenticated user's profile.
func (h *AuthHandler) Onboard(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeJSONError(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req services.OnboardingInput
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	user, err := h.userService.Onboard(r.Context(), userID, req)
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]interface{}{"success": true, "user": user})
}

func (h *AuthHandler) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.cookieTTL / time.Second),
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteStrictMode,
	})
}
