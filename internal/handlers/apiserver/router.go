package apiserver

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"circle-go/internal/middleware"
)

// RouterDeps wires the handlers and middleware into the API router.
// Limiters may be nil to disable rate limiting.
type RouterDeps struct {
	Auth           *AuthHandler
	Users          *UserHandler
	FriendRequests *FriendRequestHandler
	Guard          *middleware.SessionGuard

	AuthLimiter     middleware.Limiter
	ProposalLimiter middleware.Limiter
	RateLimit       middleware.RateLimitOptions

	Log *slog.Logger
}

// NewRouter builds the /api routes plus /healthz. Request id and access
// logging wrap every route; CORS and panic recovery are added by the caller.
func NewRouter(d RouterDeps) *mux.Router {
	r := mux.NewRouter()
	r.Use(middleware.RequestID, middleware.Logger(d.Log))

	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSONResponse(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()

	authLimit := middleware.RateLimit(d.AuthLimiter, "auth", d.RateLimit, d.Log)
	authRoutes := api.PathPrefix("/auth").Subrouter()
	authRoutes.Handle("/signup", authLimit(http.HandlerFunc(d.Auth.Signup))).Methods(http.MethodPost)
	authRoutes.Handle("/login", authLimit(http.HandlerFunc(d.Auth.Login))).Methods(http.MethodPost)
	authRoutes.HandleFunc("/logout", d.Auth.Logout).Methods(http.MethodPost)
	authRoutes.HandleFunc("/check-username/{username}", d.Auth.CheckUsername).Methods(http.MethodGet)

	authRoutes.Handle("/me", d.Guard.Middleware(http.HandlerFunc(d.Auth.Me))).Methods(http.MethodGet)
	authRoutes.Handle("/onboarding", d.Guard.Middleware(http.HandlerFunc(d.Auth.Onboard))).Methods(http.MethodPost)

	users := api.PathPrefix("/users").Subrouter()
	users.Use(d.Guard.Middleware)
	users.HandleFunc("", d.Users.GetRecommendedUsers).Methods(http.MethodGet)
	users.HandleFunc("/", d.Users.GetRecommendedUsers).Methods(http.MethodGet)
	users.HandleFunc("/friends", d.Users.GetMyFriends).Methods(http.MethodGet)

	proposalLimit := middleware.RateLimit(d.ProposalLimiter, "proposal", d.RateLimit, d.Log)
	users.Handle("/friend-request/{id:[0-9]+}", proposalLimit(http.HandlerFunc(d.FriendRequests.SendFriendRequest))).Methods(http.MethodPost)
	users.HandleFunc("/friend-request/{id:[0-9]+}/accept", d.FriendRequests.AcceptFriendRequest).Methods(http.MethodPut)
	users.HandleFunc("/friend-request", d.FriendRequests.GetFriendRequests).Methods(http.MethodGet)
	users.HandleFunc("/outgoing-friend-request", d.FriendRequests.GetOutgoingFriendRequests).Methods(http.MethodGet)

	return r
}
