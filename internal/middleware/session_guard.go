package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"circle-go/internal/auth"
	"circle-go/internal/config"
	"circle-go/internal/models"
	"circle-go/internal/storage"
)

// Session guard outcomes. NoCredential, Unauthorized and UnknownUser all
// reach the client as the same 401 body; only the logs tell them apart.
var (
	ErrNoCredential = errors.New("no credential presented")
	ErrUnauthorized = errors.New("credential rejected")
	ErrUnknownUser  = errors.New("credential subject does not exist")
)

// contextKey keeps this package's context values from colliding with others.
type contextKey string

// userKey holds the authenticated *models.User.
const userKey contextKey = "user"

// CredentialSource extracts a raw token from a request. An empty string
// means the source has nothing to offer and the next one is tried.
type CredentialSource interface {
	Token(r *http.Request) string
}

// CookieSource reads the token from the named cookie.
type CookieSource struct {
	Name string
}

func (s CookieSource) Token(r *http.Request) string {
	c, err := r.Cookie(s.Name)
	if err != nil {
		return ""
	}
	return c.Value
}

// BearerHeaderSource reads "Authorization: Bearer <token>".
type BearerHeaderSource struct{}

func (BearerHeaderSource) Token(r *http.Request) string {
	headerParts := strings.Fields(r.Header.Get("Authorization"))
	if len(headerParts) != 2 || !strings.EqualFold(headerParts[0], "bearer") {
		return ""
	}
	return headerParts[1]
}

// UserLookup is the single read the guard performs per request.
type UserLookup interface {
	GetByID(ctx context.Context, id uint) (*models.User, error)
}

// SessionGuard authenticates protected requests: first credential from the
// ordered sources, verified against the secret, then one user lookup.
type SessionGuard struct {
	sources []CredentialSource
	secret  string
	users   UserLookup
	now     func() time.Time
	log     *slog.Logger
}

// NewSessionGuard checks the session cookie first and the bearer header second.
func NewSessionGuard(authCfg config.AuthConfig, users UserLookup, log *slog.Logger) *SessionGuard {
	return &SessionGuard{
		sources: []CredentialSource{CookieSource{Name: authCfg.CookieName}, BearerHeaderSource{}},
		secret:  authCfg.JWTSecretKey,
		users:   users,
		now:     time.Now,
		log:     log,
	}
}

// WithSources replaces the credential sources, keeping their order.
func (g *SessionGuard) WithSources(sources ...CredentialSource) *SessionGuard {
	g.sources = sources
	return g
}

// WithClock sets the time used for expiry checks.
func (g *SessionGuard) WithClock(now func() time.Time) *SessionGuard {
	g.now = now
	return g
}

// Authenticate resolves the user behind the request's credential. It never
// writes to the response and never touches the store more than once.
func (g *SessionGuard) Authenticate(r *http.Request) (*models.User, error) {
	var token string
	for _, src := range g.sources {
		if token = src.Token(r); token != "" {
			break
		}
	}
	if token == "" {
		return nil, ErrNoCredential
	}

	claims, err := auth.VerifyToken(token, g.secret, g.now())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnauthorized, err)
	}

	user, err := g.users.GetByID(r.Context(), claims.UserID)
	switch {
	case errors.Is(err, storage.ErrUserNotFound):
		return nil, fmt.Errorf("%w: user %d", ErrUnknownUser, claims.UserID)
	case err != nil:
		return nil, err
	}
	return user.Sanitized(), nil
}

// Middleware rejects unauthenticated requests and attaches the user to the
// request context for the rest.
func (g *SessionGuard) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, err := g.Authenticate(r)
		if err != nil {
			if errors.Is(err, storage.ErrStoreUnavailable) {
				g.log.Error("session guard: user lookup failed", "error", err, "request_id", RequestIDFromContext(r.Context()))
				writeJSONError(w, "service unavailable", http.StatusServiceUnavailable)
				return
			}
			g.log.Warn("session guard: unauthorized",
				"reason", err.Error(),
				"path", r.URL.Path,
				"request_id", RequestIDFromContext(r.Context()),
			)
			writeJSONError(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
	})
}

// WithUser stores the authenticated user in ctx.
func WithUser(ctx context.Context, user *models.User) context.Context {
	return context.WithValue(ctx, userKey, user)
}

// UserFromContext returns the user attached by the session guard.
func UserFromContext(ctx context.Context) (*models.User, bool) {
	user, ok := ctx.Value(userKey).(*models.User)
	return user, ok && user != nil
}

// GetUserIDFromContext returns the authenticated user's id, or 0 and false
// when the request carries no user.
func GetUserIDFromContext(ctx context.Context) (uint, bool) {
	user, ok := UserFromContext(ctx)
	if !ok {
		return 0, false
	}
	return user.ID, true
}
