package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"circle-go/internal/auth"
	"circle-go/internal/config"
	"circle-go/internal/logging"
	"circle-go/internal/models"
	"circle-go/internal/storage"
)

var testAuthCfg = config.AuthConfig{
	JWTSecretKey: "test-secret",
	JWTExpiry:    12 * 24 * time.Hour,
	JWTIssuer:    "circle-go-test",
	CookieName:   "jwt",
}

var guardNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

// countingLookup wraps a UserLookup and counts calls.
type countingLookup struct {
	inner UserLookup
	err   error
	calls int
}

func (c *countingLookup) GetByID(ctx context.Context, id uint) (*models.User, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return c.inner.GetByID(ctx, id)
}

func newGuardFixture(t *testing.T) (*SessionGuard, *countingLookup, *models.User) {
	t.Helper()
	store := storage.NewMemoryStore()
	user := &models.User{Email: "alice@example.com", Username: "alice", PasswordHash: "hash"}
	if err := store.Create(context.Background(), user); err != nil {
		t.Fatalf("create user: %v", err)
	}
	lookup := &countingLookup{inner: store}
	guard := NewSessionGuard(testAuthCfg, lookup, logging.Discard()).
		WithClock(func() time.Time { return guardNow })
	return guard, lookup, user
}

func mintToken(t *testing.T, userID uint, secret string, issuedAt time.Time) string {
	t.Helper()
	cfg := testAuthCfg
	cfg.JWTSecretKey = secret
	token, err := auth.GenerateToken(userID, cfg, issuedAt)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	return token
}

func TestSessionGuard_Authenticate(t *testing.T) {
	guard, _, user := newGuardFixture(t)
	good := mintToken(t, user.ID, testAuthCfg.JWTSecretKey, guardNow)

	tests := []struct {
		name    string
		prepare func(r *http.Request)
		wantErr error
	}{
		{
			name:    "cookie",
			prepare: func(r *http.Request) { r.AddCookie(&http.Cookie{Name: "jwt", Value: good}) },
		},
		{
			name:    "bearer header",
			prepare: func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+good) },
		},
		{
			name:    "no credential",
			prepare: func(r *http.Request) {},
			wantErr: ErrNoCredential,
		},
		{
			name:    "malformed header",
			prepare: func(r *http.Request) { r.Header.Set("Authorization", "Token "+good) },
			wantErr: ErrNoCredential,
		},
		{
			name: "wrong secret",
			prepare: func(r *http.Request) {
				r.Header.Set("Authorization", "Bearer "+mintToken(t, user.ID, "other-secret", guardNow))
			},
			wantErr: ErrUnauthorized,
		},
		{
			name: "expired",
			prepare: func(r *http.Request) {
				r.Header.Set("Authorization", "Bearer "+mintToken(t, user.ID, testAuthCfg.JWTSecretKey, guardNow.Add(-13*24*time.Hour)))
			},
			wantErr: ErrUnauthorized,
		},
		{
			name: "unknown user",
			prepare: func(r *http.Request) {
				r.Header.Set("Authorization", "Bearer "+mintToken(t, 999, testAuthCfg.JWTSecretKey, guardNow))
			},
			wantErr: ErrUnknownUser,
		},
		{
			name:    "garbage",
			prepare: func(r *http.Request) { r.AddCookie(&http.Cookie{Name: "jwt", Value: "not-a-jwt"}) },
			wantErr: ErrUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
			tt.prepare(r)

			got, err := guard.Authenticate(r)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.ID != user.ID {
				t.Fatalf("user id = %d, want %d", got.ID, user.ID)
			}
			if got.PasswordHash != "" {
				t.Fatal("password hash leaked into the authenticated user")
			}
		})
	}
}

func TestSessionGuard_CookieTakesPrecedence(t *testing.T) {
	guard, _, user := newGuardFixture(t)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(&http.Cookie{Name: "jwt", Value: mintToken(t, user.ID, testAuthCfg.JWTSecretKey, guardNow)})
	r.Header.Set("Authorization", "Bearer "+mintToken(t, user.ID, "other-secret", guardNow))

	if _, err := guard.Authenticate(r); err != nil {
		t.Fatalf("cookie should win over the header, got %v", err)
	}

	guard.WithSources(BearerHeaderSource{}, CookieSource{Name: "jwt"})
	if _, err := guard.Authenticate(r); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("with header first, got %v, want ErrUnauthorized", err)
	}
}

func TestSessionGuard_SingleLookup(t *testing.T) {
	guard, lookup, user := newGuardFixture(t)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer "+mintToken(t, user.ID, testAuthCfg.JWTSecretKey, guardNow))
	if _, err := guard.Authenticate(r); err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if lookup.calls != 1 {
		t.Fatalf("lookups = %d, want 1", lookup.calls)
	}

	lookup.calls = 0
	bad := httptest.NewRequest(http.MethodGet, "/", nil)
	bad.Header.Set("Authorization", "Bearer "+mintToken(t, user.ID, "other-secret", guardNow))
	_, _ = guard.Authenticate(bad)
	if lookup.calls != 0 {
		t.Fatalf("rejected credential triggered %d lookups", lookup.calls)
	}
}

func TestSessionGuard_Middleware(t *testing.T) {
	guard, lookup, user := newGuardFixture(t)

	var seen *models.User
	protected := guard.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = UserFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	t.Run("forwards with user in context", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.AddCookie(&http.Cookie{Name: "jwt", Value: mintToken(t, user.ID, testAuthCfg.JWTSecretKey, guardNow)})
		rec := httptest.NewRecorder()
		protected.ServeHTTP(rec, r)

		if rec.Code != http.StatusNoContent {
			t.Fatalf("status = %d, want 204", rec.Code)
		}
		if seen == nil || seen.ID != user.ID {
			t.Fatalf("downstream saw user %+v", seen)
		}
	})

	t.Run("identical 401 bodies", func(t *testing.T) {
		requests := []*http.Request{
			httptest.NewRequest(http.MethodGet, "/", nil),
			func() *http.Request {
				r := httptest.NewRequest(http.MethodGet, "/", nil)
				r.Header.Set("Authorization", "Bearer "+mintToken(t, user.ID, "other-secret", guardNow))
				return r
			}(),
			func() *http.Request {
				r := httptest.NewRequest(http.MethodGet, "/", nil)
				r.Header.Set("Authorization", "Bearer "+mintToken(t, 4242, testAuthCfg.JWTSecretKey, guardNow))
				return r
			}(),
		}

		var bodies []string
		for _, r := range requests {
			rec := httptest.NewRecorder()
			protected.ServeHTTP(rec, r)
			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("status = %d, want 401", rec.Code)
			}
			bodies = append(bodies, rec.Body.String())
		}
		for _, b := range bodies[1:] {
			if b != bodies[0] {
				t.Fatalf("401 bodies differ: %q vs %q", bodies[0], b)
			}
		}
		var payload map[string]string
		if err := json.Unmarshal([]byte(bodies[0]), &payload); err != nil || payload["error"] != "unauthorized" {
			t.Fatalf("body = %q", bodies[0])
		}
	})

	t.Run("store unavailable is 503", func(t *testing.T) {
		lookup.err = fmt.Errorf("%w: connection refused", storage.ErrStoreUnavailable)
		defer func() { lookup.err = nil }()

		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.AddCookie(&http.Cookie{Name: "jwt", Value: mintToken(t, user.ID, testAuthCfg.JWTSecretKey, guardNow)})
		rec := httptest.NewRecorder()
		protected.ServeHTTP(rec, r)
		if rec.Code != http.StatusServiceUnavailable {
			t.Fatalf("status = %d, want 503", rec.Code)
		}
	})
}

func TestGetUserIDFromContext(t *testing.T) {
	if _, ok := GetUserIDFromContext(context.Background()); ok {
		t.Fatal("empty context reported a user")
	}
	ctx := WithUser(context.Background(), &models.User{BaseModel: models.BaseModel{ID: 7}})
	if id, ok := GetUserIDFromContext(ctx); !ok || id != 7 {
		t.Fatalf("got %d, %v; want 7, true", id, ok)
	}
}
