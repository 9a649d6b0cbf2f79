package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/oklog/ulid/v2"
)

func TestRequestID(t *testing.T) {
	var fromCtx string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fromCtx = RequestIDFromContext(r.Context())
	}))

	t.Run("generates ulid", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		got := rec.Header().Get(RequestIDHeader)
		if _, err := ulid.ParseStrict(got); err != nil {
			t.Fatalf("generated id %q is not a ULID: %v", got, err)
		}
		if fromCtx != got {
			t.Fatalf("context id %q != header id %q", fromCtx, got)
		}
	})

	t.Run("reuses inbound id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(RequestIDHeader, "abc")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Header().Get(RequestIDHeader) != "abc" || fromCtx != "abc" {
			t.Fatalf("inbound id not propagated: header=%q ctx=%q", rec.Header().Get(RequestIDHeader), fromCtx)
		}
	})

	t.Run("replaces oversized id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(RequestIDHeader, strings.Repeat("x", 500))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if len(rec.Header().Get(RequestIDHeader)) != ulid.EncodedSize {
			t.Fatalf("oversized id was kept")
		}
	})
}
