package middleware

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strings"
)

// Limiter counts a hit against key and reports whether it is still within
// the limit.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// RateLimitOptions controls how RateLimit behaves around the limiter.
type RateLimitOptions struct {
	// FailOpen lets requests through when the limiter itself errors.
	FailOpen bool
	// TrustProxy keys anonymous clients by X-Forwarded-For / X-Real-IP.
	// Only enable it behind a proxy that overwrites those headers.
	TrustProxy bool
}

// RateLimit rejects requests over the limiter's budget with 429. A nil
// limiter disables the check. When the limiter errors the request passes
// if opts.FailOpen is set and gets 503 otherwise.
func RateLimit(limiter Limiter, scope string, opts RateLimitOptions, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if limiter == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := scope + ":" + rateLimitSubject(r, opts.TrustProxy)

			allowed, err := limiter.Allow(r.Context(), key)
			if err != nil {
				log.Error("rate limit check failed", "error", err, "scope", scope)
				if opts.FailOpen {
					next.ServeHTTP(w, r)
					return
				}
				writeJSONError(w, "rate limiting temporarily unavailable", http.StatusServiceUnavailable)
				return
			}
			if !allowed {
				log.Warn("rate limit exceeded",
					"scope", scope,
					"endpoint", r.Method+" "+r.URL.Path,
					"request_id", RequestIDFromContext(r.Context()),
				)
				writeJSONError(w, "rate limit exceeded", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// rateLimitSubject keys authenticated requests by user and the rest by IP.
func rateLimitSubject(r *http.Request, trustProxy bool) string {
	if user, ok := UserFromContext(r.Context()); ok {
		return "user:" + user.IDString()
	}
	return "ip:" + ClientIP(r, trustProxy)
}

// ClientIP returns the peer address of the request. Forwarding headers are
// honoured only when trustProxy is set; otherwise any client could pick its
// own rate limit key.
func ClientIP(r *http.Request, trustProxy bool) string {
	if !trustProxy {
		return remoteIP(r)
	}
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx != -1 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	return remoteIP(r)
}

func remoteIP(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}
