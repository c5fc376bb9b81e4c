package gateway

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"

	"golang.org/x/time/rate"
)

// authMiddleware returns a chi-compatible middleware that validates Bearer token
// or Basic auth credentials using constant-time comparison.
// When limiter is non-nil, attempts beyond its rate get 429.
func authMiddleware(cfg AuthConfig, logger *slog.Logger, limiter *rate.Limiter, m *Metrics) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if limiter != nil && !limiter.Allow() {
				m.RecordRateLimited()
				http.Error(w, "too many requests", http.StatusTooManyRequests)
				return
			}

			auth := r.Header.Get("Authorization")
			if auth == "" {
				authFailed(w, r, logger, m, "missing authorization header")
				return
			}

			// Try Bearer token first.
			if cfg.BearerToken != "" {
				if after, ok := strings.CutPrefix(auth, "Bearer "); ok {
					if constantTimeEqual(after, cfg.BearerToken) {
						next.ServeHTTP(w, r)
						return
					}
				}
			}

			// Try Basic auth.
			if cfg.BasicUser != "" && cfg.BasicPass != "" {
				user, pass, ok := r.BasicAuth()
				if ok && constantTimeEqual(user, cfg.BasicUser) && constantTimeEqual(pass, cfg.BasicPass) {
					next.ServeHTTP(w, r)
					return
				}
			}

			authFailed(w, r, logger, m, "invalid credentials")
		})
	}
}

func authFailed(w http.ResponseWriter, r *http.Request, logger *slog.Logger, m *Metrics, detail string) {
	m.RecordAuthFailure()
	logger.Warn("gateway auth failure",
		"detail", detail,
		"remote_addr", r.RemoteAddr,
		"method", r.Method,
		"path", r.URL.Path,
	)
	http.Error(w, "unauthorized", http.StatusUnauthorized)
}

// newAuthLimiter builds the shared attempt limiter for cfg.
func newAuthLimiter(cfg AuthConfig) *rate.Limiter {
	return rate.NewLimiter(rate.Limit(cfg.AttemptsPerSecond), cfg.Burst)
}

// constantTimeEqual compares two strings in constant time.
func constantTimeEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
