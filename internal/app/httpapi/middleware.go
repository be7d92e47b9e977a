package httpapi

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"
	"sync"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/time/rate"

	apperrors "github.com/pactpoint/backend/internal/errors"
	"github.com/pactpoint/backend/pkg/logger"
)

type contextKey string

const userIDKey contextKey = "user_id"

// UserID returns the authenticated user's ID, or "" for anonymous requests.
func UserID(ctx context.Context) string {
	id, _ := ctx.Value(userIDKey).(string)
	return id
}

// authMiddleware validates a Bearer token signed with the shared secret and
// stores the subject in the request context.
type authMiddleware struct {
	secret []byte
	log    *logger.Logger
}

func (m *authMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			writeError(w, m.log, apperrors.Unauthorized("missing Authorization header"))
			return
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			writeError(w, m.log, apperrors.Unauthorized("invalid Authorization header format"))
			return
		}

		token, err := jwt.Parse(parts[1], func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, apperrors.Unauthorized("unexpected signing method")
			}
			return m.secret, nil
		})
		if err != nil || !token.Valid {
			writeError(w, m.log, apperrors.Unauthorized("invalid or expired token"))
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			writeError(w, m.log, apperrors.Unauthorized("invalid token claims"))
			return
		}
		sub, _ := claims["sub"].(string)
		if sub == "" {
			writeError(w, m.log, apperrors.Unauthorized("token has no subject"))
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userIDKey, sub)))
	})
}

// rateLimiter keeps one token bucket per remote address. It runs ahead of
// authentication so unauthenticated traffic is throttled too; RealIP has
// already rewritten RemoteAddr from forwarding headers by this point.
type rateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rate     rate.Limit
	burst    int
	log      *logger.Logger
}

func newRateLimiter(requestsPerSecond, burst int, log *logger.Logger) *rateLimiter {
	return &rateLimiter{
		limiters: make(map[string]*rate.Limiter),
		rate:     rate.Limit(requestsPerSecond),
		burst:    burst,
		log:      log,
	}
}

func (rl *rateLimiter) limiterFor(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	limiter, ok := rl.limiters[key]
	if !ok {
		limiter = rate.NewLimiter(rl.rate, rl.burst)
		rl.limiters[key] = limiter
	}
	return limiter
}

func (rl *rateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.RemoteAddr
		if !rl.limiterFor(key).Allow() {
			rl.log.WithField("key", key).Warn("rate limit exceeded")
			writeJSON(w, http.StatusTooManyRequests, map[string]errorBody{"error": {
				Code:    "RATE_LIMITED",
				Message: "too many requests",
			}})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// adminMiddleware gates operational endpoints behind a shared passphrase.
type adminMiddleware struct {
	passphrase string
	log        *logger.Logger
}

func (m *adminMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.passphrase == "" {
			writeError(w, m.log, apperrors.Forbidden("admin endpoints are disabled"))
			return
		}
		supplied := r.Header.Get("X-Admin-Passphrase")
		if subtle.ConstantTimeCompare([]byte(supplied), []byte(m.passphrase)) != 1 {
			writeError(w, m.log, apperrors.Forbidden("invalid admin passphrase"))
			return
		}
		next.ServeHTTP(w, r)
	})
}
