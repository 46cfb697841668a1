/**
 * @description
 * Authentication, authorization and request logging middleware for the
 * commission service.
 */
package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/temi-crm/commission-service/internal/domain"
)

type contextKey string

const principalContextKey = contextKey("principal")

// Principal is the authenticated caller.
type Principal struct {
	UserID string
	Role   domain.Role
}

// Claims are the bearer token claims issued by the CRM's auth service.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// JWTAuthMiddleware verifies HS256 bearer tokens and stores the caller in the context.
func JWTAuthMiddleware(secret string) func(http.Handler) http.Handler {
	key := []byte(secret)
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				respondWithError(w, http.StatusUnauthorized, "authorization header required")
				return
			}
			tokenString := strings.TrimPrefix(authHeader, "Bearer ")
			if tokenString == authHeader {
				respondWithError(w, http.StatusUnauthorized, "invalid authorization header format")
				return
			}

			var claims Claims
			token, err := parser.ParseWithClaims(tokenString, &claims, func(*jwt.Token) (interface{}, error) {
				return key, nil
			})
			if err != nil || !token.Valid {
				respondWithError(w, http.StatusUnauthorized, "invalid token")
				return
			}

			if claims.Subject == "" {
				respondWithError(w, http.StatusUnauthorized, "user id not found in token")
				return
			}
			role, err := domain.ParseRole(claims.Role)
			if err != nil {
				respondWithError(w, http.StatusForbidden, err.Error())
				return
			}

			ctx := context.WithValue(r.Context(), principalContextKey, Principal{UserID: claims.Subject, Role: role})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SignToken issues a token accepted by JWTAuthMiddleware. Used by tests and
// local tooling; production tokens come from the auth service.
func SignToken(secret, userID string, role domain.Role, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Role: string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// PrincipalFromContext retrieves the caller from the request context.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalContextKey).(Principal)
	return p, ok
}

// RequirePermission rejects callers whose role lacks the capability.
func RequirePermission(name string, allowed func(domain.Permissions) bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := PrincipalFromContext(r.Context())
			if !ok {
				respondWithError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			if !allowed(domain.PermissionsFor(p.Role)) {
				respondWithError(w, http.StatusForbidden, fmt.Sprintf("role %s cannot %s", p.Role, name))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// InternalAuthMiddleware validates the internal API key for server-to-server calls.
func InternalAuthMiddleware(requiredKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if requiredKey == "" {
				next.ServeHTTP(w, r)
				return
			}

			provided := r.Header.Get("X-Internal-API-Key")
			if provided == "" || provided != requiredKey {
				respondWithError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequestLogger logs one line per request through zerolog.
func RequestLogger(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			event := logger.Info()
			if status >= http.StatusInternalServerError {
				event = logger.Error()
			}
			event.
				Str("request_id", middleware.GetReqID(r.Context())).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", status).
				Int("bytes", ww.BytesWritten()).
				Dur("latency", time.Since(start)).
				Msg("request")
		})
	}
}
