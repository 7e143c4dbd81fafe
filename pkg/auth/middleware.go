package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/segyhp/loan-ledger/pkg/response"
)

type contextKey string

const claimsContextKey contextKey = "claims"

// ContextWithClaims returns a new context with the given Claims attached.
func ContextWithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, claimsContextKey, claims)
}

// ClaimsFromContext extracts Claims from the context.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(claimsContextKey).(*Claims)
	return claims, ok
}

// OwnerIDFromContext returns the authenticated subject.
func OwnerIDFromContext(ctx context.Context) (string, bool) {
	claims, ok := ClaimsFromContext(ctx)
	if !ok {
		return "", false
	}
	return claims.Subject, true
}

// Middleware authenticates the bearer token and attaches its claims.
func Middleware(jwtService *JWTService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := authenticate(jwtService, r.Header.Get("Authorization"))
			if err != nil {
				response.Unauthorized(w, KindOf(err).String()+" bearer token")
				return
			}

			next.ServeHTTP(w, r.WithContext(ContextWithClaims(r.Context(), claims)))
		})
	}
}

// RequireRole admits callers holding any of roles.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := ClaimsFromContext(r.Context())
			if !ok {
				response.Unauthorized(w, "missing bearer token")
				return
			}

			for _, required := range roles {
				if claims.HasRole(required) {
					next.ServeHTTP(w, r)
					return
				}
			}

			response.Forbidden(w, "required role(s): "+strings.Join(roles, ", "))
		})
	}
}

func authenticate(jwtService *JWTService, header string) (*Claims, error) {
	if header == "" {
		return nil, &TokenError{Kind: KindMissing}
	}
	if len(header) <= 7 || !strings.EqualFold(header[:7], "Bearer ") {
		return nil, &TokenError{Kind: KindMalformed}
	}
	return jwtService.ValidateToken(strings.TrimSpace(header[7:]))
}
