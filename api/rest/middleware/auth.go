package middleware

import (
	"context"
	"net/http"
	"strings"

	"decen-ai-backend/core/auth"
)

type contextKey string

const principalKey contextKey = "principal"

// Principal returns the authenticated wallet address stored in the
// request context, or "" when the request is unauthenticated.
func Principal(ctx context.Context) string {
	addr, _ := ctx.Value(principalKey).(string)
	return addr
}

// RequireAuth rejects requests without a valid Bearer token and stores
// the token's wallet address in the request context.
func RequireAuth(issuer *auth.TokenIssuer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				w.Header().Set("WWW-Authenticate", "Bearer")
				http.Error(w, "Missing bearer token", http.StatusUnauthorized)
				return
			}

			address, err := issuer.Verify(token)
			if err != nil {
				w.Header().Set("WWW-Authenticate", "Bearer")
				http.Error(w, "Invalid or expired token", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), principalKey, address)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
