package auth

import (
	"context"
	"net/http"
)

type claimsContextKey struct{}

// RequireUser rejects requests without a valid session cookie and stores
// the verified claims on the request context.
func RequireUser(tokens *TokenIssuer, cookies *Cookies, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenStr, ok := cookies.Get(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "missing session token")
			return
		}

		claims, err := tokens.Parse(tokenStr)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid or expired token")
			return
		}

		next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
	})
}

func WithClaims(ctx context.Context, claims Claims) context.Context {
	return context.WithValue(ctx, claimsContextKey{}, claims)
}

func ClaimsFromContext(ctx context.Context) (Claims, bool) {
	claims, ok := ctx.Value(claimsContextKey{}).(Claims)
	return claims, ok
}
