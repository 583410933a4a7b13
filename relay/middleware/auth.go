package middleware

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"telecall/auth"
)

type claimsKey struct{}

// Auth verifies the bearer token of the request and stores its claims in
// the request context.
type Auth struct {
	secret []byte
	logger *zap.Logger
}

// NewAuth creates a new Auth middleware.
func NewAuth(secret []byte, logger *zap.Logger) *Auth {
	return &Auth{
		secret: secret,
		logger: logger,
	}
}

// Intercept rejects requests without a valid token.
func (a *Auth) Intercept(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := auth.FromRequest(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}
		claims, err := auth.Verify(a.secret, token)
		if err != nil {
			a.logger.Debug("rejected token", zap.Error(err))
			http.Error(w, auth.ErrInvalidToken.Error(), http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
	})
}

// WithClaims returns a copy of ctx carrying claims.
func WithClaims(ctx context.Context, claims *auth.Claims) context.Context {
	return context.WithValue(ctx, claimsKey{}, claims)
}

// ClaimsFrom returns the claims stored by Auth.
func ClaimsFrom(ctx context.Context) (*auth.Claims, bool) {
	claims, ok := ctx.Value(claimsKey{}).(*auth.Claims)
	return claims, ok && claims != nil
}
