package middlewares

import (
	"context"
	"net/http"

	"github.com/sbilibin2017/gw-users/internal/jwt"
	"github.com/sbilibin2017/gw-users/internal/logger"
	"github.com/sbilibin2017/gw-users/internal/models"
)

//go:generate mockgen -source=auth.go -destination=mock_auth.go -package=middlewares

// Tokener defines the minimal interface needed by the middleware
type Tokener interface {
	GetTokenFromRequest(ctx context.Context, r *http.Request) (string, error)
	GetClaims(ctx context.Context, tokenString string) (*jwt.Claims, error)
}

type userContextKey struct{}

// AuthMiddleware returns a middleware that validates the bearer JWT and
// stores the user embedded in it in the request context.
func AuthMiddleware(tokener Tokener) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			tokenString, err := tokener.GetTokenFromRequest(ctx, r)
			if err != nil {
				logger.Log.Warnw("authorization failed", "err", err)
				w.WriteHeader(http.StatusUnauthorized)
				return
			}

			claims, err := tokener.GetClaims(ctx, tokenString)
			if err != nil {
				logger.Log.Warnw("authorization failed", "err", err)
				w.WriteHeader(http.StatusUnauthorized)
				return
			}

			ctx = SetUserToContext(ctx, claims.User)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SetUserToContext stores the authenticated user in the context.
func SetUserToContext(ctx context.Context, user models.User) context.Context {
	return context.WithValue(ctx, userContextKey{}, user)
}

// GetUserFromContext returns the authenticated user, or nil if absent.
func GetUserFromContext(ctx context.Context) *models.User {
	user, ok := ctx.Value(userContextKey{}).(models.User)
	if !ok {
		return nil
	}
	return &user
}
