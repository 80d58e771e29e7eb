package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/shashiranjanraj/checkout/pkg/auth"
	"github.com/shashiranjanraj/checkout/pkg/logger"
	"github.com/shashiranjanraj/checkout/pkg/response"
)

type userCtxKey struct{}

// WithUserID stores the authenticated user ID in ctx.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userCtxKey{}, userID)
}

// UserIDFromCtx returns the user ID set by Auth, or "".
func UserIDFromCtx(ctx context.Context) string {
	if id, ok := ctx.Value(userCtxKey{}).(string); ok {
		return id
	}
	return ""
}

// Auth rejects requests without a valid bearer token and puts the token's
// user ID into the request context.
func Auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, found := strings.CutPrefix(header, "Bearer ")
		if !found || strings.TrimSpace(token) == "" {
			response.Unauthorized(w)
			return
		}

		claims, err := auth.ValidateToken(strings.TrimSpace(token))
		if err != nil {
			logger.WithCtx(r.Context()).Debug("rejected bearer token", "error", err)
			response.Unauthorized(w)
			return
		}

		ctx := WithUserID(r.Context(), claims.UserID)
		ctx = logger.InjectLogger(ctx, logger.WithCtx(ctx).With("user_id", claims.UserID))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
