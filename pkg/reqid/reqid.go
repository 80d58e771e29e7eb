// Package reqid assigns every inbound request an ID, carries it in the
// context and echoes it in the X-Request-ID response header.
//
// Gateways resend webhooks with their own delivery IDs; when one is present
// in X-Request-ID it is kept, so a redelivery can be traced end to end.
//
// Middleware wiring in internal/kernel/http.go:
//
//	r.Use(reqid.Middleware())
//
// Reading inside a handler or service:
//
//	id := reqid.FromCtx(r.Context())
//
// Logging with the ID attached:
//
//	log := logger.WithCtx(r.Context())
//	log.Info("payment intent opened", "intent_id", intent.ID)
//	// → time=... level=INFO msg="payment intent opened" request_id=9f1c... intent_id=pi_123
//
// Background jobs have no request; give them an ID before logging:
//
//	ctx = reqid.WithValue(ctx, reqid.New())
package reqid

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

type ctxKey struct{}

// Header is the HTTP header name used to propagate the request ID.
const Header = "X-Request-ID"

// New returns a fresh random request ID.
func New() string {
	return uuid.NewString()
}

// WithValue stores id in ctx.
func WithValue(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromCtx returns the request ID in ctx, or "".
func FromCtx(ctx context.Context) string {
	if id, ok := ctx.Value(ctxKey{}).(string); ok {
		return id
	}
	return ""
}

// Middleware reuses an upstream X-Request-ID or generates one.
func Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(Header)
			if id == "" || len(id) > 128 {
				id = New()
			}

			w.Header().Set(Header, id)
			next.ServeHTTP(w, r.WithContext(WithValue(r.Context(), id)))
		})
	}
}
