package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/shashiranjanraj/checkout/pkg/logger"
	"github.com/shashiranjanraj/checkout/pkg/response"
)

// Recovery turns a handler panic into a 500 envelope and logs the stack
// with the request ID attached. Mount it right after the metrics middleware
// so it wraps everything that can panic, request logging included:
//
//	r.Use(metrics.Middleware())
//	r.Use(middleware.Recovery)   // catches panics from all below
//	r.Use(reqid.Middleware())
//	r.Use(middleware.Logger)
//
// http.ErrAbortHandler is re-raised so net/http can abort the response.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				if err == http.ErrAbortHandler {
					panic(err)
				}
				logger.WithCtx(r.Context()).Error("panic recovered",
					"error", fmt.Sprintf("%v", err),
					"stack", string(debug.Stack()),
					"method", r.Method,
					"path", r.URL.Path,
				)
				response.Error(w, http.StatusInternalServerError, "Internal Server Error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}
