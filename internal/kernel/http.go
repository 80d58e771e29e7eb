// Package kernel builds the service's HTTP handler: the global middleware
// stack, the operational endpoints and the API routes.
package kernel

import (
	"context"
	"net/http"
	"time"

	"github.com/shashiranjanraj/checkout/app/routes"
	"github.com/shashiranjanraj/checkout/config"
	"github.com/shashiranjanraj/checkout/pkg/logger"
	"github.com/shashiranjanraj/checkout/pkg/metrics"
	"github.com/shashiranjanraj/checkout/pkg/middleware"
	"github.com/shashiranjanraj/checkout/pkg/reqid"
	"github.com/shashiranjanraj/checkout/pkg/response"
	"github.com/shashiranjanraj/checkout/pkg/router"
)

const healthTimeout = 2 * time.Second

// Probe reports whether the order store is reachable.
type Probe func(ctx context.Context) error

// HTTPKernel owns the router the HTTP server serves.
type HTTPKernel struct {
	router *router.Router
}

// NewHTTPKernel mounts the middleware stack, /metrics, /healthz and the API.
func NewHTTPKernel(api routes.API, probe Probe) *HTTPKernel {
	r := router.New()

	// Global middleware stack (outermost → innermost):
	//  1. Prometheus metrics, outermost for accurate total latency
	//  2. Recovery, catches panics before they kill the goroutine
	//  3. Request ID, injected before anything logs
	//  4. Logger, logs request_id from context
	//  5. CORS
	r.Use(metrics.Middleware())
	r.Use(middleware.Recovery)
	r.Use(reqid.Middleware())
	r.Use(middleware.Logger)
	r.Use(middleware.CORS(middleware.DefaultCORSOptions(config.CORSOrigins())))

	// No auth, no rate limit.
	r.Get("/metrics", "metrics", metrics.Handler())
	r.Get("/healthz", "health", healthHandler(probe))

	routes.RegisterAPI(r, api)

	return &HTTPKernel{router: r}
}

func (k *HTTPKernel) Handler() http.Handler {
	return k.router.Handler()
}

// Routes lists the named routes, for route:list.
func (k *HTTPKernel) Routes() []router.RouteInfo {
	return k.router.Routes()
}

func healthHandler(probe Probe) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if probe != nil {
			ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
			defer cancel()

			if err := probe(ctx); err != nil {
				logger.WithCtx(r.Context()).Warn("health: store unreachable", "error", err)
				response.Error(w, http.StatusServiceUnavailable, "Order store unavailable")
				return
			}
		}
		response.Success(w, map[string]string{"status": "ok"})
	}
}
