package routes

import (
	"github.com/shashiranjanraj/checkout/app/controllers"
	"github.com/shashiranjanraj/checkout/pkg/middleware"
	"github.com/shashiranjanraj/checkout/pkg/router"
)

// API holds the controllers mounted under /api.
type API struct {
	Checkout *controllers.CheckoutController
	Orders   *controllers.OrderController
	Webhooks *controllers.WebhookController
	// Limiter throttles checkout creation per user. Nil disables it.
	Limiter *middleware.Limiter
}

func RegisterAPI(r *router.Router, c API) {
	api := r.Group("/api")

	// Providers authenticate with signatures, not bearer tokens.
	api.Post("/webhooks/{provider}", "webhooks.receive", c.Webhooks.Receive)

	protected := api.Group("", middleware.Auth)

	var throttle []router.Middleware
	if c.Limiter != nil {
		throttle = append(throttle, middleware.RateLimit(c.Limiter))
	}
	protected.Post("/payments", "payments.create", c.Checkout.Pay, throttle...)
	protected.Post("/orders", "orders.store", c.Checkout.PlaceCashOrder, throttle...)
	protected.Get("/orders", "orders.index", c.Orders.Index)
	protected.Get("/orders/{id}", "orders.show", c.Orders.Show)
}
